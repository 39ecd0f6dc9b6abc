package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"revoice/internal/align"
	"revoice/internal/assemble"
	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/synth"
	"revoice/internal/sysinfo"
)

// Runner executes voice replacement runs for one configuration.
type Runner struct {
	cfg      *config.Config
	deps     Dependencies
	devices  *sysinfo.DeviceResolver
	logger   *slog.Logger
	progress Progress
}

// New constructs a Runner. Media, Probe, Transcriber and Synthesizer are
// required; a nil Progress disables progress reporting.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is nil")
	}
	if deps.Media == nil || deps.Probe == nil || deps.Transcriber == nil || deps.Synthesizer == nil {
		return nil, errors.New("pipeline: media, probe, transcriber and synthesizer are required")
	}
	progress := deps.Progress
	if progress == nil {
		progress = noopProgress{}
	}
	return &Runner{
		cfg:      cfg,
		deps:     deps,
		devices:  sysinfo.NewDeviceResolver(),
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		progress: progress,
	}, nil
}

// WithDeviceResolver replaces GPU detection (for testing).
func (r *Runner) WithDeviceResolver(resolver *sysinfo.DeviceResolver) {
	if resolver != nil {
		r.devices = resolver
	}
}

func (r *Runner) generatorOptions() synth.Options {
	s := r.cfg.Synthesis
	policy := synth.DefaultRetryPolicy()
	if s.MaxAttempts > 0 {
		policy.MaxAttempts = s.MaxAttempts
	}
	return synth.Options{
		Policy:             policy,
		Timeout:            time.Duration(s.TimeoutSeconds) * time.Second,
		AllowFallback:      s.AllowFallbackTone,
		FallbackSeconds:    s.FallbackToneSeconds,
		FallbackHz:         s.FallbackToneHz,
		FallbackSampleRate: r.cfg.Assembly.SampleRate,
	}
}

func (r *Runner) newAligner() *align.Aligner {
	return align.New(r.deps.Media, r.cfg.Alignment.MinTargetSeconds, r.logger)
}

func (r *Runner) newAssembler() *assemble.Assembler {
	a := r.cfg.Assembly
	return assemble.New(r.deps.Media, assemble.Options{
		SampleRate:    a.SampleRate,
		TailPaddingMS: a.TailPaddingMS,
		FadeMS:        a.FadeMS,
		MinGapMS:      a.MinGapMS,
		Master: ffmpeg.MasterOptions{
			SampleRate:            a.SampleRate,
			LoudnessI:             a.LoudnessI,
			LoudnessTP:            a.LoudnessTP,
			LoudnessLRA:           a.LoudnessLRA,
			CompressorThresholdDB: a.CompressorThresholdDB,
			CompressorRatio:       a.CompressorRatio,
		},
	}, r.logger)
}
