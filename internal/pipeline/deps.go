package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"revoice/internal/config"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/media/ffprobe"
	"revoice/internal/synth"
	"revoice/internal/sysinfo"
	"revoice/internal/transcribe"
	"revoice/internal/transcript"
	"revoice/internal/transcriptcache"
)

// MediaTool is the ffmpeg surface the pipeline needs.
type MediaTool interface {
	ExtractAudio(ctx context.Context, video string, streamIndex int, output string) error
	Duration(ctx context.Context, path string) (float64, error)
	Stretch(ctx context.Context, input, output string, speed float64) error
	Denoise(ctx context.Context, input, output string, noiseFloorDB float64) error
	TrimSilence(ctx context.Context, input, output string, opts ffmpeg.SilenceOptions) error
	Finalize(ctx context.Context, input, output string, opts ffmpeg.MasterOptions) error
	ReplaceAudio(ctx context.Context, video, audio, output string) error
}

// Prober inspects a media container.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// TranscriberFactory builds a transcription backend whose scratch files live
// under outputDir.
type TranscriberFactory func(outputDir string) (transcribe.Backend, error)

// SynthesizerFactory builds a synthesizer whose helper files live under workDir.
type SynthesizerFactory func(workDir string) (synth.Synthesizer, error)

// TranscriptCache stores transcripts across runs. *transcriptcache.Store
// satisfies it.
type TranscriptCache interface {
	Get(ctx context.Context, key transcriptcache.Key) (*transcriptcache.Entry, error)
	Put(ctx context.Context, key transcriptcache.Key, producedBy string, segments []transcript.Segment) error
}

// Dependencies bundles the collaborators of a Runner. Cache and Progress are
// optional.
type Dependencies struct {
	Media       MediaTool
	Probe       Prober
	Transcriber TranscriberFactory
	Synthesizer SynthesizerFactory
	Cache       TranscriptCache
	Progress    Progress
}

// DefaultDependencies wires the real ffmpeg, ffprobe, transcription and
// Chatterbox implementations for cfg. "auto" devices are resolved against
// the detected GPUs.
func DefaultDependencies(cfg *config.Config, logger *slog.Logger) Dependencies {
	resolver := sysinfo.NewDeviceResolver()
	ffprobeBinary := cfg.FFprobeBinary()

	return Dependencies{
		Media: ffmpeg.New(cfg.FFmpegBinary(), ffprobeBinary, logger),
		Probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
		Transcriber: func(outputDir string) (transcribe.Backend, error) {
			device := resolver.Resolve(cfg.Transcription.Device)
			return transcribe.FromConfig(cfg, device, outputDir, logger)
		},
		Synthesizer: func(workDir string) (synth.Synthesizer, error) {
			script, err := synth.EnsureScript(cfg.Synthesis.Script, workDir)
			if err != nil {
				return nil, err
			}
			return synth.NewChatterbox(cfg.Synthesis.Python, script, logger), nil
		},
	}
}

func transcriptOutputDir(workDir string) string {
	return filepath.Join(workDir, "transcription")
}
