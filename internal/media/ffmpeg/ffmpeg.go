package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"revoice/internal/logging"
	"revoice/internal/media/ffprobe"
)

// CommandRunner executes an external command. Tests substitute a recorder.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Tool runs ffmpeg and ffprobe for every media operation in the pipeline.
type Tool struct {
	ffmpegBinary  string
	ffprobeBinary string
	run           CommandRunner
	probe         func(ctx context.Context, binary, path string) (float64, error)
	logger        *slog.Logger
}

// New constructs a Tool. Empty binary names fall back to the PATH defaults.
func New(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Tool {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Tool{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		run:           defaultCommandRunner,
		probe:         ffprobe.Duration,
		logger:        logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// WithCommandRunner injects a custom command runner (primarily for tests).
func (t *Tool) WithCommandRunner(r CommandRunner) {
	if t != nil && r != nil {
		t.run = r
	}
}

// WithDurationProbe replaces the ffprobe duration lookup (primarily for tests).
func (t *Tool) WithDurationProbe(probe func(ctx context.Context, binary, path string) (float64, error)) {
	if t != nil && probe != nil {
		t.probe = probe
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLines(string(output), 5))
	}
	return nil
}

// lastLines keeps the tail of ffmpeg's output, where the actual error lives.
func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func (t *Tool) ffmpeg(ctx context.Context, operation string, args ...string) error {
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	t.logger.Debug("running ffmpeg",
		logging.String("operation", operation),
		logging.String("args", strings.Join(full, " ")),
	)
	if err := t.run(ctx, t.ffmpegBinary, full...); err != nil {
		return fmt.Errorf("ffmpeg %s: %w", operation, err)
	}
	return nil
}

// ExtractAudio pulls one audio stream of video into a mono 16 kHz 16-bit PCM
// WAV, the input format every transcription backend accepts. A negative
// streamIndex selects the first audio stream.
func (t *Tool) ExtractAudio(ctx context.Context, video string, streamIndex int, output string) error {
	stream := "0:a:0"
	if streamIndex >= 0 {
		stream = "0:" + strconv.Itoa(streamIndex)
	}
	return t.ffmpeg(ctx, "extract audio",
		"-i", video,
		"-map", stream,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		output,
	)
}

// Duration returns the playback length of path in seconds.
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	return t.probe(ctx, t.ffprobeBinary, path)
}

// Stretch time-stretches input by speed (>1 shortens, <1 lengthens) without
// changing pitch.
func (t *Tool) Stretch(ctx context.Context, input, output string, speed float64) error {
	chain, err := AtempoChain(speed)
	if err != nil {
		return err
	}
	return t.ffmpeg(ctx, "stretch", "-i", input, "-filter:a", chain, output)
}

// Denoise applies the afftdn frequency-domain denoiser.
func (t *Tool) Denoise(ctx context.Context, input, output string, noiseFloorDB float64) error {
	return t.ffmpeg(ctx, "denoise", "-i", input, "-af", fmt.Sprintf("afftdn=nf=%s", formatFloat(noiseFloorDB)), output)
}

// SilenceOptions tunes leading/trailing silence removal.
type SilenceOptions struct {
	ThresholdDB   float64
	MinSilenceMS  int
	KeepSilenceMS int
}

// TrimSilence removes leading and trailing silence with silenceremove.
func (t *Tool) TrimSilence(ctx context.Context, input, output string, opts SilenceOptions) error {
	return t.ffmpeg(ctx, "trim silence", "-i", input, "-af", silenceFilter(opts), output)
}

func silenceFilter(opts SilenceOptions) string {
	threshold := formatFloat(opts.ThresholdDB)
	minSilence := formatFloat(float64(opts.MinSilenceMS) / 1000)
	return "silenceremove=" +
		"start_periods=1:start_threshold=" + threshold + "dB:start_silence=" + minSilence + ":" +
		"stop_periods=1:stop_threshold=" + threshold + "dB:stop_silence=" + minSilence + ":" +
		"leave_silence=" + formatFloat(float64(opts.KeepSilenceMS)/1000)
}

// MasterOptions are the loudness and compression targets for the final track.
type MasterOptions struct {
	SampleRate            int
	LoudnessI             float64
	LoudnessTP            float64
	LoudnessLRA           float64
	CompressorThresholdDB float64
	CompressorRatio       float64
}

// Finalize applies loudnorm followed by a light acompressor and writes a
// 16-bit PCM WAV at the requested sample rate.
func (t *Tool) Finalize(ctx context.Context, input, output string, opts MasterOptions) error {
	args := []string{"-i", input, "-af", masterFilter(opts)}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", opts.SampleRate))
	}
	args = append(args, "-c:a", "pcm_s16le", output)
	return t.ffmpeg(ctx, "finalize", args...)
}

func masterFilter(opts MasterOptions) string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s,acompressor=threshold=%sdB:ratio=%s",
		formatFloat(opts.LoudnessI),
		formatFloat(opts.LoudnessTP),
		formatFloat(opts.LoudnessLRA),
		formatFloat(opts.CompressorThresholdDB),
		formatFloat(opts.CompressorRatio),
	)
}

// ReplaceAudio copies the first video stream of video and pairs it with the
// first audio stream of audio, truncating to the shorter of the two.
func (t *Tool) ReplaceAudio(ctx context.Context, video, audio, output string) error {
	return t.ffmpeg(ctx, "replace audio",
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		output,
	)
}
