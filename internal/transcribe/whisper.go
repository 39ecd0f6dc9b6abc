package transcribe

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	langpkg "revoice/internal/language"
	"revoice/internal/transcript"
)

// Whisper runs the openai-whisper command line tool.
type Whisper struct {
	command   string
	opts      Options
	outputDir string
	run       CommandRunner
}

// NewWhisper constructs the whisper CLI backend. Output files land in outputDir.
func NewWhisper(command string, opts Options, outputDir string) *Whisper {
	if strings.TrimSpace(command) == "" {
		command = "whisper"
	}
	return &Whisper{command: command, opts: opts, outputDir: outputDir, run: defaultCommandRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *Whisper) WithCommandRunner(r CommandRunner) {
	if r != nil {
		w.run = r
	}
}

// Name implements Backend.
func (w *Whisper) Name() string { return BackendWhisper }

// Transcribe implements Backend.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("whisper: ensure output dir: %w", err)
	}
	if err := w.run(ctx, w.command, w.buildArgs(audioPath)...); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	payload, err := loadWhisperJSON(w.outputDir, audioPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return payload.segments(), nil
}

func (w *Whisper) buildArgs(audioPath string) []string {
	model := w.opts.Model
	if model == "" {
		model = "medium"
	}
	device := w.opts.Device
	if device == "" || device == "auto" {
		device = "cpu"
	}
	args := []string{
		audioPath,
		"--model", model,
		"--device", device,
		"--temperature", strconv.FormatFloat(w.opts.Temperature, 'f', -1, 64),
	}
	if w.opts.BeamSize > 0 {
		args = append(args, "--beam_size", strconv.Itoa(w.opts.BeamSize))
	}
	if lang := langpkg.ToISO2(w.opts.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if device == "cpu" {
		args = append(args, "--fp16", "False")
	}
	return append(args,
		"--output_format", "json",
		"--output_dir", w.outputDir,
		"--verbose", "False",
	)
}
