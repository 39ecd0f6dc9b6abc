package transcribe

import (
	"context"
	"fmt"
	"os"
	"strconv"

	langpkg "revoice/internal/language"
	"revoice/internal/transcript"
)

// WhisperX tuning constants.
const (
	DefaultWhisperXModel = "large-v3"
	CUDAIndexURL         = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL         = "https://pypi.org/simple"
	BatchSize            = "4"
	ChunkSize            = "15"
	VADOnset             = "0.08"
	VADOffset            = "0.07"
	BestOf               = "5"
	Patience             = "1.0"
	SegmentResolution    = "sentence"
	VADMethodPyannote    = "pyannote"
	VADMethodSilero      = "silero"
	UVXCommand           = "uvx"
	CPUComputeType       = "float32"
)

// WhisperX runs WhisperX through uvx.
type WhisperX struct {
	opts      Options
	hfToken   string
	outputDir string
	run       CommandRunner
}

// NewWhisperX constructs the WhisperX backend. A Hugging Face token switches
// voice activity detection to pyannote.
func NewWhisperX(opts Options, hfToken, outputDir string) *WhisperX {
	return &WhisperX{opts: opts, hfToken: hfToken, outputDir: outputDir, run: defaultCommandRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(r CommandRunner) {
	if r != nil {
		w.run = r
	}
}

// Name implements Backend.
func (w *WhisperX) Name() string { return BackendWhisperX }

// Transcribe implements Backend.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("whisperx: ensure output dir: %w", err)
	}
	if err := w.run(ctx, UVXCommand, w.buildArgs(audioPath)...); err != nil {
		return nil, fmt.Errorf("whisperx: %w", err)
	}
	payload, err := loadWhisperJSON(w.outputDir, audioPath)
	if err != nil {
		return nil, fmt.Errorf("whisperx: %w", err)
	}
	return payload.segments(), nil
}

func (w *WhisperX) cuda() bool {
	return w.opts.Device == "cuda"
}

func (w *WhisperX) buildArgs(audioPath string) []string {
	args := make([]string, 0, 40)

	if w.cuda() {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	model := w.opts.Model
	if model == "" {
		model = DefaultWhisperXModel
	}
	beam := w.opts.BeamSize
	if beam <= 0 {
		beam = 5
	}

	args = append(args,
		"whisperx",
		audioPath,
		"--model", model,
		"--batch_size", BatchSize,
		"--output_dir", w.outputDir,
		"--output_format", "json",
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", strconv.Itoa(beam),
		"--best_of", BestOf,
		"--temperature", strconv.FormatFloat(w.opts.Temperature, 'f', -1, 64),
		"--patience", Patience,
	)

	if w.hfToken != "" {
		args = append(args, "--vad_method", VADMethodPyannote, "--hf_token", w.hfToken)
	} else {
		args = append(args, "--vad_method", VADMethodSilero)
	}

	if lang := langpkg.ToISO2(w.opts.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if w.cuda() {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu", "--compute_type", CPUComputeType)
	}
	return args
}
