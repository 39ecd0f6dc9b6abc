package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/media/pcm"
	"revoice/internal/services"
	"revoice/internal/transcript"
)

// PrepareOptions describe a standalone transcription run.
type PrepareOptions struct {
	InputVideo string
	// OutputDir defaults to the input path without its extension.
	OutputDir         string
	SkipTranscription bool
}

// PrepareResult lists the artefacts Prepare wrote.
type PrepareResult struct {
	OutputDir      string
	OriginalAudio  string
	DenoisedAudio  string
	CleanAudio     string
	TrimmedAudio   string
	GainDB         float64
	TranscriptJSON string
	TranscriptSRT  string
	Segments       int
	Source         string
}

// DefaultPrepareDir returns the artefact directory used when none is given.
func DefaultPrepareDir(video string) string {
	return strings.TrimSuffix(video, filepath.Ext(video))
}

// Prepare extracts the dialogue of a video, cleans it up (denoise, peak
// normalization, optional silence trim) and transcribes it to JSON and SRT.
func (r *Runner) Prepare(ctx context.Context, opts PrepareOptions) (PrepareResult, error) {
	var result PrepareResult
	if err := requireFile("input video", opts.InputVideo); err != nil {
		return result, err
	}
	outDir := opts.OutputDir
	if strings.TrimSpace(outDir) == "" {
		outDir = DefaultPrepareDir(opts.InputVideo)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrPersist, "prepare", "output dir", outDir, err)
	}
	result.OutputDir = outDir

	ctx = services.WithStage(ctx, "prepare")
	logger := logging.WithContext(ctx, r.logger)
	prep := r.cfg.Preparation

	result.OriginalAudio = filepath.Join(outDir, "original_audio.wav")
	if err := r.extractDialogue(ctx, opts.InputVideo, result.OriginalAudio); err != nil {
		return result, err
	}
	current := result.OriginalAudio

	if prep.Denoise {
		result.DenoisedAudio = filepath.Join(outDir, "denoised_audio.wav")
		if err := r.deps.Media.Denoise(ctx, current, result.DenoisedAudio, prep.NoiseFloorDB); err != nil {
			return result, services.Wrap(services.ErrExternalTool, "prepare", "denoise", current, err)
		}
		current = result.DenoisedAudio
	} else {
		logger.Info("skipping denoise")
	}

	result.CleanAudio = filepath.Join(outDir, "clean_audio.wav")
	gain, err := normalizeFile(current, result.CleanAudio, prep.PeakDBFS)
	if err != nil {
		return result, err
	}
	result.GainDB = gain
	current = result.CleanAudio
	logger.Info("audio normalized", logging.Float64("peak_dbfs", prep.PeakDBFS), logging.Float64("gain_db", gain))

	if prep.TrimSilence {
		result.TrimmedAudio = filepath.Join(outDir, "clean_audio_trimmed.wav")
		silence := ffmpeg.SilenceOptions{
			ThresholdDB:   prep.SilenceThresholdDB,
			MinSilenceMS:  prep.MinSilenceMS,
			KeepSilenceMS: prep.KeepSilenceMS,
		}
		if err := r.deps.Media.TrimSilence(ctx, current, result.TrimmedAudio, silence); err != nil {
			return result, services.Wrap(services.ErrExternalTool, "prepare", "trim silence", current, err)
		}
		current = result.TrimmedAudio
	}

	if opts.SkipTranscription {
		logger.Info("transcription skipped; audio preparation finished", logging.String("audio", current))
		return result, nil
	}

	ws, err := newWorkspace(r.cfg.Paths.WorkRoot)
	if err != nil {
		return result, err
	}
	defer ws.cleanup(logger)

	segments, source, err := r.transcribe(ctx, current, transcriptOutputDir(ws.dir))
	if err != nil {
		return result, err
	}
	result.Segments = len(segments)
	result.Source = source

	result.TranscriptJSON = filepath.Join(outDir, "clean_audio.json")
	result.TranscriptSRT = filepath.Join(outDir, "clean_audio.srt")
	if err := transcript.Write(result.TranscriptJSON, segments); err != nil {
		return result, services.Wrap(services.ErrPersist, "prepare", "write transcript", result.TranscriptJSON, err)
	}
	if err := transcript.WriteSRT(result.TranscriptSRT, segments); err != nil {
		return result, services.Wrap(services.ErrPersist, "prepare", "write subtitles", result.TranscriptSRT, err)
	}
	logger.Info("transcripts written", logging.Args(
		logging.String(logging.FieldEventType, "prepare_complete"),
		logging.String("json", result.TranscriptJSON),
		logging.String("srt", result.TranscriptSRT),
		logging.Int("segments", len(segments)),
	)...)
	return result, nil
}

func normalizeFile(input, output string, peakDBFS float64) (float64, error) {
	track, err := pcm.Read(input)
	if err != nil {
		return 0, services.Wrap(services.ErrPipeline, "prepare", "read audio", input, err)
	}
	gain, err := track.NormalizePeak(peakDBFS)
	if errors.Is(err, pcm.ErrSilent) {
		return 0, services.Wrap(services.ErrValidation, "prepare", "normalize", "audio is silent; cannot normalize", err)
	}
	if err != nil {
		return 0, services.Wrap(services.ErrPipeline, "prepare", "normalize", input, err)
	}
	if err := pcm.Write(output, track); err != nil {
		return 0, services.Wrap(services.ErrPersist, "prepare", "write audio", output, err)
	}
	return gain, nil
}
