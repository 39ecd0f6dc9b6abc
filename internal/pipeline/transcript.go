package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/services"
	"revoice/internal/transcribe"
	"revoice/internal/transcript"
	"revoice/internal/transcriptcache"
)

// Transcript sources reported in Summary.TranscriptSource.
const (
	SourceFile  = "file"
	SourceCache = "cache"
)

// loadSegments returns the run's transcript: the supplied JSON when given,
// otherwise the extracted dialogue transcribed (through the cache when one
// is configured).
func (r *Runner) loadSegments(ctx context.Context, ws *workspace, opts RunOptions) ([]transcript.Segment, string, error) {
	if opts.TranscriptJSON != "" {
		segments, err := transcript.Load(opts.TranscriptJSON)
		if err != nil {
			return nil, "", services.Wrap(services.ErrValidation, "transcribe", "load transcript", opts.TranscriptJSON, err)
		}
		segments, err = transcript.Clean(segments)
		if err != nil {
			return nil, "", services.Wrap(services.ErrValidation, "transcribe", "load transcript", opts.TranscriptJSON, err)
		}
		if len(segments) == 0 {
			return nil, "", services.Wrap(services.ErrValidation, "transcribe", "load transcript", opts.TranscriptJSON, transcript.ErrEmpty)
		}
		return segments, SourceFile, nil
	}

	extracted := ws.path("source_audio.wav")
	if err := r.extractDialogue(ctx, opts.InputVideo, extracted); err != nil {
		return nil, "", err
	}
	return r.transcribe(ctx, extracted, transcriptOutputDir(ws.dir))
}

// transcribe runs the configured backend chain over audioPath, consulting
// and filling the cache.
func (r *Runner) transcribe(ctx context.Context, audioPath, outputDir string) ([]transcript.Segment, string, error) {
	ctx = services.WithStage(ctx, "transcribe")
	logger := logging.WithContext(ctx, r.logger)

	var key transcriptcache.Key
	cache := r.deps.Cache
	if cache != nil {
		var err error
		key, err = transcriptcache.KeyFor(audioPath, r.cfg.Transcription.Backend, cacheModel(r.cfg.Transcription), r.cfg.Transcription.Language)
		if err != nil {
			logger.Warn("transcript cache disabled for this run", logging.Error(err))
			cache = nil
		}
	}
	if cache != nil {
		entry, err := cache.Get(ctx, key)
		if err != nil {
			logger.Warn("transcript cache lookup failed", logging.Error(err))
		} else if entry != nil && len(entry.Segments) > 0 {
			logger.Info("transcript cache hit", logging.Args(
				logging.String(logging.FieldEventType, "transcript_cache_hit"),
				logging.String("produced_by", entry.ProducedBy),
				logging.Int("segments", len(entry.Segments)),
			)...)
			return entry.Segments, SourceCache, nil
		}
	}

	backend, err := r.deps.Transcriber(outputDir)
	if err != nil {
		return nil, "", err
	}
	segments, err := backend.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, "", err
	}
	segments, err = transcript.Clean(segments)
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, "transcribe", "clean", backend.Name(), err)
	}
	if len(segments) == 0 {
		return nil, "", services.Wrap(services.ErrPipeline, "transcribe", "clean", backend.Name(), transcript.ErrEmpty)
	}

	source := backend.Name()
	if chain, ok := backend.(*transcribe.Chain); ok && chain.Used() != "" {
		source = chain.Used()
	}
	if cache != nil {
		if err := cache.Put(ctx, key, source, segments); err != nil {
			logger.Warn("failed to cache transcript", logging.Error(err))
		}
	}
	return segments, source, nil
}

// cacheModel names the model settings that shape the transcript for backend,
// decoding parameters included.
func cacheModel(t config.Transcription) string {
	var model string
	switch t.Backend {
	case transcribe.BackendWhisper:
		model = t.Model
	case transcribe.BackendWhisperX:
		model = t.WhisperXModel
	case transcribe.BackendOpenAI:
		model = t.OpenAIModel
	default:
		model = strings.Join([]string{t.Model, t.WhisperXModel, t.OpenAIModel}, "/")
	}
	return fmt.Sprintf("%s;temperature=%s;beam=%d", model, strconv.FormatFloat(t.Temperature, 'f', -1, 64), t.BeamSize)
}
