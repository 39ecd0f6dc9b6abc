package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"revoice/internal/logging"
	"revoice/internal/media/audio"
	"revoice/internal/services"
	"revoice/internal/synth"
	"revoice/internal/transcript"
)

// RunOptions describe one voice replacement run.
type RunOptions struct {
	InputVideo  string
	OutputVideo string
	AudioPrompt string
	// TranscriptJSON skips extraction and transcription when set.
	TranscriptJSON string
	SaveTranscript bool
	KeepWorkdir    bool
}

// Summary reports what a run produced.
type Summary struct {
	RunID       string
	OutputVideo string
	// TranscriptSource is "file", "cache" or the backend that transcribed.
	TranscriptSource string
	TranscriptPath   string
	Segments         int
	Fallbacks        int
	Retries          int
	DialogueSeconds  float64
	PreservedWorkdir string
	Elapsed          time.Duration
}

// Run executes the full pipeline.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (summary Summary, err error) {
	start := time.Now()
	summary = Summary{RunID: uuid.NewString(), OutputVideo: opts.OutputVideo}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, r.logger)

	if err := validateRunOptions(opts); err != nil {
		return summary, err
	}

	lock, err := lockOutput(opts.OutputVideo)
	if err != nil {
		return summary, err
	}
	defer lock.release()

	ws, err := newWorkspace(r.cfg.Paths.WorkRoot)
	if err != nil {
		return summary, err
	}
	defer func() {
		if opts.KeepWorkdir {
			dest := opts.OutputVideo + ".workdir"
			if perr := ws.preserve(dest); perr != nil {
				logging.WarnWithContext(logger, "failed to preserve workdir", "workdir_preserve_failed",
					logging.String("workdir", ws.dir),
					logging.Error(perr),
					logging.String(logging.FieldImpact, "intermediate files are lost"),
				)
			} else {
				summary.PreservedWorkdir = dest
				logger.Info("working files preserved", logging.String("path", dest))
			}
		}
		ws.cleanup(logger)
	}()

	logger.Info("pipeline started", logging.Args(
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("input", opts.InputVideo),
		logging.String("output", opts.OutputVideo),
		logging.String("workdir", ws.dir),
	)...)

	segments, source, err := r.loadSegments(ctx, ws, opts)
	if err != nil {
		return summary, err
	}
	summary.TranscriptSource = source

	segments = transcript.SplitLong(segments, r.cfg.Alignment.MaxSegmentSeconds)
	summary.Segments = len(segments)
	logger.Info("transcript ready", logging.Args(
		logging.String("source", source),
		logging.Int("segments", len(segments)),
		logging.Float64("speech_seconds", transcript.TotalDuration(segments)),
	)...)

	if opts.SaveTranscript {
		path := opts.OutputVideo + ".transcript.json"
		if err := transcript.Write(path, segments); err != nil {
			return summary, services.Wrap(services.ErrPersist, "transcribe", "save transcript", path, err)
		}
		summary.TranscriptPath = path
		logger.Info("transcript saved", logging.String("path", path))
	}

	generated, err := r.synthesizeAll(ctx, ws, opts.AudioPrompt, segments, &summary)
	if err != nil {
		return summary, err
	}

	assembleCtx := services.WithStage(ctx, "assemble")
	assembled, err := r.newAssembler().Assemble(assembleCtx, generated, ws.path("final_dialogue.wav"))
	if err != nil {
		return summary, err
	}
	summary.DialogueSeconds = assembled.Seconds

	muxCtx := services.WithStage(ctx, "mux")
	if err := r.deps.Media.ReplaceAudio(muxCtx, opts.InputVideo, assembled.Path, opts.OutputVideo); err != nil {
		return summary, services.Wrap(services.ErrExternalTool, "mux", "replace audio", opts.OutputVideo, err)
	}

	summary.Elapsed = time.Since(start)
	logger.Info("pipeline complete", logging.Args(
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.String("output", opts.OutputVideo),
		logging.Int("segments", summary.Segments),
		logging.Int("fallbacks", summary.Fallbacks),
		logging.Duration("elapsed", summary.Elapsed),
	)...)
	return summary, nil
}

type requiredInput struct {
	label string
	path  string
}

func validateRunOptions(opts RunOptions) error {
	if strings.TrimSpace(opts.OutputVideo) == "" {
		return services.Wrap(services.ErrValidation, "run", "options", "output video is required", nil)
	}
	required := []requiredInput{
		{"input video", opts.InputVideo},
		{"audio prompt", opts.AudioPrompt},
	}
	if opts.TranscriptJSON != "" {
		required = append(required, requiredInput{"transcript", opts.TranscriptJSON})
	}
	for _, req := range required {
		if err := requireFile(req.label, req.path); err != nil {
			return err
		}
	}
	return nil
}

func requireFile(label, path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrInputNotFound, "run", "inputs", label+" is required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrInputNotFound, "run", "inputs",
			fmt.Sprintf("%s %s does not exist", label, path), err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrInputNotFound, "run", "inputs",
			fmt.Sprintf("%s %s is a directory", label, path), nil)
	}
	return nil
}

// extractDialogue probes video, picks the dialogue stream and extracts it.
func (r *Runner) extractDialogue(ctx context.Context, video, output string) error {
	ctx = services.WithStage(ctx, "extract")
	logger := logging.WithContext(ctx, r.logger)

	probe, err := r.deps.Probe(ctx, video)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "extract", "probe", video, err)
	}
	selection := audio.Select(probe.Streams, r.cfg.Transcription.Language)
	if !selection.Found() {
		return services.Wrap(services.ErrValidation, "extract", "select stream",
			fmt.Sprintf("%s has no audio stream", video), nil)
	}
	logger.Info("dialogue stream selected", logging.Args(
		logging.String("stream", selection.PrimaryLabel()),
		logging.Int("stream_index", selection.PrimaryIndex),
		logging.Int("candidates", selection.Candidates),
	)...)

	if err := r.deps.Media.ExtractAudio(ctx, video, selection.PrimaryIndex, output); err != nil {
		return services.Wrap(services.ErrExternalTool, "extract", "ffmpeg", video, err)
	}
	return nil
}

// synthesizeAll renders and aligns every segment in order.
func (r *Runner) synthesizeAll(ctx context.Context, ws *workspace, prompt string, segments []transcript.Segment, summary *Summary) ([]synth.GeneratedSegment, error) {
	synthesizer, err := r.deps.Synthesizer(ws.dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", "helper", "", err)
	}
	generator := synth.NewGenerator(synthesizer, r.generatorOptions(), r.logger)
	aligner := r.newAligner()
	s := r.cfg.Synthesis
	device := r.devices.Resolve(s.Device)

	r.progress.Start(len(segments))
	defer r.progress.Finish()

	generated := make([]synth.GeneratedSegment, 0, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segCtx := services.WithSegmentIndex(services.WithStage(ctx, "synthesize"), i+1)
		logger := logging.WithContext(segCtx, r.logger)

		outcome, err := generator.Generate(segCtx, synth.Request{
			Text:         seg.Text,
			SpeakerWAV:   prompt,
			Output:       ws.segmentPath(i, "raw"),
			Device:       device,
			Multilingual: s.Multilingual,
			Language:     s.Language,
			Exaggeration: s.Exaggeration,
			CFGWeight:    s.CFGWeight,
			Steps:        s.Steps,
			MaxNewTokens: s.MaxNewTokens,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}

		aligned := ws.segmentPath(i, "aligned")
		alignCtx := services.WithStage(segCtx, "align")
		res, err := aligner.Align(alignCtx, outcome.Path, aligned, seg.Duration())
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}

		if outcome.Fallback {
			summary.Fallbacks++
		}
		if outcome.Attempts > 1 {
			summary.Retries += outcome.Attempts - 1
		}
		generated = append(generated, synth.GeneratedSegment{
			Segment:   seg,
			AudioPath: aligned,
			Fallback:  outcome.Fallback,
			Attempts:  outcome.Attempts,
		})
		logger.Debug("segment ready", logging.Args(
			logging.Float64("start", seg.Start),
			logging.Float64("target_seconds", res.TargetSeconds),
			logging.Float64("speed", res.Speed),
			logging.Bool("fallback", outcome.Fallback),
		)...)
		r.progress.Step(i+1, fmt.Sprintf("segment %d/%d", i+1, len(segments)))
	}
	return generated, nil
}
