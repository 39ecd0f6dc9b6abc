// Package assemble lays aligned clips onto a silent timeline and masters the
// result into the replacement dialogue track.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"

	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/media/pcm"
	"revoice/internal/services"
	"revoice/internal/synth"
)

// ErrNoSegments is returned when there is nothing to assemble.
var ErrNoSegments = errors.New("no generated segments to assemble")

// Finisher masters a mixed track. ffmpeg.Tool satisfies it.
type Finisher interface {
	Finalize(ctx context.Context, input, output string, opts ffmpeg.MasterOptions) error
}

// Options control the timeline layout and mastering.
type Options struct {
	SampleRate    int
	TailPaddingMS int
	FadeMS        int
	MinGapMS      int
	Master        ffmpeg.MasterOptions
}

// Result summarizes an assembled track.
type Result struct {
	Path          string
	MixPath       string
	Seconds       float64
	Clips         int
	SilencedGaps  int
	ClippedFrames int
}

// Assembler builds the dialogue track.
type Assembler struct {
	finisher Finisher
	opts     Options
	logger   *slog.Logger
}

// New constructs an Assembler. A nil finisher writes the raw mix as the
// output without loudness mastering.
func New(finisher Finisher, opts Options, logger *slog.Logger) *Assembler {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 24000
	}
	opts.Master.SampleRate = opts.SampleRate
	return &Assembler{
		finisher: finisher,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "assemble"),
	}
}

// Assemble sorts segments by start time and overlays each clip at its start
// offset on a silent base of ceil(lastEnd*1000)+padding milliseconds. Clips
// are faded in and out and summed; gaps of at least MinGapMS between
// consecutive segments are forced to silence. The mix is then mastered into
// output.
func (a *Assembler) Assemble(ctx context.Context, segments []synth.GeneratedSegment, output string) (Result, error) {
	if len(segments) == 0 {
		return Result{}, services.Wrap(services.ErrPipeline, "assemble", "timeline", "", ErrNoSegments)
	}
	ordered := append([]synth.GeneratedSegment(nil), segments...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Segment.Start < ordered[j].Segment.Start
	})

	rate := a.opts.SampleRate
	lastEnd := 0.0
	for _, seg := range ordered {
		lastEnd = math.Max(lastEnd, seg.Segment.End)
	}
	totalMS := int(math.Ceil(lastEnd*1000)) + a.opts.TailPaddingMS
	track := pcm.Silence(rate, msToFrames(totalMS, rate))

	for i, seg := range ordered {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		clip, err := pcm.Read(seg.AudioPath)
		if err != nil {
			return Result{}, services.Wrap(services.ErrPipeline, "assemble", "read clip",
				fmt.Sprintf("segment %d", i+1), err)
		}
		clip = clip.Resample(rate)
		clip.Fade(a.opts.FadeMS)
		track.MixAt(clip, secondsToFrames(seg.Segment.Start, rate))
	}

	gaps := silenceGaps(track, ordered, a.opts.MinGapMS)
	clipped := countClipped(track)

	logger := logging.WithContext(ctx, a.logger)
	if clipped > 0 {
		logger.Debug("mix exceeded full scale; samples will be clipped",
			logging.Int("clipped_frames", clipped),
		)
	}

	mixPath := output
	if a.finisher != nil {
		mixPath = filepath.Join(filepath.Dir(output), "dialogue_mix.wav")
	}
	if err := pcm.Write(mixPath, track); err != nil {
		return Result{}, services.Wrap(services.ErrPersist, "assemble", "write mix", mixPath, err)
	}
	if a.finisher != nil {
		if err := a.finisher.Finalize(ctx, mixPath, output, a.opts.Master); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "assemble", "master", output, err)
		}
	}

	result := Result{
		Path:          output,
		MixPath:       mixPath,
		Seconds:       track.Duration(),
		Clips:         len(ordered),
		SilencedGaps:  gaps,
		ClippedFrames: clipped,
	}
	logger.Info("dialogue track assembled",
		logging.Int("clips", result.Clips),
		logging.Float64("track_seconds", result.Seconds),
		logging.Int("silenced_gaps", gaps),
	)
	return result, nil
}

// silenceGaps zeroes the span between each segment's end and the next start
// when it lasts at least minGapMS, removing stretch tails that bleed into
// pauses. Returns the number of gaps silenced.
func silenceGaps(track pcm.Track, ordered []synth.GeneratedSegment, minGapMS int) int {
	if minGapMS <= 0 {
		return 0
	}
	minGap := float64(minGapMS) / 1000
	count := 0
	coveredEnd := ordered[0].Segment.End
	for _, seg := range ordered[1:] {
		if gap := seg.Segment.Start - coveredEnd; gap >= minGap {
			track.Zero(secondsToFrames(coveredEnd, track.SampleRate), secondsToFrames(seg.Segment.Start, track.SampleRate))
			count++
		}
		coveredEnd = math.Max(coveredEnd, seg.Segment.End)
	}
	return count
}

func countClipped(track pcm.Track) int {
	n := 0
	for _, s := range track.Samples {
		if s > 1 || s < -1 {
			n++
		}
	}
	return n
}

func msToFrames(ms, rate int) int {
	return int(int64(ms) * int64(rate) / 1000)
}

func secondsToFrames(seconds float64, rate int) int {
	return int(math.Round(seconds * float64(rate)))
}
