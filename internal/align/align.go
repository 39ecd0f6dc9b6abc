// Package align time-stretches synthesized clips so each one lasts exactly as
// long as the transcript segment it voices.
package align

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"revoice/internal/fileutil"
	"revoice/internal/logging"
	"revoice/internal/services"
)

// DefaultMinTarget is the smallest target duration in seconds. Zero-length
// segments are floored to it so the speed ratio stays finite.
const DefaultMinTarget = 0.001

// ErrZeroDuration is returned when a clip reports no playable audio.
var ErrZeroDuration = errors.New("clip has zero duration")

// Tool measures and time-stretches audio files.
type Tool interface {
	Duration(ctx context.Context, path string) (float64, error)
	Stretch(ctx context.Context, input, output string, speed float64) error
}

// Result describes a completed alignment.
type Result struct {
	SourceSeconds float64
	TargetSeconds float64
	Speed         float64
	Copied        bool
}

// Aligner stretches clips to target durations.
type Aligner struct {
	tool      Tool
	minTarget float64
	logger    *slog.Logger
}

// New constructs an Aligner. A non-positive minTarget uses DefaultMinTarget.
func New(tool Tool, minTarget float64, logger *slog.Logger) *Aligner {
	if minTarget <= 0 {
		minTarget = DefaultMinTarget
	}
	return &Aligner{
		tool:      tool,
		minTarget: minTarget,
		logger:    logging.NewComponentLogger(logger, "align"),
	}
}

// SpeedRatio returns current/target with target floored to minTarget.
func SpeedRatio(current, target, minTarget float64) (float64, error) {
	if math.IsNaN(current) || current <= 0 {
		return 0, ErrZeroDuration
	}
	if math.IsNaN(target) || target < minTarget {
		target = minTarget
	}
	return current / target, nil
}

// Align writes a copy of input to output whose duration matches target
// seconds. A ratio of exactly 1 copies the file byte for byte.
func (a *Aligner) Align(ctx context.Context, input, output string, target float64) (Result, error) {
	current, err := a.tool.Duration(ctx, input)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "align", "probe duration", input, err)
	}
	speed, err := SpeedRatio(current, target, a.minTarget)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPipeline, "align", "speed ratio", fmt.Sprintf("%s cannot be stretched", input), err)
	}

	result := Result{
		SourceSeconds: current,
		TargetSeconds: math.Max(target, a.minTarget),
		Speed:         speed,
	}
	logger := logging.WithContext(ctx, a.logger)

	if speed == 1 {
		if err := fileutil.CopyFile(input, output); err != nil {
			return Result{}, services.Wrap(services.ErrPersist, "align", "copy", output, err)
		}
		result.Copied = true
		logger.Debug("clip already at target duration",
			logging.Float64("duration_seconds", current),
		)
		return result, nil
	}

	if err := a.tool.Stretch(ctx, input, output, speed); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "align", "stretch", input, err)
	}
	logger.Debug("clip stretched",
		logging.Float64("source_seconds", current),
		logging.Float64("target_seconds", result.TargetSeconds),
		logging.Float64("speed", speed),
	)
	return result, nil
}
