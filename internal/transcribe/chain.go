package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"revoice/internal/logging"
	"revoice/internal/services"
	"revoice/internal/transcript"
)

// Chain tries backends in order and returns the first usable transcript.
type Chain struct {
	backends []Backend
	timeout  time.Duration
	logger   *slog.Logger
	used     string
}

// NewChain builds a chain over backends. A positive timeout bounds each attempt.
func NewChain(timeout time.Duration, logger *slog.Logger, backends ...Backend) *Chain {
	return &Chain{
		backends: backends,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Name lists the chained backends, e.g. "whisper+whisperx+openai".
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name())
	}
	return strings.Join(names, "+")
}

// Used reports the backend that produced the last successful transcript.
func (c *Chain) Used() string {
	return c.used
}

// Transcribe runs each backend until one yields at least one non-empty
// segment. Failures and empty results fall through to the next backend.
func (c *Chain) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	if len(c.backends) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "select backend", "no transcription backend configured", nil)
	}
	c.used = ""

	var errs []error
	for _, backend := range c.backends {
		start := time.Now()
		segments, err := c.attempt(ctx, backend, audioPath)
		if err == nil {
			segments, err = transcript.Clean(segments)
		}
		if err == nil && len(segments) == 0 {
			err = transcript.ErrEmpty
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			logging.WarnWithContext(c.logger, "transcription backend failed", "transcribe_backend_failed",
				logging.String("backend", backend.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the backend installation or choose another with --transcribe-backend"),
				logging.String(logging.FieldImpact, "falling through to the next backend"),
			)
			continue
		}

		c.used = backend.Name()
		c.logger.Info("transcription complete", logging.Args(
			logging.String(logging.FieldEventType, "transcribe_complete"),
			logging.String("backend", backend.Name()),
			logging.Int("segments", len(segments)),
			logging.Duration("elapsed", time.Since(start)),
		)...)
		return segments, nil
	}

	return nil, services.Wrap(services.ErrPipeline, "transcribe", "run backends",
		"no transcription backend produced any segments", errors.Join(errs...))
}

func (c *Chain) attempt(ctx context.Context, backend Backend, audioPath string) ([]transcript.Segment, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	c.logger.Debug("transcribing", logging.Args(
		logging.String("backend", backend.Name()),
		logging.String("audio", audioPath),
	)...)
	return backend.Transcribe(ctx, audioPath)
}
