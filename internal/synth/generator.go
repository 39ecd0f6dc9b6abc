package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"revoice/internal/logging"
	"revoice/internal/media/pcm"
	"revoice/internal/services"
)

const fallbackAmplitude = 0.3

// Options configure a Generator.
type Options struct {
	Policy RetryPolicy
	// Timeout bounds each attempt; zero disables the per-attempt deadline.
	Timeout            time.Duration
	AllowFallback      bool
	FallbackSeconds    float64
	FallbackHz         float64
	FallbackSampleRate int
}

// Outcome reports how a clip was produced.
type Outcome struct {
	Path     string
	Fallback bool
	Attempts int
	Result   Result
}

// Generator applies timeout, retry and fallback policy around a Synthesizer.
type Generator struct {
	synth  Synthesizer
	opts   Options
	logger *slog.Logger
}

// NewGenerator constructs a Generator. Zero-valued fallback settings use a
// one second 440 Hz tone at 24 kHz.
func NewGenerator(s Synthesizer, opts Options, logger *slog.Logger) *Generator {
	if opts.FallbackSeconds <= 0 {
		opts.FallbackSeconds = 1.0
	}
	if opts.FallbackHz <= 0 {
		opts.FallbackHz = 440
	}
	if opts.FallbackSampleRate <= 0 {
		opts.FallbackSampleRate = 24000
	}
	if opts.Policy.Reduce == nil && opts.Policy.MaxAttempts == 0 {
		opts.Policy = DefaultRetryPolicy()
	}
	return &Generator{
		synth:  s,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "synth"),
	}
}

// Generate synthesizes req.Text into req.Output. A timeout triggers a retry
// with parameters from the policy's Reduce; any other failure ends the
// attempts. When every attempt fails and fallback is allowed, a tone is
// written instead and Outcome.Fallback is set.
func (g *Generator) Generate(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithContext(ctx, g.logger)
	params := req
	attempts := 0
	var lastErr error

	for attempt := 1; attempt <= g.opts.Policy.attempts(); attempt++ {
		if attempt > 1 {
			params = g.opts.Policy.reduce(params, attempt)
			logger.Warn("synthesis timed out; retrying with reduced effort",
				logging.Int("attempt", attempt),
				logging.Int("steps", params.Steps),
				logging.Int("max_new_tokens", params.MaxNewTokens),
				logging.String(logging.FieldEventType, "synth_retry"),
				logging.String(logging.FieldImpact, "segment may sound less natural"),
			)
		}
		attempts = attempt

		res, err := g.synthesizeOnce(ctx, params)
		if err == nil {
			path := res.OutPath
			if path == "" {
				path = req.Output
			}
			if res.Fallback {
				logger.Warn("synthesis helper substituted non-speech audio",
					logging.String(logging.FieldEventType, "synth_helper_fallback"),
					logging.String(logging.FieldImpact, "segment will not contain speech"),
				)
			}
			return Outcome{Path: path, Fallback: res.Fallback, Attempts: attempts, Result: res}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{Attempts: attempts}, ctxErr
		}
		lastErr = err
		if !errors.Is(err, services.ErrTimeout) {
			break
		}
	}

	// A missing helper or interpreter would turn every segment into a tone.
	if errors.Is(lastErr, services.ErrMissingDependency) || errors.Is(lastErr, services.ErrConfiguration) {
		return Outcome{Attempts: attempts}, lastErr
	}
	if !g.opts.AllowFallback {
		return Outcome{Attempts: attempts}, services.Wrap(services.ErrSynthesis, "synthesis", "generate",
			fmt.Sprintf("failed after %d attempt(s)", attempts), lastErr)
	}

	tone := pcm.Tone(g.opts.FallbackSampleRate, g.opts.FallbackSeconds, g.opts.FallbackHz, fallbackAmplitude)
	if err := pcm.Write(req.Output, tone); err != nil {
		return Outcome{Attempts: attempts}, services.Wrap(services.ErrPersist, "synthesis", "fallback tone", req.Output, err)
	}
	logging.WarnWithContext(logger, "synthesis failed; substituted fallback tone", "synth_fallback_tone",
		logging.Int("attempts", attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "run revoice doctor to check the synthesis helper"),
		logging.String(logging.FieldImpact, "segment replaced by a tone"),
	)
	return Outcome{Path: req.Output, Fallback: true, Attempts: attempts}, nil
}

func (g *Generator) synthesizeOnce(ctx context.Context, req Request) (Result, error) {
	if g.opts.Timeout <= 0 {
		return g.synth.Synthesize(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	return g.synth.Synthesize(attemptCtx, req)
}
