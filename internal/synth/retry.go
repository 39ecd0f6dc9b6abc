package synth

import "unicode/utf8"

const (
	// Chatterbox's flow-matching decoder and token budget defaults, used as
	// the starting point when a request leaves them unset.
	defaultSteps        = 10
	defaultMaxNewTokens = 1000

	minSteps      = 4
	minTokens     = 100
	tokensPerChar = 4
)

// ReduceFunc derives the parameters for a retry. attempt is 1-based and
// counts the attempt about to run.
type ReduceFunc func(req Request, attempt int) Request

// RetryPolicy bounds synthesis attempts. Only timeouts are retried.
type RetryPolicy struct {
	MaxAttempts int
	Reduce      ReduceFunc
}

// DefaultRetryPolicy allows one reduced-effort retry after a timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Reduce: ReduceEffort}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) reduce(req Request, attempt int) Request {
	if p.Reduce == nil {
		return req
	}
	return p.Reduce(req, attempt)
}

// ReduceEffort halves the decoder steps (floored at minSteps) and sizes the
// token budget to the text: clamp(len(text)*tokensPerChar, minTokens,
// tokens/2). Neither value ever rises above what the failed attempt used.
func ReduceEffort(req Request, _ int) Request {
	steps := req.Steps
	if steps <= 0 {
		steps = defaultSteps
	}
	req.Steps = min(steps, max(minSteps, steps/2))

	tokens := req.MaxNewTokens
	if tokens <= 0 {
		tokens = defaultMaxNewTokens
	}
	req.MaxNewTokens = min(tokens, clamp(utf8.RuneCountInString(req.Text)*tokensPerChar, minTokens, tokens/2))
	return req
}

// clamp bounds v to [lo, hi]; lo wins when the range is empty.
func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
