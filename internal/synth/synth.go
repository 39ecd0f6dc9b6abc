package synth

import (
	"context"

	"revoice/internal/transcript"
)

// Request is one synthesis call.
type Request struct {
	Text         string
	SpeakerWAV   string
	Output       string
	Device       string
	Multilingual bool
	Language     string
	Exaggeration float64
	CFGWeight    float64
	// Steps and MaxNewTokens of zero leave the model defaults in place.
	Steps        int
	MaxNewTokens int
}

// Result is the JSON object the helper prints on its last stdout line.
type Result struct {
	OutPath              string   `json:"out_path"`
	Fallback             bool     `json:"fallback"`
	DurationSec          *float64 `json:"duration_sec"`
	SampleRate           int      `json:"sr"`
	UsedPromptArg        *string  `json:"used_prompt_arg"`
	NormalizedPromptPath *string  `json:"normalized_prompt_path"`
	Error                string   `json:"error"`
}

// Synthesizer renders speech for a request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}

// GeneratedSegment pairs a transcript segment with its synthesized,
// time-aligned clip.
type GeneratedSegment struct {
	Segment   transcript.Segment
	AudioPath string
	Fallback  bool
	Attempts  int
}
