package transcribe

import (
	"context"

	"revoice/internal/transcript"
)

// Backend is a pluggable transcription backend.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error)
}

// CommandRunner executes an external command. Tests substitute a fake that
// writes the backend's output files.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Options are the decoding knobs shared by the local whisper backends.
type Options struct {
	Model       string
	Device      string
	Temperature float64
	BeamSize    int
	Language    string
}

// Backend names accepted by transcription.backend.
const (
	BackendAuto     = "auto"
	BackendWhisper  = "whisper"
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
)

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperPayload struct {
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

func (p whisperPayload) segments() []transcript.Segment {
	out := make([]transcript.Segment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		out = append(out, transcript.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return out
}
