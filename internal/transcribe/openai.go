package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	langpkg "revoice/internal/language"
	"revoice/internal/transcript"
)

// MaxUploadBytes is the OpenAI transcription endpoint's file size limit.
const MaxUploadBytes = 25 << 20

// ErrNoAPIKey reports that the OpenAI backend was selected without credentials.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")

// OpenAI transcribes through the OpenAI audio API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float64
	language    string
	hasKey      bool
}

// NewOpenAI constructs the API backend. An empty baseURL uses the public endpoint.
func NewOpenAI(apiKey, baseURL, model string, opts Options) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: opts.Temperature,
		language:    opts.Language,
		hasKey:      strings.TrimSpace(apiKey) != "",
	}
}

// Name implements Backend.
func (o *OpenAI) Name() string { return BackendOpenAI }

// Transcribe implements Backend.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	if !o.hasKey {
		return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if info.Size() > MaxUploadBytes {
		return nil, fmt.Errorf("openai: audio is %d bytes, upload limit is %d", info.Size(), MaxUploadBytes)
	}

	req := openai.AudioRequest{
		Model:       o.model,
		FilePath:    audioPath,
		Format:      openai.AudioResponseFormatVerboseJSON,
		Temperature: float32(o.temperature),
		Language:    langpkg.ToISO2(o.language),
	}
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, transcript.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	if len(segments) == 0 && strings.TrimSpace(resp.Text) != "" && resp.Duration > 0 {
		segments = append(segments, transcript.Segment{Start: 0, End: resp.Duration, Text: resp.Text})
	}
	return segments, nil
}
