package transcribe

import (
	"fmt"
	"log/slog"
	"time"

	"revoice/internal/config"
	"revoice/internal/services"
)

// FromConfig builds the backend chain selected by cfg.Transcription.Backend.
// device must already be resolved (cpu or cuda). Local backends write their
// output files under outputDir.
func FromConfig(cfg *config.Config, device, outputDir string, logger *slog.Logger) (*Chain, error) {
	t := cfg.Transcription
	opts := Options{
		Model:       t.Model,
		Device:      device,
		Temperature: t.Temperature,
		BeamSize:    t.BeamSize,
		Language:    t.Language,
	}
	xopts := opts
	xopts.Model = t.WhisperXModel

	whisper := func() Backend { return NewWhisper(t.WhisperCommand, opts, outputDir) }
	whisperx := func() Backend { return NewWhisperX(xopts, t.HuggingFaceToken, outputDir) }
	api := func() Backend { return NewOpenAI(t.OpenAIAPIKey, t.OpenAIBaseURL, t.OpenAIModel, opts) }

	var backends []Backend
	switch t.Backend {
	case BackendAuto, "":
		backends = []Backend{whisper(), whisperx(), api()}
	case BackendWhisper:
		backends = []Backend{whisper()}
	case BackendWhisperX:
		backends = []Backend{whisperx()}
	case BackendOpenAI:
		backends = []Backend{api()}
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "select backend",
			fmt.Sprintf("unknown transcription backend %q", t.Backend), nil)
	}

	timeout := time.Duration(t.TimeoutSeconds) * time.Second
	return NewChain(timeout, logger, backends...), nil
}
