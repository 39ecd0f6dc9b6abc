package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"revoice/internal/services"
	"revoice/internal/synth"
)

// SynthesizeOne renders a single utterance with the run's timeout, retry and
// fallback policy.
func (r *Runner) SynthesizeOne(ctx context.Context, text, prompt, output string) (synth.Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return synth.Outcome{}, services.Wrap(services.ErrValidation, "synthesize", "text", "text is required", nil)
	}
	if err := requireFile("audio prompt", prompt); err != nil {
		return synth.Outcome{}, err
	}
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return synth.Outcome{}, services.Wrap(services.ErrPersist, "synthesize", "output dir", dir, err)
		}
	}

	ctx = services.WithStage(ctx, "synthesize")
	ws, err := newWorkspace(r.cfg.Paths.WorkRoot)
	if err != nil {
		return synth.Outcome{}, err
	}
	defer ws.cleanup(r.logger)

	synthesizer, err := r.deps.Synthesizer(ws.dir)
	if err != nil {
		return synth.Outcome{}, services.Wrap(services.ErrConfiguration, "synthesize", "helper", "", err)
	}
	s := r.cfg.Synthesis
	return synth.NewGenerator(synthesizer, r.generatorOptions(), r.logger).Generate(ctx, synth.Request{
		Text:         text,
		SpeakerWAV:   prompt,
		Output:       output,
		Device:       r.devices.Resolve(s.Device),
		Multilingual: s.Multilingual,
		Language:     s.Language,
		Exaggeration: s.Exaggeration,
		CFGWeight:    s.CFGWeight,
		Steps:        s.Steps,
		MaxNewTokens: s.MaxNewTokens,
	})
}
