package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"revoice/internal/config"
)

// transcriptionFlags are shared by run and transcribe.
type transcriptionFlags struct {
	backend     string
	model       string
	device      string
	temperature float64
	beamSize    int
	language    string
	noCache     bool
}

func (f *transcriptionFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.backend, "transcribe-backend", "", "Transcription backend: auto, whisper, whisperx or openai")
	flags.StringVar(&f.model, "whisper-model", "", "Whisper model name")
	flags.StringVar(&f.device, "whisper-device", "", "Transcription device: auto, cpu or cuda")
	flags.Float64Var(&f.temperature, "whisper-temperature", 0, "Decoding temperature")
	flags.IntVar(&f.beamSize, "beam-size", 0, "Beam size for local whisper backends")
	flags.StringVar(&f.language, "language", "", "Spoken language of the source (empty detects it)")
	flags.BoolVar(&f.noCache, "no-cache", false, "Bypass the transcript cache")
}

func (f *transcriptionFlags) apply(cmd *cobra.Command, overrides *config.Config, cfg *config.Config) {
	overrides.Transcription.Backend = f.backend
	overrides.Transcription.Model = f.model
	overrides.Transcription.Device = f.device
	overrides.Transcription.BeamSize = f.beamSize
	overrides.Transcription.Language = f.language
	if cmd.Flags().Changed("whisper-temperature") {
		cfg.Transcription.Temperature = f.temperature
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
}

// synthesisFlags are shared by run and synth.
type synthesisFlags struct {
	device            string
	multilingual      bool
	language          string
	exaggeration      float64
	cfgWeight         float64
	steps             int
	maxNewTokens      int
	timeoutSeconds    int
	allowFallbackTone bool
}

func (f *synthesisFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.device, "tts-device", "", "Synthesis device: auto, cpu or cuda")
	flags.BoolVar(&f.multilingual, "multilingual", false, "Use the multilingual Chatterbox model")
	flags.StringVar(&f.language, "tts-language", "", "Language for the multilingual model")
	flags.Float64Var(&f.exaggeration, "exaggeration", 0, "Emotion exaggeration (0-2)")
	flags.Float64Var(&f.cfgWeight, "cfg-weight", 0, "Classifier-free guidance weight (0-1)")
	flags.IntVar(&f.steps, "steps", 0, "Sampling steps (0 keeps the model default)")
	flags.IntVar(&f.maxNewTokens, "max-new-tokens", 0, "Token budget per utterance (0 keeps the model default)")
	flags.IntVar(&f.timeoutSeconds, "tts-timeout", 0, "Seconds before a synthesis attempt is abandoned")
	flags.BoolVar(&f.allowFallbackTone, "allow-fallback-tone", false, "Substitute a tone when synthesis keeps failing")
}

func (f *synthesisFlags) apply(cmd *cobra.Command, overrides *config.Config, cfg *config.Config) {
	overrides.Synthesis.Device = f.device
	overrides.Synthesis.Multilingual = f.multilingual
	overrides.Synthesis.Language = f.language
	overrides.Synthesis.Steps = f.steps
	overrides.Synthesis.MaxNewTokens = f.maxNewTokens
	overrides.Synthesis.TimeoutSeconds = f.timeoutSeconds
	overrides.Synthesis.AllowFallbackTone = f.allowFallbackTone
	if cmd.Flags().Changed("exaggeration") {
		cfg.Synthesis.Exaggeration = f.exaggeration
	}
	if cmd.Flags().Changed("cfg-weight") {
		cfg.Synthesis.CFGWeight = f.cfgWeight
	}
}
