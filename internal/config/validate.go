package config

import (
	"errors"
	"fmt"
	"strings"

	"revoice/internal/language"
)

// Transcription backends accepted by transcription.backend.
var TranscriptionBackends = []string{"auto", "whisper", "whisperx", "openai"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validatePreparation(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if !contains(TranscriptionBackends, t.Backend) {
		return fmt.Errorf("transcription.backend must be one of %s (got %q)", strings.Join(TranscriptionBackends, ", "), t.Backend)
	}
	if !validDevice(t.Device) {
		return fmt.Errorf("transcription.device must be auto, cpu or cuda (got %q)", t.Device)
	}
	if t.Temperature < 0 || t.Temperature > 1 {
		return errors.New("transcription.temperature must be between 0 and 1")
	}
	if t.BeamSize <= 0 {
		return errors.New("transcription.beam_size must be positive")
	}
	if t.Language != "" && !language.Valid(t.Language) {
		return fmt.Errorf("transcription.language %q is not a recognized language", t.Language)
	}
	if t.Backend == "openai" && t.OpenAIAPIKey == "" {
		return errors.New("transcription.openai_api_key must be set when transcription.backend is openai (or set OPENAI_API_KEY)")
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	s := c.Synthesis
	if !validDevice(s.Device) {
		return fmt.Errorf("synthesis.device must be auto, cpu or cuda (got %q)", s.Device)
	}
	if !language.Valid(s.Language) {
		return fmt.Errorf("synthesis.language %q is not a recognized language", s.Language)
	}
	if s.Exaggeration < 0 || s.Exaggeration > 2 {
		return errors.New("synthesis.exaggeration must be between 0 and 2")
	}
	if s.CFGWeight < 0 || s.CFGWeight > 1 {
		return errors.New("synthesis.cfg_weight must be between 0 and 1")
	}
	if s.Steps < 0 {
		return errors.New("synthesis.steps must be >= 0 (0 uses the model default)")
	}
	if s.MaxNewTokens < 0 {
		return errors.New("synthesis.max_new_tokens must be >= 0 (0 uses the model default)")
	}
	if err := ensurePositiveMap(map[string]int{
		"synthesis.timeout_seconds":     s.TimeoutSeconds,
		"synthesis.max_attempts":        s.MaxAttempts,
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if s.MaxAttempts > 5 {
		return errors.New("synthesis.max_attempts must be <= 5")
	}
	if s.FallbackToneSeconds <= 0 {
		return errors.New("synthesis.fallback_tone_seconds must be positive")
	}
	if s.FallbackToneHz <= 0 {
		return errors.New("synthesis.fallback_tone_hz must be positive")
	}
	return nil
}

func (c *Config) validateAlignment() error {
	if c.Alignment.MaxSegmentSeconds <= 0 {
		return errors.New("alignment.max_segment_seconds must be positive")
	}
	if c.Alignment.MinTargetSeconds <= 0 {
		return errors.New("alignment.min_target_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAssembly() error {
	a := c.Assembly
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return errors.New("assembly.sample_rate must be between 8000 and 192000")
	}
	if a.TailPaddingMS < 0 || a.FadeMS < 0 || a.MinGapMS < 0 {
		return errors.New("assembly.tail_padding_ms, fade_ms and min_gap_ms must be >= 0")
	}
	if a.LoudnessI < -70 || a.LoudnessI > -5 {
		return errors.New("assembly.loudness_i must be between -70 and -5 LUFS")
	}
	if a.LoudnessTP < -9 || a.LoudnessTP > 0 {
		return errors.New("assembly.loudness_tp must be between -9 and 0 dBTP")
	}
	if a.LoudnessLRA < 1 || a.LoudnessLRA > 50 {
		return errors.New("assembly.loudness_lra must be between 1 and 50 LU")
	}
	if a.CompressorThresholdDB > 0 {
		return errors.New("assembly.compressor_threshold_db must be <= 0")
	}
	if a.CompressorRatio < 1 || a.CompressorRatio > 20 {
		return errors.New("assembly.compressor_ratio must be between 1 and 20")
	}
	return nil
}

func (c *Config) validatePreparation() error {
	p := c.Preparation
	if p.PeakDBFS > 0 {
		return errors.New("preparation.peak_dbfs must be <= 0")
	}
	if p.NoiseFloorDB < -80 || p.NoiseFloorDB > -20 {
		return errors.New("preparation.noise_floor_db must be between -80 and -20")
	}
	if p.MinSilenceMS < 0 || p.KeepSilenceMS < 0 {
		return errors.New("preparation.min_silence_ms and keep_silence_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
}

func validDevice(device string) bool {
	return device == "" || device == "auto" || device == "cpu" || strings.HasPrefix(device, "cuda")
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
