package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	if err := c.normalizeSynthesis(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkRoot) != "" {
		if c.Paths.WorkRoot, err = expandPath(c.Paths.WorkRoot); err != nil {
			return fmt.Errorf("paths.work_root: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Cache.Path) != "" {
		if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
			return fmt.Errorf("cache.path: %w", err)
		}
	}
	if strings.TrimSpace(c.Logging.File) != "" {
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	if t.Backend == "" {
		t.Backend = defaultTranscriptionBackend
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultWhisperModel
	}
	t.Device = strings.ToLower(strings.TrimSpace(t.Device))
	if t.Device == "" {
		t.Device = defaultWhisperDevice
	}
	t.Language = strings.TrimSpace(t.Language)
	t.WhisperCommand = strings.TrimSpace(t.WhisperCommand)
	if t.WhisperCommand == "" {
		t.WhisperCommand = defaultWhisperCommand
	}
	t.WhisperXModel = strings.TrimSpace(t.WhisperXModel)
	if t.WhisperXModel == "" {
		t.WhisperXModel = defaultWhisperXModel
	}
	t.HuggingFaceToken = strings.TrimSpace(t.HuggingFaceToken)
	if t.HuggingFaceToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			t.HuggingFaceToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			t.HuggingFaceToken = strings.TrimSpace(value)
		}
	}
	t.OpenAIAPIKey = strings.TrimSpace(t.OpenAIAPIKey)
	if t.OpenAIAPIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			t.OpenAIAPIKey = strings.TrimSpace(value)
		}
	}
	t.OpenAIModel = strings.TrimSpace(t.OpenAIModel)
	if t.OpenAIModel == "" {
		t.OpenAIModel = defaultOpenAIModel
	}
	t.OpenAIBaseURL = strings.TrimRight(strings.TrimSpace(t.OpenAIBaseURL), "/")
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = defaultTranscribeTimeout
	}
}

func (c *Config) normalizeSynthesis() error {
	s := &c.Synthesis
	s.Python = strings.TrimSpace(s.Python)
	if s.Python == "" {
		if value, ok := os.LookupEnv("PYTHON_BIN"); ok && strings.TrimSpace(value) != "" {
			s.Python = strings.TrimSpace(value)
		} else {
			s.Python = defaultPythonBinary
		}
	}
	s.Script = strings.TrimSpace(s.Script)
	if s.Script == "" {
		if value, ok := os.LookupEnv("REVOICE_TTS_SCRIPT"); ok {
			s.Script = strings.TrimSpace(value)
		}
	}
	if s.Script != "" {
		var err error
		if s.Script, err = expandPath(s.Script); err != nil {
			return fmt.Errorf("synthesis.script: %w", err)
		}
	}
	s.Device = strings.ToLower(strings.TrimSpace(s.Device))
	if s.Device == "" {
		if value, ok := os.LookupEnv("CHATTERBOX_DEVICE"); ok && strings.TrimSpace(value) != "" {
			s.Device = strings.ToLower(strings.TrimSpace(value))
		} else {
			s.Device = defaultSynthesisDevice
		}
	}
	s.Language = strings.TrimSpace(s.Language)
	if s.Language == "" {
		s.Language = defaultSynthesisLanguage
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
