package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"revoice/internal/config"
)

func clearToolEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PYTHON_BIN", "CHATTERBOX_DEVICE", "REVOICE_TTS_SCRIPT", "OPENAI_API_KEY", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN", "XDG_CACHE_HOME"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigAppliesDefaults(t *testing.T) {
	clearToolEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "revoice") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.TranscriptCachePath() != filepath.Join(tempHome, ".cache", "revoice", "transcripts.db") {
		t.Fatalf("unexpected cache path: %q", cfg.TranscriptCachePath())
	}
	if cfg.Transcription.Backend != "auto" || cfg.Transcription.Model != "medium" {
		t.Fatalf("unexpected transcription defaults: %+v", cfg.Transcription)
	}
	if cfg.Synthesis.Python != "python3" {
		t.Fatalf("expected python3 default, got %q", cfg.Synthesis.Python)
	}
	if cfg.Synthesis.Device != "cpu" {
		t.Fatalf("expected cpu device default, got %q", cfg.Synthesis.Device)
	}
	if cfg.Synthesis.TimeoutSeconds != 180 || cfg.Synthesis.MaxAttempts != 2 {
		t.Fatalf("unexpected synthesis policy defaults: %+v", cfg.Synthesis)
	}
	if cfg.Synthesis.AllowFallbackTone {
		t.Fatal("expected fallback tone disabled by default")
	}
	if cfg.Alignment.MaxSegmentSeconds != 15 {
		t.Fatalf("unexpected max segment seconds: %v", cfg.Alignment.MaxSegmentSeconds)
	}
	if cfg.Assembly.TailPaddingMS != 500 {
		t.Fatalf("unexpected tail padding: %d", cfg.Assembly.TailPaddingMS)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("expected cache enabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadAppliesEnvironmentFallbacks(t *testing.T) {
	clearToolEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PYTHON_BIN", "/opt/venv/bin/python")
	t.Setenv("CHATTERBOX_DEVICE", "CUDA")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("HF_TOKEN", "hf-env")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Synthesis.Python != "/opt/venv/bin/python" {
		t.Fatalf("expected python from env, got %q", cfg.Synthesis.Python)
	}
	if cfg.Synthesis.Device != "cuda" {
		t.Fatalf("expected lowercased device from env, got %q", cfg.Synthesis.Device)
	}
	if cfg.Transcription.OpenAIAPIKey != "sk-env" {
		t.Fatalf("expected openai key from env, got %q", cfg.Transcription.OpenAIAPIKey)
	}
	if cfg.Transcription.HuggingFaceToken != "hf-env" {
		t.Fatalf("expected hf token from env, got %q", cfg.Transcription.HuggingFaceToken)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearToolEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PYTHON_BIN", "ignored-python")

	configPath := filepath.Join(t.TempDir(), "revoice.toml")
	content := `
[paths]
work_root = "~/scratch"

[transcription]
backend = "WhisperX"
language = "french"

[synthesis]
python = "/usr/bin/python3.11"
allow_fallback_tone = true
timeout_seconds = 60

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.WorkRoot != filepath.Join(tempHome, "scratch") {
		t.Fatalf("unexpected work root: %q", cfg.Paths.WorkRoot)
	}
	if cfg.Transcription.Backend != "whisperx" {
		t.Fatalf("expected lowercased backend, got %q", cfg.Transcription.Backend)
	}
	if cfg.Synthesis.Python != "/usr/bin/python3.11" {
		t.Fatalf("expected config python to win over env, got %q", cfg.Synthesis.Python)
	}
	if !cfg.Synthesis.AllowFallbackTone || cfg.Synthesis.TimeoutSeconds != 60 {
		t.Fatalf("unexpected synthesis section: %+v", cfg.Synthesis)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearToolEnv(t)
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "revoice.toml")
	if err := os.WriteFile(configPath, []byte("[synthesis]\nstepz = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[synthesis]") {
		t.Fatalf("sample config missing synthesis section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Alignment.MaxSegmentSeconds != 15 || cfg.Assembly.FadeMS != 10 {
		t.Fatalf("sample values drifted from defaults: %+v %+v", cfg.Alignment, cfg.Assembly)
	}
}

func TestSampleMatchesLoad(t *testing.T) {
	clearToolEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"backend":      func(c *config.Config) { c.Transcription.Backend = "vosk" },
		"temperature":  func(c *config.Config) { c.Transcription.Temperature = 1.5 },
		"beam size":    func(c *config.Config) { c.Transcription.BeamSize = 0 },
		"openai key":   func(c *config.Config) { c.Transcription.Backend = "openai"; c.Transcription.OpenAIAPIKey = "" },
		"language":     func(c *config.Config) { c.Synthesis.Language = "!!" },
		"device":       func(c *config.Config) { c.Synthesis.Device = "tpu" },
		"timeout":      func(c *config.Config) { c.Synthesis.TimeoutSeconds = 0 },
		"attempts":     func(c *config.Config) { c.Synthesis.MaxAttempts = 9 },
		"tone":         func(c *config.Config) { c.Synthesis.FallbackToneSeconds = 0 },
		"cfg weight":   func(c *config.Config) { c.Synthesis.CFGWeight = 2 },
		"max segment":  func(c *config.Config) { c.Alignment.MaxSegmentSeconds = 0 },
		"sample rate":  func(c *config.Config) { c.Assembly.SampleRate = 100 },
		"loudness":     func(c *config.Config) { c.Assembly.LoudnessI = 0 },
		"compressor":   func(c *config.Config) { c.Assembly.CompressorRatio = 0.5 },
		"peak":         func(c *config.Config) { c.Preparation.PeakDBFS = 1 },
		"log level":    func(c *config.Config) { c.Logging.Level = "trace" },
		"padding":      func(c *config.Config) { c.Assembly.TailPaddingMS = -1 },
		"steps":        func(c *config.Config) { c.Synthesis.Steps = -1 },
		"noise floor":  func(c *config.Config) { c.Preparation.NoiseFloorDB = -5 },
		"exaggeration": func(c *config.Config) { c.Synthesis.Exaggeration = 3 },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("default config should validate: %v", err)
		}
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestApplyMergesOverrides(t *testing.T) {
	clearToolEnv(t)
	t.Setenv("HOME", t.TempDir())
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	err = cfg.Apply(config.Config{
		Transcription: config.Transcription{Model: "small", Backend: "WHISPER"},
		Synthesis:     config.Synthesis{AllowFallbackTone: true, Steps: 40},
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if cfg.Transcription.Model != "small" || cfg.Transcription.Backend != "whisper" {
		t.Fatalf("overrides not applied: %+v", cfg.Transcription)
	}
	if cfg.Transcription.BeamSize != 5 {
		t.Fatalf("zero override should keep beam size, got %d", cfg.Transcription.BeamSize)
	}
	if !cfg.Synthesis.AllowFallbackTone || cfg.Synthesis.Steps != 40 {
		t.Fatalf("synthesis overrides not applied: %+v", cfg.Synthesis)
	}
	if cfg.Synthesis.TimeoutSeconds != 180 {
		t.Fatalf("expected timeout untouched, got %d", cfg.Synthesis.TimeoutSeconds)
	}

	if err := cfg.Apply(config.Config{Synthesis: config.Synthesis{CFGWeight: 7}}); err == nil {
		t.Fatal("expected validation error from bad override")
	}
}

func TestLoadEnvDoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("REVOICE_TEST_A=from-file\nREVOICE_TEST_B=file-b\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("REVOICE_TEST_A", "from-process")
	t.Setenv("REVOICE_TEST_B", "")
	os.Unsetenv("REVOICE_TEST_B")

	loaded, err := config.LoadEnv(filepath.Join(dir, "missing.env"), envPath)
	if err != nil {
		t.Fatalf("LoadEnv returned error: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != envPath {
		t.Fatalf("unexpected loaded files: %v", loaded)
	}
	if got := os.Getenv("REVOICE_TEST_A"); got != "from-process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
	if got := os.Getenv("REVOICE_TEST_B"); got != "file-b" {
		t.Fatalf("expected file value, got %q", got)
	}
}

func TestEncodeMasksCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.OpenAIAPIKey = "sk-secret"
	cfg.Transcription.HuggingFaceToken = "hf_secret"

	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(encoded, "sk-secret") || strings.Contains(encoded, "hf_secret") {
		t.Fatalf("credentials leaked:\n%s", encoded)
	}
	if !strings.Contains(encoded, "<redacted>") {
		t.Fatalf("expected redaction marker:\n%s", encoded)
	}
	if cfg.Transcription.OpenAIAPIKey != "sk-secret" {
		t.Fatal("Encode must not modify the config")
	}

	var decoded config.Config
	if err := toml.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("encoded config does not parse: %v", err)
	}
	if decoded.Synthesis.TimeoutSeconds != cfg.Synthesis.TimeoutSeconds {
		t.Fatalf("timeout = %d, want %d", decoded.Synthesis.TimeoutSeconds, cfg.Synthesis.TimeoutSeconds)
	}
}
