package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains scratch and cache locations.
type Paths struct {
	WorkRoot string `toml:"work_root"`
	CacheDir string `toml:"cache_dir"`
}

// Transcription selects and tunes the speech-to-text backends.
type Transcription struct {
	Backend          string  `toml:"backend"`
	Model            string  `toml:"model"`
	Device           string  `toml:"device"`
	Temperature      float64 `toml:"temperature"`
	BeamSize         int     `toml:"beam_size"`
	Language         string  `toml:"language"`
	WhisperCommand   string  `toml:"whisper_command"`
	WhisperXModel    string  `toml:"whisperx_model"`
	HuggingFaceToken string  `toml:"hf_token"`
	OpenAIAPIKey     string  `toml:"openai_api_key"`
	OpenAIModel      string  `toml:"openai_model"`
	OpenAIBaseURL    string  `toml:"openai_base_url"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
}

// Synthesis configures the voice cloning helper and its retry policy.
type Synthesis struct {
	Python              string  `toml:"python"`
	Script              string  `toml:"script"`
	Device              string  `toml:"device"`
	Multilingual        bool    `toml:"multilingual"`
	Language            string  `toml:"language"`
	Exaggeration        float64 `toml:"exaggeration"`
	CFGWeight           float64 `toml:"cfg_weight"`
	Steps               int     `toml:"steps"`
	MaxNewTokens        int     `toml:"max_new_tokens"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	MaxAttempts         int     `toml:"max_attempts"`
	AllowFallbackTone   bool    `toml:"allow_fallback_tone"`
	FallbackToneSeconds float64 `toml:"fallback_tone_seconds"`
	FallbackToneHz      float64 `toml:"fallback_tone_hz"`
}

// Alignment controls segment splitting and time-stretch bounds.
type Alignment struct {
	MaxSegmentSeconds float64 `toml:"max_segment_seconds"`
	MinTargetSeconds  float64 `toml:"min_target_seconds"`
}

// Assembly controls the replacement track mixdown.
type Assembly struct {
	SampleRate            int     `toml:"sample_rate"`
	TailPaddingMS         int     `toml:"tail_padding_ms"`
	FadeMS                int     `toml:"fade_ms"`
	MinGapMS              int     `toml:"min_gap_ms"`
	LoudnessI             float64 `toml:"loudness_i"`
	LoudnessTP            float64 `toml:"loudness_tp"`
	LoudnessLRA           float64 `toml:"loudness_lra"`
	CompressorThresholdDB float64 `toml:"compressor_threshold_db"`
	CompressorRatio       float64 `toml:"compressor_ratio"`
}

// Preparation controls audio cleanup ahead of standalone transcription.
type Preparation struct {
	Denoise            bool    `toml:"denoise"`
	NoiseFloorDB       float64 `toml:"noise_floor_db"`
	PeakDBFS           float64 `toml:"peak_dbfs"`
	TrimSilence        bool    `toml:"trim_silence"`
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
	MinSilenceMS       int     `toml:"min_silence_ms"`
	KeepSilenceMS      int     `toml:"keep_silence_ms"`
}

// Cache configures the transcript cache database.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for revoice.
//
// Configuration sections by stage:
//   - Paths: scratch root and cache directory
//   - Transcription: backend chain and whisper tuning
//   - Synthesis: voice cloning helper, timeout and fallback tone
//   - Alignment: long-segment ceiling and stretch floor
//   - Assembly: fades, gap silence, loudness and compression
//   - Preparation: denoise/normalize/trim for the transcribe command
//   - Cache: transcript cache
//   - Logging: log format, level and optional file
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Alignment     Alignment     `toml:"alignment"`
	Assembly      Assembly      `toml:"assembly"`
	Preparation   Preparation   `toml:"preparation"`
	Cache         Cache         `toml:"cache"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/revoice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment fallbacks applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("revoice.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// TranscriptCachePath returns the sqlite database used for cached transcripts.
func (c *Config) TranscriptCachePath() string {
	if strings.TrimSpace(c.Cache.Path) != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Paths.CacheDir, "transcripts.db")
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "revoice")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/revoice"
	}
	return filepath.Join(home, ".cache", "revoice")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

const redacted = "<redacted>"

// Encode renders the effective configuration as TOML with credentials masked.
func (c *Config) Encode() (string, error) {
	shown := *c
	if shown.Transcription.OpenAIAPIKey != "" {
		shown.Transcription.OpenAIAPIKey = redacted
	}
	if shown.Transcription.HuggingFaceToken != "" {
		shown.Transcription.HuggingFaceToken = redacted
	}

	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(&shown); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
