package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sys/unix"

	"revoice/internal/config"
	"revoice/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
// A missing directory is created when its parent allows it.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist: %v)", path, mkErr)}
			}
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckInputFile verifies that path names a readable regular file.
func CheckInputFile(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not set"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty file)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSystemDeps evaluates the external binaries needed for the configured
// transcription backend and synthesizer. Both the pipeline and the doctor
// command use this so the requirements list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	ffmpegPath := deps.ResolveFFmpegPath()
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegPath,
			Description: "Required for extraction, time-stretching and muxing",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobePath(ffmpegPath, cfg.FFprobeBinary()),
			Description: "Required for clip duration probes",
		},
		{
			Name:        "Python",
			Command:     cfg.Synthesis.Python,
			Description: "Runs the Chatterbox voice cloning helper",
		},
	}
	backend := cfg.Transcription.Backend
	requirements = append(requirements,
		deps.Requirement{
			Name:        "whisper",
			Command:     cfg.Transcription.WhisperCommand,
			Description: "openai-whisper CLI transcription backend",
			Optional:    backend != "whisper",
		},
		deps.Requirement{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Runs WhisperX for the whisperx transcription backend",
			Optional:    backend != "whisperx",
		},
	)
	return deps.CheckBinaries(requirements)
}

// CheckOpenAI verifies that the OpenAI API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckOpenAI(ctx context.Context, apiKey, baseURL string) Result {
	const name = "OpenAI transcription"
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(clientCfg)
	if _, err := client.ListModels(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("request failed (%d)", reqErr.HTTPStatusCode)
	}
	return err.Error()
}
