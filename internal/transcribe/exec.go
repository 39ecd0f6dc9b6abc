package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	// Force legacy behavior so bundled WhisperX binaries can load checkpoints safely.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(output), 400))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// loadWhisperJSON reads the <basename>.json file whisper-style CLIs write
// into outputDir for source.
func loadWhisperJSON(outputDir, source string) (whisperPayload, error) {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	path := filepath.Join(outputDir, base+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return whisperPayload{}, fmt.Errorf("read transcription output: %w", err)
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return whisperPayload{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return payload, nil
}
