package synth

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"revoice/internal/logging"
	"revoice/internal/services"
)

//go:embed assets/chatterbox_tts.py
var chatterboxScript []byte

// Helper exit codes.
const (
	helperExitMissingDeps    = 2
	helperExitPromptMissing  = 3
	helperExitGenerateFailed = 4
)

// ProcessOutput captures a finished helper process.
type ProcessOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ProcessRunner starts a process and waits for it. A non-zero exit is reported
// through ExitCode; err is reserved for processes that could not run or were
// killed.
type ProcessRunner func(ctx context.Context, name string, args ...string) (ProcessOutput, error)

// Chatterbox runs the Python voice-cloning helper.
type Chatterbox struct {
	python string
	script string
	run    ProcessRunner
	logger *slog.Logger
}

// NewChatterbox constructs a Chatterbox synthesizer using python to run script.
func NewChatterbox(python, script string, logger *slog.Logger) *Chatterbox {
	if strings.TrimSpace(python) == "" {
		python = "python3"
	}
	return &Chatterbox{
		python: python,
		script: script,
		run:    defaultProcessRunner,
		logger: logging.NewComponentLogger(logger, "chatterbox"),
	}
}

// WithProcessRunner injects a custom process runner (primarily for tests).
func (c *Chatterbox) WithProcessRunner(r ProcessRunner) {
	if c != nil && r != nil {
		c.run = r
	}
}

func defaultProcessRunner(ctx context.Context, name string, args ...string) (ProcessOutput, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Torch workers can hold the pipes open after the interpreter is killed.
	cmd.WaitDelay = 5 * time.Second
	err := cmd.Run()
	out := ProcessOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	return out, nil
}

// EnsureScript returns configured when set; otherwise it writes the bundled
// helper into dir and returns its path.
func EnsureScript(configured, dir string) (string, error) {
	if strings.TrimSpace(configured) != "" {
		return configured, nil
	}
	path := filepath.Join(dir, "chatterbox_tts.py")
	if err := os.WriteFile(path, chatterboxScript, 0o755); err != nil {
		return "", fmt.Errorf("write synthesis helper: %w", err)
	}
	return path, nil
}

// BuildArgs renders the helper command line for req.
func BuildArgs(script string, req Request) []string {
	args := []string{
		script,
		"--text", req.Text,
		"--out", req.Output,
	}
	if req.SpeakerWAV != "" {
		args = append(args, "--speaker-wav", req.SpeakerWAV)
	}
	device := req.Device
	if device == "" {
		device = "cpu"
	}
	args = append(args, "--device", device)
	if req.Multilingual {
		args = append(args, "--multilingual")
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	args = append(args,
		"--exaggeration", strconv.FormatFloat(req.Exaggeration, 'f', -1, 64),
		"--cfg-weight", strconv.FormatFloat(req.CFGWeight, 'f', -1, 64),
	)
	if req.Steps > 0 {
		args = append(args, "--steps", strconv.Itoa(req.Steps))
	}
	if req.MaxNewTokens > 0 {
		args = append(args, "--max-new-tokens", strconv.Itoa(req.MaxNewTokens))
	}
	return args
}

// ParseResult decodes the last non-empty stdout line as the helper result.
func ParseResult(stdout []byte) (Result, error) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			last = line
			break
		}
	}
	if last == "" {
		return Result{}, errors.New("helper printed no result")
	}
	var res Result
	if err := json.Unmarshal([]byte(last), &res); err != nil {
		return Result{}, fmt.Errorf("malformed helper result %q: %w", truncate(last, 200), err)
	}
	return res, nil
}

// Synthesize runs the helper once. The caller owns the timeout via ctx.
func (c *Chatterbox) Synthesize(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "synthesis", "chatterbox", "empty text", nil)
	}
	if strings.TrimSpace(c.script) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "synthesis", "chatterbox", "helper script not set", nil)
	}

	args := BuildArgs(c.script, req)
	logger := logging.WithContext(ctx, c.logger)
	logger.Debug("running synthesis helper",
		logging.String("python", c.python),
		logging.String("output", req.Output),
		logging.Int("steps", req.Steps),
		logging.Int("max_new_tokens", req.MaxNewTokens),
	)

	start := time.Now()
	out, err := c.run(ctx, c.python, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Result{}, services.Wrap(services.ErrTimeout, "synthesis", "chatterbox",
				fmt.Sprintf("helper timed out after %s", time.Since(start).Round(time.Second)), ctxErr)
		}
		return Result{}, ctxErr
	}
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "synthesis", "chatterbox", "run helper", err)
	}

	res, parseErr := ParseResult(out.Stdout)
	if out.ExitCode != 0 {
		detail := fmt.Sprintf("helper exited with status %d", out.ExitCode)
		if parseErr == nil && res.Error != "" {
			detail += ": " + res.Error
		} else if stderr := strings.TrimSpace(string(out.Stderr)); stderr != "" {
			detail += ": " + truncate(lastLine(stderr), 300)
		}
		marker := services.ErrSynthesis
		switch out.ExitCode {
		case helperExitMissingDeps:
			marker = services.ErrMissingDependency
		case helperExitPromptMissing:
			marker = services.ErrInputNotFound
		}
		return Result{}, services.Wrap(marker, "synthesis", "chatterbox", detail, nil)
	}
	if parseErr != nil {
		return Result{}, services.Wrap(services.ErrSynthesis, "synthesis", "chatterbox", "parse helper output", parseErr)
	}
	if res.Error != "" {
		return Result{}, services.Wrap(services.ErrSynthesis, "synthesis", "chatterbox", res.Error, nil)
	}
	if res.OutPath == "" {
		res.OutPath = req.Output
	}
	if info, statErr := os.Stat(res.OutPath); statErr != nil || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrSynthesis, "synthesis", "chatterbox",
			fmt.Sprintf("helper reported %s but no audio was written", res.OutPath), statErr)
	}

	attrs := []logging.Attr{
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("sample_rate", res.SampleRate),
	}
	if res.DurationSec != nil {
		attrs = append(attrs, logging.Float64("clip_seconds", *res.DurationSec))
	}
	if res.UsedPromptArg != nil {
		attrs = append(attrs, logging.String("prompt_arg", *res.UsedPromptArg))
	}
	logger.Debug("synthesis helper finished", logging.Args(attrs...)...)
	return res, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
