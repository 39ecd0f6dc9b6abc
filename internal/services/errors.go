package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPipeline          = errors.New("pipeline failed")
	ErrExternalTool      = errors.New("external tool error")
	ErrMissingDependency = errors.New("missing dependency")
	ErrInputNotFound     = errors.New("input not found")
	ErrSynthesis         = errors.New("synthesis failed")
	ErrPersist           = errors.New("audio persistence failed")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrTimeout           = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later exit-code classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPipeline
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Exit codes reported by the command line.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitMissingDependency = 2
	ExitInputNotFound     = 3
	ExitSynthesis         = 4
	ExitPersist           = 5
	ExitUsage             = 64
)

// ExitCode maps a pipeline error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrMissingDependency):
		return ExitMissingDependency
	case errors.Is(err, ErrInputNotFound):
		return ExitInputNotFound
	case errors.Is(err, ErrSynthesis):
		return ExitSynthesis
	case errors.Is(err, ErrPersist):
		return ExitPersist
	default:
		return ExitFailure
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
