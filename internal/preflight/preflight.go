package preflight

import (
	"context"
	"os"
	"strings"

	"revoice/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem and service checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	workRoot := strings.TrimSpace(cfg.Paths.WorkRoot)
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	results = append(results, CheckDirectoryAccess("Work root", workRoot))

	if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}

	if cfg.Synthesis.Script != "" {
		results = append(results, CheckInputFile("Synthesis script", cfg.Synthesis.Script))
	}

	switch cfg.Transcription.Backend {
	case "openai":
		results = append(results, CheckOpenAI(ctx, cfg.Transcription.OpenAIAPIKey, cfg.Transcription.OpenAIBaseURL))
	case "auto":
		if cfg.Transcription.OpenAIAPIKey != "" {
			results = append(results, CheckOpenAI(ctx, cfg.Transcription.OpenAIAPIKey, cfg.Transcription.OpenAIBaseURL))
		}
	}

	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
