package main

import (
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/config"
	"revoice/internal/deps"
	"revoice/internal/logging"
	"revoice/internal/pipeline"
	"revoice/internal/preflight"
	"revoice/internal/services"
	"revoice/internal/transcriptcache"
)

func requireFlags(values map[string]string) error {
	var missing []string
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return usageErrorf("required flag(s) %s not set", strings.Join(missing, ", "))
}

// requireInputs reports a missing input file before any external tool is
// probed. Empty paths are skipped.
func requireInputs(inputs map[string]string) error {
	labels := make([]string, 0, len(inputs))
	for label := range inputs {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	for _, label := range labels {
		path := strings.TrimSpace(inputs[label])
		if path == "" {
			continue
		}
		if result := preflight.CheckInputFile(label, path); !result.Passed {
			return services.Wrap(services.ErrInputNotFound, "input", label, result.Detail, nil)
		}
	}
	return nil
}

// pipelineSession owns the runner and the resources it borrowed.
type pipelineSession struct {
	runner *pipeline.Runner
	cache  *transcriptcache.Store
}

func (s *pipelineSession) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

// openPipeline checks external dependencies and builds a runner for cfg.
func (c *commandContext) openPipeline(cmd *cobra.Command, cfg *config.Config) (*pipelineSession, error) {
	if err := deps.Require(preflight.CheckSystemDeps(cfg)); err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	session := &pipelineSession{}
	d := pipeline.DefaultDependencies(cfg, logger)
	if cfg.Cache.Enabled {
		store, err := transcriptcache.Open(cmd.Context(), cfg.TranscriptCachePath(), logger)
		if err != nil {
			logging.WarnWithContext(logger, "transcript cache unavailable", "transcript_cache_unavailable",
				logging.String("path", cfg.TranscriptCachePath()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "transcription will run without caching"),
			)
		} else {
			session.cache = store
			d.Cache = store
		}
	}
	d.Progress = pipeline.NewProgress(stderrFile(cmd), logger)

	runner, err := pipeline.New(cfg, d, logger)
	if err != nil {
		session.Close()
		return nil, err
	}
	session.runner = runner
	return session, nil
}

// stderrFile returns the command's error stream when it is a real file, so
// progress output can detect a terminal.
func stderrFile(cmd *cobra.Command) *os.File {
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		return f
	}
	return nil
}
