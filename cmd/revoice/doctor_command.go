package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/deps"
	"revoice/internal/preflight"
	"revoice/internal/services"
	"revoice/internal/sysinfo"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories and hardware",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cfg)
			results := preflight.RunAll(cmd.Context(), cfg)
			if strings.TrimSpace(prompt) != "" {
				results = append(results, preflight.CheckVoicePrompt(prompt))
			}
			resolver := sysinfo.NewDeviceResolver()

			var lines []string
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(statuses, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			lines = append(lines, checkLines(results, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Hardware", colorize)...)
			lines = append(lines,
				deviceLine("Transcription device", cfg.Transcription.Device, resolver, colorize),
				deviceLine("Synthesis device", cfg.Synthesis.Device, resolver, colorize),
			)
			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if err := deps.Require(statuses); err != nil {
				return err
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, r := range failed {
					names = append(names, r.Name)
				}
				return services.Wrap(services.ErrConfiguration, "doctor", "checks", strings.Join(names, ", "), nil)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "audio-prompt", "", "Also check this voice sample")
	return cmd
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	var missing []string
	for _, status := range statuses {
		if status.Available {
			message := "Ready"
			if status.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", status.Command)
			}
			lines = append(lines, renderStatusLine(status.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(status.Detail)
		if detail == "" {
			detail = "not available"
		}
		if status.Optional {
			lines = append(lines, renderStatusLine(status.Name, statusWarn, detail+" (optional)", colorize))
			continue
		}
		lines = append(lines, renderStatusLine(status.Name, statusError, detail, colorize))
		missing = append(missing, status.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusError, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func deviceLine(label, requested string, resolver *sysinfo.DeviceResolver, colorize bool) string {
	resolved := resolver.Resolve(requested)
	message := resolved
	if req := strings.TrimSpace(requested); req == "" || strings.EqualFold(req, "auto") {
		message = fmt.Sprintf("%s (auto)", resolved)
	}
	return renderStatusLine(label, statusInfo, message, colorize)
}
