package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"revoice/internal/config"
	"revoice/internal/pipeline"
	"revoice/internal/preflight"
	"revoice/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts pipeline.RunOptions
	var tf transcriptionFlags
	var sf synthesisFlags
	var maxSegmentSeconds float64
	var workRoot string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replace the dialogue of a video with a cloned voice",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{
				"input-video":  opts.InputVideo,
				"output-video": opts.OutputVideo,
				"audio-prompt": opts.AudioPrompt,
			}); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			overrides := config.Config{}
			overrides.Alignment.MaxSegmentSeconds = maxSegmentSeconds
			overrides.Paths.WorkRoot = workRoot
			tf.apply(cmd, &overrides, cfg)
			sf.apply(cmd, &overrides, cfg)
			if err := cfg.Apply(overrides); err != nil {
				return &usageError{err: err}
			}

			if err := requireInputs(map[string]string{
				"input video":     opts.InputVideo,
				"audio prompt":    opts.AudioPrompt,
				"transcript json": opts.TranscriptJSON,
			}); err != nil {
				return err
			}
			if err := checkPrompt(opts.AudioPrompt); err != nil {
				return err
			}

			session, err := ctx.openPipeline(cmd, cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			summary, err := session.runner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printRunSummary(cmd, summary)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.InputVideo, "input-video", "", "Source video")
	flags.StringVar(&opts.OutputVideo, "output-video", "", "Destination video")
	flags.StringVar(&opts.AudioPrompt, "audio-prompt", "", "Voice sample to clone (WAV preferred, 5 seconds or more)")
	flags.StringVar(&opts.TranscriptJSON, "transcript-json", "", "Use this transcript instead of transcribing")
	flags.BoolVar(&opts.SaveTranscript, "save-transcript", false, "Write <output>.transcript.json")
	flags.BoolVar(&opts.KeepWorkdir, "keep-workdir", false, "Copy intermediate files to <output>.workdir")
	flags.Float64Var(&maxSegmentSeconds, "max-segment-seconds", 0, "Split segments longer than this")
	flags.StringVar(&workRoot, "work-root", "", "Directory for per-run scratch space")
	tf.register(flags)
	sf.register(flags)
	return cmd
}

// checkPrompt rejects voice prompts that cannot be cloned from.
func checkPrompt(path string) error {
	result := preflight.CheckVoicePrompt(path)
	if !result.Passed {
		return services.Wrap(services.ErrValidation, "run", "voice prompt", result.Detail, nil)
	}
	return nil
}

func printRunSummary(cmd *cobra.Command, summary pipeline.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Final video: %s\n", summary.OutputVideo)
	fmt.Fprintf(out, "Segments: %d (transcript from %s)\n", summary.Segments, summary.TranscriptSource)
	if summary.Retries > 0 || summary.Fallbacks > 0 {
		fmt.Fprintf(out, "Retries: %d, fallback tones: %d\n", summary.Retries, summary.Fallbacks)
	}
	if summary.TranscriptPath != "" {
		fmt.Fprintf(out, "Transcript saved: %s\n", summary.TranscriptPath)
	}
	if summary.PreservedWorkdir != "" {
		fmt.Fprintf(out, "Working files preserved in %s\n", summary.PreservedWorkdir)
	}
	fmt.Fprintf(out, "Elapsed: %s\n", summary.Elapsed.Round(time.Second))
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("unexpected argument %q for %s", args[0], cmd.CommandPath())
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
