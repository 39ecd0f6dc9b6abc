package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"revoice/internal/config"
)

func newSynthCommand(ctx *commandContext) *cobra.Command {
	var text, prompt, out string
	var sf synthesisFlags

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Speak a single line of text in the prompt voice",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{
				"text":         text,
				"audio-prompt": prompt,
				"out":          out,
			}); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			overrides := config.Config{}
			sf.apply(cmd, &overrides, cfg)
			if err := cfg.Apply(overrides); err != nil {
				return &usageError{err: err}
			}
			if err := requireInputs(map[string]string{"audio prompt": prompt}); err != nil {
				return err
			}
			if err := checkPrompt(prompt); err != nil {
				return err
			}

			session, err := ctx.openPipeline(cmd, cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			outcome, err := session.runner.SynthesizeOne(cmd.Context(), text, prompt, out)
			if err != nil {
				return err
			}
			if outcome.Fallback {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote fallback tone to %s after %d attempt(s)\n", outcome.Path, outcome.Attempts)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outcome.Path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&text, "text", "", "Text to speak")
	flags.StringVar(&prompt, "audio-prompt", "", "Voice sample to clone")
	flags.StringVar(&out, "out", "", "Destination WAV")
	sf.register(flags)
	return cmd
}
