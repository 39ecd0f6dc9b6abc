package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"revoice/internal/config"
	"revoice/internal/pipeline"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var opts pipeline.PrepareOptions
	var tf transcriptionFlags
	var skipDenoise, trimSilence bool
	var noiseFloor, peak, silenceThreshold float64
	var minSilenceMS, keepSilenceMS int

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Extract, clean and transcribe the audio of a video",
		Long: "Extract the audio of a video, optionally denoise it, normalise its peak level,\n" +
			"optionally trim long silences, and write a JSON and SRT transcript next to the\n" +
			"cleaned audio.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{"input-video": opts.InputVideo}); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			overrides := config.Config{}
			overrides.Preparation.NoiseFloorDB = noiseFloor
			overrides.Preparation.SilenceThresholdDB = silenceThreshold
			overrides.Preparation.MinSilenceMS = minSilenceMS
			overrides.Preparation.KeepSilenceMS = keepSilenceMS
			tf.apply(cmd, &overrides, cfg)
			if cmd.Flags().Changed("target-peak") {
				cfg.Preparation.PeakDBFS = peak
			}
			if skipDenoise {
				cfg.Preparation.Denoise = false
			}
			if trimSilence {
				cfg.Preparation.TrimSilence = true
			}
			if err := cfg.Apply(overrides); err != nil {
				return &usageError{err: err}
			}

			if err := requireInputs(map[string]string{"input video": opts.InputVideo}); err != nil {
				return err
			}

			session, err := ctx.openPipeline(cmd, cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			result, err := session.runner.Prepare(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printPrepareResult(cmd, result)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.InputVideo, "input-video", "", "Source video")
	flags.StringVar(&opts.OutputDir, "output-dir", "", "Artefact directory (default: input path without extension)")
	flags.BoolVar(&opts.SkipTranscription, "skip-transcription", false, "Stop after the audio has been cleaned")
	flags.BoolVar(&skipDenoise, "skip-denoise", false, "Do not denoise the extracted audio")
	flags.BoolVar(&trimSilence, "trim-silence", false, "Shorten long silences in the cleaned audio")
	flags.Float64Var(&noiseFloor, "noise-floor", 0, "Denoiser noise floor in dB")
	flags.Float64Var(&peak, "target-peak", 0, "Peak level after normalisation in dBFS")
	flags.Float64Var(&silenceThreshold, "silence-threshold", 0, "Level below which audio counts as silence, in dB")
	flags.IntVar(&minSilenceMS, "min-silence-ms", 0, "Shortest silence that is trimmed")
	flags.IntVar(&keepSilenceMS, "keep-silence-ms", 0, "Silence kept around speech when trimming")
	tf.register(flags)
	return cmd
}

func printPrepareResult(cmd *cobra.Command, result pipeline.PrepareResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Output directory: %s\n", result.OutputDir)
	fmt.Fprintf(out, "Original audio: %s\n", result.OriginalAudio)
	if result.DenoisedAudio != "" {
		fmt.Fprintf(out, "Denoised audio: %s\n", result.DenoisedAudio)
	}
	fmt.Fprintf(out, "Clean audio: %s (gain %+.1f dB)\n", result.CleanAudio, result.GainDB)
	if result.TrimmedAudio != "" {
		fmt.Fprintf(out, "Trimmed audio: %s\n", result.TrimmedAudio)
	}
	if result.TranscriptJSON != "" {
		fmt.Fprintf(out, "Transcript: %s (%d segments from %s)\n", result.TranscriptJSON, result.Segments, result.Source)
		fmt.Fprintf(out, "Subtitles: %s\n", result.TranscriptSRT)
	}
}
