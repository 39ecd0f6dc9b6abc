package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"revoice/internal/services"
	"revoice/internal/transcript"
)

func newTranscriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "transcript",
		Short:       "Inspect and edit transcript JSON files",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newTranscriptShowCommand())
	cmd.AddCommand(newTranscriptSplitCommand())
	return cmd
}

func newTranscriptShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Print the segments of a transcript",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := loadTranscript(args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(segments))
			for i, seg := range segments {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					transcript.SRTTimestamp(seg.Start),
					transcript.SRTTimestamp(seg.End),
					fmt.Sprintf("%.2fs", seg.Duration()),
					seg.Text,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "Length", "Text"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d segments, %.1fs of speech\n", len(segments), transcript.TotalDuration(segments))
			return nil
		},
	}
}

func newTranscriptSplitCommand() *cobra.Command {
	var maxSeconds float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Split segments longer than a ceiling into shorter ones",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxSeconds <= 0 {
				return usageErrorf("--max-seconds must be positive, got %v", maxSeconds)
			}
			segments, err := loadTranscript(args[0])
			if err != nil {
				return err
			}
			split := transcript.SplitLong(segments, maxSeconds)
			if outPath == "" {
				data, err := transcript.Encode(split)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := transcript.Write(outPath, split); err != nil {
				return services.Wrap(services.ErrPersist, "transcript", "write", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d segments (from %d) to %s\n", len(split), len(segments), outPath)
			return nil
		},
	}
	cmd.Flags().Float64Var(&maxSeconds, "max-seconds", 15, "Longest segment to keep whole")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (default: stdout)")
	return cmd
}

func loadTranscript(path string) ([]transcript.Segment, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrInputNotFound, "transcript", "open", path, err)
		}
		return nil, err
	}
	segments, err := transcript.Load(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcript", "decode", path, err)
	}
	return segments, nil
}
