package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gifcut/gifcut/internal/config"
	"github.com/gifcut/gifcut/internal/logging"
	"github.com/spf13/cobra"
)

func newDoctorCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg is installed with the palette filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel(), false)
			runner, err := newFFmpegRunner(cfg, 0, logger, nil, nil)
			if err != nil {
				return err
			}

			caps, err := runner.RunDoctor(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ffmpeg:      %s\n", caps.Path)
			fmt.Fprintf(out, "version:     %s\n", caps.Version)
			fmt.Fprintf(out, "palettegen:  %s\n", yesNo(caps.HasPalettegen))
			fmt.Fprintf(out, "paletteuse:  %s\n", yesNo(caps.HasPaletteuse))
			fmt.Fprintf(out, "probed:      %s\n", humanize.Time(caps.ProbedAt))

			if !caps.CanConvert() {
				return errors.New("this ffmpeg build cannot make palette GIFs")
			}
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
