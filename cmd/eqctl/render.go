package main

import (
	"time"

	"github.com/spf13/cobra"
)

func (a *app) renderCommand() *cobra.Command {
	var (
		sel        presetFlags
		useFloat32 bool
	)

	cmd := &cobra.Command{
		Use:   "render input.wav output.wav",
		Short: "Apply a preset to a WAV file",
		Long: `Filter a PCM WAV file through a preset, as a device would, and write the
result with the same sample rate, channel count and bit depth.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lookupPreset(sel)
			if err != nil {
				return err
			}

			start := time.Now()
			var stats *renderStats
			if useFloat32 {
				stats, err = renderWAV[float32](args[0], args[1], p)
			} else {
				stats, err = renderWAV[float64](args[0], args[1], p)
			}
			if err != nil {
				return err
			}

			a.logger.Info("render complete",
				"preset", p.Name,
				"frames", stats.frames,
				"rate", stats.rate,
				"channels", stats.channels,
				"bit_depth", stats.bitDepth,
				"level_change_db", stats.levelChangeDB(),
				"elapsed", time.Since(start))
			if stats.clipped > 0 {
				a.logger.Warn("output clipped", "samples", stats.clipped)
			}
			fprintf(cmd.OutOrStdout(), "%s: %d frames at %d Hz, %+.2f dB, %d clipped\n",
				args[1], stats.frames, stats.rate, stats.levelChangeDB(), stats.clipped)
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().BoolVar(&useFloat32, "float32", false, "process in float32 instead of float64")
	return cmd
}
