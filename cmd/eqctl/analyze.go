package main

import (
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-audio-eq/internal/analysis"
)

func (a *app) analyzeCommand() *cobra.Command {
	var (
		sel    presetFlags
		length int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the magnitude response of a preset",
		Long: `Render the preset's impulse response, transform it with an FFT and compare
the measured magnitude with the analytic response of the biquad sections at
the octave band centers and every band frequency.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.lookupPreset(sel)
			if err != nil {
				return err
			}
			rate := a.v.GetFloat64(keySampleRate)

			freqs := analysis.OctaveCenters()
			for _, b := range p.Bands() {
				freqs = append(freqs, b.Frequency)
			}
			slices.Sort(freqs)
			freqs = slices.Compact(freqs)

			points, err := analysis.Measure(p, rate, length, freqs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fprintf(out, "preset %q at %g Hz, %d-point impulse response\n", p.Name, rate, length)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fprintf(tw, "FREQ (Hz)\tMEASURED (dB)\tANALYTIC (dB)\t\n")
			for _, pt := range points {
				fprintf(tw, "%.1f\t%+.2f\t%+.2f\t\n", pt.Frequency, pt.MeasuredDB, pt.AnalyticDB)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fprintf(out, "max deviation: %.4f dB\n", analysis.MaxDeviation(points))
			return nil
		},
	}
	sel.register(cmd)
	a.addFormatFlags(cmd)
	cmd.Flags().IntVar(&length, "length", analysis.DefaultLength, "impulse response length (power of two)")
	return cmd
}
