package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	audioeq "github.com/tphakala/go-audio-eq"
)

// presetFlags selects one preset of one entry.
type presetFlags struct {
	entry  string
	preset string
}

func (f *presetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.entry, "device", "d", "", "device entry name (required)")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "preset name (default: the entry's first preset)")
	_ = cmd.MarkFlagRequired("device")
}

// lookupPreset loads the settings and returns the selected preset.
func (a *app) lookupPreset(f presetFlags) (audioeq.Preset, error) {
	entries, err := audioeq.LoadFile(a.settingsPath())
	if err != nil {
		return audioeq.Preset{}, err
	}
	if f.preset != "" {
		return audioeq.FindPreset(entries, f.entry, f.preset)
	}
	for _, e := range entries {
		if e.Name != f.entry {
			continue
		}
		p, ok := e.DefaultPreset()
		if !ok {
			return audioeq.Preset{}, fmt.Errorf("%w: entry %q has no presets", audioeq.ErrUnknownPreset, f.entry)
		}
		return p, nil
	}
	return audioeq.Preset{}, fmt.Errorf("%w: %q", audioeq.ErrUnknownEntry, f.entry)
}

func (a *app) coeffsCommand() *cobra.Command {
	var sel presetFlags

	cmd := &cobra.Command{
		Use:   "coeffs",
		Short: "Print the packed biquad coefficients of a preset",
		Long: `Print the normalized biquad coefficients of a preset, one row per band and
channel in the packed order written to hardware: b0, b1, b2, a1, a2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.lookupPreset(sel)
			if err != nil {
				return err
			}
			rate := a.v.GetFloat64(keySampleRate)
			channels := a.v.GetInt(keyChannels)

			coeffs, err := audioeq.Coefficients(p, rate, channels)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fprintf(out, "preset %q: %d band(s), multiplier %g, %g Hz, %d channel(s)\n",
				p.Name, p.BandCount(), p.Multiplier, rate, channels)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fprintf(tw, "BAND\tCH\tB0\tB1\tB2\tA1\tA2\t\n")
			bands := p.Bands()
			for i := range bands {
				for c := range channels {
					off := (i*channels + c) * 5
					v := coeffs[off : off+5]
					fprintf(tw, "%d\t%d\t%.12f\t%.12f\t%.12f\t%.12f\t%.12f\t\n", i, c, v[0], v[1], v[2], v[3], v[4])
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for i, b := range bands {
				fprintf(out, "band %d: %s\n", i, b)
			}
			return nil
		},
	}
	sel.register(cmd)
	a.addFormatFlags(cmd)
	return cmd
}
