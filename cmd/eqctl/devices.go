package main

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	audioeq "github.com/tphakala/go-audio-eq"
	"github.com/tphakala/go-audio-eq/internal/device/malgohost"
)

func (a *app) devicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List playback devices and the entry and preset each one matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := malgohost.New(a.hostConfig())
			if err != nil {
				return err
			}
			defer func() { _ = host.Close() }()

			devices, err := host.Devices(cmd.Context())
			if err != nil {
				return err
			}

			entries, err := audioeq.LoadFile(a.settingsPath())
			if err != nil {
				a.logger.Warn("settings not loaded, listing devices without matches",
					"path", a.settingsPath(), "error", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fprintf(tw, "HANDLE\tDEFAULT\tNAME\tUID\tENTRY\tPRESET\n")
			for _, d := range devices {
				entry, preset := "-", "(pass-through)"
				if i, ok := audioeq.MatchDevice(entries, d); ok {
					entry = entries[i].Name
					if p, ok := entries[i].DefaultPreset(); ok {
						preset = p.Name
					}
				}
				fprintf(tw, "%v\t%t\t%s\t%s\t%s\t%s\n", d.Handle, d.IsDefault, d.Name, d.UID, entry, preset)
			}
			return tw.Flush()
		},
	}
	a.addFormatFlags(cmd)
	return cmd
}

// addFormatFlags registers the processing format flags shared by commands
// that synthesize coefficients or open devices.
func (a *app) addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("sample-rate", defaultSampleRate, "processing sample rate in Hz")
	cmd.Flags().Int("channels", defaultChannels, "processing channel count")
	cmd.Flags().Int("slots", defaultSlots, "filter slots per device")
	a.bind("sample-rate", keySampleRate)
	a.bind("channels", keyChannels)
	a.bind("slots", keySlots)
}

func (a *app) hostConfig() malgohost.Config {
	return malgohost.Config{
		SampleRate:   a.v.GetFloat64(keySampleRate),
		Channels:     a.v.GetInt(keyChannels),
		Slots:        a.v.GetInt(keySlots),
		PollInterval: a.v.GetDuration(keyPollInterval),
		Logger:       a.logger,
	}
}
