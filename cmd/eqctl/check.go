package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	audioeq "github.com/tphakala/go-audio-eq"
)

const simulateTimeout = 5 * time.Second

func (a *app) checkCommand() *cobra.Command {
	var devices []string

	cmd := &cobra.Command{
		Use:   "check [settings-file]",
		Short: "Validate a settings file and list its entries",
		Long: `Validate a settings file against the settings schema and list its device
entries and presets. With --device, attach simulated devices and show which
entry and preset each one receives.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.settingsPath()
			if len(args) == 1 {
				path = args[0]
			}

			entries, err := audioeq.LoadFile(path)
			if err != nil {
				a.logger.Error("settings check failed", "path", path, "error", err)
				return err
			}
			out := cmd.OutOrStdout()
			printEntries(out, entries)

			if len(devices) == 0 {
				return nil
			}
			infos := make([]audioeq.DeviceInfo, len(devices))
			for i, spec := range devices {
				if infos[i], err = parseDeviceSpec(spec); err != nil {
					return err
				}
			}
			return a.simulate(cmd.Context(), out, path, infos)
		},
	}

	cmd.Flags().StringArrayVar(&devices, "device", nil,
		"simulated device as name=...,uid=...,manufacturer=...,model=... (repeatable)")
	return cmd
}

func printEntries(w io.Writer, entries []audioeq.DeviceEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fprintf(tw, "ENTRY\tMATCH\tHIDDEN\tPRESETS\n")
	for _, e := range entries {
		names := make([]string, len(e.Presets))
		for i, p := range e.Presets {
			names[i] = fmt.Sprintf("%s(%d)", p.Name, p.BandCount())
		}
		fprintf(tw, "%s\t%s\t%t\t%s\n", e.Name, describeMatch(e.Match), e.Hidden, strings.Join(names, ", "))
	}
	_ = tw.Flush()
}

func describeMatch(m audioeq.DeviceMatch) string {
	if m.IsEmpty() {
		return "-"
	}
	var parts []string
	for _, kv := range [][2]string{
		{"name", m.Name},
		{"uid", m.DeviceUID},
		{"manufacturer", m.Manufacturer},
		{"model", m.ModelUID},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, ",")
}

// parseDeviceSpec parses name=...,uid=...,manufacturer=...,model=...
func parseDeviceSpec(spec string) (audioeq.DeviceInfo, error) {
	var d audioeq.DeviceInfo
	for field := range strings.SplitSeq(spec, ",") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return d, fmt.Errorf("invalid device field %q: want key=value", field)
		}
		switch strings.TrimSpace(key) {
		case "name":
			d.Name = value
		case "uid":
			d.UID = value
		case "manufacturer":
			d.Manufacturer = value
		case "model":
			d.ModelUID = value
		default:
			return d, fmt.Errorf("unknown device field %q", key)
		}
	}
	return d, nil
}

// simulate runs the service over an in-memory host and prints the outcome.
func (a *app) simulate(ctx context.Context, w io.Writer, path string, devices []audioeq.DeviceInfo) error {
	host := audioeq.NewMemoryHost(a.v.GetInt(keySlots))
	defer func() { _ = host.Close() }()
	for _, d := range devices {
		if _, err := host.Attach(d); err != nil {
			return err
		}
	}

	svc, err := audioeq.New(audioeq.Config{SettingsPath: path, Host: host, Logger: a.logger})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, simulateTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	refreshErr := refreshWhenRunning(runCtx, svc)
	cancel()
	<-done
	if refreshErr != nil && runCtx.Err() == nil {
		a.logger.Warn("simulated application incomplete", "error", refreshErr)
	}

	printDevices(w, svc.Snapshot())
	return nil
}

// refreshWhenRunning retries Refresh until the worker has started.
func refreshWhenRunning(ctx context.Context, svc *audioeq.Service) error {
	for {
		err := svc.Refresh(ctx)
		if !errors.Is(err, audioeq.ErrNotRunning) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func printDevices(w io.Writer, snap *audioeq.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fprintf(tw, "\nDEVICE\tUID\tENTRY\tPRESET\tSTATUS\n")
	for _, d := range snap.Devices {
		entry, preset, status := "-", "(pass-through)", "ok"
		if d.Mapped {
			entry = d.Entry
		}
		if d.Preset != "" {
			preset = d.Preset
		}
		if d.ApplyError != nil {
			status = d.ApplyError.Error()
		}
		fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Info.Name, d.Info.UID, entry, preset, status)
	}
	_ = tw.Flush()
}
