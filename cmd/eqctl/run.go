package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	audioeq "github.com/tphakala/go-audio-eq"
	"github.com/tphakala/go-audio-eq/internal/device/malgohost"
	"github.com/tphakala/go-audio-eq/internal/metrics"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the equalizer service",
		Long: `Watch the settings file and the playback devices, and keep every device's
equalizer in sync with its matching entry. Metrics are served on
--metrics-listen when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
	a.addFormatFlags(cmd)
	cmd.Flags().Duration("write-timeout", defaultWriteTimeout, "bound on each hardware write")
	cmd.Flags().Duration("poll-interval", defaultPollInterval, "device list poll interval")
	cmd.Flags().String("metrics-listen", defaultMetricsListen, "serve Prometheus metrics on this address, e.g. :9310")
	a.bind("write-timeout", keyWriteTimeout)
	a.bind("poll-interval", keyPollInterval)
	a.bind("metrics-listen", keyMetricsListen)
	return cmd
}

func (a *app) run(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("failed to register Go collector: %w", err)
	}
	m, err := metrics.NewEQMetrics(registry)
	if err != nil {
		return err
	}

	host, err := malgohost.New(a.hostConfig())
	if err != nil {
		return err
	}
	defer func() { _ = host.Close() }()

	svc, err := audioeq.New(audioeq.Config{
		SettingsPath:  a.settingsPath(),
		Host:          host,
		Logger:        a.logger,
		Metrics:       m,
		WriteTimeout:  a.v.GetDuration(keyWriteTimeout),
		WatchSettings: true,
	})
	if err != nil {
		return err
	}

	srvErr := make(chan error, 1)
	var srv *http.Server
	if addr := a.v.GetString(keyMetricsListen); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
		go func() {
			a.logger.Info("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	svcDone := make(chan error, 1)
	go func() { svcDone <- svc.Run(runCtx) }()

	a.logger.Info("equalizer service started", "settings", a.settingsPath())
	select {
	case err = <-svcDone:
	case err = <-srvErr:
		cancel()
		<-svcDone
	}

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}
	if errors.Is(err, context.Canceled) {
		a.logger.Info("equalizer service stopped")
		return nil
	}
	return err
}
