// Command eqctl validates equalizer settings, inspects devices and
// coefficients, renders presets offline and runs the equalizer service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/go-audio-eq/internal/logging"
)

// App config keys.
const (
	keySettings      = "settings"
	keyLogLevel      = "log.level"
	keyLogFormat     = "log.format"
	keyLogFile       = "log.file"
	keyWriteTimeout  = "write_timeout"
	keyPollInterval  = "poll_interval"
	keySampleRate    = "sample_rate"
	keyChannels      = "channels"
	keySlots         = "slots"
	keyMetricsListen = "metrics.listen"
)

const envPrefix = "AUDIOEQ"

// Defaults.
const (
	defaultSettings      = "eq.yaml"
	defaultSampleRate    = 48000
	defaultChannels      = 2
	defaultSlots         = 10
	defaultWriteTimeout  = 500 * time.Millisecond
	defaultPollInterval  = 2 * time.Second
	defaultMetricsListen = ""
)

// app carries state shared by the subcommands.
type app struct {
	v        *viper.Viper
	flagKeys map[string]string // flag name -> config key
	logger   *slog.Logger
	closeLog func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	err := a.rootCommand().ExecuteContext(ctx)
	_ = a.close()
	if err != nil {
		os.Exit(1)
	}
}

func newApp() *app {
	return &app{v: viper.New(), flagKeys: make(map[string]string), logger: logging.Discard()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "eqctl",
		Short:        "Per-device parametric equalizer control",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initialize(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "app config file (YAML)")
	pf.StringP("settings", "s", defaultSettings, "equalizer settings file (.json, .yaml, .yml)")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", string(logging.FormatText), "log format: text, json")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")

	a.v.SetDefault(keySettings, defaultSettings)
	a.v.SetDefault(keyLogLevel, "info")
	a.v.SetDefault(keyLogFormat, string(logging.FormatText))
	a.v.SetDefault(keyWriteTimeout, defaultWriteTimeout)
	a.v.SetDefault(keyPollInterval, defaultPollInterval)
	a.v.SetDefault(keySampleRate, defaultSampleRate)
	a.v.SetDefault(keyChannels, defaultChannels)
	a.v.SetDefault(keySlots, defaultSlots)
	a.v.SetDefault(keyMetricsListen, defaultMetricsListen)

	a.bind("settings", keySettings)
	a.bind("log-level", keyLogLevel)
	a.bind("log-format", keyLogFormat)
	a.bind("log-file", keyLogFile)

	root.AddCommand(
		a.checkCommand(),
		a.devicesCommand(),
		a.coeffsCommand(),
		a.analyzeCommand(),
		a.renderCommand(),
		a.runCommand(),
	)
	return root
}

// initialize reads the app config and sets up logging.
func (a *app) initialize(cmd *cobra.Command) error {
	for name, key := range a.flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	level, err := logging.ParseLevel(a.v.GetString(keyLogLevel))
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:  level,
		Format: logging.Format(a.v.GetString(keyLogFormat)),
		File:   a.v.GetString(keyLogFile),
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

// close releases the log file, if any.
func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog()
	a.closeLog = nil
	return err
}

// bind ties a flag of the running command to a config key. Flag values
// override the config file and environment only when set.
func (a *app) bind(flag, key string) {
	a.flagKeys[flag] = key
}

func (a *app) settingsPath() string {
	return a.v.GetString(keySettings)
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
