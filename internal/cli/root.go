// Package cli implements the idletime command-line interface using Cobra.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MatthiasKunnen/idletime/internal/config"
	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"github.com/MatthiasKunnen/idletime/pkg/idletime"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootFlags struct {
	configPath string
	providers  []string
	logLevel   string
	watch      time.Duration
	millis     bool
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "idletime",
	Short: "Print how long the session has been idle",
	Long: `idletime prints the time since the last keyboard, mouse or pointer input.

It tries the GNOME Mutter idle monitor, the Wayland compositor, the X server,
the freedesktop screen saver service, the logind session and the raw input
devices, in that order, and prints the first answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/idletime/config.toml)")
	pf.StringSliceVarP(&flags.providers, "provider", "p", nil, "providers to try, in order (overrides the config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides the config)")

	rootCmd.Flags().DurationVarP(&flags.watch, "watch", "w", 0, "keep printing the idle time at this interval")
	pf.BoolVar(&flags.millis, "ms", false, "print whole milliseconds instead of a duration")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and builds the logger and provider chain.
func setup() (*idle.Chain, *zap.Logger, error) {
	path := flags.configPath
	optional := path == ""
	if optional {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, nil, err
	}

	if len(flags.providers) > 0 {
		cfg.Providers = flags.providers
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	opts := cfg.Options()
	opts.Logger = logger
	chain, err := idletime.New(opts)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	return chain, logger, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	chain, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer func() {
		if err := chain.Close(); err != nil {
			logger.Warn("failed to close providers", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	if flags.watch <= 0 {
		return printIdle(out, chain)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(flags.watch)
	defer ticker.Stop()

	for {
		if err := printIdle(out, chain); err != nil {
			logger.Warn("unable to determine idle time", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printIdle(w io.Writer, chain *idle.Chain) error {
	d, err := chain.IdleTime()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, formatIdle(d, flags.millis))
	return err
}

func formatIdle(d time.Duration, millis bool) string {
	if millis {
		return fmt.Sprint(d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}
