// Package config loads the configuration of the idletime command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MatthiasKunnen/idletime/pkg/idletime"
	"github.com/creachadair/mds/mapset"
)

// Config holds the configuration of the idletime command.
type Config struct {
	Providers        []string      `toml:"providers"`
	Timeout          time.Duration `toml:"timeout"`
	WaylandThreshold time.Duration `toml:"wayland_threshold"`
	Display          string        `toml:"display"`
	SessionId        string        `toml:"session_id"`
	Logging          LoggingConfig `toml:"logging"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Providers: append([]string(nil), idletime.DefaultOrder...),
		Timeout:   2 * time.Second,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/idletime/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine config dir: %w", err)
	}

	return filepath.Join(dir, "idletime", "config.toml"), nil
}

// Load reads the config at path on top of the defaults.
// A missing file is not an error when optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); optional && errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parse config %s: unknown keys %v", path, undecoded)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the provider list and durations.
func (c Config) Validate() error {
	var errs error
	if len(c.Providers) == 0 {
		errs = errors.Join(errs, errors.New("providers must not be empty"))
	}

	seen := mapset.New[string]()
	for _, name := range c.Providers {
		if !idletime.Known(name) {
			errs = errors.Join(errs, fmt.Errorf("unknown provider %q", name))
		}
		if seen.Has(name) {
			errs = errors.Join(errs, fmt.Errorf("provider %q is listed more than once", name))
		}
		seen.Add(name)
	}

	if c.Timeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.WaylandThreshold < 0 {
		errs = errors.Join(errs, fmt.Errorf("wayland_threshold must not be negative, got %s", c.WaylandThreshold))
	}

	return errs
}

// Options converts the config into options for idletime.New.
func (c Config) Options() idletime.Options {
	return idletime.Options{
		Providers:        c.Providers,
		Timeout:          c.Timeout,
		WaylandThreshold: c.WaylandThreshold,
		Display:          c.Display,
		SessionId:        c.SessionId,
	}
}
