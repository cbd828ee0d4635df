package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MatthiasKunnen/idletime/internal/config"
	"github.com/MatthiasKunnen/idletime/pkg/idle"
)

func TestFormatIdle(t *testing.T) {
	tests := []struct {
		d      time.Duration
		millis bool
		want   string
	}{
		{1500 * time.Millisecond, false, "1.5s"},
		{1500*time.Millisecond + 400*time.Microsecond, false, "1.5s"},
		{1500 * time.Millisecond, true, "1500"},
		{0, false, "0s"},
		{0, true, "0"},
	}
	for _, tt := range tests {
		if got := formatIdle(tt.d, tt.millis); got != tt.want {
			t.Errorf("formatIdle(%v, %v) = %q, want %q", tt.d, tt.millis, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(config.LoggingConfig{Level: "debug", Development: true}); err != nil {
		t.Errorf("newLogger() error = %v", err)
	}
	if _, err := newLogger(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Errorf("newLogger() accepted an invalid level")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flags = rootFlags{}
	t.Cleanup(func() { flags = rootFlags{} })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootWithoutProvider(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := execute(t, "--provider", "x11", "--log-level", "error")
	if !errors.Is(err, idle.ErrNoProvider) {
		t.Errorf("Execute() error = %v, want ErrNoProvider", err)
	}
}

func TestProbe(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out, err := execute(t, "probe", "--provider", "x11", "--log-level", "error")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "PROVIDER") || !strings.Contains(out, "x11") {
		t.Errorf("probe output does not list the provider:\n%s", out)
	}
}

func TestRootRejectsUnknownProvider(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := execute(t, "--provider", "rdev"); err == nil {
		t.Errorf("Execute() accepted an unknown provider")
	}
}

func TestRootMissingConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Errorf("Execute() accepted a missing config file")
	}
}
