package sessionbus_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"github.com/MatthiasKunnen/idletime/pkg/idle/sessionbus"
)

func TestUnreachableBusIsUnavailable(t *testing.T) {
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path="+filepath.Join(t.TempDir(), "missing-bus"))

	providers := []idle.Provider{
		sessionbus.Mutter{Timeout: time.Second},
		sessionbus.ScreenSaver{Timeout: time.Second},
	}
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			_, err := p.IdleTime()
			if !errors.Is(err, idle.ErrUnavailable) {
				t.Errorf("IdleTime() error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestNames(t *testing.T) {
	if got := (sessionbus.Mutter{}).Name(); got != "mutter" {
		t.Errorf("Mutter name = %q", got)
	}
	if got := (sessionbus.ScreenSaver{}).Name(); got != "screensaver" {
		t.Errorf("ScreenSaver name = %q", got)
	}
}
