// Package sessionbus queries idle services that are available on the D-Bus session bus.
//
// Every call opens its own connection and closes it again, no state is kept between calls.
package sessionbus

import (
	"context"
	"fmt"
	"time"

	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"github.com/godbus/dbus/v5"
)

// DefaultTimeout bounds the connection and the method call of a single query.
const DefaultTimeout = 2 * time.Second

const (
	mutterDest   = "org.gnome.Mutter.IdleMonitor"
	mutterPath   = "/org/gnome/Mutter/IdleMonitor/Core"
	mutterMethod = mutterDest + ".GetIdletime"

	screenSaverDest   = "org.freedesktop.ScreenSaver"
	screenSaverPath   = "/org/freedesktop/ScreenSaver"
	screenSaverMethod = screenSaverDest + ".GetSessionIdleTime"
)

// Mutter asks the idle monitor of GNOME's compositor.
type Mutter struct {
	// Timeout of a query. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (Mutter) Name() string {
	return "mutter"
}

func (m Mutter) IdleTime() (time.Duration, error) {
	ms, err := call[uint64](m.Timeout, mutterDest, mutterPath, mutterMethod)
	if err != nil {
		return 0, err
	}

	return time.Duration(ms) * time.Millisecond, nil
}

// ScreenSaver asks the [org.freedesktop.ScreenSaver] service, as implemented by KDE Plasma and
// others. The service reports whole seconds.
//
// [org.freedesktop.ScreenSaver]: https://specifications.freedesktop.org/idle-inhibit-spec/latest/
type ScreenSaver struct {
	// Timeout of a query. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (ScreenSaver) Name() string {
	return "screensaver"
}

func (s ScreenSaver) IdleTime() (time.Duration, error) {
	seconds, err := call[uint32](s.Timeout, screenSaverDest, screenSaverPath, screenSaverMethod)
	if err != nil {
		return 0, err
	}

	return time.Duration(seconds) * time.Second, nil
}

// call connects to the session bus and calls a method without arguments that returns a T.
// Every failure is reported as unavailable.
func call[T any](timeout time.Duration, dest string, path dbus.ObjectPath, method string) (T, error) {
	var v T
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return v, idle.Unavailable(fmt.Errorf("failed to connect to session bus: %w", err))
	}
	defer conn.Close()

	err = conn.Object(dest, path).CallWithContext(ctx, method, 0).Store(&v)
	if err != nil {
		return v, idle.Unavailable(fmt.Errorf("failed to call %s: %w", method, err))
	}

	return v, nil
}
