// Package x11 reads the idle time from the MIT-SCREEN-SAVER extension of an X server.
package x11

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/screensaver"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/MatthiasKunnen/idletime/pkg/idle"
)

// DefaultTimeout bounds the connection handshake and the query.
const DefaultTimeout = 2 * time.Second

// Provider queries the X server once per call.
type Provider struct {
	// Display to connect to, such as ":0". Empty means $DISPLAY.
	Display string

	// Timeout of a query. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (Provider) Name() string {
	return "x11"
}

func (p Provider) IdleTime() (time.Duration, error) {
	display := p.Display
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		return 0, idle.Unavailablef("DISPLAY is not set")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return idle.Bounded(timeout, func() (time.Duration, error) {
		return query(display)
	})
}

func query(display string) (time.Duration, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return 0, idle.Unavailable(fmt.Errorf("failed to connect to X server %q: %w", display, err))
	}
	defer conn.Close()

	if err := screensaver.Init(conn); err != nil {
		return 0, idle.Unavailable(fmt.Errorf("MIT-SCREEN-SAVER extension is not available: %w", err))
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	info, err := screensaver.QueryInfo(conn, xproto.Drawable(root)).Reply()
	if err != nil {
		return 0, idle.Unavailable(fmt.Errorf("failed to query screen saver info: %w", err))
	}

	return time.Duration(info.MsSinceUserInput) * time.Millisecond, nil
}
