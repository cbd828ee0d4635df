// Package idletime reports how long the user session has been idle.
//
// Get is all most programs need. It asks, in order, the GNOME Mutter idle monitor, the Wayland
// compositor, the X server, the freedesktop screen saver service, the logind session and finally
// the raw input devices, and returns the first answer.
package idletime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"github.com/MatthiasKunnen/idletime/pkg/idle/evdev"
	"github.com/MatthiasKunnen/idletime/pkg/idle/logind"
	"github.com/MatthiasKunnen/idletime/pkg/idle/sessionbus"
	"github.com/MatthiasKunnen/idletime/pkg/idle/tracker"
	"github.com/MatthiasKunnen/idletime/pkg/idle/wayland"
	"github.com/MatthiasKunnen/idletime/pkg/idle/x11"
	"go.uber.org/zap"
)

// Provider names.
const (
	Mutter      = "mutter"
	Wayland     = wayland.Name
	X11         = "x11"
	ScreenSaver = "screensaver"
	Logind      = "logind"
	Evdev       = evdev.Name
)

// DefaultOrder lists the providers from most specific to most invasive.
// Compositor-native signals come first, then the display server extension, then the session idle
// services. The evdev listener is last since it needs access to all raw input.
var DefaultOrder = []string{Mutter, Wayland, X11, ScreenSaver, Logind, Evdev}

// Known reports whether name is a provider name.
func Known(name string) bool {
	_, ok := constructors[name]
	return ok
}

// Options configures the chain created by New.
type Options struct {
	// Providers in the order they are tried. Nil means DefaultOrder.
	Providers []string

	// Timeout bounds every single provider query. Zero uses the provider's default.
	Timeout time.Duration

	// WaylandThreshold is the idle timeout requested from the Wayland compositor.
	WaylandThreshold time.Duration

	// Display is the X display. Empty means $DISPLAY.
	Display string

	// SessionId is the logind session. Empty means $XDG_SESSION_ID.
	SessionId string

	Logger *zap.Logger
}

var constructors = map[string]func(o Options) idle.Provider{
	Mutter: func(o Options) idle.Provider {
		return sessionbus.Mutter{Timeout: o.Timeout}
	},
	Wayland: func(o Options) idle.Provider {
		return wayland.New(
			wayland.WithThreshold(o.WaylandThreshold),
			wayland.WithTimeout(o.Timeout),
			wayland.WithLogger(o.Logger),
		)
	},
	X11: func(o Options) idle.Provider {
		return x11.Provider{Display: o.Display, Timeout: o.Timeout}
	},
	ScreenSaver: func(o Options) idle.Provider {
		return sessionbus.ScreenSaver{Timeout: o.Timeout}
	},
	Logind: func(o Options) idle.Provider {
		return logind.Provider{SessionId: o.SessionId, Timeout: o.Timeout}
	},
	Evdev: func(o Options) idle.Provider {
		return evdev.Default(o.Logger)
	},
}

// New creates a chain of the providers named in opts.
// The evdev provider is shared by all chains of the process, its listener is never stopped.
func New(opts Options) (*idle.Chain, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	names := opts.Providers
	if names == nil {
		names = DefaultOrder
	}

	var errs error
	providers := make([]idle.Provider, 0, len(names))
	for _, name := range names {
		construct, ok := constructors[name]
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("unknown provider %q", name))
			continue
		}
		providers = append(providers, construct(opts))
	}
	if errs != nil {
		return nil, errs
	}

	chain := idle.NewChain(opts.Logger.Named("idletime"), providers...)
	chain.SuggestOptIn(Evdev)

	return chain, nil
}

var defaultChain = sync.OnceValue(func() *idle.Chain {
	chain, err := New(Options{})
	if err != nil {
		panic(fmt.Sprintf("idletime: default providers are invalid: %v", err))
	}
	return chain
})

// Default returns the process wide chain used by Get.
func Default() *idle.Chain {
	return defaultChain()
}

// Get returns the idle time of the session using the default provider order.
// The error matches idle.ErrNoProvider when no provider could answer.
func Get() (time.Duration, error) {
	return Default().IdleTime()
}

// compile time check that the shared evdev tracker is a provider.
var _ idle.Provider = (*tracker.Tracker)(nil)
