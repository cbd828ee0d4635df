package idle

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is wrapped by every error a Provider returns.
// A missing mechanism is expected; the Chain moves on to the next provider.
var ErrUnavailable = errors.New("idle time provider unavailable")

// Provider is a single strategy for obtaining the idle time of the session.
type Provider interface {
	// Name is a short identifier such as "x11" or "evdev".
	Name() string

	// IdleTime returns the time since the last user input.
	// A non-nil error means the provider could not answer; the duration is ignored in that case.
	// IdleTime must not block for longer than a short handshake timeout.
	IdleTime() (time.Duration, error)
}

// Unavailable returns an error wrapping ErrUnavailable with the given reason.
// If reason is nil, ErrUnavailable is returned.
func Unavailable(reason error) error {
	if reason == nil {
		return ErrUnavailable
	}
	if errors.Is(reason, ErrUnavailable) {
		return reason
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, reason)
}

// Unavailablef formats a reason and wraps it like Unavailable.
func Unavailablef(format string, a ...any) error {
	return Unavailable(fmt.Errorf(format, a...))
}

// Since returns now - t, clamped to zero when the clock reports a time before t.
func Since(now, t time.Time) time.Duration {
	return Clamp(now.Sub(t))
}

// Clamp returns d, or zero when d is negative.
func Clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Func adapts a function to the Provider interface.
type Func struct {
	ProviderName string
	Fn           func() (time.Duration, error)
}

func (f Func) Name() string {
	return f.ProviderName
}

func (f Func) IdleTime() (time.Duration, error) {
	return f.Fn()
}
