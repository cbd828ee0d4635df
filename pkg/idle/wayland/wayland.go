// Package wayland derives the idle time from the [ext-idle-notify-v1] protocol of the compositor.
//
// The protocol does not report the idle time itself, it notifies a client when the seat idled and
// when it resumed. The Provider therefore keeps a connection open and remembers since when the
// seat is idle.
//
// [ext-idle-notify-v1]: https://wayland.app/protocols/ext-idle-notify-v1
package wayland

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds setting up the connection.
	DefaultTimeout = 2 * time.Second

	Name = "wayland"
)

type Option func(p *Provider)

// WithThreshold sets the idle timeout that is requested from the compositor. The compositor
// reports idle once no input occurred for this long. Until then the Provider reports zero.
// The default is 0, which makes the compositor report idle as soon as input stops.
func WithThreshold(threshold time.Duration) Option {
	return func(p *Provider) {
		p.threshold = threshold
	}
}

// WithTimeout bounds the connection setup. Zero means DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Provider implements idle.Provider using a Wayland connection that is opened on first use.
// A broken connection is replaced on the next call of IdleTime.
// It is safe to call Provider's methods concurrently.
type Provider struct {
	logger    *zap.Logger
	now       func() time.Time
	threshold time.Duration
	timeout   time.Duration

	mu     sync.Mutex
	conn   *connection
	closed bool
}

func New(opts ...Option) *Provider {
	p := &Provider{
		logger:  zap.NewNop(),
		now:     time.Now,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Provider) Name() string {
	return Name
}

// IdleTime returns zero while the compositor considers the seat active and the time since the
// seat idled otherwise.
func (p *Provider) IdleTime() (time.Duration, error) {
	c, err := p.connection()
	if err != nil {
		return 0, err
	}

	return idleFor(c.idleSince.Load(), p.now()), nil
}

// Close closes the connection to the compositor. IdleTime fails afterward.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.conn == nil {
		return nil
	}

	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *Provider) connection() (*connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, idle.Unavailable(errors.New("provider is closed"))
	}

	if p.conn != nil {
		if !p.conn.isBroken() {
			return p.conn, nil
		}

		if err := p.conn.Close(); err != nil {
			p.logger.Debug("error closing broken Wayland connection", zap.Error(err))
		}
		p.conn = nil
	}

	addr, err := socketPath()
	if err != nil {
		return nil, idle.Unavailable(err)
	}

	thresholdMs, err := thresholdMillis(p.threshold)
	if err != nil {
		return nil, idle.Unavailable(err)
	}

	c, err := connectBounded(p.timeout, addr, thresholdMs, p.now, p.logger)
	if err != nil {
		return nil, idle.Unavailable(err)
	}

	p.conn = c
	return c, nil
}

// connectBounded gives up after timeout. A connection that completes afterward is closed.
func connectBounded(
	timeout time.Duration,
	addr string,
	thresholdMs uint32,
	now func() time.Time,
	logger *zap.Logger,
) (*connection, error) {
	type result struct {
		c   *connection
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := connect(addr, thresholdMs, now, logger)
		done <- result{c: c, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.c, r.err
	case <-timer.C:
		go func() {
			r := <-done
			if r.c != nil {
				_ = r.c.Close()
			}
		}()
		return nil, fmt.Errorf("no answer from compositor within %s", timeout)
	}
}

// socketPath returns the compositor socket named by WAYLAND_DISPLAY. A relative name is resolved
// in XDG_RUNTIME_DIR.
func socketPath() (string, error) {
	name := os.Getenv("WAYLAND_DISPLAY")
	if name == "" {
		return "", errors.New("WAYLAND_DISPLAY is not set")
	}
	if filepath.IsAbs(name) {
		return name, nil
	}

	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}

	return filepath.Join(dir, name), nil
}

func thresholdMillis(threshold time.Duration) (uint32, error) {
	ms := threshold.Milliseconds()
	switch {
	case ms > math.MaxUint32:
		return 0, fmt.Errorf("threshold too large, %d > %d", ms, uint32(math.MaxUint32))
	case ms < 0:
		ms = 0
	}

	return uint32(ms), nil
}

// idleFor returns the idle time given the moment the seat idled, nil meaning active.
func idleFor(since *time.Time, now time.Time) time.Duration {
	if since == nil {
		return 0
	}

	return idle.Since(now, *since)
}
