// Package tracker derives the idle time from a stream of raw input events.
//
// It is used when no mechanism of the platform can report the idle time itself. A [Tracker]
// starts one background listener the first time it is queried. The listener subscribes to every
// input source and records the time of the latest event. The idle time is the time since that
// event.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"github.com/creachadair/taskgroup"
	"go.uber.org/zap"
)

// ErrListenerFailed is returned by IdleTime after the listener failed to subscribe to any input
// source. The failure is permanent for the Tracker.
var ErrListenerFailed = fmt.Errorf("%w: input listener failed", idle.ErrUnavailable)

// neverSet marks that no input event has been observed yet.
const neverSet = math.MinInt64

// Source is a stream of input events, for example a single input device.
type Source interface {
	Name() string

	// Wait blocks until at least one input event occurred.
	// An error ends the subscription to this source only.
	Wait() error

	Close() error
}

// Enumerator lists the input sources to listen to.
type Enumerator func() ([]Source, error)

type Option func(t *Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithName sets the provider name reported by Name. The default is "tracker".
func WithName(name string) Option {
	return func(t *Tracker) {
		t.name = name
	}
}

// Tracker implements idle.Provider by observing input events.
// All methods are safe for concurrent use.
type Tracker struct {
	enumerate Enumerator
	logger    *zap.Logger
	name      string
	now       func() time.Time

	startOnce sync.Once
	// started is set once inside startOnce and is the idle baseline until the first event.
	started time.Time

	// lastInput is the time of the latest event in nanoseconds since started.
	// Only listener goroutines write it and it never decreases.
	lastInput atomic.Int64
	failed    atomic.Pointer[error]
	active    atomic.Int32
}

// New creates a Tracker that listens to the sources returned by enumerate.
// Nothing happens until Start or IdleTime is called.
func New(enumerate Enumerator, opts ...Option) *Tracker {
	t := &Tracker{
		enumerate: enumerate,
		logger:    zap.NewNop(),
		name:      "tracker",
		now:       time.Now,
	}
	t.lastInput.Store(neverSet)

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Tracker) Name() string {
	return t.name
}

// Start spawns the listener if it was not spawned before.
// It does not wait for the listener to subscribe to any source.
func (t *Tracker) Start() {
	t.startOnce.Do(func() {
		t.started = t.now()
		go t.listen()
	})
}

// IdleTime returns the time since the last observed input event.
// Before the first event it returns the time since the Tracker was started.
func (t *Tracker) IdleTime() (time.Duration, error) {
	t.Start()

	if err := t.failed.Load(); err != nil {
		return 0, *err
	}

	last := t.lastInput.Load()
	now := t.now()
	if last == neverSet {
		return idle.Since(now, t.started), nil
	}

	return idle.Clamp(now.Sub(t.started) - time.Duration(last)), nil
}

// ActiveSources returns the number of sources the listener is currently subscribed to.
func (t *Tracker) ActiveSources() int {
	return int(t.active.Load())
}

// touch records an event at the current time. Sources race each other, so a reading older than
// the recorded one is dropped.
func (t *Tracker) touch() {
	at := int64(t.now().Sub(t.started))
	for {
		last := t.lastInput.Load()
		if at <= last {
			return
		}
		if t.lastInput.CompareAndSwap(last, at) {
			return
		}
	}
}

func (t *Tracker) listen() {
	sources, err := t.enumerate()
	if err == nil && len(sources) == 0 {
		err = errors.New("no input sources found")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrListenerFailed, err)
		t.failed.Store(&err)
		t.logger.Error("unable to listen to input", zap.String("provider", t.name), zap.Error(err))
		return
	}

	t.logger.Debug("listening to input sources",
		zap.String("provider", t.name),
		zap.Int("sources", len(sources)),
	)

	g := taskgroup.New(nil)
	for _, src := range sources {
		t.active.Add(1)
		g.Go(func() error {
			defer t.active.Add(-1)
			t.watch(src)
			return nil
		})
	}
	_ = g.Wait()

	t.logger.Warn("all input sources stopped, idle time will keep growing",
		zap.String("provider", t.name),
	)
}

// watch records events of src until it fails. A failure, including a panic, is contained here.
func (t *Tracker) watch(src Source) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("input source panicked",
				zap.String("provider", t.name),
				zap.String("source", src.Name()),
				zap.Any("panic", r),
			)
		}
		if err := src.Close(); err != nil {
			t.logger.Debug("failed to close input source",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
		}
	}()

	for {
		if err := src.Wait(); err != nil {
			t.logger.Warn("input source stopped",
				zap.String("provider", t.name),
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			return
		}
		t.touch()
	}
}
