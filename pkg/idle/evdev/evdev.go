// Package evdev tracks the idle time by reading raw events from the Linux input devices in
// /dev/input.
//
// Reading these devices usually requires membership of the input group. Because every key press
// of the session passes through the listener, this provider is tried last.
package evdev

import (
	"sync"

	"github.com/MatthiasKunnen/idletime/pkg/idle/tracker"
	"go.uber.org/zap"
)

const Name = "evdev"

// New creates a tracker that listens to the input devices of this system.
// Most programs want Default instead.
func New(opts ...tracker.Option) *tracker.Tracker {
	return tracker.New(Enumerate, append([]tracker.Option{tracker.WithName(Name)}, opts...)...)
}

var (
	muDefault      sync.Mutex
	defaultTracker *tracker.Tracker
)

// Default returns the process wide evdev tracker, creating it on first use.
// logger is only used when the tracker is created and may be nil.
func Default(logger *zap.Logger) *tracker.Tracker {
	muDefault.Lock()
	defer muDefault.Unlock()

	if defaultTracker == nil {
		defaultTracker = New(tracker.WithLogger(logger))
	}

	return defaultTracker
}
