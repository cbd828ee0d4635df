//go:build !linux

package evdev

import (
	"errors"

	"github.com/MatthiasKunnen/idletime/pkg/idle/tracker"
)

func Enumerate() ([]tracker.Source, error) {
	return nil, errors.New("evdev input devices are only available on Linux")
}
