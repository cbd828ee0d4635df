//go:build linux

package evdev

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/MatthiasKunnen/idletime/pkg/idle/tracker"
	"golang.org/x/sys/unix"
)

var inputDir = "/dev/input"

// Event types, see linux/input-event-codes.h.
const (
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03
	evMax = 0x1f
)

// ioctl request layout of asm-generic/ioctl.h.
const (
	iocRead      = 2
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

// inputEventSize is sizeof(struct input_event) on 64-bit platforms.
// Reads only need to be a multiple of it.
const inputEventSize = 24

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

// eviocgbit is EVIOCGBIT(ev, size).
func eviocgbit(ev, size uintptr) uintptr {
	return ioc(iocRead, 'E', 0x20+ev, size)
}

// eviocgname is EVIOCGNAME(size).
func eviocgname(size uintptr) uintptr {
	return ioc(iocRead, 'E', 0x06, size)
}

// hasBit reports whether bit n is set in the little endian bitmask bits.
func hasBit(bits []byte, n int) bool {
	if n/8 >= len(bits) {
		return false
	}
	return bits[n/8]&(1<<(n%8)) != 0
}

// isUserInput reports whether the event type bitmask contains keys, relative or absolute axes.
func isUserInput(typeBits []byte) bool {
	return hasBit(typeBits, evKey) || hasBit(typeBits, evRel) || hasBit(typeBits, evAbs)
}

type device struct {
	path string
	name string
	f    *os.File
	buf  []byte
}

// Enumerate opens every event device that reports keys, relative or absolute axes.
// It fails when no such device could be opened.
func Enumerate() ([]tracker.Source, error) {
	paths, err := filepath.Glob(filepath.Join(inputDir, "event*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", inputDir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no event devices in %s", inputDir)
	}

	var sources []tracker.Source
	var openErr error
	for _, path := range paths {
		d, err := openDevice(path)
		if err != nil {
			openErr = errors.Join(openErr, err)
			continue
		}

		if d == nil {
			continue
		}
		sources = append(sources, d)
	}

	if len(sources) == 0 && openErr != nil {
		return nil, fmt.Errorf("unable to open any input device: %w", openErr)
	}

	return sources, nil
}

// openDevice returns nil without error if the device at path does not produce user input.
func openDevice(path string) (*device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	d := &device{
		path: path,
		name: path,
		f:    f,
		buf:  make([]byte, 64*inputEventSize),
	}

	typeBits := make([]byte, evMax/8+1)
	if err := d.ioctl(eviocgbit(0, uintptr(len(typeBits))), typeBits); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read event types of %s: %w", path, err)
	}
	if !isUserInput(typeBits) {
		_ = f.Close()
		return nil, nil
	}

	name := make([]byte, 256)
	if err := d.ioctl(eviocgname(uintptr(len(name))), name); err == nil {
		if n := bytes.IndexByte(name, 0); n > 0 {
			d.name = fmt.Sprintf("%s (%s)", string(name[:n]), path)
		}
	}

	return d, nil
}

// ioctl issues a read request that fills buf.
// The descriptor is accessed through SyscallConn so the file stays in non-blocking mode.
func (d *device) ioctl(req uintptr, buf []byte) error {
	rc, err := d.f.SyscallConn()
	if err != nil {
		return err
	}

	var errno unix.Errno
	err = rc.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(&buf[0])))
	})
	if err != nil {
		return err
	}
	if errno != 0 {
		return errno
	}

	return nil
}

func (d *device) Name() string {
	return d.name
}

// Wait blocks until the kernel delivers at least one event.
func (d *device) Wait() error {
	n, err := d.f.Read(d.buf)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", d.path, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: device closed", d.path)
	}

	return nil
}

func (d *device) Close() error {
	return d.f.Close()
}
