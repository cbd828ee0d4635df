package wayland

import (
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MatthiasKunnen/go-wayland/wayland/client"
	idleNotify "github.com/MatthiasKunnen/go-wayland/wayland/staging/ext-idle-notify-v1"
)

// Global names advertised by fakeCompositor.
const (
	seatName     = 1
	notifierName = 2
)

const displayID = 1

// fakeCompositor serves the part of the Wayland protocol that connect uses: wl_display.sync,
// wl_display.get_registry, wl_registry.bind for a wl_seat and an ext_idle_notifier_v1 global and
// ext_idle_notifier_v1.get_idle_notification.
type fakeCompositor struct {
	listener *net.UnixListener
	// idleOnCreate sends idled as soon as a notification is created.
	idleOnCreate bool
	clients      chan *fakeClient

	mu    sync.Mutex
	conns []*net.UnixConn
}

type fakeClient struct {
	conn    *net.UnixConn
	writeMu sync.Mutex

	notification atomic.Uint32
	destroyed    atomic.Bool
}

// newFakeCompositor listens on $XDG_RUNTIME_DIR/$WAYLAND_DISPLAY, both pointing to a temporary
// directory for the duration of the test.
func newFakeCompositor(t *testing.T, idleOnCreate bool) *fakeCompositor {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("WAYLAND_DISPLAY", "wayland-test")

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: filepath.Join(dir, "wayland-test"), Net: "unix"})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	c := &fakeCompositor{
		listener:     l,
		idleOnCreate: idleOnCreate,
		clients:      make(chan *fakeClient, 16),
	}
	t.Cleanup(func() {
		_ = l.Close()
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, conn := range c.conns {
			_ = conn.Close()
		}
	})

	go c.accept()
	return c
}

func (c *fakeCompositor) accept() {
	for {
		conn, err := c.listener.AcceptUnix()
		if err != nil {
			return
		}

		c.mu.Lock()
		c.conns = append(c.conns, conn)
		c.mu.Unlock()

		fc := &fakeClient{conn: conn}
		go c.serve(fc)
		c.clients <- fc
	}
}

// next returns the next client that connected.
func (c *fakeCompositor) next(t *testing.T) *fakeClient {
	t.Helper()
	select {
	case fc := <-c.clients:
		return fc
	case <-time.After(5 * time.Second):
		t.Fatal("no client connected to the compositor")
		return nil
	}
}

func (c *fakeCompositor) serve(fc *fakeClient) {
	var registry, notifier uint32
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(fc.conn, header); err != nil {
			return
		}
		sender := binary.NativeEndian.Uint32(header)
		word := binary.NativeEndian.Uint32(header[4:])
		opcode := word & 0xffff
		body := make([]byte, word>>16-8)
		if _, err := io.ReadFull(fc.conn, body); err != nil {
			return
		}

		switch {
		case sender == displayID && opcode == 0: // sync
			fc.send(binary.NativeEndian.Uint32(body), 0, binary.NativeEndian.AppendUint32(nil, 0))
		case sender == displayID && opcode == 1: // get_registry
			registry = binary.NativeEndian.Uint32(body)
			fc.send(registry, 0, globalArgs(seatName, client.SeatInterfaceName, 7))
			fc.send(registry, 0, globalArgs(notifierName, idleNotify.IdleNotifierInterfaceName, 1))
		case sender == registry && opcode == 0: // bind
			name := binary.NativeEndian.Uint32(body)
			ifaceLen := padded(binary.NativeEndian.Uint32(body[4:]))
			id := binary.NativeEndian.Uint32(body[8+ifaceLen+4:])
			if name == notifierName {
				notifier = id
			}
		case sender == notifier && opcode == 1: // get_idle_notification
			id := binary.NativeEndian.Uint32(body)
			fc.notification.Store(id)
			if c.idleOnCreate {
				fc.idled()
			}
		case sender == fc.notification.Load() && opcode == 0: // destroy
			fc.destroyed.Store(true)
		}
	}
}

func (fc *fakeClient) send(object, opcode uint32, args []byte) {
	msg := make([]byte, 8, 8+len(args))
	binary.NativeEndian.PutUint32(msg, object)
	binary.NativeEndian.PutUint32(msg[4:], uint32(8+len(args))<<16|opcode)
	msg = append(msg, args...)

	fc.writeMu.Lock()
	defer fc.writeMu.Unlock()
	_, _ = fc.conn.Write(msg)
}

func (fc *fakeClient) idled() {
	fc.send(fc.notification.Load(), 0, nil)
}

func (fc *fakeClient) resumed() {
	fc.send(fc.notification.Load(), 1, nil)
}

func padded(n uint32) uint32 {
	return (n + 3) &^ 3
}

func globalArgs(name uint32, iface string, version uint32) []byte {
	strLen := uint32(len(iface) + 1)
	args := binary.NativeEndian.AppendUint32(nil, name)
	args = binary.NativeEndian.AppendUint32(args, strLen)
	args = append(args, make([]byte, padded(strLen))...)
	copy(args[8:], iface)
	return binary.NativeEndian.AppendUint32(args, version)
}
