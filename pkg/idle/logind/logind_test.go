package logind

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"github.com/godbus/dbus/v5"
)

func TestFindSessionPath(t *testing.T) {
	sessions := []interface{}{
		[]interface{}{"c1", uint32(120), "gdm", "seat0", dbus.ObjectPath("/org/freedesktop/login1/session/c1")},
		[]interface{}{"3", uint32(1000), "alice", "seat0", dbus.ObjectPath("/org/freedesktop/login1/session/_33")},
	}

	got, err := findSessionPath(sessions, "3")
	if err != nil {
		t.Fatalf("findSessionPath() error = %v", err)
	}
	if want := dbus.ObjectPath("/org/freedesktop/login1/session/_33"); got != want {
		t.Errorf("findSessionPath() = %q, want %q", got, want)
	}

	if _, err := findSessionPath(sessions, "7"); err == nil {
		t.Errorf("findSessionPath() found a session that does not exist")
	}
}

func TestFindSessionPathMalformed(t *testing.T) {
	tests := []struct {
		name     string
		sessions []interface{}
	}{
		{"not a struct", []interface{}{"3"}},
		{"short struct", []interface{}{[]interface{}{"3", uint32(1000)}}},
		{"id not a string", []interface{}{[]interface{}{3, uint32(1000), "alice", "seat0", dbus.ObjectPath("/")}}},
		{"path not an object path", []interface{}{[]interface{}{"3", uint32(1000), "alice", "seat0", "/"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := findSessionPath(tt.sessions, "3"); err == nil {
				t.Errorf("findSessionPath() succeeded on malformed input")
			}
		})
	}
}

func TestIdleFromHints(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	since := uint64(now.Add(-5 * time.Minute).UnixMicro())
	future := uint64(now.Add(time.Minute).UnixMicro())

	t.Run("idle", func(t *testing.T) {
		got, err := idleFromHints(map[string]dbus.Variant{
			"IdleHint":      dbus.MakeVariant(true),
			"IdleSinceHint": dbus.MakeVariant(since),
		}, now)
		if err != nil {
			t.Fatalf("idleFromHints() error = %v", err)
		}
		if got != 5*time.Minute {
			t.Errorf("idleFromHints() = %v, want 5m", got)
		}
	})

	t.Run("idle since the future", func(t *testing.T) {
		got, err := idleFromHints(map[string]dbus.Variant{
			"IdleHint":      dbus.MakeVariant(true),
			"IdleSinceHint": dbus.MakeVariant(future),
		}, now)
		if err != nil || got != 0 {
			t.Errorf("idleFromHints() = %v, %v; want 0, nil", got, err)
		}
	})

	unavailable := map[string]map[string]dbus.Variant{
		"active": {
			"IdleHint":      dbus.MakeVariant(false),
			"IdleSinceHint": dbus.MakeVariant(since),
		},
		"no hint":       {},
		"hint not bool": {"IdleHint": dbus.MakeVariant("yes")},
		"since missing": {"IdleHint": dbus.MakeVariant(true)},
		"since zero": {
			"IdleHint":      dbus.MakeVariant(true),
			"IdleSinceHint": dbus.MakeVariant(uint64(0)),
		},
	}
	for name, props := range unavailable {
		t.Run(name, func(t *testing.T) {
			_, err := idleFromHints(props, now)
			if !errors.Is(err, idle.ErrUnavailable) {
				t.Errorf("idleFromHints() error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestUnreachableBusIsUnavailable(t *testing.T) {
	t.Setenv("DBUS_SYSTEM_BUS_ADDRESS", "unix:path="+filepath.Join(t.TempDir(), "missing-bus"))

	_, err := Provider{SessionId: "1", Timeout: time.Second}.IdleTime()
	if !errors.Is(err, idle.ErrUnavailable) {
		t.Errorf("IdleTime() error = %v, want ErrUnavailable", err)
	}
}
