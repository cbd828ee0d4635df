package logind

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MatthiasKunnen/idletime/pkg/idle"
	"github.com/godbus/dbus/v5"
)

const (
	dbusDest             = "org.freedesktop.login1"
	dbusManagerInterface = "org.freedesktop.login1.Manager"
	dbusSessionInterface = "org.freedesktop.login1.Session"
	dbusPath             = "/org/freedesktop/login1"
)

// DefaultTimeout bounds the connection and the calls of a single query.
const DefaultTimeout = 2 * time.Second

// Provider reads the idle hint of a logind session.
type Provider struct {
	// SessionId is the ID of the session. Empty means the XDG_SESSION_ID env var and, if that is
	// empty too, the session of the current process.
	SessionId string

	// Timeout of a query. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (Provider) Name() string {
	return "logind"
}

// IdleTime returns the time since the session became idle.
// A session that is not idle is reported as unavailable since many desktops never set the hint.
func (p Provider) IdleTime() (time.Duration, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return 0, idle.Unavailable(fmt.Errorf("failed to connect to system bus: %w", err))
	}
	defer conn.Close()

	sessionId := p.SessionId
	if sessionId == "" {
		sessionId = os.Getenv("XDG_SESSION_ID")
	}

	sessionPath, err := lookupSession(ctx, conn, sessionId)
	if err != nil {
		return 0, idle.Unavailable(err)
	}

	var props map[string]dbus.Variant
	err = conn.Object(dbusDest, sessionPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, dbusSessionInterface).
		Store(&props)
	if err != nil {
		return 0, idle.Unavailable(fmt.Errorf("could not get session properties: %w", err))
	}

	return idleFromHints(props, time.Now())
}

func lookupSession(ctx context.Context, conn *dbus.Conn, sessionId string) (dbus.ObjectPath, error) {
	manager := conn.Object(dbusDest, dbusPath)

	if sessionId == "" {
		var path dbus.ObjectPath
		err := manager.
			CallWithContext(ctx, dbusManagerInterface+".GetSessionByPID", 0, uint32(os.Getpid())).
			Store(&path)
		if err != nil {
			return "", fmt.Errorf("failed to get session of process: %w", err)
		}

		return path, nil
	}

	var sessions []interface{}
	err := manager.
		CallWithContext(ctx, dbusManagerInterface+".ListSessions", 0).
		Store(&sessions)
	if err != nil {
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}

	return findSessionPath(sessions, sessionId)
}

// findSessionPath returns the object path of sessionId in the result of ListSessions.
// Each session is a struct of (id, uid, user, seat, path).
func findSessionPath(sessions []interface{}, sessionId string) (dbus.ObjectPath, error) {
	for i, sessionInt := range sessions {
		session, ok := sessionInt.([]interface{})
		if !ok || len(session) < 5 {
			return "", fmt.Errorf("session %d is not a (susso) struct: %+v", i, sessionInt)
		}

		currentSessionId, ok := session[0].(string)
		if !ok {
			return "", fmt.Errorf("session %d[0] is not a string: %+v", i, session[0])
		}

		if currentSessionId == sessionId {
			sessionPath, ok := session[4].(dbus.ObjectPath)
			if !ok {
				return "", fmt.Errorf("session %d[4] is not an ObjectPath: %+v", i, session[4])
			}

			return sessionPath, nil
		}
	}

	return "", fmt.Errorf("failed to find session object for session %q", sessionId)
}

// idleFromHints computes the idle time from the IdleHint and IdleSinceHint properties.
// IdleSinceHint is in microseconds since the epoch.
func idleFromHints(props map[string]dbus.Variant, now time.Time) (time.Duration, error) {
	hintVariant, ok := props["IdleHint"]
	if !ok {
		return 0, idle.Unavailable(errors.New("session has no IdleHint property"))
	}
	isIdle, ok := hintVariant.Value().(bool)
	if !ok {
		return 0, idle.Unavailable(errors.New("IdleHint property is not a boolean"))
	}
	if !isIdle {
		return 0, idle.Unavailable(errors.New("session does not report an idle hint"))
	}

	sinceVariant, ok := props["IdleSinceHint"]
	if !ok {
		return 0, idle.Unavailable(errors.New("session has no IdleSinceHint property"))
	}
	sinceUsec, ok := sinceVariant.Value().(uint64)
	if !ok {
		return 0, idle.Unavailable(errors.New("IdleSinceHint property is not a uint64"))
	}
	if sinceUsec == 0 {
		return 0, idle.Unavailable(errors.New("IdleSinceHint is not set"))
	}

	return idle.Since(now, time.UnixMicro(int64(sinceUsec))), nil
}
