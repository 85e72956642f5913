// Package portal talks to the xdg-desktop-portal GlobalShortcuts interface
// on the D-Bus session bus.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"ironbutton/log"
	"ironbutton/shortcut"
)

const (
	busName        = "org.freedesktop.portal.Desktop"
	objectPath     = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	shortcutsIface = "org.freedesktop.portal.GlobalShortcuts"
	requestIface   = "org.freedesktop.portal.Request"
	sessionIface   = "org.freedesktop.portal.Session"
	propsGet       = "org.freedesktop.DBus.Properties.Get"
)

var (
	ErrCancelled     = errors.New("portal request cancelled")
	ErrRequestFailed = errors.New("portal request failed")
	ErrSessionLost   = errors.New("portal session lost")
)

// Session is a GlobalShortcuts portal session. It implements
// shortcut.Gateway.
type Session struct {
	conn   *dbus.Conn
	portal dbus.BusObject
	sender string

	signals     chan *dbus.Signal
	activated   chan shortcut.Event
	deactivated chan shortcut.Event
	closing     chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	streamsOnce sync.Once

	mu      sync.Mutex
	handle  dbus.ObjectPath
	pending map[dbus.ObjectPath]chan response
	early   map[dbus.ObjectPath]response
	seq     atomic.Uint64
}

var _ shortcut.Gateway = (*Session)(nil)

func newSession(uniqueName string) *Session {
	return &Session{
		sender:      senderPart(uniqueName),
		signals:     make(chan *dbus.Signal, 64),
		activated:   make(chan shortcut.Event, 64),
		deactivated: make(chan shortcut.Event, 64),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
		pending:     make(map[dbus.ObjectPath]chan response),
		early:       make(map[dbus.ObjectPath]response),
	}
}

// Connect opens the session bus and creates a GlobalShortcuts session.
func Connect(ctx context.Context) (*Session, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	names := conn.Names()
	if len(names) == 0 {
		conn.Close()
		return nil, errors.New("session bus assigned no unique name")
	}

	s := newSession(names[0])
	s.conn = conn
	s.portal = conn.Object(busName, objectPath)

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to portal responses: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(shortcutsIface),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to shortcut signals: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(sessionIface),
		dbus.WithMatchMember("Closed"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to session close: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, busName),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to portal owner changes: %w", err)
	}
	conn.Signal(s.signals)
	go s.route()

	if err := s.createSession(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) createSession(ctx context.Context) error {
	results, err := s.request(ctx, "CreateSession", func(opts map[string]dbus.Variant) []any {
		opts["session_handle_token"] = dbus.MakeVariant(s.token())
		return []any{opts}
	})
	if err != nil {
		return err
	}

	handle, err := sessionHandle(results)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
	log.Debugf("portal session %s", handle)
	return nil
}

// Bind replaces the session's shortcuts with the given set.
func (s *Session) Bind(ctx context.Context, shortcuts []shortcut.Shortcut) error {
	handle := s.sessionPath()
	results, err := s.request(ctx, "BindShortcuts", func(opts map[string]dbus.Variant) []any {
		return []any{handle, shortcutArgs(shortcuts), "", opts}
	})
	if err != nil {
		return err
	}
	if v, ok := results["shortcuts"]; ok {
		if bound, ok := v.Value().([][]any); ok {
			log.Debugf("portal bound %d shortcuts", len(bound))
		}
	}
	return nil
}

func (s *Session) Activated() <-chan shortcut.Event   { return s.activated }
func (s *Session) Deactivated() <-chan shortcut.Event { return s.deactivated }

// Configure asks the portal to show its shortcut configuration dialog.
func (s *Session) Configure(ctx context.Context) error {
	err := s.portal.CallWithContext(ctx, shortcutsIface+".ConfigureShortcuts", 0,
		s.sessionPath(), "", map[string]dbus.Variant{}).Err
	if err != nil {
		return fmt.Errorf("ConfigureShortcuts: %w", err)
	}
	return nil
}

// Close ends the portal session and the bus connection. Both event streams
// are closed afterwards.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.conn == nil {
			return
		}
		if handle := s.sessionPath(); handle != "" {
			s.conn.Object(busName, handle).Call(sessionIface+".Close", 0)
		}
		err = s.conn.Close()
	})
	return err
}

func (s *Session) sessionPath() dbus.ObjectPath {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Session) token() string {
	return fmt.Sprintf("ironbutton%d", s.seq.Add(1))
}

// Version reports the GlobalShortcuts interface version, or an error if the
// portal does not provide it.
func Version(ctx context.Context) (uint32, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return 0, fmt.Errorf("connecting to session bus: %w", err)
	}
	defer conn.Close()

	var v dbus.Variant
	err = conn.Object(busName, objectPath).
		CallWithContext(ctx, propsGet, 0, shortcutsIface, "version").
		Store(&v)
	if err != nil {
		return 0, fmt.Errorf("reading %s version: %w", shortcutsIface, err)
	}
	version, ok := v.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected version type %s", v.Signature())
	}
	return version, nil
}

type shortcutArg struct {
	ID    string
	Props map[string]dbus.Variant
}

func shortcutArgs(shortcuts []shortcut.Shortcut) []shortcutArg {
	args := make([]shortcutArg, 0, len(shortcuts))
	for _, sc := range shortcuts {
		props := map[string]dbus.Variant{
			"description": dbus.MakeVariant(sc.Description),
		}
		if sc.Trigger != "" {
			props["preferred_trigger"] = dbus.MakeVariant(sc.Trigger)
		}
		args = append(args, shortcutArg{ID: sc.ID, Props: props})
	}
	return args
}

func sessionHandle(results map[string]dbus.Variant) (dbus.ObjectPath, error) {
	v, ok := results["session_handle"]
	if !ok {
		return "", fmt.Errorf("%w: no session_handle in CreateSession response", ErrRequestFailed)
	}
	switch h := v.Value().(type) {
	case string:
		return dbus.ObjectPath(h), nil
	case dbus.ObjectPath:
		return h, nil
	default:
		return "", fmt.Errorf("%w: session_handle has type %s", ErrRequestFailed, v.Signature())
	}
}

// senderPart turns a unique bus name like ":1.42" into "1_42", the form
// used in request object paths.
func senderPart(uniqueName string) string {
	return strings.ReplaceAll(strings.TrimPrefix(uniqueName, ":"), ".", "_")
}
