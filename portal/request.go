package portal

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

type response struct {
	code    uint32
	results map[string]dbus.Variant
}

func (r response) err(method string) error {
	switch r.code {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s: %w", method, ErrCancelled)
	default:
		return fmt.Errorf("%s: %w (code %d)", method, ErrRequestFailed, r.code)
	}
}

func requestPath(sender, token string) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/request/%s/%s", objectPath, sender, token))
}

// request performs a portal call that answers through a Request object and
// waits for its Response signal. args receives the options map, already
// holding handle_token, and returns the call arguments.
func (s *Session) request(ctx context.Context, method string, args func(map[string]dbus.Variant) []any) (map[string]dbus.Variant, error) {
	token := s.token()
	path := requestPath(s.sender, token)
	ch := s.expect(path)
	defer s.forget(path)

	opts := map[string]dbus.Variant{"handle_token": dbus.MakeVariant(token)}
	var handle dbus.ObjectPath
	if err := s.portal.CallWithContext(ctx, shortcutsIface+"."+method, 0, args(opts)...).Store(&handle); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if handle != path {
		// Old portals ignore handle_token.
		ch = s.rekey(path, handle)
		defer s.forget(handle)
	}

	select {
	case r := <-ch:
		if err := r.err(method); err != nil {
			return nil, err
		}
		return r.results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, fmt.Errorf("%s: %w", method, ErrSessionLost)
	}
}

func (s *Session) expect(path dbus.ObjectPath) chan response {
	ch := make(chan response, 1)
	s.mu.Lock()
	s.pending[path] = ch
	s.mu.Unlock()
	return ch
}

// rekey moves a pending request to the handle the portal returned,
// delivering a response that arrived under that handle first.
func (s *Session) rekey(from, to dbus.ObjectPath) chan response {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.pending[from]
	delete(s.pending, from)
	s.pending[to] = ch
	if r, ok := s.early[to]; ok {
		delete(s.early, to)
		select {
		case ch <- r:
		default:
		}
	}
	return ch
}

func (s *Session) forget(path dbus.ObjectPath) {
	s.mu.Lock()
	delete(s.pending, path)
	delete(s.early, path)
	s.mu.Unlock()
}
