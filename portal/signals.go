package portal

import (
	"github.com/godbus/dbus/v5"

	"ironbutton/log"
	"ironbutton/shortcut"
)

const (
	sigResponse         = requestIface + ".Response"
	sigActivated        = shortcutsIface + ".Activated"
	sigDeactivated      = shortcutsIface + ".Deactivated"
	sigShortcutsChanged = shortcutsIface + ".ShortcutsChanged"
	sigSessionClosed    = sessionIface + ".Closed"
	sigNameOwnerChanged = "org.freedesktop.DBus.NameOwnerChanged"
)

// maxEarly bounds responses kept for requests not yet re-keyed.
const maxEarly = 16

// route is the only reader of the bus signal channel. The event streams
// end when the portal closes the session, the portal leaves the bus, or the
// connection closes. Responses keep flowing until the connection closes.
func (s *Session) route() {
	defer close(s.done)
	defer s.endStreams()

	live := true
	for sig := range s.signals {
		switch sig.Name {
		case sigResponse:
			s.deliverResponse(sig)
		case sigActivated, sigDeactivated:
			if !live {
				continue
			}
			out := s.activated
			if sig.Name == sigDeactivated {
				out = s.deactivated
			}
			if !s.forward(sig, out) {
				live = false
				s.endStreams()
			}
		case sigShortcutsChanged:
			log.Debugf("portal shortcuts changed by user")
		case sigSessionClosed:
			if live && sig.Path == s.sessionPath() {
				log.Warn("portal closed the shortcut session")
				live = false
				s.endStreams()
			}
		case sigNameOwnerChanged:
			if live && portalVanished(sig) {
				log.Warn("portal left the session bus")
				live = false
				s.endStreams()
			}
		}
	}
}

func (s *Session) endStreams() {
	s.streamsOnce.Do(func() {
		close(s.activated)
		close(s.deactivated)
	})
}

// portalVanished reports a NameOwnerChanged(name, old, new) for the portal
// bus name with an empty new owner.
func portalVanished(sig *dbus.Signal) bool {
	if len(sig.Body) < 3 {
		return false
	}
	name, _ := sig.Body[0].(string)
	owner, ok := sig.Body[2].(string)
	return ok && name == busName && owner == ""
}

func (s *Session) deliverResponse(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	code, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}
	results, _ := sig.Body[1].(map[string]dbus.Variant)
	r := response{code: code, results: results}

	s.mu.Lock()
	ch, ok := s.pending[sig.Path]
	if !ok {
		// The call may not have returned its handle yet.
		if len(s.early) < maxEarly {
			s.early[sig.Path] = r
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case ch <- r:
	default:
	}
}

// forward sends a shortcut event for this session to out, in arrival order.
// It reports false once the session is closing.
func (s *Session) forward(sig *dbus.Signal, out chan<- shortcut.Event) bool {
	ev, handle, ok := parseEvent(sig)
	if !ok {
		log.Debugf("malformed %s signal: %v", sig.Name, sig.Body)
		return true
	}
	if handle != s.sessionPath() {
		return true
	}
	select {
	case out <- ev:
		return true
	case <-s.closing:
		return false
	}
}

// parseEvent decodes Activated/Deactivated bodies:
// (o session_handle, s shortcut_id, t timestamp, a{sv} options).
func parseEvent(sig *dbus.Signal) (shortcut.Event, dbus.ObjectPath, bool) {
	if len(sig.Body) < 3 {
		return shortcut.Event{}, "", false
	}
	handle, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return shortcut.Event{}, "", false
	}
	id, ok := sig.Body[1].(string)
	if !ok {
		return shortcut.Event{}, "", false
	}
	ts, _ := sig.Body[2].(uint64)
	return shortcut.Event{ID: id, Timestamp: ts}, handle, true
}
