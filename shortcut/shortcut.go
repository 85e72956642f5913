package shortcut

import (
	"context"
	"sort"

	"ironbutton/config"
)

// Direction tells which edge of a key press an event reports.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Shortcut is a registration request for one configured bind.
type Shortcut struct {
	ID          string
	Description string
	Trigger     string // advisory, may be empty
}

// Event reports an activation or deactivation of a registered shortcut.
type Event struct {
	ID        string
	Timestamp uint64 // milliseconds, as reported by the service; 0 if unknown
}

// Gateway is a session with a service that grants global shortcuts.
//
// Bind replaces the whole registered set and returns once the service has
// answered. Activated and Deactivated deliver events in service order and
// are closed when the session is lost.
type Gateway interface {
	Bind(ctx context.Context, shortcuts []Shortcut) error
	Activated() <-chan Event
	Deactivated() <-chan Event
	Configure(ctx context.Context) error
	Close() error
}

// Collect derives the registration requests for cfg, sorted by ID.
func Collect(cfg *config.Configuration) []Shortcut {
	shortcuts := make([]Shortcut, 0, len(cfg.Binds))
	for id, bind := range cfg.Binds {
		shortcuts = append(shortcuts, Shortcut{
			ID:          id,
			Description: bind.Label(id),
			Trigger:     bind.Suggest,
		})
	}
	sort.Slice(shortcuts, func(i, j int) bool { return shortcuts[i].ID < shortcuts[j].ID })
	return shortcuts
}
