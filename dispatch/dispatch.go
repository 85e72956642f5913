// Package dispatch turns shortcut events into configured actions.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"ironbutton/config"
	"ironbutton/log"
	"ironbutton/shortcut"
)

// ErrUnexpectedEndOfEvents means the shortcut service closed an event
// stream. Nothing can be dispatched afterwards.
var ErrUnexpectedEndOfEvents = errors.New("unexpected end of shortcut events")

type Executor interface {
	Execute(config.Action)
}

type Dispatcher struct {
	store *config.Store
	exec  Executor
}

func New(store *config.Store, exec Executor) *Dispatcher {
	return &Dispatcher{store: store, exec: exec}
}

// Run consumes events in order until ctx is done (nil) or the stream is
// closed (ErrUnexpectedEndOfEvents).
func (d *Dispatcher) Run(ctx context.Context, dir shortcut.Direction, events <-chan shortcut.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("%s stream: %w", dir, ErrUnexpectedEndOfEvents)
			}
			d.Handle(dir, ev)
		}
	}
}

// Handle resolves one event against the current configuration and executes
// the bound action, if any. The store lock is released before executing.
func (d *Dispatcher) Handle(dir shortcut.Direction, ev shortcut.Event) {
	action, ok := d.resolve(dir, ev.ID)
	if !ok {
		log.Warnf("received unknown bind %q", ev.ID)
		return
	}
	if action == nil {
		return
	}
	log.Dispatch(dir.String(), ev.ID, action.Kind())
	d.exec.Execute(action)
}

func (d *Dispatcher) resolve(dir shortcut.Direction, id string) (config.Action, bool) {
	bind, ok := d.store.Lookup(id)
	if !ok {
		return nil, false
	}
	if dir == shortcut.Up {
		return bind.OnUp, true
	}
	return bind.OnDown, true
}
