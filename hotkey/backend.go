// Package hotkey is a shortcut.Gateway that grabs keys directly on the X11
// root window. Each bind needs a suggested trigger; there is no
// configuration dialog. The X11 grab itself is only built with -tags x11.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ironbutton/config"
	"ironbutton/log"
	"ironbutton/shortcut"
)

var ErrClosed = errors.New("hotkey backend closed")

type grab interface {
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
	Unregister() error
}

type grabFunc func(mods []Modifier, key Key) (grab, error)

type binding struct {
	id   string
	mods []Modifier
	key  Key
	g    grab
}

type Backend struct {
	grab grabFunc

	activated   chan shortcut.Event
	deactivated chan shortcut.Event

	mu     sync.Mutex
	bound  []binding
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

var _ shortcut.Gateway = (*Backend)(nil)

func newBackend(g grabFunc) *Backend {
	return &Backend{
		grab:        g,
		activated:   make(chan shortcut.Event, 64),
		deactivated: make(chan shortcut.Event, 64),
	}
}

// Bind replaces the grabbed set. X11 grabs are exclusive, so the previous
// set is released first and grabbed again if the new one cannot be. A bad
// trigger is a config error and leaves the previous set untouched.
func (b *Backend) Bind(_ context.Context, shortcuts []shortcut.Shortcut) error {
	next, err := plan(shortcuts)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	prev := b.bound
	b.release()
	if err := b.acquire(next); err != nil {
		if rerr := b.acquire(prev); rerr != nil {
			log.Errorf("restoring previous hotkeys: %v", rerr)
		}
		return err
	}
	log.Debugf("grabbed %d hotkeys", len(next))
	return nil
}

func plan(shortcuts []shortcut.Shortcut) ([]binding, error) {
	var out []binding
	for _, sc := range shortcuts {
		if sc.Trigger == "" {
			log.Warnf("shortcut %q has no suggested trigger, not grabbed", sc.ID)
			continue
		}
		mods, key, err := parseTrigger(sc.Trigger)
		if err != nil {
			return nil, fmt.Errorf("%w: shortcut %q: %w", config.ErrParse, sc.ID, err)
		}
		out = append(out, binding{id: sc.ID, mods: mods, key: key})
	}
	return out, nil
}

// acquire grabs every binding or none of them. Callers hold b.mu.
func (b *Backend) acquire(list []binding) error {
	grabbed := make([]binding, 0, len(list))
	for _, bd := range list {
		g, err := b.grab(bd.mods, bd.key)
		if err != nil {
			for _, done := range grabbed {
				done.g.Unregister()
			}
			return fmt.Errorf("grabbing %q: %w", bd.id, err)
		}
		bd.g = g
		grabbed = append(grabbed, bd)
	}

	b.bound = grabbed
	b.stop = make(chan struct{})
	for _, bd := range grabbed {
		b.wg.Add(1)
		go b.forward(bd, b.stop)
	}
	return nil
}

// release stops the forwarders and ungrabs the current set. Callers hold b.mu.
func (b *Backend) release() {
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
	b.wg.Wait()
	for _, bd := range b.bound {
		if err := bd.g.Unregister(); err != nil {
			log.Warnf("ungrabbing %q: %v", bd.id, err)
		}
	}
	b.bound = nil
}

func (b *Backend) forward(bd binding, stop <-chan struct{}) {
	defer b.wg.Done()
	for {
		var out chan shortcut.Event
		select {
		case <-stop:
			return
		case <-bd.g.Keydown():
			out = b.activated
		case <-bd.g.Keyup():
			out = b.deactivated
		}
		ev := shortcut.Event{ID: bd.id, Timestamp: uint64(time.Now().UnixMilli())}
		select {
		case out <- ev:
		case <-stop:
			return
		}
	}
}

func (b *Backend) Activated() <-chan shortcut.Event   { return b.activated }
func (b *Backend) Deactivated() <-chan shortcut.Event { return b.deactivated }

func (b *Backend) Configure(context.Context) error {
	return fmt.Errorf("x11 backend has no configuration dialog: %w", errors.ErrUnsupported)
}

// Close ungrabs everything and ends both event streams.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.release()
	close(b.activated)
	close(b.deactivated)
	return nil
}
