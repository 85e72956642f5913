//go:build linux && x11

package hotkey

import (
	"golang.design/x/hotkey"

	"ironbutton/shortcut"
)

// New opens the X11 backend. golang.design/x/hotkey connects to the display
// at program start, so this file is only built with -tags x11.
func New() (shortcut.Gateway, error) {
	return newBackend(grabX11), nil
}

// x11Grab adapts a registered hotkey to the grab interface.
type x11Grab struct {
	hk       *hotkey.Hotkey
	down, up chan struct{}
	quit     chan struct{}
}

func grabX11(mods []Modifier, key Key) (grab, error) {
	xm := make([]hotkey.Modifier, len(mods))
	for i, m := range mods {
		xm[i] = hotkey.Modifier(m)
	}
	hk := hotkey.New(xm, hotkey.Key(key))
	if err := hk.Register(); err != nil {
		return nil, err
	}

	g := &x11Grab{
		hk:   hk,
		down: make(chan struct{}),
		up:   make(chan struct{}),
		quit: make(chan struct{}),
	}
	go g.pump()
	return g, nil
}

func (g *x11Grab) pump() {
	for {
		var out chan struct{}
		select {
		case <-g.quit:
			return
		case <-g.hk.Keydown():
			out = g.down
		case <-g.hk.Keyup():
			out = g.up
		}
		select {
		case out <- struct{}{}:
		case <-g.quit:
			return
		}
	}
}

func (g *x11Grab) Keydown() <-chan struct{} { return g.down }
func (g *x11Grab) Keyup() <-chan struct{}   { return g.up }

func (g *x11Grab) Unregister() error {
	close(g.quit)
	return g.hk.Unregister()
}
