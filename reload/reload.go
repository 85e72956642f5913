// Package reload re-reads the configuration on demand and installs it once
// the shortcut service has accepted the new set.
package reload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ironbutton/config"
	"ironbutton/log"
	"ironbutton/shortcut"
)

// Binder registers a shortcut set with the service.
type Binder interface {
	Bind(ctx context.Context, shortcuts []shortcut.Shortcut) error
}

// Notifier reports reload progress to a service manager.
type Notifier interface {
	Reloading()
	Reloaded(status string)
}

type State int

const (
	Idle State = iota
	Reloading
)

func (s State) String() string {
	if s == Reloading {
		return "reloading"
	}
	return "idle"
}

type Controller struct {
	path   string
	store  *config.Store
	binder Binder
	notify Notifier

	mu    sync.Mutex // held for a whole reload
	state State
	stMu  sync.Mutex
}

func New(path string, store *config.Store, binder Binder, notify Notifier) *Controller {
	return &Controller{
		path:   path,
		store:  store,
		binder: binder,
		notify: notify,
	}
}

func (c *Controller) State() State {
	c.stMu.Lock()
	defer c.stMu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.stMu.Lock()
	c.state = s
	c.stMu.Unlock()
}

// Reload re-reads the configuration, binds it and swaps the store. The store
// is only replaced after Bind succeeds. Errors wrapping config.ErrRead or
// config.ErrParse are recoverable; any other error came from the service.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(Reloading)
	defer c.setState(Idle)

	log.ReloadStart(c.path)
	c.notify.Reloading()

	cfg, err := config.Load(c.path)
	if err != nil {
		log.ReloadDone(0, err)
		c.notify.Reloaded("reload failed, keeping previous configuration")
		return err
	}

	if err := c.binder.Bind(ctx, shortcut.Collect(cfg)); err != nil {
		err = fmt.Errorf("binding shortcuts: %w", err)
		log.ReloadDone(0, err)
		c.notify.Reloaded("reload failed, shortcut service error")
		return err
	}

	c.store.Swap(cfg)
	log.ReloadDone(len(cfg.Binds), nil)
	c.notify.Reloaded(fmt.Sprintf("%d shortcuts bound", len(cfg.Binds)))
	return nil
}

// Run reloads once per trigger until ctx is done. Bad configuration files
// are logged and skipped; a service error ends Run.
func (c *Controller) Run(ctx context.Context, triggers <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-triggers:
			log.Info("reloading configuration...")
			err := c.Reload(ctx)
			if err == nil || Recoverable(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Recoverable reports whether err only concerns the configuration file.
func Recoverable(err error) bool {
	return errors.Is(err, config.ErrRead) || errors.Is(err, config.ErrParse)
}
