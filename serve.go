package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"ironbutton/action"
	"ironbutton/config"
	"ironbutton/dispatch"
	"ironbutton/log"
	"ironbutton/reload"
	"ironbutton/shortcut"
	"ironbutton/shutdown"
)

type notifier interface {
	reload.Notifier
	Ready(status string)
}

type daemon struct {
	gateway shortcut.Gateway
	path    string
	backend string
	watch   bool
	notify  notifier
	exec    dispatch.Executor

	// hangup delivers reload signals; nil means SIGHUP.
	hangup chan os.Signal
}

// serve registers the initial config and runs both dispatchers and the
// reload controller until ctx is done or one of them fails. Reload signals
// are forwarded before the first Bind, so a SIGHUP that follows READY is
// never lost.
func serve(ctx context.Context, d daemon, cfg *config.Configuration) error {
	if d.hangup == nil {
		d.hangup = make(chan os.Signal, 1)
		shutdown.Hangup(d.hangup)
		defer shutdown.Stop(d.hangup)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	triggers := reload.Triggers()
	reload.ForwardSignals(ctx, d.hangup, triggers)

	if err := d.gateway.Bind(ctx, shortcut.Collect(cfg)); err != nil {
		return fmt.Errorf("binding shortcuts: %w", err)
	}
	store := config.NewStore(cfg)
	if d.exec == nil {
		d.exec = action.New()
	}

	status := fmt.Sprintf("%d shortcuts bound", len(cfg.Binds))
	d.notify.Ready(status)
	log.SessionStart(d.backend, d.path, len(cfg.Binds))

	if d.watch {
		if err := reload.Watch(ctx, d.path, triggers); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	disp := dispatch.New(store, d.exec)
	ctrl := reload.New(d.path, store, d.gateway, d.notify)

	g.Go(func() error {
		return disp.Run(ctx, shortcut.Down, d.gateway.Activated())
	})
	g.Go(func() error {
		return disp.Run(ctx, shortcut.Up, d.gateway.Deactivated())
	})
	g.Go(func() error {
		return ctrl.Run(ctx, triggers)
	})

	if err := g.Wait(); err != nil {
		log.Error("daemon stopped: " + err.Error())
		return err
	}
	return nil
}
