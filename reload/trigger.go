package reload

import (
	"context"
	"os"
)

// Triggers returns a channel for reload requests. Requests arriving while
// one is already pending coalesce.
func Triggers() chan struct{} {
	return make(chan struct{}, 1)
}

// Poke queues a reload request without blocking.
func Poke(triggers chan<- struct{}) {
	select {
	case triggers <- struct{}{}:
	default:
	}
}

// ForwardSignals turns each received signal into a reload request.
func ForwardSignals(ctx context.Context, sigs <-chan os.Signal, triggers chan<- struct{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sigs:
				if !ok {
					return
				}
				Poke(triggers)
			}
		}
	}()
}
