// Package shutdown registers the process signals the daemon reacts to.
package shutdown

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Notify delivers termination requests (SIGINT, SIGTERM) on ch.
func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, unix.SIGTERM)
}

// Hangup delivers SIGHUP, the reload request, on ch.
func Hangup(ch chan os.Signal) {
	signal.Notify(ch, unix.SIGHUP)
}

func Stop(ch chan os.Signal) {
	signal.Stop(ch)
}
