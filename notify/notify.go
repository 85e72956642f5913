// Package notify reports readiness and reload progress to systemd. Outside
// a Type=notify(-reload) unit every call is a no-op.
package notify

import (
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sys/unix"

	"ironbutton/log"
)

type Systemd struct {
	send func(state string) (bool, error)
}

func New() *Systemd {
	return &Systemd{send: func(state string) (bool, error) {
		return daemon.SdNotify(false, state)
	}}
}

func (s *Systemd) Ready(status string) {
	s.notify(daemon.SdNotifyReady, "STATUS="+status)
}

// Reloading must carry the current CLOCK_MONOTONIC time for
// Type=notify-reload units.
func (s *Systemd) Reloading() {
	s.notify(daemon.SdNotifyReloading, fmt.Sprintf("MONOTONIC_USEC=%d", monotonicUsec()))
}

func (s *Systemd) Reloaded(status string) {
	s.notify(daemon.SdNotifyReady, "STATUS="+status)
}

func (s *Systemd) notify(fields ...string) {
	if _, err := s.send(strings.Join(fields, "\n")); err != nil {
		log.Warnf("sd_notify: %v", err)
	}
}

func monotonicUsec() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Nano() / 1000
}
