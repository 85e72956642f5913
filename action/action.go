// Package action performs configured effects. Execution never blocks on
// the effect itself and failures are logged, never returned.
package action

import (
	"io"
	"os"
	"os/exec"

	"ironbutton/clipboard"
	"ironbutton/config"
	"ironbutton/log"
)

type Executor struct {
	stdout, stderr io.Writer
	copyText       func(string) error
	started        func(*exec.Cmd)
}

// New returns an Executor whose children inherit the daemon's stdout and
// stderr.
func New() *Executor {
	return &Executor{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		copyText: clipboard.Copy,
	}
}

func (e *Executor) Execute(a config.Action) {
	switch a := a.(type) {
	case config.Run:
		e.run(a)
	case config.Copy:
		e.copy(a)
	case nil:
	default:
		log.Warnf("unsupported action %q ignored", a.Kind())
	}
}

// run starts the program and reaps it in the background.
func (e *Executor) run(r config.Run) {
	cmd := exec.Command(r.Program, r.Arguments...)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	if err := cmd.Start(); err != nil {
		log.Warnf("spawning command failed: %v", err)
		return
	}
	log.Debugf("spawned %s (pid %d)", r, cmd.Process.Pid)
	if e.started != nil {
		e.started(cmd)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debugf("%s exited: %v", r.Program, err)
		}
	}()
}

func (e *Executor) copy(c config.Copy) {
	go func() {
		if err := e.copyText(c.Text); err != nil {
			log.Warnf("clipboard copy failed: %v", err)
		}
	}()
}
