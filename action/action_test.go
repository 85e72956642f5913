package action

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ironbutton/config"
	"ironbutton/log"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestRunSpawnsWithArguments(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "out.txt")

	e := New()
	e.Execute(config.Run{Program: sh, Arguments: []string{"-c", `echo "$0 $1" > "$2"`, "set", "Master", out}})

	waitFor(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && strings.TrimSpace(string(data)) == "set Master"
	})
}

func TestRunDoesNotWait(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	var cmd *exec.Cmd
	e := New()
	e.started = func(c *exec.Cmd) { cmd = c }

	start := time.Now()
	e.Execute(config.Run{Program: sleep, Arguments: []string{"2"}})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Execute blocked for %v", elapsed)
	}
	if cmd == nil {
		t.Fatal("command was not started")
	}
	cmd.Process.Kill()
}

func TestRunSpawnFailureIsLogged(t *testing.T) {
	var buf syncBuffer
	log.Init(&buf, false)
	t.Cleanup(log.Close)

	e := New()
	e.Execute(config.Run{Program: filepath.Join(t.TempDir(), "missing")})

	if !strings.Contains(buf.String(), "spawning command failed") {
		t.Errorf("expected spawn failure in log, got: %q", buf.String())
	}
}

func TestCopy(t *testing.T) {
	got := make(chan string, 1)
	e := New()
	e.copyText = func(s string) error {
		got <- s
		return nil
	}

	e.Execute(config.Copy{Text: "hello"})

	select {
	case s := <-got:
		if s != "hello" {
			t.Errorf("copied %q, want hello", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for copy")
	}
}

func TestCopyFailureIsLogged(t *testing.T) {
	var buf syncBuffer
	log.Init(&buf, false)
	t.Cleanup(log.Close)

	e := New()
	e.copyText = func(string) error { return errors.New("no clipboard") }
	e.Execute(config.Copy{Text: "x"})

	waitFor(t, func() bool { return strings.Contains(buf.String(), "no clipboard") })
}

func TestNilActionIgnored(t *testing.T) {
	New().Execute(nil) // should not panic
}
