package login

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
)

type fakeManager struct {
	calls  []string
	active string
}

func (f *fakeManager) ReloadContext(context.Context) error {
	f.calls = append(f.calls, "reload")
	return nil
}

func (f *fakeManager) EnableUnitFilesContext(_ context.Context, files []string, _, _ bool) (bool, []sddbus.EnableUnitFileChange, error) {
	f.calls = append(f.calls, "enable "+strings.Join(files, ","))
	return false, nil, nil
}

func (f *fakeManager) DisableUnitFilesContext(_ context.Context, files []string, _ bool) ([]sddbus.DisableUnitFileChange, error) {
	f.calls = append(f.calls, "disable "+strings.Join(files, ","))
	return nil, nil
}

func (f *fakeManager) RestartUnitContext(_ context.Context, name, _ string, _ chan<- string) (int, error) {
	f.calls = append(f.calls, "restart "+name)
	return 1, nil
}

func (f *fakeManager) StopUnitContext(_ context.Context, name, _ string, _ chan<- string) (int, error) {
	f.calls = append(f.calls, "stop "+name)
	return 1, nil
}

func (f *fakeManager) ListUnitsByNamesContext(_ context.Context, units []string) ([]sddbus.UnitStatus, error) {
	return []sddbus.UnitStatus{{Name: units[0], ActiveState: f.active, SubState: "running"}}, nil
}

func (f *fakeManager) Close() {}

func withFake(t *testing.T) *fakeManager {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m := &fakeManager{active: "active"}
	orig := connect
	connect = func(context.Context) (manager, error) { return m, nil }
	t.Cleanup(func() { connect = orig })
	return m
}

func TestUnitFile(t *testing.T) {
	data, err := io.ReadAll(unitFile("/opt/iron button/iron-button", []string{"--config", "/home/u/binds.yml", "--watch"}))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{
		"[Service]",
		"Type=notify-reload",
		`ExecStart="/opt/iron button/iron-button" --config /home/u/binds.yml --watch`,
		"WantedBy=graphical-session.target",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("unit missing %q:\n%s", want, s)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"":        `""`,
		"a b":     `"a b"`,
		`say "x"`: `"say \"x\""`,
		"$HOME":   `"$$HOME"`,
		"100%":    `"100%%"`,
	}
	for in, want := range tests {
		if got := quote(in); got != want {
			t.Errorf("quote(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestEnableDisable(t *testing.T) {
	m := withFake(t)
	ctx := t.Context()

	if Enabled() {
		t.Fatal("enabled before Enable")
	}
	if err := Enable(ctx, []string{"--watch"}); err != nil {
		t.Fatal(err)
	}
	if !Enabled() {
		t.Fatal("unit not written")
	}
	path := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "systemd", "user", UnitName)
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}

	status, err := Status(ctx)
	if err != nil || status != "active (running)" {
		t.Errorf("status %q, %v", status, err)
	}

	if err := Disable(ctx); err != nil {
		t.Fatal(err)
	}
	if Enabled() {
		t.Error("unit still present")
	}

	want := []string{
		"reload", "enable " + UnitName, "restart " + UnitName,
		"stop " + UnitName, "disable " + UnitName, "reload",
	}
	if !slices.Equal(m.calls, want) {
		t.Errorf("calls %q, want %q", m.calls, want)
	}
}

func TestDisableNotInstalled(t *testing.T) {
	m := withFake(t)
	if err := Disable(t.Context()); err != nil {
		t.Fatal(err)
	}
	if len(m.calls) != 0 {
		t.Errorf("calls %q", m.calls)
	}
	if s, _ := Status(t.Context()); s != "not installed" {
		t.Errorf("status %q", s)
	}
}
