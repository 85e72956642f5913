// Package login starts iron-button with the graphical session by installing
// a systemd user unit.
package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/unit"
)

const UnitName = "iron-button.service"

// manager is the subset of the systemd user manager used here.
type manager interface {
	ReloadContext(ctx context.Context) error
	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []sddbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]sddbus.DisableUnitFileChange, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]sddbus.UnitStatus, error)
	Close()
}

var connect = func(ctx context.Context) (manager, error) {
	conn, err := sddbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to systemd user manager: %w", err)
	}
	return conn, nil
}

func unitPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "systemd", "user", UnitName), nil
}

// unitFile renders a notify-reload service: systemd sends SIGHUP for
// `systemctl --user reload` and waits for READY=1.
func unitFile(exe string, args []string) io.Reader {
	cmd := []string{quote(exe)}
	for _, a := range args {
		cmd = append(cmd, quote(a))
	}
	return unit.Serialize([]*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "Global keyboard shortcut daemon"),
		unit.NewUnitOption("Unit", "PartOf", "graphical-session.target"),
		unit.NewUnitOption("Unit", "After", "graphical-session.target"),
		unit.NewUnitOption("Service", "Type", "notify-reload"),
		unit.NewUnitOption("Service", "ExecStart", strings.Join(cmd, " ")),
		unit.NewUnitOption("Service", "Restart", "on-failure"),
		unit.NewUnitOption("Install", "WantedBy", "graphical-session.target"),
	})
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\$%") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `$$`, `%`, `%%`)
	return `"` + r.Replace(s) + `"`
}

func Enabled() bool {
	path, err := unitPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Enable writes the unit for the running executable with args, enables it
// and (re)starts it.
func Enable(ctx context.Context, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	path, err := unitPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	data, err := io.ReadAll(unitFile(exe, args))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}

	m, err := connect(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if _, _, err := m.EnableUnitFilesContext(ctx, []string{UnitName}, false, true); err != nil {
		return fmt.Errorf("enable %s: %w", UnitName, err)
	}
	if _, err := m.RestartUnitContext(ctx, UnitName, "replace", nil); err != nil {
		return fmt.Errorf("start %s: %w", UnitName, err)
	}
	return nil
}

// Disable stops and removes the unit. It is a no-op when none is installed.
func Disable(ctx context.Context) error {
	path, err := unitPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	m, err := connect(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := m.StopUnitContext(ctx, UnitName, "replace", nil); err != nil {
		return fmt.Errorf("stop %s: %w", UnitName, err)
	}
	if _, err := m.DisableUnitFilesContext(ctx, []string{UnitName}, false); err != nil {
		return fmt.Errorf("disable %s: %w", UnitName, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove unit: %w", err)
	}
	return m.ReloadContext(ctx)
}

// Status returns the unit's active state, or "not installed".
func Status(ctx context.Context) (string, error) {
	if !Enabled() {
		return "not installed", nil
	}
	m, err := connect(ctx)
	if err != nil {
		return "", err
	}
	defer m.Close()

	units, err := m.ListUnitsByNamesContext(ctx, []string{UnitName})
	if err != nil {
		return "", err
	}
	if len(units) == 0 {
		return "installed, not loaded", nil
	}
	return fmt.Sprintf("%s (%s)", units[0].ActiveState, units[0].SubState), nil
}
