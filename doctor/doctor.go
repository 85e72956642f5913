package doctor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ironbutton/clipboard"
	"ironbutton/config"
	"ironbutton/portal"
)

const portalTimeout = 5 * time.Second

// Doctor runs non-interactive diagnostics against a config file and the
// session bus.
type Doctor struct {
	out      io.Writer
	lookPath func(string) (string, error)
	version  func(context.Context) (uint32, error)
	clipOK   func() bool

	pass lipgloss.Style
	fail lipgloss.Style
}

func New(out io.Writer) *Doctor {
	r := lipgloss.NewRenderer(out)
	return &Doctor{
		out:      out,
		lookPath: exec.LookPath,
		version:  portal.Version,
		clipOK:   clipboard.Available,
		pass:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		fail:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

// Run executes all checks and returns an exit code (0=all pass, 1=any fail).
func (d *Doctor) Run(ctx context.Context, configPath string) int {
	fmt.Fprintln(d.out, "iron-button doctor - system diagnostics")
	fmt.Fprintln(d.out, "=======================================")

	cfg, ok := d.checkConfig(configPath)
	allPass := ok
	if ok && !d.checkActions(cfg) {
		allPass = false
	}
	if !d.checkPortal(ctx) {
		allPass = false
	}

	fmt.Fprintln(d.out)
	if allPass {
		fmt.Fprintln(d.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(d.out, "Some checks failed. See details above.")
	return 1
}

func (d *Doctor) passf(format string, args ...any) {
	fmt.Fprintf(d.out, "  %s: %s\n", d.pass.Render("PASS"), fmt.Sprintf(format, args...))
}

func (d *Doctor) failf(format string, args ...any) {
	fmt.Fprintf(d.out, "  %s: %s\n", d.fail.Render("FAIL"), fmt.Sprintf(format, args...))
}

func (d *Doctor) checkConfig(path string) (*config.Configuration, bool) {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[1/3] Configuration")
	fmt.Fprintf(d.out, "Reading %s...\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		d.failf("%v", err)
		return nil, false
	}
	d.passf("%d binds", len(cfg.Binds))
	return cfg, true
}

func (d *Doctor) checkActions(cfg *config.Configuration) bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[2/3] Actions")

	ids := make([]string, 0, len(cfg.Binds))
	for id := range cfg.Binds {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ok := true
	checked := map[string]bool{}
	for _, id := range ids {
		b := cfg.Binds[id]
		for _, a := range []config.Action{b.OnDown, b.OnUp} {
			switch a := a.(type) {
			case config.Run:
				if checked[a.Program] {
					continue
				}
				checked[a.Program] = true
				path, err := d.lookPath(a.Program)
				if err != nil {
					d.failf("%s: %s not found", id, a.Program)
					ok = false
					continue
				}
				d.passf("%s -> %s", a.Program, path)
			case config.Copy:
				if checked["\x00clipboard"] {
					continue
				}
				checked["\x00clipboard"] = true
				if !d.clipOK() {
					d.failf("%s: %v", id, clipboard.ErrUnavailable)
					ok = false
					continue
				}
				d.passf("clipboard available")
			}
		}
	}
	if len(checked) == 0 {
		fmt.Fprintln(d.out, "  no actions configured")
	}
	return ok
}

func (d *Doctor) checkPortal(ctx context.Context) bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[3/3] GlobalShortcuts portal")

	ctx, cancel := context.WithTimeout(ctx, portalTimeout)
	defer cancel()
	v, err := d.version(ctx)
	if err != nil {
		d.failf("portal unreachable: %v", err)
		fmt.Fprintln(d.out, "  Try --backend x11, or install xdg-desktop-portal with a GlobalShortcuts backend")
		return false
	}
	d.passf("org.freedesktop.portal.GlobalShortcuts version %d", v)
	return true
}
