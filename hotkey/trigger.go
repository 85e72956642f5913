package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier is an X11 modifier mask.
type Modifier uint32

const (
	ModShift Modifier = 1 << 0
	ModCtrl  Modifier = 1 << 2
	Mod1     Modifier = 1 << 3
	Mod2     Modifier = 1 << 4
	Mod4     Modifier = 1 << 6
)

// Key is an X11 keysym.
type Key uint16

var modifiers = map[string]Modifier{
	"CTRL":    ModCtrl,
	"CONTROL": ModCtrl,
	"SHIFT":   ModShift,
	"ALT":     Mod1,
	"NUM":     Mod2,
	"LOGO":    Mod4,
	"SUPER":   Mod4,
	"META":    Mod4,
}

// X11 keysyms, see keysymdef.h.
var namedKeys = map[string]Key{
	"SPACE":     0x0020,
	"BACKSPACE": 0xff08,
	"TAB":       0xff09,
	"RETURN":    0xff0d,
	"ENTER":     0xff0d,
	"ESCAPE":    0xff1b,
	"ESC":       0xff1b,
	"HOME":      0xff50,
	"LEFT":      0xff51,
	"UP":        0xff52,
	"RIGHT":     0xff53,
	"DOWN":      0xff54,
	"PAGE_UP":   0xff55,
	"PAGE_DOWN": 0xff56,
	"END":       0xff57,
	"PRINT":     0xff61,
	"INSERT":    0xff63,
	"DELETE":    0xffff,
}

const keyF1 Key = 0xffbe

// parseTrigger reads XDG shortcut triggers, e.g. CTRL+ALT+m
// or LOGO+Return.
func parseTrigger(trigger string) ([]Modifier, Key, error) {
	parts := strings.Split(trigger, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil, 0, fmt.Errorf("trigger %q: empty component", trigger)
		}
	}

	var mods []Modifier
	seen := map[Modifier]bool{}
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifiers[strings.ToUpper(p)]
		if !ok {
			return nil, 0, fmt.Errorf("trigger %q: unknown modifier %q", trigger, p)
		}
		if !seen[m] {
			seen[m] = true
			mods = append(mods, m)
		}
	}

	last := parts[len(parts)-1]
	if _, ok := modifiers[strings.ToUpper(last)]; ok {
		return nil, 0, fmt.Errorf("trigger %q has no key", trigger)
	}
	key, err := parseKey(last)
	if err != nil {
		return nil, 0, fmt.Errorf("trigger %q: %w", trigger, err)
	}
	return mods, key, nil
}

func parseKey(name string) (Key, error) {
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			return Key(c), nil
		case c >= 'A' && c <= 'Z':
			return Key(c - 'A' + 'a'), nil
		}
		return 0, fmt.Errorf("unsupported key %q", name)
	}

	upper := strings.ToUpper(name)
	if k, ok := namedKeys[upper]; ok {
		return k, nil
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(upper, "F")); err == nil && upper[0] == 'F' && n >= 1 && n <= 12 {
		return keyF1 + Key(n-1), nil
	}
	return 0, fmt.Errorf("unsupported key %q", name)
}
