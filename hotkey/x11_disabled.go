//go:build !(linux && x11)

package hotkey

import (
	"errors"
	"fmt"

	"ironbutton/shortcut"
)

func New() (shortcut.Gateway, error) {
	return nil, fmt.Errorf("x11 backend not built in (rebuild with -tags x11): %w", errors.ErrUnsupported)
}
