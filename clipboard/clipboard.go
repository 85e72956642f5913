// Package clipboard wraps the system clipboard. On Linux it shells out to
// xclip, xsel or wl-copy, whichever is installed.
package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard utility found (install xclip, xsel or wl-clipboard)")

// Available reports whether a clipboard utility was found at startup.
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if !Available() {
		return ErrUnavailable
	}
	return cb.WriteAll(text)
}
