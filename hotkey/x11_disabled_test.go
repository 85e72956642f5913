//go:build !(linux && x11)

package hotkey

import (
	"errors"
	"testing"
)

func TestNewWithoutX11Tag(t *testing.T) {
	if _, err := New(); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("got %v", err)
	}
}
