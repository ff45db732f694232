package input

import (
	"os"
	"testing"

	"github.com/bnema/kmsloop/internal/xkb"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInjector(t *testing.T) *Injector {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping uinput test in short mode")
	}
	f, err := os.OpenFile(DefaultUinputPath, os.O_WRONLY, 0)
	if err != nil {
		t.Skipf("Cannot open %s: %v", DefaultUinputPath, err)
	}
	f.Close()

	inj, err := NewInjector("")
	if err != nil {
		t.Skipf("Cannot create uinput devices: %v", err)
	}
	t.Cleanup(func() { _ = inj.Close() })
	return inj
}

func TestInjector(t *testing.T) {
	inj := newTestInjector(t)
	km, err := xkb.Compile(xkb.RuleNames{})
	require.NoError(t, err)

	assert.NoError(t, inj.Key(evdev.KEY_A))
	assert.NoError(t, inj.Hold(evdev.KEY_LEFTCTRL))
	assert.NoError(t, inj.Release(evdev.KEY_LEFTCTRL))
	assert.NoError(t, inj.Type(km, "Hi!"))
	assert.ErrorIs(t, inj.Type(km, "ß"), ErrInvalidEvent)

	assert.NoError(t, inj.Move(10, -5))
	assert.NoError(t, inj.Click("left"))
	assert.ErrorIs(t, inj.Click("fourth"), ErrInvalidEvent)
	assert.NoError(t, inj.Scroll(1, -1))

	require.NoError(t, inj.Close())
	assert.NoError(t, inj.Close())
	assert.ErrorIs(t, inj.Move(1, 1), ErrHandlerClosed)
}
