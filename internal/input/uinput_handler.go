package input

import (
	"fmt"
	"sync"

	"github.com/ThomasT75/uinput"
	"github.com/bnema/kmsloop/internal/xkb"
	evdev "github.com/gvalkov/golang-evdev"
)

// DefaultUinputPath is the uinput control node.
const DefaultUinputPath = "/dev/uinput"

// Injector creates a virtual keyboard and mouse and writes events through
// them, so a running loop can be driven without physical devices.
type Injector struct {
	mu       sync.Mutex
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
	closed   bool
}

// NewInjector creates both virtual devices.
func NewInjector(path string) (*Injector, error) {
	if path == "" {
		path = DefaultUinputPath
	}
	keyboard, err := uinput.CreateKeyboard(path, []byte("kmsloop virtual keyboard"))
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
	}
	mouse, err := uinput.CreateMouse(path, []byte("kmsloop virtual mouse"))
	if err != nil {
		keyboard.Close()
		return nil, fmt.Errorf("failed to create virtual mouse: %w", err)
	}
	return &Injector{keyboard: keyboard, mouse: mouse}, nil
}

// Key presses and releases one key.
func (i *Injector) Key(code uint16) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrHandlerClosed
	}
	return i.keyboard.KeyPress(int(code))
}

// Hold presses a key without releasing it; Release ends it.
func (i *Injector) Hold(code uint16) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrHandlerClosed
	}
	return i.keyboard.KeyDown(int(code))
}

func (i *Injector) Release(code uint16) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrHandlerClosed
	}
	return i.keyboard.KeyUp(int(code))
}

// Type enters text using the keys km maps each character to.
func (i *Injector) Type(km *xkb.Keymap, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrHandlerClosed
	}

	for _, r := range text {
		code, shift, ok := km.KeyFor(r)
		if !ok {
			return fmt.Errorf("%w: no key for %q in %s", ErrInvalidEvent, r, km.LayoutName())
		}
		if shift {
			if err := i.keyboard.KeyDown(evdev.KEY_LEFTSHIFT); err != nil {
				return err
			}
		}
		err := i.keyboard.KeyPress(int(code))
		if shift {
			if uerr := i.keyboard.KeyUp(evdev.KEY_LEFTSHIFT); err == nil {
				err = uerr
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Move moves the pointer relatively.
func (i *Injector) Move(dx, dy int32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrHandlerClosed
	}
	return i.mouse.Move(dx, dy)
}

// Click presses and releases a button: "left", "right" or "middle".
func (i *Injector) Click(button string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrHandlerClosed
	}
	switch button {
	case "left", "":
		return i.mouse.LeftClick()
	case "right":
		return i.mouse.RightClick()
	case "middle":
		return i.mouse.MiddleClick()
	default:
		return fmt.Errorf("%w: unknown button %q", ErrInvalidEvent, button)
	}
}

// Scroll sends wheel steps; positive dy scrolls up.
func (i *Injector) Scroll(dx, dy int32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrHandlerClosed
	}
	if dy != 0 {
		if err := i.mouse.Wheel(false, dy); err != nil {
			return err
		}
	}
	if dx != 0 {
		return i.mouse.Wheel(true, dx)
	}
	return nil
}

// Close destroys both devices.
func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true

	err := i.mouse.Close()
	if kerr := i.keyboard.Close(); err == nil {
		err = kerr
	}
	return err
}
