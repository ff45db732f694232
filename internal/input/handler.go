// Package input translates evdev device streams into pointer, touch and
// keyboard events.
package input

import (
	"errors"
	"sync"

	"github.com/bnema/kmsloop/internal/xkb"
)

var (
	// ErrHandlerClosed is returned when operating on a closed injector.
	ErrHandlerClosed = errors.New("handler is closed")
	// ErrInvalidEvent is returned for events the injector cannot express.
	ErrInvalidEvent = errors.New("invalid event")
)

// KeyEvent is one key transition.
type KeyEvent struct {
	// Code is the evdev key code.
	Code      uint16
	Pressed   bool
	Modifiers xkb.Modifiers
}

// TouchPhase is the stage of a touch contact.
type TouchPhase int

const (
	TouchStarted TouchPhase = iota
	TouchMoved
	TouchEnded
)

// Touch is a single contact position in display coordinates.
type Touch struct {
	ID    int32
	Phase TouchPhase
	X, Y  float64
}

// Handler receives translated events, in device order. It is called from
// the reactor goroutine only.
type Handler interface {
	KeyboardInput(ev KeyEvent)
	ReceivedCharacter(r rune)
	ModifiersChanged(m xkb.Modifiers)
	CursorMoved(x, y float64)
	// MouseInput reports a pointer button by its evdev code.
	MouseInput(button uint16, pressed bool)
	MouseWheel(dx, dy float64)
	Touch(t Touch)
}

// Cursor is the pointer position shared between the input backend and
// callers warping the pointer.
type Cursor struct {
	mu   sync.Mutex
	x, y float64
}

// Position returns the current position.
func (c *Cursor) Position() (x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.y
}

// Set moves the cursor to an absolute position.
func (c *Cursor) Set(x, y float64) {
	c.mu.Lock()
	c.x, c.y = x, y
	c.mu.Unlock()
}

// Move applies a relative motion clamped to [0,maxX]x[0,maxY] and returns
// the new position. A non-positive bound disables clamping on that axis.
func (c *Cursor) Move(dx, dy, maxX, maxY float64) (x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x = clamp(c.x+dx, maxX)
	c.y = clamp(c.y+dy, maxY)
	return c.x, c.y
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
