// Package eventloop drives one fullscreen surface on a Linux console
// without a display server.
//
// An EventLoop owns the display device and the input devices of a seat.
// RunReturn calls the application back for every event in a fixed order:
// NewEvents, queued user events, window events in arrival order,
// MainEventsCleared and RedrawEventsCleared. LoopDestroyed comes last.
package eventloop

import (
	"fmt"
	"time"
)

// Event is anything delivered to the application callback.
type Event interface {
	isEvent()
}

// WindowID identifies the single window of a loop.
type WindowID uint64

// MainWindow is the ID every window of a loop shares.
const MainWindow WindowID = 1

// StartCauseKind says why an iteration began.
type StartCauseKind int

const (
	CauseInit StartCauseKind = iota
	CausePoll
	CauseWaitCancelled
	CauseResumeTimeReached
)

func (k StartCauseKind) String() string {
	switch k {
	case CauseInit:
		return "Init"
	case CausePoll:
		return "Poll"
	case CauseWaitCancelled:
		return "WaitCancelled"
	case CauseResumeTimeReached:
		return "ResumeTimeReached"
	}
	return fmt.Sprintf("StartCauseKind(%d)", int(k))
}

// StartCause carries the wait bounds of the previous dispatch. Start and
// RequestedResume are zero when they do not apply.
type StartCause struct {
	Kind            StartCauseKind
	Start           time.Time
	RequestedResume time.Time
}

// NewEvents opens every iteration.
type NewEvents struct{ Cause StartCause }

// UserEvent carries a value sent through a Proxy.
type UserEvent[T any] struct{ Value T }

// RedrawRequested asks the application to paint.
type RedrawRequested struct{ Window WindowID }

// ElementState is the state of a key or button.
type ElementState int

const (
	Released ElementState = iota
	Pressed
)

func (s ElementState) String() string {
	if s == Pressed {
		return "Pressed"
	}
	return "Released"
}

// ModifiersState is the set of held modifiers.
type ModifiersState uint8

const (
	ModShift ModifiersState = 1 << iota
	ModCtrl
	ModAlt
	ModLogo
)

func (m ModifiersState) Shift() bool { return m&ModShift != 0 }
func (m ModifiersState) Ctrl() bool  { return m&ModCtrl != 0 }
func (m ModifiersState) Alt() bool   { return m&ModAlt != 0 }
func (m ModifiersState) Logo() bool  { return m&ModLogo != 0 }

// KeyboardInput reports one key transition. ScanCode is the evdev key code.
type KeyboardInput struct {
	Window    WindowID
	ScanCode  uint32
	State     ElementState
	Modifiers ModifiersState
}

// ReceivedCharacter is the character a key press produced.
type ReceivedCharacter struct {
	Window WindowID
	Char   rune
}

// ModifiersChanged reports a new modifier set.
type ModifiersChanged struct {
	Window    WindowID
	Modifiers ModifiersState
}

// PhysicalPosition is a position in display pixels.
type PhysicalPosition struct{ X, Y float64 }

// PhysicalSize is a size in display pixels.
type PhysicalSize struct{ Width, Height uint32 }

// CursorMoved carries the pointer position after a motion.
type CursorMoved struct {
	Window   WindowID
	Position PhysicalPosition
}

// MouseButton names a pointer button.
type MouseButton struct {
	// Code is the evdev button code.
	Code uint16
}

var (
	MouseLeft   = MouseButton{Code: 0x110}
	MouseRight  = MouseButton{Code: 0x111}
	MouseMiddle = MouseButton{Code: 0x112}
)

func (b MouseButton) String() string {
	switch b {
	case MouseLeft:
		return "Left"
	case MouseRight:
		return "Right"
	case MouseMiddle:
		return "Middle"
	}
	return fmt.Sprintf("Other(%#x)", b.Code)
}

// MouseInput reports a pointer button transition.
type MouseInput struct {
	Window WindowID
	State  ElementState
	Button MouseButton
}

// MouseWheel reports wheel steps; positive DeltaY scrolls up.
type MouseWheel struct {
	Window         WindowID
	DeltaX, DeltaY float64
}

// TouchPhase is the stage of a touch contact.
type TouchPhase int

const (
	TouchStarted TouchPhase = iota
	TouchMoved
	TouchEnded
)

// Touch reports a contact on a touch screen, scaled to the display.
type Touch struct {
	Window   WindowID
	ID       int32
	Phase    TouchPhase
	Location PhysicalPosition
}

// MainEventsCleared follows the last queued event of an iteration.
type MainEventsCleared struct{}

// RedrawEventsCleared closes an iteration.
type RedrawEventsCleared struct{}

// LoopDestroyed is the final event.
type LoopDestroyed struct{}

func (NewEvents) isEvent()           {}
func (UserEvent[T]) isEvent()        {}
func (RedrawRequested) isEvent()     {}
func (KeyboardInput) isEvent()       {}
func (ReceivedCharacter) isEvent()   {}
func (ModifiersChanged) isEvent()    {}
func (CursorMoved) isEvent()         {}
func (MouseInput) isEvent()          {}
func (MouseWheel) isEvent()          {}
func (Touch) isEvent()               {}
func (MainEventsCleared) isEvent()   {}
func (RedrawEventsCleared) isEvent() {}
func (LoopDestroyed) isEvent()       {}
