package eventloop

import (
	"fmt"
	"time"
)

type flowKind int

const (
	flowPoll flowKind = iota
	flowWait
	flowWaitUntil
	flowExit
)

// ControlFlow tells the loop how to wait after an iteration. The zero value
// is Poll.
type ControlFlow struct {
	kind     flowKind
	deadline time.Time
	code     int
}

var (
	// Poll dispatches without blocking.
	Poll = ControlFlow{kind: flowPoll}
	// Wait blocks until an event arrives.
	Wait = ControlFlow{kind: flowWait}
	// Exit stops the loop with code 0.
	Exit = ExitWithCode(0)
)

// WaitUntil blocks until an event arrives or the deadline passes.
func WaitUntil(deadline time.Time) ControlFlow {
	return ControlFlow{kind: flowWaitUntil, deadline: deadline}
}

// ExitWithCode stops the loop; RunReturn returns code.
func ExitWithCode(code int) ControlFlow {
	return ControlFlow{kind: flowExit, code: code}
}

// Set replaces the control flow unless an exit was already requested. An
// exit cannot be taken back.
func (c *ControlFlow) Set(next ControlFlow) {
	if c.kind == flowExit {
		return
	}
	*c = next
}

func (c *ControlFlow) SetPoll()                 { c.Set(Poll) }
func (c *ControlFlow) SetWait()                 { c.Set(Wait) }
func (c *ControlFlow) SetWaitUntil(t time.Time) { c.Set(WaitUntil(t)) }
func (c *ControlFlow) SetExitWithCode(code int) { c.Set(ExitWithCode(code)) }
func (c *ControlFlow) SetExit()                 { c.Set(Exit) }

// ExitCode reports the requested exit code, if any.
func (c ControlFlow) ExitCode() (int, bool) {
	return c.code, c.kind == flowExit
}

// Deadline reports the WaitUntil deadline, if any.
func (c ControlFlow) Deadline() (time.Time, bool) {
	return c.deadline, c.kind == flowWaitUntil
}

func (c ControlFlow) String() string {
	switch c.kind {
	case flowPoll:
		return "Poll"
	case flowWait:
		return "Wait"
	case flowWaitUntil:
		return "WaitUntil(" + c.deadline.Format(time.RFC3339Nano) + ")"
	case flowExit:
		return fmt.Sprintf("ExitWithCode(%d)", c.code)
	}
	return "ControlFlow(?)"
}
