package eventloop

import (
	"github.com/bnema/kmsloop/internal/logger"
)

// Window is the single fullscreen surface. Every window of a loop shares
// the same output, so creating several is allowed but pointless.
type Window struct {
	t *WindowTarget
}

// NewWindow returns the window of t. It may be called from a callback.
func NewWindow(t *WindowTarget) *Window {
	return &Window{t: t}
}

func (w *Window) ID() WindowID { return MainWindow }

// InnerSize is the size of the output.
func (w *Window) InnerSize() PhysicalSize { return w.t.size() }

// OuterSize equals InnerSize; there are no decorations.
func (w *Window) OuterSize() PhysicalSize { return w.t.size() }

func (w *Window) ScaleFactor() float64 { return 1 }

// SetCursorPosition warps the pointer. The next relative motion starts
// from p.
func (w *Window) SetCursorPosition(p PhysicalPosition) {
	w.t.cursor.Set(p.X, p.Y)
}

// RequestRedraw queues a RedrawRequested for the next iteration. Requests
// made before that iteration coalesce. Safe for concurrent use.
func (w *Window) RequestRedraw() {
	if err := w.t.redraw.Ping(); err != nil {
		logger.Debug("redraw request dropped", "err", err)
	}
}

func (w *Window) CurrentMonitor() MonitorHandle { return w.t.PrimaryMonitor() }

// Fullscreen describes how the window covers its monitor.
type Fullscreen struct {
	Monitor   MonitorHandle
	Exclusive VideoMode
}

// Fullscreen always reports exclusive fullscreen in the current mode.
func (w *Window) Fullscreen() Fullscreen {
	mon := w.t.PrimaryMonitor()
	return Fullscreen{Monitor: mon, Exclusive: mon.Mode()}
}

// RawHandle identifies what a renderer needs to present frames. Plane,
// Connector and Crtc are zero on the framebuffer variant.
type RawHandle struct {
	Fd        int
	Plane     uint32
	Connector uint32
	Crtc      uint32
}

func (w *Window) RawHandle() RawHandle {
	switch {
	case w.t.card != nil:
		h := RawHandle{Fd: int(w.t.card.Fd())}
		if o := w.t.output; o != nil {
			h.Plane = o.Plane
			h.Connector = o.Connector.ID
			h.Crtc = o.Crtc.ID
		}
		return h
	case w.t.fb != nil:
		return RawHandle{Fd: int(w.t.fb.Fd())}
	}
	return RawHandle{Fd: -1}
}

// The console has no window manager; these do nothing.

func (w *Window) SetTitle(string)           {}
func (w *Window) SetVisible(bool)           {}
func (w *Window) SetResizable(bool)         {}
func (w *Window) SetDecorations(bool)       {}
func (w *Window) SetMinimized(bool)         {}
func (w *Window) SetMaximized(bool)         {}
func (w *Window) SetCursorVisible(bool)     {}
func (w *Window) SetInnerSize(PhysicalSize) {}
