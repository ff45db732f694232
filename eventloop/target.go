package eventloop

import (
	"sync"

	"github.com/bnema/kmsloop/internal/drm"
	"github.com/bnema/kmsloop/internal/fbdev"
	"github.com/bnema/kmsloop/internal/input"
	"github.com/bnema/kmsloop/internal/kms"
	"github.com/bnema/kmsloop/internal/logger"
	"github.com/bnema/kmsloop/internal/reactor"
	"github.com/bnema/kmsloop/internal/xkb"
)

// WindowTarget is the state shared by the loop and its window. It is
// passed to every callback and lives as long as the loop.
type WindowTarget struct {
	card   *drm.Card
	fb     *fbdev.Device
	output *kms.Result

	monitors []MonitorHandle
	cursor   *input.Cursor
	sink     *sink
	redraw   *reactor.Ping
}

func newWindowTarget(monitors []MonitorHandle) (*WindowTarget, error) {
	p, err := reactor.NewPing()
	if err != nil {
		return nil, err
	}
	return &WindowTarget{
		monitors: monitors,
		cursor:   &input.Cursor{},
		sink:     &sink{},
		redraw:   p,
	}, nil
}

// PrimaryMonitor returns the output the loop drives.
func (t *WindowTarget) PrimaryMonitor() MonitorHandle {
	if len(t.monitors) == 0 {
		return MonitorHandle{ScaleFactor: 1}
	}
	return t.monitors[0]
}

// AvailableMonitors lists every output known at startup, primary first.
func (t *WindowTarget) AvailableMonitors() []MonitorHandle {
	return append([]MonitorHandle(nil), t.monitors...)
}

// CursorPosition returns the pointer position.
func (t *WindowTarget) CursorPosition() PhysicalPosition {
	x, y := t.cursor.Position()
	return PhysicalPosition{X: x, Y: y}
}

func (t *WindowTarget) size() PhysicalSize {
	return t.PrimaryMonitor().Size
}

func (t *WindowTarget) close() {
	if t.card != nil {
		if err := t.card.Close(); err != nil {
			logger.Warn("failed to close display device", "err", err)
		}
	}
	if t.fb != nil {
		if err := t.fb.Close(); err != nil {
			logger.Warn("failed to close framebuffer", "err", err)
		}
	}
	t.redraw.Close()
}

// sink is the window event queue. The loop swaps the buffer out before
// delivering so callbacks may push while it iterates.
type sink struct {
	mu  sync.Mutex
	buf []Event
}

func (s *sink) push(ev Event) {
	s.mu.Lock()
	s.buf = append(s.buf, ev)
	s.mu.Unlock()
}

// swap installs back (emptied) as the new buffer and returns the old one.
func (s *sink) swap(back []Event) []Event {
	clear(back)
	s.mu.Lock()
	out := s.buf
	s.buf = back[:0]
	s.mu.Unlock()
	return out
}

// sinkHandler turns input backend callbacks into window events.
type sinkHandler struct {
	t *WindowTarget
}

var _ input.Handler = sinkHandler{}

func state(pressed bool) ElementState {
	if pressed {
		return Pressed
	}
	return Released
}

func (h sinkHandler) KeyboardInput(ev input.KeyEvent) {
	h.t.sink.push(KeyboardInput{
		Window:    MainWindow,
		ScanCode:  uint32(ev.Code),
		State:     state(ev.Pressed),
		Modifiers: ModifiersState(ev.Modifiers),
	})
}

func (h sinkHandler) ReceivedCharacter(r rune) {
	h.t.sink.push(ReceivedCharacter{Window: MainWindow, Char: r})
}

func (h sinkHandler) ModifiersChanged(m xkb.Modifiers) {
	h.t.sink.push(ModifiersChanged{Window: MainWindow, Modifiers: ModifiersState(m)})
}

func (h sinkHandler) CursorMoved(x, y float64) {
	h.t.sink.push(CursorMoved{Window: MainWindow, Position: PhysicalPosition{X: x, Y: y}})
}

func (h sinkHandler) MouseInput(button uint16, pressed bool) {
	h.t.sink.push(MouseInput{Window: MainWindow, State: state(pressed), Button: MouseButton{Code: button}})
}

func (h sinkHandler) MouseWheel(dx, dy float64) {
	h.t.sink.push(MouseWheel{Window: MainWindow, DeltaX: dx, DeltaY: dy})
}

func (h sinkHandler) Touch(t input.Touch) {
	h.t.sink.push(Touch{
		Window:   MainWindow,
		ID:       t.ID,
		Phase:    TouchPhase(t.Phase),
		Location: PhysicalPosition{X: t.X, Y: t.Y},
	})
}
