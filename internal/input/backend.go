package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bnema/kmsloop/internal/logger"
	"github.com/bnema/kmsloop/internal/reactor"
	"github.com/bnema/kmsloop/internal/seat"
	"github.com/bnema/kmsloop/internal/xkb"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// DefaultRepeatInterval is the key repeat period when none is configured.
const DefaultRepeatInterval = 50 * time.Millisecond

// Options configures a Backend.
type Options struct {
	Keymap xkb.RuleNames
	// Locale selects the compose table; ignored unless Compose is set.
	Locale  string
	Compose bool
	// RepeatInterval is the delay before the first repeat and between
	// repeats.
	RepeatInterval time.Duration
	// Width and Height bound the cursor and scale absolute axes.
	Width, Height int
}

// Backend reads evdev devices from the reactor and feeds a Handler.
type Backend struct {
	r        *reactor.Reactor
	h        Handler
	cursor   *Cursor
	state    *xkb.State
	compose  *xkb.ComposeState
	interval time.Duration
	width    float64
	height   float64

	acq     seat.Acquirer
	devices []*Device
	regs    map[*Device]*reactor.Registration

	repeat struct {
		armed bool
		code  uint16
		tok   reactor.TimerToken
	}
}

// New compiles the keymap (and compose table when enabled) and returns a
// backend with no devices.
func New(r *reactor.Reactor, h Handler, cursor *Cursor, opts Options) (*Backend, error) {
	km, err := xkb.Compile(opts.Keymap)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		r:        r,
		h:        h,
		cursor:   cursor,
		state:    km.NewState(),
		interval: opts.RepeatInterval,
		width:    float64(opts.Width),
		height:   float64(opts.Height),
		regs:     make(map[*Device]*reactor.Registration),
	}
	if b.interval <= 0 {
		b.interval = DefaultRepeatInterval
	}

	if opts.Compose {
		table, err := xkb.CompileCompose(opts.Locale)
		if err != nil {
			return nil, err
		}
		b.compose = table.NewState()
	}

	logger.Debug("input backend ready", "layout", km.LayoutName(), "compose", opts.Compose, "repeat", b.interval)
	return b, nil
}

// OpenSeat opens every input device assigned to the acquirer's seat. A
// device that fails to open is skipped.
func (b *Backend) OpenSeat(acq seat.Acquirer, enum *seat.Enumerator) error {
	b.acq = acq
	nodes, err := enum.InputDevices(acq.SeatName())
	if err != nil {
		return fmt.Errorf("failed to assign seat: %w", err)
	}
	for _, n := range nodes {
		if err := b.AddDevice(n.DevNode); err != nil {
			logger.Warn("skipping input device", "node", n.DevNode, "err", err)
		}
	}
	if len(b.devices) == 0 {
		logger.Warn("no input devices available", "seat", acq.SeatName())
	}
	return nil
}

// AddDevice opens one node through the acquirer and starts reading it.
func (b *Backend) AddDevice(path string) error {
	if b.acq == nil {
		return errors.New("no seat opened")
	}
	f, err := b.acq.OpenDevice(path)
	if err != nil {
		return err
	}
	d := newDevice(path, f)
	if err := b.attach(d, int(f.Fd())); err != nil {
		b.acq.CloseDevice(f)
		return err
	}
	d.log().Info("opened input device", "kind", d.Kind)
	return nil
}

func (b *Backend) attach(d *Device, fd int) error {
	reg, err := b.r.AddFd(fd, func() error { return b.readDevice(d) })
	if err != nil {
		return err
	}
	b.regs[d] = reg
	b.devices = append(b.devices, d)
	return nil
}

// Devices returns the devices being read.
func (b *Backend) Devices() []*Device {
	return append([]*Device(nil), b.devices...)
}

// Close stops repeating and releases every device.
func (b *Backend) Close() error {
	b.disarm()
	var errs []error
	for _, d := range b.Devices() {
		if err := b.removeDevice(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) removeDevice(d *Device) error {
	if reg, ok := b.regs[d]; ok {
		reg.Remove()
		delete(b.regs, d)
	}
	for i, x := range b.devices {
		if x == d {
			b.devices = append(b.devices[:i], b.devices[i+1:]...)
			break
		}
	}
	if d.file == nil {
		return nil
	}
	if b.acq != nil {
		return b.acq.CloseDevice(d.file)
	}
	return d.file.Close()
}

func (b *Backend) readDevice(d *Device) error {
	events, err := d.reader.Read()
	if err != nil {
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			return nil
		case errors.Is(err, unix.ENODEV), errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			d.log().Warn("input device gone")
			return b.removeDevice(d)
		}
		return fmt.Errorf("failed to read %s: %w", d.Path, err)
	}
	b.process(d, events)
	return nil
}

func (b *Backend) process(d *Device, events []evdev.InputEvent) {
	for _, ev := range events {
		switch ev.Type {
		case evdev.EV_KEY:
			switch {
			case ev.Code == evdev.BTN_TOUCH:
				if ev.Value != 2 {
					d.frame.touchChanged = true
					d.frame.touching = ev.Value == 1
				}
			case isPointerButton(ev.Code):
				if ev.Value != 2 {
					b.h.MouseInput(ev.Code, ev.Value == 1)
				}
			default:
				b.key(ev.Code, ev.Value)
			}
		case evdev.EV_REL:
			switch ev.Code {
			case evdev.REL_X:
				d.frame.dx += ev.Value
			case evdev.REL_Y:
				d.frame.dy += ev.Value
			case evdev.REL_WHEEL:
				b.h.MouseWheel(0, float64(ev.Value))
			case evdev.REL_HWHEEL:
				b.h.MouseWheel(float64(ev.Value), 0)
			}
		case evdev.EV_ABS:
			switch ev.Code {
			case evdev.ABS_X, evdev.ABS_MT_POSITION_X:
				d.frame.absX = ev.Value
				d.frame.absDirty = true
			case evdev.ABS_Y, evdev.ABS_MT_POSITION_Y:
				d.frame.absY = ev.Value
				d.frame.absDirty = true
			}
		case evdev.EV_SYN:
			switch ev.Code {
			case evdev.SYN_REPORT:
				b.flush(d)
			case evdev.SYN_DROPPED:
				d.log().Debug("events dropped, resetting frame")
				d.frame = frame{touching: d.frame.touching}
			}
		}
	}
}

func isPointerButton(code uint16) bool {
	return code >= evdev.BTN_LEFT && code <= evdev.BTN_TASK
}

// flush emits the motion gathered since the last report.
func (b *Backend) flush(d *Device) {
	f := &d.frame

	if f.dx != 0 || f.dy != 0 {
		x, y := b.cursor.Move(float64(f.dx), float64(f.dy), b.width, b.height)
		b.h.CursorMoved(x, y)
		f.dx, f.dy = 0, 0
	}

	if d.Kind&KindTouch != 0 || f.touchChanged {
		b.flushTouch(d)
	} else if f.absDirty {
		x, y := d.absX.scale(f.absX, b.width), d.absY.scale(f.absY, b.height)
		b.cursor.Set(x, y)
		b.h.CursorMoved(x, y)
	}
	f.absDirty = false
	f.touchChanged = false
}

func (b *Backend) flushTouch(d *Device) {
	f := &d.frame
	t := Touch{X: d.absX.scale(f.absX, b.width), Y: d.absY.scale(f.absY, b.height)}
	switch {
	case f.touchChanged && f.touching:
		t.Phase = TouchStarted
	case f.touchChanged:
		t.Phase = TouchEnded
	case f.absDirty && f.touching:
		t.Phase = TouchMoved
	default:
		return
	}
	b.h.Touch(t)
}

func (b *Backend) key(code uint16, value int32) {
	switch value {
	case 1:
		b.keyDown(code)
	case 0:
		b.keyUp(code)
	}
	// value 2 is the kernel's autorepeat; repeats are generated here
}

func (b *Backend) keyDown(code uint16) {
	if b.state.UpdateKey(code, true) {
		b.h.ModifiersChanged(b.state.Modifiers())
	}
	ev := KeyEvent{Code: code, Pressed: true, Modifiers: b.state.Modifiers()}
	ch := b.character(code)
	b.emitKey(ev, ch)
	b.arm(ev, ch)
}

func (b *Backend) keyUp(code uint16) {
	if b.state.UpdateKey(code, false) {
		b.h.ModifiersChanged(b.state.Modifiers())
	}
	b.h.KeyboardInput(KeyEvent{Code: code, Modifiers: b.state.Modifiers()})
	if b.repeat.armed && b.repeat.code == code {
		b.disarm()
	}
}

func (b *Backend) character(code uint16) rune {
	sym := b.state.Key(code)
	if b.compose == nil {
		return sym.Rune
	}
	switch b.compose.Feed(sym) {
	case xkb.ComposeComposing, xkb.ComposeCancelled:
		return 0
	case xkb.ComposeComposed:
		return b.compose.Composed()
	}
	return sym.Rune
}

func (b *Backend) emitKey(ev KeyEvent, ch rune) {
	b.h.KeyboardInput(ev)
	if ch != 0 {
		b.h.ReceivedCharacter(ch)
	}
}

// arm replaces any running repeat with one for this key. The timer re-arms
// itself until disarm.
func (b *Backend) arm(ev KeyEvent, ch rune) {
	b.disarm()
	b.repeat.code = ev.Code
	b.repeat.tok = b.r.AddTimer(time.Now().Add(b.interval), func(now time.Time) (time.Time, bool) {
		b.emitKey(ev, ch)
		return now.Add(b.interval), true
	})
	b.repeat.armed = true
}

func (b *Backend) disarm() {
	if !b.repeat.armed {
		return
	}
	b.r.CancelTimer(b.repeat.tok)
	b.repeat.armed = false
}

// Repeating reports the key currently repeating, if any.
func (b *Backend) Repeating() (uint16, bool) {
	return b.repeat.code, b.repeat.armed
}
