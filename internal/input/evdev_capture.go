package input

import (
	"os"

	"github.com/bnema/kmsloop/internal/logger"
	"github.com/charmbracelet/log"
	evdev "github.com/gvalkov/golang-evdev"
)

// EventReader yields raw events from one device. *evdev.InputDevice
// implements it.
type EventReader interface {
	Read() ([]evdev.InputEvent, error)
}

// Device is an open evdev node and its per-frame translation state.
type Device struct {
	Path string
	Name string
	Kind Kind

	file   *os.File
	reader EventReader
	absX   axisRange
	absY   axisRange
	frame  frame
	lg     *log.Logger
}

// log returns a logger tagged with the device node and name.
func (d *Device) log() *log.Logger {
	if d.lg == nil {
		d.lg = logger.With("node", d.Path, "name", d.Name)
	}
	return d.lg
}

// frame accumulates the events between two SYN_REPORTs.
type frame struct {
	dx, dy       int32
	absX, absY   int32
	absDirty     bool
	touchChanged bool
	touching     bool
}

// newDevice wraps an opened node. The capability and axis queries fail
// harmlessly on anything that is not an evdev node.
func newDevice(path string, f *os.File) *Device {
	fd := f.Fd()
	caps := queryCapabilities(fd)
	d := &Device{
		Path:   path,
		Name:   deviceName(fd),
		Kind:   caps.kind(),
		file:   f,
		reader: &evdev.InputDevice{Fn: path, File: f},
		absX:   axis(fd, evdev.ABS_X),
		absY:   axis(fd, evdev.ABS_Y),
	}
	if !d.absX.valid() {
		d.absX = axis(fd, evdev.ABS_MT_POSITION_X)
		d.absY = axis(fd, evdev.ABS_MT_POSITION_Y)
	}
	return d
}
