package input

import (
	"bytes"
	"strings"
	"unsafe"

	"github.com/bnema/kmsloop/internal/seat"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// ioctl request encoding (linux _IOC macro)
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'E'<<8 | nr
}

// EVIOCGBIT returns the request reading the capability bits of event type ev.
func EVIOCGBIT(ev, size int) uintptr {
	return ioc(iocRead, uintptr(0x20+ev), uintptr(size))
}

// EVIOCGNAME returns the request reading the device name.
func EVIOCGNAME(size int) uintptr {
	return ioc(iocRead, 0x06, uintptr(size))
}

// EVIOCGABS returns the request reading the range of an absolute axis.
func EVIOCGABS(axis int) uintptr {
	return ioc(iocRead, uintptr(0x40+axis), unsafe.Sizeof(absInfo{}))
}

// EVIOCGRAB is the request for exclusive access.
var EVIOCGRAB = ioc(iocWrite, 0x90, unsafe.Sizeof(int32(0)))

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// axisRange is the reported span of an absolute axis.
type axisRange struct {
	min, max int32
}

func (a axisRange) valid() bool { return a.max > a.min }

// scale maps v from the axis range onto [0,size].
func (a axisRange) scale(v int32, size float64) float64 {
	if !a.valid() || size <= 0 {
		return float64(v)
	}
	return float64(v-a.min) * size / float64(a.max-a.min)
}

func ioctl(fd, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func deviceName(fd uintptr) string {
	buf := make([]byte, 256)
	if err := ioctl(fd, EVIOCGNAME(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return ""
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

func axis(fd uintptr, code int) axisRange {
	var info absInfo
	if err := ioctl(fd, EVIOCGABS(code), unsafe.Pointer(&info)); err != nil {
		return axisRange{}
	}
	return axisRange{min: info.Min, max: info.Max}
}

// capabilities holds the event types and keys a device reports.
type capabilities struct {
	types []byte
	keys  []byte
}

func queryCapabilities(fd uintptr) capabilities {
	c := capabilities{types: make([]byte, 4), keys: make([]byte, 96)}
	if err := ioctl(fd, EVIOCGBIT(0, len(c.types)), unsafe.Pointer(&c.types[0])); err != nil {
		c.types = nil
	}
	if err := ioctl(fd, EVIOCGBIT(evdev.EV_KEY, len(c.keys)), unsafe.Pointer(&c.keys[0])); err != nil {
		c.keys = nil
	}
	return c
}

func testBit(bits []byte, n int) bool {
	if n/8 >= len(bits) {
		return false
	}
	return bits[n/8]&(1<<(n%8)) != 0
}

func (c capabilities) has(evType int) bool  { return testBit(c.types, evType) }
func (c capabilities) hasKey(code int) bool { return testBit(c.keys, code) }

// Kind describes what a device is used as.
type Kind uint8

const (
	KindKeyboard Kind = 1 << iota
	KindPointer
	KindTouch
)

func (c capabilities) kind() Kind {
	var k Kind
	if c.hasKey(evdev.KEY_A) || c.hasKey(evdev.KEY_ENTER) || c.hasKey(evdev.KEY_SPACE) {
		k |= KindKeyboard
	}
	if c.has(evdev.EV_REL) || c.hasKey(evdev.BTN_LEFT) {
		k |= KindPointer
	}
	if c.has(evdev.EV_ABS) && c.hasKey(evdev.BTN_TOUCH) {
		k |= KindTouch
	} else if c.has(evdev.EV_ABS) {
		k |= KindPointer
	}
	return k
}

func (k Kind) String() string {
	var parts []string
	if k&KindKeyboard != 0 {
		parts = append(parts, "keyboard")
	}
	if k&KindPointer != 0 {
		parts = append(parts, "pointer")
	}
	if k&KindTouch != 0 {
		parts = append(parts, "touch")
	}
	if len(parts) == 0 {
		return "other"
	}
	return strings.Join(parts, "+")
}

// Identify opens path through acq just long enough to read its name and
// kind.
func Identify(acq seat.Acquirer, path string) (string, Kind, error) {
	f, err := acq.OpenDevice(path)
	if err != nil {
		return "", 0, err
	}
	defer acq.CloseDevice(f)
	fd := f.Fd()
	return deviceName(fd), queryCapabilities(fd).kind(), nil
}
