// Package fbdev opens a legacy framebuffer device for the simple output
// variant: no negotiation, one pre-configured output.
package fbdev

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"github.com/bnema/kmsloop/internal/logger"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Legacy framebuffer ioctls; these predate _IOC encoding.
const (
	ioctlGetVScreenInfo = 0x4600
	ioctlGetFScreenInfo = 0x4602

	fixIDLen = 16
)

// Fallback geometry used when the driver reports nothing usable.
const (
	FallbackWidth  = 800
	FallbackHeight = 480
	defaultDepth   = 32
	defaultRefresh = 60
	minSide        = 64
)

// ErrNoFramebuffer is returned when no framebuffer node exists.
var ErrNoFramebuffer = errors.New("fbdev: no framebuffer device found")

type bitfield struct {
	Offset   uint32
	Length   uint32
	MsbRight uint32
}

// varScreenInfo mirrors struct fb_var_screeninfo.
type varScreenInfo struct {
	Xres, Yres               uint32
	XresVirtual, YresVirtual uint32
	Xoffset, Yoffset         uint32
	BitsPerPixel             uint32
	Grayscale                uint32
	Red, Green, Blue, Transp bitfield
	Nonstd                   uint32
	Activate                 uint32
	Height, Width            uint32
	AccelFlags               uint32
	Pixclock                 uint32
	LeftMargin, RightMargin  uint32
	UpperMargin, LowerMargin uint32
	HsyncLen, VsyncLen       uint32
	Sync, Vmode              uint32
	Rotate                   uint32
	Colorspace               uint32
	Reserved                 [4]uint32
}

// Info describes the framebuffer output.
type Info struct {
	Name         string
	Width        uint32
	Height       uint32
	BitsPerPixel uint16
	RefreshHz    uint16
}

// Device is an open framebuffer.
type Device struct {
	file *os.File
	info Info
}

// Info returns the output geometry.
func (d *Device) Info() Info { return d.info }

// Fd returns the raw descriptor.
func (d *Device) Fd() uintptr { return d.file.Fd() }

// Close closes the framebuffer.
func (d *Device) Close() error { return d.file.Close() }

// Open opens the framebuffer at path and reads its geometry.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open fbdev device %s: %w", path, err)
	}

	info := Info{Name: filepath.Base(path)}
	if id, err := fixedID(f.Fd()); err == nil && id != "" {
		info.Name = id
	}

	var v varScreenInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), ioctlGetVScreenInfo, uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		logger.Warn("could not query framebuffer geometry, using fallback", "device", path, "err", errno)
		info = applyGeometry(info, varScreenInfo{})
	} else {
		info = applyGeometry(info, v)
	}

	logger.Info("opened framebuffer", "device", path, "name", info.Name, "width", info.Width, "height", info.Height)
	return &Device{file: f, info: info}, nil
}

func fixedID(fd uintptr) (string, error) {
	// Large enough for fb_fix_screeninfo on every architecture.
	var buf [80]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, ioctlGetFScreenInfo, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	id := buf[:fixIDLen]
	if i := bytes.IndexByte(id, 0); i >= 0 {
		id = id[:i]
	}
	return strings.TrimSpace(string(id)), nil
}

// applyGeometry fills size, depth and refresh from the variable screen info,
// falling back to 800x480 when the reported size is degenerate.
func applyGeometry(info Info, v varScreenInfo) Info {
	if v.Xres < minSide || v.Yres < minSide {
		info.Width, info.Height = FallbackWidth, FallbackHeight
	} else {
		info.Width, info.Height = v.Xres, v.Yres
	}

	info.BitsPerPixel = defaultDepth
	if v.BitsPerPixel != 0 {
		info.BitsPerPixel = uint16(v.BitsPerPixel)
	}

	info.RefreshHz = defaultRefresh
	htotal := uint64(v.Xres) + uint64(v.LeftMargin) + uint64(v.RightMargin) + uint64(v.HsyncLen)
	vtotal := uint64(v.Yres) + uint64(v.UpperMargin) + uint64(v.LowerMargin) + uint64(v.VsyncLen)
	if v.Pixclock != 0 && htotal != 0 && vtotal != 0 {
		// pixclock is in picoseconds per pixel
		d := uint64(v.Pixclock) * htotal * vtotal
		if hz := (1_000_000_000_000 + d/2) / d; hz > 0 && hz < 1000 {
			info.RefreshHz = uint16(hz)
		}
	}
	return info
}

// Find returns the first framebuffer node listed under /sys/class/graphics.
func Find(fs afero.Fs) (string, error) {
	entries, err := afero.ReadDir(fs, "/sys/class/graphics")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoFramebuffer, err)
	}
	var names []string
	for _, e := range entries {
		if isFbNode(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoFramebuffer
	}
	sort.Strings(names)
	return filepath.Join("/dev", names[0]), nil
}

func isFbNode(name string) bool {
	rest, ok := strings.CutPrefix(name, "fb")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
