// Package seat acquires the display and input devices a session may use.
//
// Two policies exist. Direct opens device nodes itself and needs root or
// membership of the video/input groups. Seatd asks a running seatd daemon
// for an active session and lets it hand back already permitted
// descriptors. Which one NewDefault returns is fixed at build time with the
// "seatd" build tag.
package seat

import (
	"fmt"
	"os"

	"github.com/bnema/kmsloop/internal/drm"
	"github.com/bnema/kmsloop/internal/logger"
	"golang.org/x/sys/unix"
)

// Acquirer opens devices on behalf of a seat.
type Acquirer interface {
	// SeatName is the seat devices must belong to.
	SeatName() string
	// OpenDevice returns an open, usable descriptor for the device node.
	OpenDevice(path string) (*os.File, error)
	// CloseDevice releases a device obtained from OpenDevice.
	CloseDevice(f *os.File) error
	// Close ends the session.
	Close() error
}

// Direct opens device nodes with plain open(2).
type Direct struct {
	seat string
}

// NewDirect returns the privileged acquirer for seatName.
func NewDirect(seatName string) *Direct {
	if seatName == "" {
		seatName = DefaultSeat
	}
	return &Direct{seat: seatName}
}

func (d *Direct) SeatName() string { return d.seat }

func (d *Direct) OpenDevice(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

func (d *Direct) CloseDevice(f *os.File) error { return f.Close() }

func (d *Direct) Close() error { return nil }

// AcquireCard resolves the display device (override first, then udev
// enumeration on the acquirer's seat) and opens it. Closing the last
// reference to the card hands it back to acq.
func AcquireCard(acq Acquirer, enum *Enumerator, override string) (*drm.Card, error) {
	path := override
	if path == "" {
		var err error
		path, err = enum.FindCard(acq.SeatName())
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("using display device override", "path", path)
	}

	f, err := acq.OpenDevice(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DRM: %w", err)
	}
	logger.Info("opened display device", "path", path, "seat", acq.SeatName())
	return drm.FromFileRelease(f, acq.CloseDevice), nil
}
