// Package drm wraps a kernel mode-setting device node.
//
// Card is the display handle: it owns the open file and closes it exactly
// once, after every clone obtained through Clone has been closed.
package drm

import (
	"fmt"
	"os"
	"sync/atomic"
)

type handle struct {
	file    *os.File
	release func(*os.File) error
	refs    atomic.Int32
}

// Card is a reference-counted handle to an open DRM device node.
type Card struct {
	shared *handle
	closed atomic.Bool
}

// Open opens the device node read-write. This needs root or membership of
// the group owning the node (usually "video").
func Open(path string) (*Card, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return FromFile(f), nil
}

// FromFile adopts an already open device, such as one handed back by a seat
// session. The Card takes ownership of f.
func FromFile(f *os.File) *Card {
	return FromFileRelease(f, (*os.File).Close)
}

// FromFileRelease is FromFile with release called instead of f.Close once
// the last reference is closed.
func FromFileRelease(f *os.File, release func(*os.File) error) *Card {
	h := &handle{file: f, release: release}
	h.refs.Store(1)
	return &Card{shared: h}
}

// Clone returns a new reference to the same device.
func (c *Card) Clone() *Card {
	c.shared.refs.Add(1)
	return &Card{shared: c.shared}
}

// Fd returns the raw descriptor. It stays valid until the last reference is closed.
func (c *Card) Fd() uintptr {
	return c.shared.file.Fd()
}

// Name returns the path the device was opened from.
func (c *Card) Name() string {
	return c.shared.file.Name()
}

// Close drops this reference. The device is closed when the last reference
// goes away; closing the same reference twice is a no-op.
func (c *Card) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.shared.refs.Add(-1) == 0 {
		return c.shared.release(c.shared.file)
	}
	return nil
}
