package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Ping is a coalescing cross-goroutine wake signal backed by an eventfd.
// Any number of pings between two dispatches fire the callback once.
type Ping struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

// NewPing creates the eventfd.
func NewPing() (*Ping, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &Ping{fd: fd}, nil
}

// Ping wakes the reactor. Safe for concurrent use.
func (p *Ping) Ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.fd, buf[:])
	// a saturated counter is still pending
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// drain resets the counter and reports whether it was set.
func (p *Ping) drain() bool {
	var buf [8]byte
	n, err := unix.Read(p.fd, buf[:])
	return err == nil && n == 8 && binary.NativeEndian.Uint64(buf[:]) > 0
}

// Close releases the eventfd. Later pings return ErrClosed.
func (p *Ping) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}

// AddPing registers p; fn runs once per dispatch in which p was pinged.
func (r *Reactor) AddPing(p *Ping, fn func()) (*Registration, error) {
	return r.AddFd(p.fd, func() error {
		if p.drain() {
			fn()
		}
		return nil
	})
}
