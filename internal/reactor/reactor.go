// Package reactor is a single-threaded poll(2) event dispatcher.
//
// A Reactor multiplexes file descriptors and timers. It must only be used
// from one goroutine; Ping and Channel are the only types that may be
// touched from others, and they wake the reactor through an eventfd.
package reactor

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sys/unix"
)

// Forever makes Dispatch block until a source is ready.
const Forever time.Duration = -1

// ErrClosed is returned by operations on a closed reactor or channel.
var ErrClosed = errors.New("reactor: closed")

// Reactor owns the registered sources.
type Reactor struct {
	sources []*source
	timers  timerHeap
	live    map[TimerToken]bool
	nextTok TimerToken
	closed  bool
	pfds    []unix.PollFd
}

type source struct {
	fd      int
	ready   func() error
	removed bool
}

// Registration identifies a registered descriptor.
type Registration struct {
	r   *Reactor
	src *source
}

// Remove unregisters the descriptor. The descriptor itself is not closed.
func (reg *Registration) Remove() {
	if reg == nil || reg.src.removed {
		return
	}
	reg.src.removed = true
	srcs := reg.r.sources
	for i, s := range srcs {
		if s == reg.src {
			reg.r.sources = append(srcs[:i], srcs[i+1:]...)
			break
		}
	}
}

// New returns an empty reactor.
func New() *Reactor {
	return &Reactor{live: make(map[TimerToken]bool)}
}

// AddFd calls ready from Dispatch whenever fd is readable or hung up. An
// error from ready is returned by Dispatch.
func (r *Reactor) AddFd(fd int, ready func() error) (*Registration, error) {
	if r.closed {
		return nil, ErrClosed
	}
	src := &source{fd: fd, ready: ready}
	r.sources = append(r.sources, src)
	return &Registration{r: r, src: src}, nil
}

// Dispatch waits up to timeout for sources to become ready, then runs the
// callbacks of ready descriptors and expired timers once. A negative timeout
// waits indefinitely. Pending timers shorten the wait.
func (r *Reactor) Dispatch(timeout time.Duration) error {
	if r.closed {
		return ErrClosed
	}

	wait := timeout
	if next, ok := r.nextDeadline(); ok {
		until := time.Until(next)
		if until < 0 {
			until = 0
		}
		if wait < 0 || until < wait {
			wait = until
		}
	}

	srcs := append([]*source(nil), r.sources...)
	r.pfds = r.pfds[:0]
	for _, s := range srcs {
		r.pfds = append(r.pfds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})
	}

	n, err := unix.Poll(r.pfds, pollMillis(wait))
	if err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("poll: %w", err)
	}

	if n > 0 {
		for i, s := range srcs {
			if r.pfds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			if s.removed {
				continue
			}
			if err := s.ready(); err != nil {
				return err
			}
		}
	}

	r.runTimers(time.Now())
	return nil
}

// Close drops every source and timer. Registered descriptors are not closed.
func (r *Reactor) Close() {
	for _, s := range r.sources {
		s.removed = true
	}
	r.sources = nil
	r.timers = nil
	clear(r.live)
	r.closed = true
}

// pollMillis rounds up so a sub-millisecond deadline does not spin.
func pollMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// TimerToken identifies an armed timer.
type TimerToken uint64

// TimerFunc runs when a timer expires. Returning a time re-arms the timer
// under the same token; returning false drops it.
type TimerFunc func(now time.Time) (next time.Time, again bool)

type timer struct {
	when time.Time
	tok  TimerToken
	fn   TimerFunc
}

type timerHeap []timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// AddTimer arms fn to run at the given time.
func (r *Reactor) AddTimer(at time.Time, fn TimerFunc) TimerToken {
	r.nextTok++
	tok := r.nextTok
	r.live[tok] = true
	heap.Push(&r.timers, timer{when: at, tok: tok, fn: fn})
	return tok
}

// CancelTimer disarms a timer. Cancelling an expired or unknown token is a
// no-op.
func (r *Reactor) CancelTimer(tok TimerToken) {
	delete(r.live, tok)
}

// Armed reports whether tok is still scheduled.
func (r *Reactor) Armed(tok TimerToken) bool {
	return r.live[tok]
}

func (r *Reactor) nextDeadline() (time.Time, bool) {
	for len(r.timers) > 0 {
		if r.live[r.timers[0].tok] {
			return r.timers[0].when, true
		}
		heap.Pop(&r.timers)
	}
	return time.Time{}, false
}

func (r *Reactor) runTimers(now time.Time) {
	var due []timer
	for len(r.timers) > 0 && !r.timers[0].when.After(now) {
		t := heap.Pop(&r.timers).(timer)
		if r.live[t.tok] {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if !r.live[t.tok] {
			continue
		}
		next, again := t.fn(now)
		if !r.live[t.tok] {
			continue
		}
		if !again {
			delete(r.live, t.tok)
			continue
		}
		heap.Push(&r.timers, timer{when: next, tok: t.tok, fn: t.fn})
	}
}
