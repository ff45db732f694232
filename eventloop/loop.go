package eventloop

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/bnema/kmsloop/internal/input"
	"github.com/bnema/kmsloop/internal/logger"
	"github.com/bnema/kmsloop/internal/reactor"
	"github.com/bnema/kmsloop/internal/seat"
)

// Callback receives every event. It may change the control flow through cf.
type Callback func(ev Event, target *WindowTarget, cf *ControlFlow)

// EventLoop drives the display and input devices of one seat. T is the type
// of user events sent through a Proxy.
type EventLoop[T any] struct {
	r      *reactor.Reactor
	target *WindowTarget
	user   *reactor.Channel[T]
	// pending is only touched on the loop goroutine.
	pending []T

	input *input.Backend
	acq   seat.Acquirer

	closeOnce sync.Once
}

// newEventLoop registers the user channel and the redraw wake-up on r.
func newEventLoop[T any](r *reactor.Reactor, target *WindowTarget) (*EventLoop[T], error) {
	ch, err := reactor.NewChannel[T]()
	if err != nil {
		return nil, err
	}
	l := &EventLoop[T]{r: r, target: target, user: ch}

	if _, err := reactor.AddChannel(r, ch, func(v T) {
		l.pending = append(l.pending, v)
	}); err != nil {
		ch.Close()
		return nil, err
	}
	if _, err := r.AddPing(target.redraw, func() {
		target.sink.push(RedrawRequested{Window: MainWindow})
	}); err != nil {
		ch.Close()
		return nil, err
	}
	return l, nil
}

// Target returns the shared window state, for use before the loop runs.
func (l *EventLoop[T]) Target() *WindowTarget { return l.target }

// Proxy sends user events into a loop from any goroutine. Copies share the
// same queue.
type Proxy[T any] struct {
	ch *reactor.Channel[T]
}

// Send queues v for the next iteration. It never blocks and fails with
// ErrLoopClosed once the loop is closed.
func (p Proxy[T]) Send(v T) error {
	err := p.ch.Send(v)
	if errors.Is(err, reactor.ErrClosed) {
		return ErrLoopClosed
	}
	return err
}

// CreateProxy returns a handle for sending user events.
func (l *EventLoop[T]) CreateProxy() Proxy[T] {
	return Proxy[T]{ch: l.user}
}

func (l *EventLoop[T]) takePending() []T {
	q := l.pending
	l.pending = nil
	return q
}

// RunReturn runs the loop until the callback requests an exit or dispatch
// fails, then delivers LoopDestroyed and returns the exit code. The loop can
// not be run again afterwards without losing queued events.
func (l *EventLoop[T]) RunReturn(fn Callback) int {
	cf := Poll
	call := func(ev Event) {
		code, exiting := cf.ExitCode()
		fn(ev, l.target, &cf)
		if exiting {
			cf = ExitWithCode(code)
		}
	}

	call(NewEvents{Cause: StartCause{Kind: CauseInit}})
	call(RedrawRequested{Window: MainWindow})

	var (
		back []Event
		code int
	)
	for {
		if c, ok := cf.ExitCode(); ok {
			code = c
			break
		}

		cause, err := l.dispatch(cf)
		if err != nil {
			logger.Error("event dispatch failed", "err", err)
			code = exitCode(err)
			break
		}

		call(NewEvents{Cause: cause})
		for _, v := range l.takePending() {
			call(UserEvent[T]{Value: v})
		}
		back = l.target.sink.swap(back)
		for _, ev := range back {
			call(ev)
		}
		call(MainEventsCleared{})
		call(RedrawEventsCleared{})
	}

	call(LoopDestroyed{})
	return code
}

// dispatch waits as cf directs and reports why the wait ended.
func (l *EventLoop[T]) dispatch(cf ControlFlow) (StartCause, error) {
	start := time.Now()
	switch cf.kind {
	case flowWait:
		if err := l.r.Dispatch(reactor.Forever); err != nil {
			return StartCause{}, err
		}
		return StartCause{Kind: CauseWaitCancelled, Start: start}, nil
	case flowWaitUntil:
		if err := l.r.Dispatch(max(0, cf.deadline.Sub(start))); err != nil {
			return StartCause{}, err
		}
		cause := StartCause{Start: start, RequestedResume: cf.deadline}
		if time.Now().Before(cf.deadline) {
			cause.Kind = CauseWaitCancelled
		} else {
			cause.Kind = CauseResumeTimeReached
		}
		return cause, nil
	default:
		if err := l.r.Dispatch(0); err != nil {
			return StartCause{}, err
		}
		return StartCause{Kind: CausePoll}, nil
	}
}

// Run runs the loop, releases every device and exits the process with the
// loop's exit code.
func (l *EventLoop[T]) Run(fn Callback) {
	code := l.RunReturn(fn)
	if err := l.Close(); err != nil {
		logger.Warn("failed to release devices", "err", err)
	}
	os.Exit(code)
}

// Close releases the input devices, the display and the seat. Proxies fail
// with ErrLoopClosed afterwards. Calling Close more than once is a no-op.
func (l *EventLoop[T]) Close() error {
	var errs []error
	l.closeOnce.Do(func() {
		if err := l.user.Close(); err != nil {
			errs = append(errs, err)
		}
		if l.input != nil {
			if err := l.input.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		l.r.Close()
		l.target.close()
		if l.acq != nil {
			if err := l.acq.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
