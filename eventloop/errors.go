package eventloop

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/bnema/kmsloop/internal/kms"
	"github.com/bnema/kmsloop/internal/seat"
	"github.com/bnema/kmsloop/internal/xkb"
)

// ErrLoopClosed is returned by Proxy.Send once the loop has been closed.
var ErrLoopClosed = errors.New("eventloop: loop closed")

// Construction failures, matched with errors.Is against an *OSError.
var (
	ErrNoAdapter         = seat.ErrNoAdapter
	ErrAtomicUnsupported = kms.ErrAtomicUnsupported
	ErrNoConnector       = kms.ErrNoConnector
	ErrNoCrtc            = kms.ErrNoCrtc
	ErrNoModes           = kms.ErrNoModes
	ErrNoPlane           = kms.ErrNoPlane
	ErrKeymapCompile     = xkb.ErrKeymapCompile
	ErrComposeCompile    = xkb.ErrComposeCompile
)

// OSError is returned when the loop cannot be constructed.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("os error: %s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error { return e.Err }

func osError(op string, err error) error {
	return &OSError{Op: op, Err: err}
}

// exitCode maps a dispatch failure to a process exit code.
func exitCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return 1
}
