package seat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/bnema/kmsloop/internal/logger"
	"golang.org/x/sys/unix"
)

const defaultSeatdSocket = "/run/seatd.sock"

// seatd wire opcodes. Server opcodes have the top bit set.
const (
	clientOpenSeat    uint16 = 1
	clientCloseSeat   uint16 = 2
	clientOpenDevice  uint16 = 3
	clientCloseDevice uint16 = 4
	clientDisableSeat uint16 = 5

	serverSeatOpened   uint16 = 1<<15 + 1
	serverSeatClosed   uint16 = 1<<15 + 2
	serverDeviceOpened uint16 = 1<<15 + 3
	serverDeviceClosed uint16 = 1<<15 + 4
	serverDisableSeat  uint16 = 1<<15 + 5
	serverEnableSeat   uint16 = 1<<15 + 6
	serverError        uint16 = 1<<15 + 0x7fff

	headerSize = 4
	maxFds     = 8
)

// ErrSessionClosed is returned when the daemon hangs up.
var ErrSessionClosed = errors.New("seat: seatd session closed")

type message struct {
	opcode  uint16
	payload []byte
}

// Seatd is a session with a seatd daemon.
type Seatd struct {
	mu      sync.Mutex
	conn    *net.UnixConn
	name    string
	active  bool
	buf     []byte
	fds     []int
	devices map[*os.File]int32
}

// OpenSeatd connects to seatd, opens the seat and blocks until the session
// is active. An empty socketPath means $SEATD_SOCK or /run/seatd.sock.
func OpenSeatd(socketPath string) (*Seatd, error) {
	if socketPath == "" {
		socketPath = os.Getenv("SEATD_SOCK")
	}
	if socketPath == "" {
		socketPath = defaultSeatdSocket
	}

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to open seatd session: %w", err)
	}

	s, err := newSeatd(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("seat session active", "seat", s.name, "socket", socketPath)
	return s, nil
}

func newSeatd(conn *net.UnixConn) (*Seatd, error) {
	s := &Seatd{conn: conn, devices: make(map[*os.File]int32)}

	if err := s.send(clientOpenSeat, nil); err != nil {
		return nil, fmt.Errorf("failed to open seat: %w", err)
	}
	msg, err := s.reply(serverSeatOpened)
	if err != nil {
		return nil, fmt.Errorf("failed to open seat: %w", err)
	}
	name, err := decodeString(msg.payload)
	if err != nil {
		return nil, fmt.Errorf("failed to open seat: %w", err)
	}
	s.name = name

	for !s.active {
		if err := s.Dispatch(-1); err != nil {
			return nil, fmt.Errorf("failed to dispatch seat: %w", err)
		}
	}
	return s, nil
}

func (s *Seatd) SeatName() string { return s.name }

// Active reports whether the daemon currently grants device access.
func (s *Seatd) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Dispatch reads and handles one session event. A negative timeout blocks
// until something arrives.
func (s *Seatd) Dispatch(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	msg, err := s.read()
	if err != nil {
		return err
	}
	return s.handleEvent(msg)
}

func (s *Seatd) OpenDevice(path string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(clientOpenDevice, encodeString(path)); err != nil {
		return nil, fmt.Errorf("failed to open %s through seat: %w", path, err)
	}
	msg, err := s.reply(serverDeviceOpened)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s through seat: %w", path, err)
	}
	if len(msg.payload) < 4 {
		return nil, fmt.Errorf("failed to open %s through seat: short reply", path)
	}
	if len(s.fds) == 0 {
		return nil, fmt.Errorf("failed to open %s through seat: no descriptor received", path)
	}
	fd := s.fds[0]
	s.fds = s.fds[1:]

	f := os.NewFile(uintptr(fd), path)
	s.devices[f] = int32(binary.NativeEndian.Uint32(msg.payload))
	return f, nil
}

func (s *Seatd) CloseDevice(f *os.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.devices[f]
	if !ok {
		return f.Close()
	}
	delete(s.devices, f)

	payload := binary.NativeEndian.AppendUint32(nil, uint32(id))
	if err := s.send(clientCloseDevice, payload); err != nil {
		f.Close()
		return err
	}
	_, err := s.reply(serverDeviceClosed)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the seat and the connection.
func (s *Seatd) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(clientCloseSeat, nil); err == nil {
		if _, err := s.reply(serverSeatClosed); err != nil {
			logger.Debug("seat close not acknowledged", "err", err)
		}
	}
	for _, fd := range s.fds {
		unix.Close(fd)
	}
	s.fds = nil
	return s.conn.Close()
}

// reply reads until the expected message arrives, handling session events
// on the way. Caller holds mu.
func (s *Seatd) reply(want uint16) (message, error) {
	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return message{}, err
	}
	for {
		msg, err := s.read()
		if err != nil {
			return message{}, err
		}
		switch msg.opcode {
		case want:
			return msg, nil
		case serverError:
			return message{}, decodeError(msg.payload)
		default:
			if err := s.handleEvent(msg); err != nil {
				return message{}, err
			}
		}
	}
}

func (s *Seatd) handleEvent(msg message) error {
	switch msg.opcode {
	case serverEnableSeat:
		s.active = true
		logger.Debug("seat enabled", "seat", s.name)
	case serverDisableSeat:
		s.active = false
		logger.Debug("seat disabled", "seat", s.name)
		return s.send(clientDisableSeat, nil)
	case serverError:
		return decodeError(msg.payload)
	default:
		logger.Debug("ignoring seatd message", "opcode", msg.opcode)
	}
	return nil
}

func (s *Seatd) send(opcode uint16, payload []byte) error {
	b := make([]byte, headerSize, headerSize+len(payload))
	binary.NativeEndian.PutUint16(b[0:], opcode)
	binary.NativeEndian.PutUint16(b[2:], uint16(len(payload)))
	b = append(b, payload...)
	_, err := s.conn.Write(b)
	return err
}

// read returns the next complete message, collecting passed descriptors.
func (s *Seatd) read() (message, error) {
	for {
		if len(s.buf) >= headerSize {
			size := int(binary.NativeEndian.Uint16(s.buf[2:]))
			if len(s.buf) >= headerSize+size {
				msg := message{
					opcode:  binary.NativeEndian.Uint16(s.buf[0:]),
					payload: append([]byte(nil), s.buf[headerSize:headerSize+size]...),
				}
				s.buf = s.buf[headerSize+size:]
				return msg, nil
			}
		}

		data := make([]byte, 4096)
		oob := make([]byte, unix.CmsgSpace(maxFds*4))
		n, oobn, _, _, err := s.conn.ReadMsgUnix(data, oob)
		if err != nil {
			return message{}, err
		}
		if n == 0 && oobn == 0 {
			return message{}, ErrSessionClosed
		}
		if oobn > 0 {
			fds, err := parseRights(oob[:oobn])
			if err != nil {
				return message{}, err
			}
			s.fds = append(s.fds, fds...)
		}
		s.buf = append(s.buf, data[:n]...)
	}
}

func parseRights(oob []byte) ([]int, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

// encodeString writes a u16 length (including the NUL) followed by the bytes.
func encodeString(s string) []byte {
	b := binary.NativeEndian.AppendUint16(nil, uint16(len(s)+1))
	b = append(b, s...)
	return append(b, 0)
}

func decodeString(p []byte) (string, error) {
	if len(p) < 2 {
		return "", errors.New("short string")
	}
	n := int(binary.NativeEndian.Uint16(p))
	p = p[2:]
	if n > len(p) {
		return "", errors.New("truncated string")
	}
	p = p[:n]
	if n > 0 && p[n-1] == 0 {
		p = p[:n-1]
	}
	return string(p), nil
}

func decodeError(p []byte) error {
	if len(p) < 4 {
		return errors.New("seatd error")
	}
	return fmt.Errorf("seatd: %w", syscall.Errno(binary.NativeEndian.Uint32(p)))
}
