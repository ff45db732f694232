package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/kmsloop/internal/logger"
)

// Sender receives forwarded payloads. eventloop.Proxy[string] satisfies it.
type Sender interface {
	Send(payload string) error
}

// SocketServer accepts control connections on a unix socket.
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	sender     Sender
	status     func() string
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
}

// NewSocketServer returns a server forwarding send requests to sender.
// status answers status requests and may be nil.
func NewSocketServer(socketPath string, sender Sender, status func() string) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		sender:     sender,
		status:     status,
	}
}

// Path returns the socket path.
func (s *SocketServer) Path() string { return s.socketPath }

// Start starts the socket server
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// Remove existing socket file if it exists
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	// user only
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	logger.Infof("IPC socket server started at %s", s.socketPath)
	return nil
}

// Stop closes the listener and every connection, then removes the socket.
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	os.RemoveAll(s.socketPath)

	logger.Info("IPC socket server stopped")
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Errorf("Failed to accept connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// unblock the read below on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Debug("New IPC connection established")

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			logger.Debugf("Connection closed or read error: %v", err)
			return
		}

		if err := WriteMessage(conn, s.handleMessage(msg)); err != nil {
			logger.Errorf("Failed to send response: %v", err)
			return
		}
	}
}

func (s *SocketServer) handleMessage(msg Message) Message {
	switch msg.Kind {
	case KindSend:
		if err := s.sender.Send(msg.Payload); err != nil {
			return Message{Kind: KindError, Payload: err.Error()}
		}
		logger.Debug("forwarded user event", "payload", msg.Payload)
		return Message{Kind: KindAck}

	case KindStatus:
		text := "running"
		if s.status != nil {
			text = s.status()
		}
		return Message{Kind: KindAck, Payload: text}

	default:
		return Message{Kind: KindError, Payload: fmt.Sprintf("unknown message type: %s", msg.Kind)}
	}
}
