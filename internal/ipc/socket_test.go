package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu  sync.Mutex
	got []string
	err error
}

func (r *recordingSender) Send(payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, payload)
	return nil
}

func (r *recordingSender) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func startServer(t *testing.T, sender Sender, status func() string) *SocketServer {
	t.Helper()
	s := NewSocketServer(filepath.Join(t.TempDir(), "test.sock"), sender, status)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func TestSocketServerStartStop(t *testing.T) {
	s := startServer(t, &recordingSender{}, nil)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// starting twice is a no-op
	require.NoError(t, s.Start())

	s.Stop()
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
	s.Stop()
}

func TestClientSendForwardsInOrder(t *testing.T) {
	sender := &recordingSender{}
	s := startServer(t, sender, nil)
	c := NewClient(s.Path())

	ctx := context.Background()
	for _, p := range []string{"A", "B", "C"} {
		require.NoError(t, c.Send(ctx, p))
	}
	assert.Equal(t, []string{"A", "B", "C"}, sender.payloads())
}

func TestClientSendError(t *testing.T) {
	s := startServer(t, &recordingSender{err: errors.New("eventloop: loop closed")}, nil)
	err := NewClient(s.Path()).Send(context.Background(), "late")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop closed")
}

func TestClientStatus(t *testing.T) {
	t.Run("custom", func(t *testing.T) {
		s := startServer(t, &recordingSender{}, func() string { return "HDMI-A-1 1280x720" })
		got, err := NewClient(s.Path()).Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "HDMI-A-1 1280x720", got)
	})

	t.Run("default", func(t *testing.T) {
		s := startServer(t, &recordingSender{}, nil)
		got, err := NewClient(s.Path()).Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "running", got)
	})
}

func TestUnknownKind(t *testing.T) {
	s := startServer(t, &recordingSender{}, nil)
	conn, err := net.Dial("unix", s.Path())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, WriteMessage(conn, Message{Kind: Kind(99)}))
	resp, err := ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, KindError, resp.Kind)
	assert.Contains(t, resp.Payload, "kind(99)")
}

func TestStopClosesOpenConnections(t *testing.T) {
	s := startServer(t, &recordingSender{}, nil)
	conn, err := net.Dial("unix", s.Path())
	require.NoError(t, err)
	defer conn.Close()

	// one round trip so the server is inside its read loop
	require.NoError(t, WriteMessage(conn, Message{Kind: KindStatus}))
	_, err = ReadMessage(conn)
	require.NoError(t, err)

	s.Stop()
	_, err = ReadMessage(conn)
	assert.Error(t, err)
}

func TestClientNoServer(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	err := c.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is the loop running")
}
