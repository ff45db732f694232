package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds a whole request when the context has no deadline.
const DefaultTimeout = 5 * time.Second

// Client talks to a running loop's control socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of c using timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.timeout = timeout
	return &cp
}

// Send queues payload as a user event in the running loop.
func (c *Client) Send(ctx context.Context, payload string) error {
	_, err := c.roundTrip(ctx, Message{Kind: KindSend, Payload: payload})
	return err
}

// Status returns the loop's self description.
func (c *Client) Status(ctx context.Context) (string, error) {
	resp, err := c.roundTrip(ctx, Message{Kind: KindStatus})
	if err != nil {
		return "", err
	}
	return resp.Payload, nil
}

func (c *Client) roundTrip(ctx context.Context, req Message) (Message, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return Message{}, fmt.Errorf("failed to connect to %s (is the loop running?): %w", c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := WriteMessage(conn, req); err != nil {
		return Message{}, err
	}
	resp, err := ReadMessage(conn)
	if err != nil {
		return Message{}, err
	}

	switch resp.Kind {
	case KindAck:
		return resp, nil
	case KindError:
		return Message{}, errors.New("server error: " + resp.Payload)
	default:
		return Message{}, fmt.Errorf("unexpected response type: %s", resp.Kind)
	}
}
