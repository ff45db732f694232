package reactor

import (
	"sync"
)

// Channel is an unbounded FIFO from any goroutine into the reactor. Send
// never blocks.
type Channel[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	ping   *Ping
}

// NewChannel creates an empty channel.
func NewChannel[T any]() (*Channel[T], error) {
	p, err := NewPing()
	if err != nil {
		return nil, err
	}
	return &Channel[T]{ping: p}, nil
}

// Send appends v. It fails with ErrClosed once the channel is closed.
func (c *Channel[T]) Send(v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, v)
	c.mu.Unlock()
	return c.ping.Ping()
}

// Close rejects further sends and drops anything still queued.
func (c *Channel[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.queue = nil
	c.mu.Unlock()
	return c.ping.Close()
}

// take swaps the queue out under the lock.
func (c *Channel[T]) take() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queue
	c.queue = nil
	return q
}

// AddChannel registers c; fn receives each message in send order.
func AddChannel[T any](r *Reactor, c *Channel[T], fn func(T)) (*Registration, error) {
	return r.AddFd(c.ping.fd, func() error {
		c.ping.drain()
		for _, v := range c.take() {
			fn(v)
		}
		return nil
	})
}
