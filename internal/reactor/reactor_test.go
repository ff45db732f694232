package reactor

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollMillis(t *testing.T) {
	assert.Equal(t, -1, pollMillis(Forever))
	assert.Equal(t, 0, pollMillis(0))
	assert.Equal(t, 1, pollMillis(300*time.Microsecond))
	assert.Equal(t, 15, pollMillis(15*time.Millisecond))
	assert.Equal(t, 16, pollMillis(15*time.Millisecond+1))
}

func TestDispatchZeroTimeoutReturnsImmediately(t *testing.T) {
	r := New()
	start := time.Now()
	require.NoError(t, r.Dispatch(0))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestDispatchWaitsForTimeout(t *testing.T) {
	r := New()
	start := time.Now()
	require.NoError(t, r.Dispatch(30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestPingCoalesces(t *testing.T) {
	r := New()
	p, err := NewPing()
	require.NoError(t, err)
	defer p.Close()

	fired := 0
	_, err = r.AddPing(p, func() { fired++ })
	require.NoError(t, err)

	require.NoError(t, p.Ping())
	require.NoError(t, p.Ping())
	require.NoError(t, r.Dispatch(time.Second))
	assert.Equal(t, 1, fired)

	require.NoError(t, r.Dispatch(0))
	assert.Equal(t, 1, fired)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Ping(), ErrClosed)
}

func TestPingWakesBlockedDispatch(t *testing.T) {
	r := New()
	p, err := NewPing()
	require.NoError(t, err)
	defer p.Close()

	woke := false
	_, err = r.AddPing(p, func() { woke = true })
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Ping()
	}()
	require.NoError(t, r.Dispatch(Forever))
	assert.True(t, woke)
}

func TestChannelFIFO(t *testing.T) {
	r := New()
	c, err := NewChannel[int]()
	require.NoError(t, err)
	defer c.Close()

	var got []int
	_, err = AddChannel(r, c, func(v int) { got = append(got, v) })
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var sent []int
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				mu.Lock()
				v := g*100 + i
				require.NoError(t, c.Send(v))
				sent = append(sent, v)
				mu.Unlock()
			}
		}(g)
	}
	wg.Wait()

	for len(got) < len(sent) {
		require.NoError(t, r.Dispatch(time.Second))
	}
	assert.Equal(t, sent, got)
}

func TestChannelClosed(t *testing.T) {
	c, err := NewChannel[string]()
	require.NoError(t, err)
	require.NoError(t, c.Send("a"))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send("b"), ErrClosed)
}

func TestTimers(t *testing.T) {
	t.Run("fires once when not re-armed", func(t *testing.T) {
		r := New()
		fired := 0
		tok := r.AddTimer(time.Now().Add(5*time.Millisecond), func(time.Time) (time.Time, bool) {
			fired++
			return time.Time{}, false
		})
		assert.True(t, r.Armed(tok))

		require.NoError(t, r.Dispatch(Forever))
		assert.Equal(t, 1, fired)
		assert.False(t, r.Armed(tok))

		require.NoError(t, r.Dispatch(10*time.Millisecond))
		assert.Equal(t, 1, fired)
	})

	t.Run("re-arms itself", func(t *testing.T) {
		r := New()
		var fires []time.Time
		interval := 10 * time.Millisecond
		tok := r.AddTimer(time.Now().Add(interval), func(now time.Time) (time.Time, bool) {
			fires = append(fires, now)
			return now.Add(interval), true
		})

		for len(fires) < 3 {
			require.NoError(t, r.Dispatch(Forever))
		}
		assert.True(t, r.Armed(tok))
		for i := 1; i < len(fires); i++ {
			assert.GreaterOrEqual(t, fires[i].Sub(fires[i-1]), interval)
		}

		r.CancelTimer(tok)
		assert.False(t, r.Armed(tok))
		require.NoError(t, r.Dispatch(3*interval))
		assert.Len(t, fires, 3)
	})

	t.Run("cancel from inside the handler", func(t *testing.T) {
		r := New()
		var tok TimerToken
		fired := 0
		tok = r.AddTimer(time.Now(), func(now time.Time) (time.Time, bool) {
			fired++
			r.CancelTimer(tok)
			return now, true
		})
		require.NoError(t, r.Dispatch(0))
		require.NoError(t, r.Dispatch(0))
		assert.Equal(t, 1, fired)
	})

	t.Run("earliest first", func(t *testing.T) {
		r := New()
		var order []string
		now := time.Now()
		add := func(name string, d time.Duration) {
			r.AddTimer(now.Add(d), func(time.Time) (time.Time, bool) {
				order = append(order, name)
				return time.Time{}, false
			})
		}
		add("c", 3*time.Millisecond)
		add("a", time.Millisecond)
		add("b", 2*time.Millisecond)

		time.Sleep(5 * time.Millisecond)
		require.NoError(t, r.Dispatch(0))
		assert.Equal(t, []string{"a", "b", "c"}, order)
	})
}

func TestFdSource(t *testing.T) {
	r := New()
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	var got []byte
	reg, err := r.AddFd(int(pr.Fd()), func() error {
		buf := make([]byte, 16)
		n, err := pr.Read(buf)
		got = append(got, buf[:n]...)
		return err
	})
	require.NoError(t, err)

	_, err = pw.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, r.Dispatch(time.Second))
	assert.Equal(t, "hi", string(got))

	reg.Remove()
	reg.Remove()
	_, err = pw.Write([]byte("!"))
	require.NoError(t, err)
	require.NoError(t, r.Dispatch(0))
	assert.Equal(t, "hi", string(got))
}

func TestSourceErrorStopsDispatch(t *testing.T) {
	r := New()
	p, err := NewPing()
	require.NoError(t, err)
	defer p.Close()

	boom := errors.New("boom")
	_, err = r.AddFd(p.fd, func() error { return boom })
	require.NoError(t, err)
	require.NoError(t, p.Ping())
	assert.ErrorIs(t, r.Dispatch(time.Second), boom)
}

func TestClosedReactor(t *testing.T) {
	r := New()
	r.AddTimer(time.Now(), func(time.Time) (time.Time, bool) { return time.Time{}, false })
	r.Close()
	assert.ErrorIs(t, r.Dispatch(0), ErrClosed)
	_, err := r.AddFd(0, func() error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
