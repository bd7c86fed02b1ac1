package predictive

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanRWC struct {
	mu     sync.Mutex
	writes chan []byte
	closed bool
}

func newChanRWC() *chanRWC {
	return &chanRWC{writes: make(chan []byte, 8)}
}

func (c *chanRWC) Read([]byte) (int, error) { return 0, io.EOF }

func (c *chanRWC) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	c.writes <- cp
	return len(p), nil
}

func (c *chanRWC) Close() error { c.closed = true; return nil }

func TestRingDelayer_DelaysThenForwardsWrite(t *testing.T) {
	fake := newChanRWC()
	rd := RingDelay(fake, 15*time.Millisecond, 4)
	defer rd.Close()

	start := time.Now()
	n, err := rd.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	select {
	case got := <-fake.writes:
		assert.Equal(t, "hello", string(got))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed write was never forwarded upstream")
	}
}

func TestRingDelayer_PreservesOrder(t *testing.T) {
	fake := newChanRWC()
	rd := RingDelay(fake, 5*time.Millisecond, 8)
	defer rd.Close()

	for _, s := range []string{"a", "b", "c"} {
		_, err := rd.Write([]byte(s))
		require.NoError(t, err)
	}

	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-fake.writes:
			assert.Equal(t, want, string(got))
		case <-time.After(2 * time.Second):
			t.Fatal("delayed write was never forwarded upstream")
		}
	}
}

func TestRingDelayer_CloseClosesUpstream(t *testing.T) {
	fake := newChanRWC()
	rd := RingDelay(fake, time.Millisecond, 2)

	err := rd.Close()
	assert.NoError(t, err)
	assert.True(t, fake.closed)
}
