package predictive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsynk_WriteEventuallyReachesUpstream(t *testing.T) {
	fake := newChanRWC()
	a := MakeAsynk(fake, 64)
	defer a.Close()

	n, err := a.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	select {
	case got := <-fake.writes:
		assert.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("asynk write never reached upstream")
	}
}

func TestAsynk_ClosePropagatesToUnderlyingCloser(t *testing.T) {
	fake := newChanRWC()
	a := MakeAsynk(fake, 16)

	err := a.Close()
	assert.NoError(t, err)
	assert.True(t, fake.closed)

	_, err = a.Write([]byte("x"))
	assert.Error(t, err, "writes after close should fail")
}
