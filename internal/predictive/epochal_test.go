package predictive

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRWC struct {
	writes   [][]byte
	readData []byte
	closed   bool
}

func (f *fakeRWC) Read(p []byte) (int, error) {
	if len(f.readData) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.readData)
	f.readData = f.readData[n:]
	return n, nil
}

func (f *fakeRWC) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	return len(p), nil
}

func (f *fakeRWC) Close() error { f.closed = true; return nil }

func TestEpochal_WriteIncrementsEpochAndInvokesGenerator(t *testing.T) {
	fake := &fakeRWC{}
	var seen []uint64
	e := MakeEpochal(fake, func(_ *Epochal, epoch uint64) { seen = append(seen, epoch) }, func(uint64, bool, time.Duration) {})

	_, err := e.Write([]byte("x"))
	require.NoError(t, err)
	_, err = e.Write([]byte("y"))
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2}, seen)
	require.Len(t, fake.writes, 2)
	assert.Equal(t, "x", string(fake.writes[0]))
}

func TestEpochal_ResponseTo_ReportsPendingWhenEpochAdvancedSince(t *testing.T) {
	fake := &fakeRWC{}
	e := MakeEpochal(fake, func(*Epochal, uint64) {}, func(uint64, bool, time.Duration) {})

	_, _ = e.Write([]byte("x"))
	_, _ = e.Write([]byte("y"))

	assert.True(t, e.ResponseTo(1, time.Now()), "a newer write happened since epoch 1 was requested")
	assert.False(t, e.ResponseTo(2, time.Now()), "no write has happened since epoch 2")
}

func TestEpochal_ResponseTo_InvokesEpochChangedWithLatency(t *testing.T) {
	fake := &fakeRWC{}
	var gotEpoch uint64
	var gotPending bool
	var gotLatency time.Duration
	e := MakeEpochal(fake, func(*Epochal, uint64) {}, func(epoch uint64, pending bool, latency time.Duration) {
		gotEpoch = epoch
		gotPending = pending
		gotLatency = latency
	})

	_, _ = e.Write([]byte("x"))
	e.ResponseTo(1, time.Now().Add(-time.Second))

	assert.Equal(t, uint64(1), gotEpoch)
	assert.False(t, gotPending)
	assert.GreaterOrEqual(t, gotLatency, time.Second)
}

func TestEpochal_WriteDoesNotAdvanceEpochOnUpstreamError(t *testing.T) {
	fake := &erroringRWC{}
	var calls int
	e := MakeEpochal(fake, func(*Epochal, uint64) { calls++ }, func(uint64, bool, time.Duration) {})

	_, err := e.Write([]byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}

type erroringRWC struct{}

func (erroringRWC) Read([]byte) (int, error)  { return 0, io.EOF }
func (erroringRWC) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
func (erroringRWC) Close() error              { return nil }
