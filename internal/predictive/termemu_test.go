package predictive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterposer_Write_ForwardsRawBytesUpstreamAndStagesPrediction(t *testing.T) {
	fake := &fakeRWC{}
	var gotEpoch uint64
	opts := GetDefaultInterposerOptions()
	opts.DisplayPreference = PredictAlways

	i := Interpose(fake, func(_ *Interposer, epoch uint64, _ time.Time) { gotEpoch = epoch }, opts)

	n, err := i.Write([]byte("ls\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, fake.writes, 1)
	assert.Equal(t, "ls\n", string(fake.writes[0]))
	assert.Equal(t, uint64(1), gotEpoch)
	assert.True(t, i.manager.Predictions.Active())
}

func TestInterposer_Read_FirstCallOpensDisplay(t *testing.T) {
	fake := &fakeRWC{}
	i := Interpose(fake, nil, GetDefaultInterposerOptions())

	buf := make([]byte, 256)
	n, err := i.Read(buf)

	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.True(t, i.opened)
}

func TestInterposer_Resize_ResetsPredictions(t *testing.T) {
	fake := &fakeRWC{}
	opts := GetDefaultInterposerOptions()
	opts.DisplayPreference = PredictAlways
	i := Interpose(fake, nil, opts)

	_, _ = i.Write([]byte("a"))
	require.True(t, i.manager.Predictions.Active())

	i.Resize(100, 40)

	assert.False(t, i.manager.Predictions.Active())
	assert.Equal(t, 100, i.width)
	assert.Equal(t, 40, i.height)
}

func TestInterposer_ChangeDisplayPreference_TakesEffect(t *testing.T) {
	fake := &fakeRWC{}
	i := Interpose(fake, nil, GetDefaultInterposerOptions())

	i.ChangeDisplayPreference(PredictNever)

	assert.Equal(t, PredictNever, i.manager.Predictions.DisplayPreference())
}

func TestInterposer_ChangeOverwritePrediction_TakesEffect(t *testing.T) {
	fake := &fakeRWC{}
	i := Interpose(fake, nil, GetDefaultInterposerOptions())

	i.ChangeOverwritePrediction(false)

	assert.False(t, i.manager.Predictions.PredictOverwrite())
}

func TestInterposer_CurrentContents_RendersAgainstBlankBaseline(t *testing.T) {
	fake := &fakeRWC{}
	i := Interpose(fake, nil, GetDefaultInterposerOptions())

	out := i.CurrentContents()

	assert.NotEmpty(t, out)
}

func TestInterposer_Close_QueuesDisplayCloseOnlyIfOpened(t *testing.T) {
	fake := &fakeRWC{}
	i := Interpose(fake, nil, GetDefaultInterposerOptions())

	err := i.Close()
	require.NoError(t, err)
	assert.Nil(t, i.pending, "never opened: no close sequence should be queued")
}
