package predictive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoSwitch_PassesThroughUntilEnabled(t *testing.T) {
	passthrough := &fakeRWC{}
	ios := MakeIoSwitch(passthrough)

	_, err := ios.Write([]byte("a"))
	require.NoError(t, err)
	require.Len(t, passthrough.writes, 1)
	assert.Equal(t, "a", string(passthrough.writes[0]))
}

func TestIoSwitch_EnableSwitchesToRefractor(t *testing.T) {
	passthrough := &fakeRWC{}
	refractor := &fakeRWC{}
	ios := MakeIoSwitch(passthrough)

	ios.Enable(refractor)
	_, err := ios.Write([]byte("b"))
	require.NoError(t, err)

	assert.Empty(t, passthrough.writes)
	require.Len(t, refractor.writes, 1)
	assert.Equal(t, "b", string(refractor.writes[0]))
}

func TestIoSwitch_EnableIsSticky(t *testing.T) {
	passthrough := &fakeRWC{}
	first := &fakeRWC{}
	second := &fakeRWC{}
	ios := MakeIoSwitch(passthrough)

	ios.Enable(first)
	ios.Enable(second) // no-op: already enabled once

	_, err := ios.Write([]byte("c"))
	require.NoError(t, err)

	assert.Empty(t, second.writes)
	require.Len(t, first.writes, 1)
}

func TestIoSwitch_CloseRoutesToActiveTarget(t *testing.T) {
	passthrough := &fakeRWC{}
	ios := MakeIoSwitch(passthrough)

	err := ios.Close()
	assert.NoError(t, err)
	assert.True(t, passthrough.closed)
}
