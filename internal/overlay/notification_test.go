package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/directionless/mosh/internal/clocksrc"
	"github.com/directionless/mosh/internal/terminal"
)

func TestNotificationEngine_NeedCountupThreshold(t *testing.T) {
	clock := &clocksrc.Fixed{}
	n := NewNotificationEngine(clock)

	assert.False(t, n.NeedCountup(clock.NowMs()))

	clock.Advance(NotificationCountupThreshold + 1)
	assert.True(t, n.NeedCountup(clock.NowMs()))
}

func TestNotificationEngine_ServerHeardResetsCountup(t *testing.T) {
	clock := &clocksrc.Fixed{}
	n := NewNotificationEngine(clock)

	clock.Advance(NotificationCountupThreshold + 1)
	n.ServerHeard(clock.NowMs())

	assert.False(t, n.NeedCountup(clock.NowMs()))
}

func TestNotificationEngine_MessageExpires(t *testing.T) {
	clock := &clocksrc.Fixed{}
	n := NewNotificationEngine(clock)

	n.SetMessage("hello", 100)
	assert.True(t, n.hasMessage)

	clock.Advance(150)
	n.AdjustMessage()

	assert.False(t, n.hasMessage)
}

func TestNotificationEngine_MessageWithNoExpirationPersists(t *testing.T) {
	clock := &clocksrc.Fixed{}
	n := NewNotificationEngine(clock)

	n.SetMessage("hello", 0)
	clock.Advance(1_000_000)
	n.AdjustMessage()

	assert.True(t, n.hasMessage)
}

func TestNotificationEngine_Apply_PaintsMessageBarAndHidesCursor(t *testing.T) {
	clock := &clocksrc.Fixed{}
	n := NewNotificationEngine(clock)
	n.SetMessage("hi", 0)
	fb := terminal.NewFramebuffer(40, 3)
	fb.CursorRow, fb.CursorCol = 0, 5
	fb.CursorVisible = true

	n.Apply(fb)

	var sb strings.Builder
	for c := 0; c < 5; c++ {
		sb.WriteString(string(fb.GetCell(0, c).Contents))
	}
	assert.Equal(t, "mosh:", sb.String())
	assert.False(t, fb.CursorVisible)
	assert.Equal(t, NotificationBackground, fb.GetCell(0, 0).Renditions.Background)
}

func TestNotificationEngine_Apply_NoOpWhenNothingToShow(t *testing.T) {
	clock := &clocksrc.Fixed{}
	n := NewNotificationEngine(clock)
	fb := terminal.NewFramebuffer(10, 1)

	n.Apply(fb)

	assert.True(t, fb.GetCell(0, 0).IsBlank())
}
