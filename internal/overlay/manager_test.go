package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/directionless/mosh/internal/clocksrc"
	"github.com/directionless/mosh/internal/terminal"
	"github.com/rs/zerolog"
)

func TestOverlayManager_WaitTime_ShrinksWhenPredictionsActive(t *testing.T) {
	clock := &clocksrc.Fixed{}
	m := NewOverlayManager(clock, zerolog.Nop())
	fb := terminal.NewFramebuffer(5, 1)
	m.Predictions.SetDisplayPreference(PredictAlways)

	m.Predictions.NewUserByte('a', fb)

	assert.LessOrEqual(t, m.WaitTime(), uint64(20))
}

func TestOverlayManager_WaitTime_NoDeadlineWhenIdle(t *testing.T) {
	clock := &clocksrc.Fixed{}
	m := NewOverlayManager(clock, zerolog.Nop())

	assert.Equal(t, uint64(noDeadline), m.WaitTime())
}

func TestOverlayManager_Apply_CullsAndRendersPredictions(t *testing.T) {
	clock := &clocksrc.Fixed{}
	m := NewOverlayManager(clock, zerolog.Nop())
	m.Predictions.SetDisplayPreference(PredictAlways)
	fb := terminal.NewFramebuffer(5, 1)

	m.Predictions.NewUserByte('a', fb)
	m.Apply(fb)

	assert.Equal(t, "a", string(fb.GetCell(0, 0).Contents))
}

func TestOverlayManager_Apply_LaysTitleAndNotificationsOnTop(t *testing.T) {
	clock := &clocksrc.Fixed{}
	m := NewOverlayManager(clock, zerolog.Nop())
	m.Title.SetPrefix([]rune("host"))
	m.Notifications.SetMessage("hi", 0)
	fb := terminal.NewFramebuffer(20, 2)

	m.Apply(fb)

	assert.Equal(t, "host", string(fb.TitlePrefix()))
	assert.False(t, fb.GetCell(0, 0).IsBlank())
}
