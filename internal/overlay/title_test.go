package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/directionless/mosh/internal/terminal"
)

func TestTitleEngine_Apply_InstallsPrefix(t *testing.T) {
	title := &TitleEngine{}
	title.SetPrefix([]rune("session"))
	fb := terminal.NewFramebuffer(5, 1)

	title.Apply(fb)

	assert.Equal(t, "session", string(fb.TitlePrefix()))
}

func TestTitleEngine_SetPrefix_ReplacesPreviousValue(t *testing.T) {
	title := &TitleEngine{}
	title.SetPrefix([]rune("first"))
	title.SetPrefix([]rune("second"))
	fb := terminal.NewFramebuffer(5, 1)

	title.Apply(fb)

	assert.Equal(t, "second", string(fb.TitlePrefix()))
}
