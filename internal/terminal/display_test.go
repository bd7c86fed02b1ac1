package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplay_NewFrame_ForcesFullRedrawWhenUninitialized(t *testing.T) {
	d := NewDisplay(true)
	prev := NewFramebuffer(3, 1)
	cur := NewFramebuffer(3, 1)
	out := d.NewFrame(false, prev, cur)
	assert.True(t, strings.HasPrefix(out, "\x1b[H\x1b[2J"))
}

func TestDisplay_NewFrame_OnlyDiffsChangedCells(t *testing.T) {
	d := NewDisplay(true)
	prev := NewFramebuffer(3, 1)
	cur := prev.Clone()
	*cur.GetMutableCell(0, 1) = cur.GetCell(0, 1)
	cur.GetMutableCell(0, 1).Contents = []rune{'x'}

	out := d.NewFrame(true, prev, cur)
	assert.False(t, strings.Contains(out, "\x1b[2J"), "unchanged geometry shouldn't force a full redraw")
	assert.Contains(t, out, "x")
}

func TestDisplay_NewFrame_GeometryChangeForcesRedraw(t *testing.T) {
	d := NewDisplay(true)
	prev := NewFramebuffer(3, 1)
	cur := NewFramebuffer(5, 2)
	out := d.NewFrame(true, prev, cur)
	assert.True(t, strings.HasPrefix(out, "\x1b[H\x1b[2J"))
}

func TestDisplay_OpenClose(t *testing.T) {
	d := NewDisplay(true)
	assert.NotEmpty(t, d.Open())
	assert.NotEmpty(t, d.Close())
}
