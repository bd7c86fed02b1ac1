package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlank_IsBlank(t *testing.T) {
	b := Blank()
	assert.True(t, b.IsBlank())
	assert.Equal(t, 1, b.Width)
}

func TestIsBlank_FallbackCellIsNotBlank(t *testing.T) {
	c := Cell{Contents: []rune{' '}, Width: 1, Fallback: true}
	assert.False(t, c.IsBlank())
}

func TestEqual_DiffersOnRendition(t *testing.T) {
	a := Cell{Contents: []rune{'x'}, Width: 1}
	b := Cell{Contents: []rune{'x'}, Width: 1, Renditions: Renditions{Bold: true}}
	assert.True(t, a.ContentsEqual(b))
	assert.False(t, a.Equal(b))
}

func TestRuneWidth_Nul(t *testing.T) {
	assert.Equal(t, -1, RuneWidth(0))
}

func TestRuneWidth_Ascii(t *testing.T) {
	assert.Equal(t, 1, RuneWidth('a'))
}

func TestSplitGraphemes_CapsAtMaxCombiningPoints(t *testing.T) {
	// a base rune followed by far more combining marks than a cell can
	// hold; the cluster should be truncated, not dropped.
	base := "a"
	for i := 0; i < MaxCombiningPoints+5; i++ {
		base += "́" // combining acute accent
	}
	clusters := SplitGraphemes(base)
	if assert.Len(t, clusters, 1) {
		assert.LessOrEqual(t, len([]rune(clusters[0])), MaxCombiningPoints)
	}
}

func TestSplitGraphemes_MultipleClusters(t *testing.T) {
	clusters := SplitGraphemes("abc")
	assert.Equal(t, []string{"a", "b", "c"}, clusters)
}
