/*
 * nosshtradamus: predictive terminal emulation for SSH
 * Copyright 2019-2023 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package cell implements the grapheme-cluster cell contract consumed by
// the prediction engine: a short run of code points, a display width, a
// fallback flag for isolated combining marks, and a rendition record.
package cell

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// MaxCombiningPoints bounds the number of code points a single cell may
// accumulate (one base glyph plus trailing combining marks).
const MaxCombiningPoints = 16

// Renditions describes the SGR-like presentation of a cell: colors and
// the handful of attributes the overlay layer touches directly.
type Renditions struct {
	Foreground int
	Background int
	Bold       bool
	Underlined bool
}

// Cell is a single terminal grid position: a grapheme cluster (as an
// ordered run of code points), its display width in columns, whether it
// is a "fallback" cell holding an isolated combining mark, and its
// rendition.
type Cell struct {
	Contents   []rune
	Width      int
	Fallback   bool
	Renditions Renditions
}

// Blank returns a single space cell with no special rendition, matching
// the terminal's notion of an empty grid position.
func Blank() Cell {
	return Cell{Contents: []rune{' '}, Width: 1}
}

// IsBlank reports whether the cell holds nothing but a single space and
// is not a fallback cell. Renditions are not considered.
func (c Cell) IsBlank() bool {
	return len(c.Contents) == 1 && c.Contents[0] == ' ' && !c.Fallback
}

// Equal compares contents, width and renditions -- the notion of
// equality the prediction engine's validity checks rely on.
func (c Cell) Equal(o Cell) bool {
	if c.Width != o.Width || c.Fallback != o.Fallback || c.Renditions != o.Renditions {
		return false
	}
	if len(c.Contents) != len(o.Contents) {
		return false
	}
	for i := range c.Contents {
		if c.Contents[i] != o.Contents[i] {
			return false
		}
	}
	return true
}

// ContentsEqual compares only the code point run, ignoring width,
// fallback and renditions -- used by the prediction engine when
// deciding whether a server frame merely re-echoes an earlier
// speculation (see original_contents handling in ConditionalOverlayCell).
func (c Cell) ContentsEqual(o Cell) bool {
	if len(c.Contents) != len(o.Contents) {
		return false
	}
	for i := range c.Contents {
		if c.Contents[i] != o.Contents[i] {
			return false
		}
	}
	return true
}

// RuneWidth reports the display width of a single code point: -1 for
// unprintable/NUL, 0 for combining marks, 1 or 2 otherwise. This mirrors
// wcwidth() as used by the original implementation's notification bar
// and print-prediction logic.
func RuneWidth(r rune) int {
	if r < 0x20 || (r >= 0x7f && r < 0xa0) {
		return -1
	}
	return runewidth.RuneWidth(r)
}

// SplitGraphemes breaks a string into grapheme clusters, each capped at
// MaxCombiningPoints code points. The terminal emulator and the
// notification bar do not call it; both work one rune at a time.
func SplitGraphemes(s string) []string {
	var out []string
	state := -1
	for len(s) > 0 {
		var cluster string
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		if cluster == "" {
			break
		}
		if n := len([]rune(cluster)); n > MaxCombiningPoints {
			r := []rune(cluster)
			cluster = string(r[:MaxCombiningPoints])
		}
		out = append(out, cluster)
	}
	return out
}
