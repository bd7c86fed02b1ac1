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

// Package terminal implements the framebuffer and VT input parser that
// the prediction overlay treats as external collaborators: a cell-grid
// model with cursor and renditions (Framebuffer), and a byte-stream to
// action-stream parser (Parser) plus a small "Complete" emulator that
// actually applies incoming bytes to a Framebuffer. Neither aims for
// full terminal-emulator fidelity -- that is explicitly out of scope
// for the predictive overlay this repository exists to implement --
// but both are faithful enough to exercise every prediction-engine
// action the spec names.
package terminal

import "github.com/directionless/mosh/internal/cell"

// Framebuffer is a fixed width x height grid of cells with a cursor,
// visibility flag, origin-mode flag, and a "current renditions" used
// for freshly printed cells.
type Framebuffer struct {
	width, height int
	rows          [][]cell.Cell

	CursorRow, CursorCol int
	CursorVisible        bool
	OriginMode           bool
	Renditions           cell.Renditions

	titlePrefix []rune
}

// NewFramebuffer allocates a blank width x height grid.
func NewFramebuffer(width, height int) *Framebuffer {
	fb := &Framebuffer{
		width:         width,
		height:        height,
		CursorVisible: true,
	}
	fb.rows = make([][]cell.Cell, height)
	for r := range fb.rows {
		fb.rows[r] = make([]cell.Cell, width)
		for c := range fb.rows[r] {
			fb.rows[r][c] = cell.Blank()
		}
	}
	return fb
}

// Width reports the framebuffer's column count.
func (fb *Framebuffer) Width() int { return fb.width }

// Height reports the framebuffer's row count.
func (fb *Framebuffer) Height() int { return fb.height }

// GetCell returns a copy of the cell at (row, col).
func (fb *Framebuffer) GetCell(row, col int) cell.Cell {
	return fb.rows[row][col]
}

// GetMutableCell returns a pointer to the live cell at (row, col) so
// callers -- notably the overlay layer -- may write it in place.
func (fb *Framebuffer) GetMutableCell(row, col int) *cell.Cell {
	return &fb.rows[row][col]
}

// ResetCell restores a cell to a blank space with the framebuffer's
// current renditions cleared.
func (fb *Framebuffer) ResetCell(c *cell.Cell) {
	*c = cell.Blank()
}

// MoveRow sets (or offsets, if relative) the cursor's row, clamped to
// the framebuffer's bounds.
func (fb *Framebuffer) MoveRow(row int, relative bool) {
	if relative {
		row += fb.CursorRow
	}
	if row < 0 {
		row = 0
	}
	if row >= fb.height {
		row = fb.height - 1
	}
	fb.CursorRow = row
}

// MoveCol sets (or offsets, if relative) the cursor's column, clamped
// to the framebuffer's bounds. implicit is accepted for contract parity
// with the original interface (wrap-due-to-print vs. explicit motion)
// but does not change clamping behavior here.
func (fb *Framebuffer) MoveCol(col int, relative, _ bool) {
	if relative {
		col += fb.CursorCol
	}
	if col < 0 {
		col = 0
	}
	if col >= fb.width {
		col = fb.width - 1
	}
	fb.CursorCol = col
}

// SetTitlePrefix installs the window-title prefix sequence.
func (fb *Framebuffer) SetTitlePrefix(s []rune) {
	fb.titlePrefix = append(fb.titlePrefix[:0], s...)
}

// TitlePrefix returns the currently installed title prefix.
func (fb *Framebuffer) TitlePrefix() []rune {
	return fb.titlePrefix
}

// Resize changes the grid geometry in place, preserving the overlap
// between old and new dimensions and clamping the cursor into bounds.
// Geometry may change between any two calls into the overlay layer; the
// prediction engine tolerates this by culling out-of-range rows itself.
func (fb *Framebuffer) Resize(width, height int) {
	newRows := make([][]cell.Cell, height)
	for r := 0; r < height; r++ {
		newRows[r] = make([]cell.Cell, width)
		for c := 0; c < width; c++ {
			if r < fb.height && c < fb.width {
				newRows[r][c] = fb.rows[r][c]
			} else {
				newRows[r][c] = cell.Blank()
			}
		}
	}
	fb.rows = newRows
	fb.width = width
	fb.height = height
	if fb.CursorRow >= height {
		fb.CursorRow = height - 1
	}
	if fb.CursorCol >= width {
		fb.CursorCol = width - 1
	}
}

// Clone returns a deep copy of the framebuffer, used by callers that
// need to diff "before" and "after" states (e.g. a display driver)
// without the overlay's in-place writes disturbing the prior frame.
func (fb *Framebuffer) Clone() *Framebuffer {
	out := &Framebuffer{
		width:         fb.width,
		height:        fb.height,
		CursorRow:     fb.CursorRow,
		CursorCol:     fb.CursorCol,
		CursorVisible: fb.CursorVisible,
		OriginMode:    fb.OriginMode,
		Renditions:    fb.Renditions,
	}
	out.titlePrefix = append(out.titlePrefix, fb.titlePrefix...)
	out.rows = make([][]cell.Cell, fb.height)
	for r := range fb.rows {
		out.rows[r] = append([]cell.Cell(nil), fb.rows[r]...)
	}
	return out
}
