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

package overlay

import (
	"github.com/directionless/mosh/internal/cell"
	"github.com/directionless/mosh/internal/terminal"
)

// Validity is the outcome of comparing a speculative record against the
// confirmed framebuffer state once enough acks have arrived to judge it.
type Validity int

const (
	Inactive Validity = iota
	Pending
	Correct
	CorrectNoCredit
	IncorrectOrExpired
)

// conditionalOverlayCell is a single speculative write to one framebuffer
// cell: what we expect the server to eventually echo there, a short log
// of what the cell held at each speculation (original_contents), and the
// frame/epoch bookkeeping that decides when the speculation is resolved.
type conditionalOverlayCell struct {
	col int

	active  bool
	unknown bool

	replacement      cell.Cell
	originalContents []cell.Cell

	tentativeUntilEpoch uint64
	expirationFrame     uint64
	predictionTime      uint64
}

func newConditionalOverlayCell(col int, epoch uint64) conditionalOverlayCell {
	return conditionalOverlayCell{col: col, tentativeUntilEpoch: epoch}
}

func (c *conditionalOverlayCell) tentative(confirmedEpoch uint64) bool {
	return c.tentativeUntilEpoch > confirmedEpoch
}

func (c *conditionalOverlayCell) expire(frame, now uint64) {
	c.expirationFrame = frame
	c.predictionTime = now
}

// reset fully clears the cell, discarding its history. Used once a
// speculation has resolved (correct or not) and the slot is free.
func (c *conditionalOverlayCell) reset() {
	c.active = false
	c.unknown = false
	c.replacement = cell.Cell{}
	c.originalContents = nil
}

// resetWithOrig clears the live speculation but preserves
// originalContents, which the caller is about to append to -- used when
// a new speculative write lands on a cell that already has one or more
// unresolved predictions queued against it.
func (c *conditionalOverlayCell) resetWithOrig() {
	c.active = false
	c.unknown = false
	c.replacement = cell.Cell{}
}

func (c *conditionalOverlayCell) getValidity(fb *terminal.Framebuffer, row int, lateAck uint64) Validity {
	if !c.active {
		return Inactive
	}
	if row < 0 || row >= fb.Height() || c.col < 0 || c.col >= fb.Width() {
		return IncorrectOrExpired
	}
	if lateAck < c.expirationFrame {
		return Pending
	}

	current := fb.GetCell(row, c.col)

	if c.unknown {
		return CorrectNoCredit
	}

	// A blank replacement is too easy to get right by accident (e.g. the
	// server simply never wrote anything there) to count as a validated
	// prediction.
	if c.replacement.IsBlank() {
		return CorrectNoCredit
	}

	if !current.ContentsEqual(c.replacement) {
		return IncorrectOrExpired
	}

	// The server's echo matches our replacement, but if an earlier,
	// already-superseded speculation on this same cell held identical
	// contents we give no credit -- this avoids flagging a cell as a
	// successful prediction when the terminal never actually changed.
	for _, orig := range c.originalContents {
		if orig.ContentsEqual(c.replacement) {
			return CorrectNoCredit
		}
	}

	return Correct
}

func (c *conditionalOverlayCell) apply(fb *terminal.Framebuffer, confirmedEpoch uint64, row int, flag bool) {
	if !c.active {
		return
	}
	if row < 0 || row >= fb.Height() || c.col < 0 || c.col >= fb.Width() {
		return
	}
	if c.tentative(confirmedEpoch) {
		return
	}

	if c.unknown {
		if flag && c.col != fb.Width()-1 {
			fb.GetMutableCell(row, c.col).Renditions.Underlined = true
		}
		return
	}

	current := fb.GetCell(row, c.col)
	if current.Equal(c.replacement) {
		return
	}
	if c.replacement.IsBlank() && current.IsBlank() {
		return
	}

	*fb.GetMutableCell(row, c.col) = c.replacement
	if flag {
		fb.GetMutableCell(row, c.col).Renditions.Underlined = true
	}
}

// conditionalCursorMove is a speculative cursor relocation, resolved the
// same way as a cell: once late_acked passes its expiration frame, we
// compare against the confirmed framebuffer's actual cursor position.
type conditionalCursorMove struct {
	row, col int

	active bool

	tentativeUntilEpoch uint64
	expirationFrame     uint64
	predictionTime      uint64
}

func newConditionalCursorMove(epoch uint64, row, col int) conditionalCursorMove {
	return conditionalCursorMove{row: row, col: col, active: true, tentativeUntilEpoch: epoch}
}

func (c *conditionalCursorMove) tentative(confirmedEpoch uint64) bool {
	return c.tentativeUntilEpoch > confirmedEpoch
}

func (c *conditionalCursorMove) expire(frame, now uint64) {
	c.expirationFrame = frame
	c.predictionTime = now
}

func (c *conditionalCursorMove) getValidity(fb *terminal.Framebuffer, lateAck uint64) Validity {
	if !c.active {
		return Inactive
	}
	if c.row < 0 || c.row >= fb.Height() || c.col < 0 || c.col >= fb.Width() {
		return IncorrectOrExpired
	}
	if lateAck < c.expirationFrame {
		return Pending
	}
	if fb.CursorRow == c.row && fb.CursorCol == c.col {
		return Correct
	}
	return IncorrectOrExpired
}

func (c *conditionalCursorMove) apply(fb *terminal.Framebuffer, confirmedEpoch uint64) {
	if !c.active {
		return
	}
	if c.tentative(confirmedEpoch) {
		return
	}
	if c.row < 0 || c.row >= fb.Height() || c.col < 0 || c.col >= fb.Width() {
		return
	}
	fb.MoveRow(c.row, false)
	fb.MoveCol(c.col, false, false)
}

// conditionalOverlayRow holds one speculative row: a fixed-width run of
// conditionalOverlayCell, one per column, seeded inactive.
type conditionalOverlayRow struct {
	rowNum int
	cells  []conditionalOverlayCell
}

func newConditionalOverlayRow(rowNum int, numCols int, epoch uint64) *conditionalOverlayRow {
	r := &conditionalOverlayRow{rowNum: rowNum, cells: make([]conditionalOverlayCell, numCols)}
	for i := range r.cells {
		r.cells[i] = newConditionalOverlayCell(i, epoch)
	}
	return r
}

func (r *conditionalOverlayRow) apply(fb *terminal.Framebuffer, confirmedEpoch uint64, flag bool) {
	if r.rowNum < 0 || r.rowNum >= fb.Height() {
		return
	}
	for i := range r.cells {
		r.cells[i].apply(fb, confirmedEpoch, r.rowNum, flag)
	}
}
