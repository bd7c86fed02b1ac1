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

package terminal

import (
	"strings"

	"github.com/directionless/mosh/internal/cell"
)

// Complete is a minimal terminal emulator: it owns a Framebuffer and a
// Parser, and turns incoming bytes (real output from the remote host)
// into writes against that framebuffer. It is the "authoritative"
// counterpart to the prediction engine's speculative writes -- the
// thing whose eventual agreement or disagreement with a prediction is
// what the overlay layer is reconciling against.
//
// Full VT-100/xterm conformance is not attempted; this emulator covers
// printing (with wraparound), CR/LF/BS/HT, and a practical subset of CSI
// cursor motion and erase sequences -- enough to exercise every
// prediction-engine action the spec names. CSI parameters are discarded
// by the parser, so SGR only ever resets renditions to the default;
// colors and attributes from the remote host are not applied.
type Complete struct {
	fb     *Framebuffer
	parser Parser
}

// MakeComplete allocates an emulator with a fresh width x height
// framebuffer.
func MakeComplete(width, height int) *Complete {
	return &Complete{fb: NewFramebuffer(width, height)}
}

// GetFramebuffer returns the live framebuffer this emulator maintains.
func (c *Complete) GetFramebuffer() *Framebuffer {
	return c.fb
}

// Resize changes the emulator's framebuffer geometry, e.g. in response
// to SIGWINCH forwarded from the controlling terminal.
func (c *Complete) Resize(width, height int) {
	c.fb.Resize(width, height)
}

// Perform feeds a chunk of bytes (typically a read from the remote
// host) through the parser and applies every resulting action to the
// framebuffer. It returns any terminal-to-host reply bytes that should
// be written back upstream (empty for the sequences this emulator
// supports).
func (c *Complete) Perform(data string) string {
	var reply strings.Builder
	for i := 0; i < len(data); i++ {
		for _, act := range c.parser.Input(data[i]) {
			reply.WriteString(c.apply(act))
		}
	}
	return reply.String()
}

// Act applies a single byte (typically a local keystroke that is being
// echoed into the emulator's own state tracking) and returns any
// terminal-to-host reply.
func (c *Complete) Act(b byte) string {
	var reply strings.Builder
	for _, act := range c.parser.Input(b) {
		reply.WriteString(c.apply(act))
	}
	return reply.String()
}

func (c *Complete) apply(act Action) string {
	switch act.Kind {
	case Print:
		c.print(act.Ch)
	case Execute:
		c.execute(act.Ch)
	case CSIDispatch:
		c.csiDispatch(act.Ch)
	case EscDispatch:
		c.escDispatch(act.Ch)
	}
	return ""
}

func (c *Complete) print(ch rune) {
	if ch == 0x7f { // backspace-as-print, matching the prediction engine's own handling
		if c.fb.CursorCol > 0 {
			c.fb.CursorCol--
		}
		return
	}

	w := cell.RuneWidth(ch)
	if w < 1 {
		return
	}

	if c.fb.CursorCol >= c.fb.Width() {
		c.fb.CursorCol = 0
		c.lineFeed()
	}

	target := c.fb.GetMutableCell(c.fb.CursorRow, c.fb.CursorCol)
	c.fb.ResetCell(target)
	target.Contents = []rune{ch}
	target.Width = w
	target.Renditions = c.fb.Renditions

	if c.fb.CursorCol < c.fb.Width()-1 {
		c.fb.CursorCol++
	} else {
		c.fb.CursorCol = c.fb.Width()
	}
}

func (c *Complete) execute(ch rune) {
	switch ch {
	case 0x0d: // CR
		c.fb.CursorCol = 0
	case 0x0a, 0x0b, 0x0c: // LF, VT, FF
		c.lineFeed()
	case 0x08: // BS
		if c.fb.CursorCol > 0 {
			c.fb.CursorCol--
		}
	case 0x09: // HT
		next := (c.fb.CursorCol/8 + 1) * 8
		if next >= c.fb.Width() {
			next = c.fb.Width() - 1
		}
		c.fb.CursorCol = next
	}
}

func (c *Complete) lineFeed() {
	if c.fb.CursorRow == c.fb.Height()-1 {
		c.scrollUp()
	} else {
		c.fb.CursorRow++
	}
}

func (c *Complete) scrollUp() {
	for r := 0; r < c.fb.Height()-1; r++ {
		for col := 0; col < c.fb.Width(); col++ {
			*c.fb.GetMutableCell(r, col) = c.fb.GetCell(r+1, col)
		}
	}
	for col := 0; col < c.fb.Width(); col++ {
		c.fb.ResetCell(c.fb.GetMutableCell(c.fb.Height()-1, col))
	}
}

func (c *Complete) escDispatch(ch rune) {
	switch ch {
	case 'c': // RIS - full reset
		c.eraseDisplay()
		c.fb.CursorRow, c.fb.CursorCol = 0, 0
		c.fb.Renditions = cell.Renditions{}
	}
}

func (c *Complete) csiDispatch(final rune) {
	// Parameter bytes were discarded by the parser; this emulator only
	// implements the zero/one-argument motions and erases it actually
	// needs to exercise, defaulting missing counts to 1.
	switch final {
	case 'A':
		c.fb.MoveRow(-1, true)
	case 'B':
		c.fb.MoveRow(1, true)
	case 'C':
		c.fb.MoveCol(1, true, false)
	case 'D':
		c.fb.MoveCol(-1, true, false)
	case 'H', 'f':
		c.fb.MoveRow(0, false)
		c.fb.MoveCol(0, false, false)
	case 'J':
		c.eraseDisplay()
	case 'K':
		c.eraseLine()
	case 'm':
		c.fb.Renditions = cell.Renditions{}
	}
}

func (c *Complete) eraseDisplay() {
	for r := 0; r < c.fb.Height(); r++ {
		for col := 0; col < c.fb.Width(); col++ {
			c.fb.ResetCell(c.fb.GetMutableCell(r, col))
		}
	}
}

func (c *Complete) eraseLine() {
	for col := 0; col < c.fb.Width(); col++ {
		c.fb.ResetCell(c.fb.GetMutableCell(c.fb.CursorRow, col))
	}
}
