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
	"fmt"
	"strings"

	"github.com/directionless/mosh/internal/cell"
)

// Display turns a pair of framebuffers into the escape-sequence diff
// that repaints the host terminal, and brackets a session with the
// sequences that enter/leave application-cursor-key mode.
type Display struct {
	useEnvironment bool
}

// NewDisplay constructs a Display. useEnvironment mirrors the original
// flag that consults TERM for capability detection; this implementation
// always emits plain ECMA-48/xterm sequences regardless of its value.
func NewDisplay(useEnvironment bool) *Display {
	return &Display{useEnvironment: useEnvironment}
}

// Open puts the terminal in application-cursor-key mode.
func (d *Display) Open() string {
	return "\x1b[?1h\x1b="
}

// Close restores terminal and terminal-driver state.
func (d *Display) Close() string {
	return "\x1b[?1l\x1b>\x1b[0m"
}

// NewFrame computes the minimal escape sequence that repaints cur on
// top of whatever the host terminal currently shows, assumed to equal
// prev (unless initialized is false, in which case a full redraw is
// forced). Geometry changes between prev and cur also force a full
// redraw.
func (d *Display) NewFrame(initialized bool, prev, cur *Framebuffer) string {
	var b strings.Builder

	if !initialized || prev.Width() != cur.Width() || prev.Height() != cur.Height() {
		b.WriteString("\x1b[H\x1b[2J")
		initialized = false
	}

	var lastRend cell.Renditions
	rendSet := false
	cursorAt := -1 // linear row*width+col of the last written cell, -1 == unknown

	for row := 0; row < cur.Height(); row++ {
		for col := 0; col < cur.Width(); col++ {
			c := cur.GetCell(row, col)
			if initialized && prev.GetCell(row, col).Equal(c) {
				continue
			}
			if cursorAt != row*cur.Width()+col {
				fmt.Fprintf(&b, "\x1b[%d;%dH", row+1, col+1)
			}
			if !rendSet || lastRend != c.Renditions {
				b.WriteString(renditionEscape(c.Renditions))
				lastRend = c.Renditions
				rendSet = true
			}
			b.WriteString(string(c.Contents))
			cursorAt = row*cur.Width() + col + 1
		}
	}

	if len(cur.TitlePrefix()) > 0 {
		fmt.Fprintf(&b, "\x1b]2;%s\x1b\\", string(cur.TitlePrefix()))
	}

	fmt.Fprintf(&b, "\x1b[%d;%dH", cur.CursorRow+1, cur.CursorCol+1)
	if cur.CursorVisible {
		b.WriteString("\x1b[?25h")
	} else {
		b.WriteString("\x1b[?25l")
	}

	return b.String()
}

func renditionEscape(r cell.Renditions) string {
	parts := []string{"0"}
	if r.Bold {
		parts = append(parts, "1")
	}
	if r.Underlined {
		parts = append(parts, "4")
	}
	if r.Foreground != 0 {
		parts = append(parts, fmt.Sprintf("%d", r.Foreground))
	}
	if r.Background != 0 {
		parts = append(parts, fmt.Sprintf("%d", r.Background))
	}
	return "\x1b[" + strings.Join(parts, ";") + "m"
}
