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
	"fmt"

	"github.com/directionless/mosh/internal/cell"
	"github.com/directionless/mosh/internal/clocksrc"
	"github.com/directionless/mosh/internal/terminal"
)

// NotificationEngine draws the top-of-screen message bar: an optional
// user-visible message, plus an automatic "last contact N seconds ago"
// countup once the server has been silent too long.
type NotificationEngine struct {
	lastWordFromServer uint64

	hasMessage        bool
	message           []rune
	messageExpiration uint64 // absolute ms; 0 == no auto-expiry

	clock clocksrc.Clock
}

// NewNotificationEngine constructs an engine that considers the server
// freshly heard-from as of now.
func NewNotificationEngine(clock clocksrc.Clock) *NotificationEngine {
	return &NotificationEngine{clock: clock, lastWordFromServer: clock.NowMs()}
}

// ServerHeard records that a datagram arrived from the server at now,
// resetting the contact-age countup.
func (n *NotificationEngine) ServerHeard(now uint64) {
	n.lastWordFromServer = now
}

// NeedCountup reports whether the contact-age bar should be shown.
func (n *NotificationEngine) NeedCountup(now uint64) bool {
	if now < n.lastWordFromServer {
		return false
	}
	return now-n.lastWordFromServer > NotificationCountupThreshold
}

// SetMessage installs a user-visible message. expiration is an absolute
// millisecond timestamp; 0 means the message persists until replaced.
func (n *NotificationEngine) SetMessage(msg string, expiration uint64) {
	n.hasMessage = true
	n.message = []rune(msg)
	n.messageExpiration = expiration
}

// ClearMessage removes any installed message immediately.
func (n *NotificationEngine) ClearMessage() {
	n.hasMessage = false
	n.message = nil
	n.messageExpiration = 0
}

// AdjustMessage clears a message whose expiration has passed.
func (n *NotificationEngine) AdjustMessage() {
	if !n.hasMessage || n.messageExpiration == 0 {
		return
	}
	if n.clock.NowMs() >= n.messageExpiration {
		n.ClearMessage()
	}
}

// Apply draws the bar onto row 0 of fb, if there is anything to show.
func (n *NotificationEngine) Apply(fb *terminal.Framebuffer) {
	now := n.clock.NowMs()
	countup := n.NeedCountup(now)
	if !n.hasMessage && !countup {
		return
	}

	width := fb.Width()
	bar := cell.Cell{
		Contents:   []rune{' '},
		Width:      1,
		Renditions: cell.Renditions{Foreground: NotificationForeground, Background: NotificationBackground},
	}
	for c := 0; c < width; c++ {
		*fb.GetMutableCell(0, c) = bar
	}
	if fb.CursorRow == 0 {
		fb.CursorVisible = false
	}

	seconds := (now - n.lastWordFromServer) / 1000

	var text string
	switch {
	case n.hasMessage && countup:
		text = fmt.Sprintf("mosh: %s (%d s without contact.) [To quit: Ctrl-^ .]", string(n.message), seconds)
	case n.hasMessage:
		text = fmt.Sprintf("mosh: %s [To quit: Ctrl-^ .]", string(n.message))
	default:
		text = fmt.Sprintf("mosh: Last contact %d seconds ago. [To quit: Ctrl-^ .]", seconds)
	}

	rend := cell.Renditions{Foreground: NotificationForeground, Background: NotificationBackground, Bold: true}
	col := 0
	lastWritten := -1
	for _, r := range text {
		if col >= width {
			break
		}
		switch w := cell.RuneWidth(r); w {
		case -1:
			// unprintable / NUL: dropped
		case 0:
			// combining mark: append to the last written cell (dropped
			// once that cell holds MaxCombiningPoints code points); with
			// no cell written yet it becomes its own fallback cell.
			if lastWritten >= 0 {
				c := fb.GetMutableCell(0, lastWritten)
				if len(c.Contents) < cell.MaxCombiningPoints {
					c.Contents = append(c.Contents, r)
				}
			} else {
				*fb.GetMutableCell(0, col) = cell.Cell{Contents: []rune{r}, Width: 1, Fallback: true, Renditions: rend}
				lastWritten = col
				col++
			}
		default:
			*fb.GetMutableCell(0, col) = cell.Cell{Contents: []rune{r}, Width: w, Renditions: rend}
			lastWritten = col
			col += w
		}
	}
}
