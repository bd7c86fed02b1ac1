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

import "github.com/directionless/mosh/internal/terminal"

// TitleEngine holds the window-title prefix and installs it on the
// framebuffer. Not latency-sensitive -- there is no hysteresis here.
type TitleEngine struct {
	prefix []rune
}

// SetPrefix replaces the title prefix.
func (t *TitleEngine) SetPrefix(s []rune) {
	t.prefix = append(t.prefix[:0], s...)
}

// Apply installs the current prefix onto fb's title.
func (t *TitleEngine) Apply(fb *terminal.Framebuffer) {
	fb.SetTitlePrefix(t.prefix)
}
