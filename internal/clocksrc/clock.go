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

// Package clocksrc supplies the millisecond wall-clock collaborator the
// overlay engines consult. It is passed in explicitly rather than read
// from a package global, so tests can substitute a fixed or stepped
// clock (see spec Design Notes: "pass the clock in explicitly to ease
// testing").
package clocksrc

import "time"

// Clock produces monotonic millisecond timestamps.
type Clock interface {
	NowMs() uint64
}

// System is the real wall-clock implementation, backed by time.Now.
type System struct{}

// NowMs returns the current time in milliseconds since the Unix epoch.
func (System) NowMs() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// Fixed is a test clock that always reports the same instant until
// manually advanced.
type Fixed struct {
	Ms uint64
}

// NowMs returns the clock's current value.
func (f *Fixed) NowMs() uint64 {
	return f.Ms
}

// Advance moves the fixed clock forward by the given number of
// milliseconds.
func (f *Fixed) Advance(ms uint64) {
	f.Ms += ms
}
