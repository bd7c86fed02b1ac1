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

// Package overlay implements Mosh's client-side predictive local-echo
// overlay: the prediction engine, notification engine, title engine, and
// the manager that composes all three onto a framebuffer just before
// render. This is a from-scratch Go port of
// original_source/src/frontend/terminaloverlay.cc, kept line-for-line
// faithful to that implementation's control flow and edge cases.
package overlay

// Hysteresis and hold-timing constants, normative per the specification
// this package implements (all in milliseconds unless noted).
const (
	SRTTTriggerLow  = 20
	SRTTTriggerHigh = 250

	FlagTriggerLow  = 100
	FlagTriggerHigh = 5000

	GlitchThreshold         = 250
	GlitchRepairCount       = 10
	GlitchRepairMinInterval = 50

	NotificationCountupThreshold = 6000
)

// Notification bar rendition, per spec: white-on-blue with bold content.
const (
	NotificationForeground = 37
	NotificationBackground = 44
)
