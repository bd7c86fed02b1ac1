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
	"github.com/directionless/mosh/internal/clocksrc"
	"github.com/directionless/mosh/internal/terminal"
	"github.com/rs/zerolog"
)

// OverlayManager composes the prediction, notification, and title
// overlays onto a framebuffer just before render, and computes how long
// the outer event loop may sleep before the next render is due.
type OverlayManager struct {
	Predictions   *PredictionEngine
	Notifications *NotificationEngine
	Title         *TitleEngine

	clock clocksrc.Clock
}

// NewOverlayManager wires up all three engines against a shared clock.
func NewOverlayManager(clock clocksrc.Clock, log zerolog.Logger) *OverlayManager {
	return &OverlayManager{
		Predictions:   NewPredictionEngine(clock, log),
		Notifications: NewNotificationEngine(clock),
		Title:         &TitleEngine{},
		clock:         clock,
	}
}

// Apply runs cull/apply across all three engines in the order the
// prediction layer depends on: reconcile predictions against the latest
// acks, render surviving predictions, then lay notifications and the
// title prefix on top.
func (m *OverlayManager) Apply(fb *terminal.Framebuffer) {
	m.Predictions.Cull(fb)
	m.Predictions.Apply(fb)
	m.Notifications.AdjustMessage()
	m.Notifications.Apply(fb)
	m.Title.Apply(fb)
}

// noDeadline is the "no known deadline" sentinel, analogous to INT_MAX
// in the original implementation.
const noDeadline = ^uint64(0) >> 1

// WaitTime reports, in milliseconds, the longest the outer event loop
// may sleep before a render is needed again.
func (m *OverlayManager) WaitTime() uint64 {
	wait := uint64(noDeadline)
	now := m.clock.NowMs()

	if m.Notifications.hasMessage && m.Notifications.messageExpiration != 0 {
		if m.Notifications.messageExpiration > now {
			if d := m.Notifications.messageExpiration - now; d < wait {
				wait = d
			}
		} else {
			wait = 0
		}
	}

	if m.Notifications.NeedCountup(now) && 1000 < wait {
		wait = 1000
	}

	if m.Predictions.Active() && 20 < wait {
		wait = 20
	}

	return wait
}
