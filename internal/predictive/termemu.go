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

package predictive

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/directionless/mosh/internal/clocksrc"
	"github.com/directionless/mosh/internal/overlay"
	"github.com/directionless/mosh/internal/terminal"
	"github.com/rs/zerolog"
)

// Version identifies this package's from-scratch reimplementation of the
// predictive terminal overlay -- there is no longer a C++ Mosh library
// underneath it to ask for a version string.
const Version = "nosshtradamus-native/2.0"

// GetVersion reports the predictive backend's version identifier.
func GetVersion() string {
	return Version
}

// DisplayPreference re-exports overlay's display-preference enum at the
// predictive package boundary, so callers driving an Interposer never
// need to import internal/overlay directly.
type DisplayPreference = overlay.DisplayPreference

const (
	PredictAdaptive     = overlay.PredictAdaptive
	PredictNever        = overlay.PredictNever
	PredictAlways       = overlay.PredictAlways
	PredictExperimental = overlay.PredictExperimental
)

// DefaultCoalesceInterval bounds how often two upstream updates arriving
// in quick succession are collapsed into a single rendered frame.
const DefaultCoalesceInterval = time.Second / 60

// DefaultDisplayPreference is the most aggressive predictive mode.
const DefaultDisplayPreference = PredictExperimental

// DefaultDisplayPredictOverwrites enables speculation over non-blank
// cells, for maximum prediction aggression.
const DefaultDisplayPredictOverwrites = true

// InterposerOptions configures a new Interposer.
type InterposerOptions struct {
	DisplayPreference DisplayPreference
	PredictOverwrite  bool
	CoalesceInterval  time.Duration
	Log               zerolog.Logger
}

// GetDefaultInterposerOptions returns the engine's recommended defaults.
func GetDefaultInterposerOptions() InterposerOptions {
	return InterposerOptions{
		DisplayPreference: DefaultDisplayPreference,
		PredictOverwrite:  DefaultDisplayPredictOverwrites,
		CoalesceInterval:  DefaultCoalesceInterval,
		Log:               zerolog.Nop(),
	}
}

// Interposer sits between an SSH channel and the byte stream an
// interactive session actually exchanges with the remote shell. Writes
// (user keystrokes) are forwarded upstream unchanged and also staged as
// speculative predictions; reads (remote output) are fed through a
// local terminal emulator so the prediction overlay can be composited
// on top before the result is handed back to the real terminal.
//
// Design notes, carried over from studying the original Mosh client
// (stmclient.cc) and the predictive-overlay test harness (benchmark.cc):
//   - The client keeps two framebuffers: the last frame actually drawn,
//     and the newly computed one (remote state plus overlay). Display.
//     NewFrame diffs the two and only emits escape sequences for cells
//     that changed. That two-framebuffer bookkeeping is state/lastRender
//     below.
//   - A resize is not something the prediction engine can guess the
//     outcome of, so it unconditionally resets prediction state.
//   - Display.Open()/Close() bracket the interposed session with the
//     sequences that enter/leave application-cursor-key mode; these are
//     queued ahead of the first real frame and after the last one.
type Interposer struct {
	upstream *Epochal

	coalesceInterval time.Duration
	lastRender       time.Time

	pending        *bytes.Buffer
	upstreamBuffer []byte

	width, height int

	controlMutex, emulatorMutex sync.Mutex

	state    *terminal.Framebuffer
	display  *terminal.Display
	emulator *terminal.Complete
	manager  *overlay.OverlayManager

	clock clocksrc.Clock
	log   zerolog.Logger

	opened, initialized bool
}

// Interpose wraps rwc (typically an SSH channel) with predictive local
// echo. requestGenerator is invoked once per upstream Write -- the
// write itself stands in for Mosh's per-datagram frame sequencing,
// since this runs over an SSH channel rather than raw UDP -- and is
// expected to round-trip a ping/pong over the control channel and then
// call the returned Interposer's CloseEpoch.
func Interpose(rwc io.ReadWriteCloser, requestGenerator func(interposer *Interposer, epoch uint64, openedAt time.Time),
	options InterposerOptions) *Interposer {

	clock := clocksrc.System{}
	log := options.Log

	i := &Interposer{
		coalesceInterval: options.CoalesceInterval,
		width:            80,
		height:           24,
		emulator:         terminal.MakeComplete(80, 24),
		display:          terminal.NewDisplay(true),
		clock:            clock,
		log:              log,
	}
	i.manager = overlay.NewOverlayManager(clock, log)
	i.manager.Predictions.SetDisplayPreference(options.DisplayPreference)
	i.manager.Predictions.SetPredictOverwrite(options.PredictOverwrite)
	i.state = i.emulator.GetFramebuffer().Clone()

	i.upstream = MakeEpochal(rwc, func(_ *Epochal, epoch uint64) {
		i.manager.Predictions.SetLocalFrameSent(epoch)
		if requestGenerator != nil {
			requestGenerator(i, epoch, time.Now())
		}
	}, func(epoch uint64, _ bool, latency time.Duration) {
		i.manager.Predictions.SetLocalFrameAcked(epoch)
		i.manager.Predictions.SetLocalFrameLateAcked(epoch)
		i.manager.Predictions.SetSendInterval(float64(latency.Milliseconds()))
	})

	return i
}

// Close tears down the interposed session, queuing the terminal's
// close sequence ahead of the upstream close.
func (i *Interposer) Close() error {
	if i.opened {
		i.queue([]byte(i.display.Close()))
	}
	return i.upstream.Close()
}

// Read returns printable output: queued display-control bytes first,
// then the diff between the last frame shown and the latest remote
// state (with the prediction/notification/title overlay composited on
// top).
func (i *Interposer) Read(p []byte) (int, error) {
	i.controlMutex.Lock()
	if i.pending != nil {
		n, err := i.pending.Read(p)
		if err == io.EOF {
			i.pending = nil
			err = nil
		}
		i.controlMutex.Unlock()
		if n > 0 || err != nil {
			return n, err
		}
	} else {
		i.controlMutex.Unlock()
	}

	if !i.opened {
		i.opened = true
		return i.deliver(p, []byte(i.display.Open()))
	}

	if len(i.upstreamBuffer) < len(p) {
		i.upstreamBuffer = make([]byte, len(p))
	}
	n, err := i.upstream.Read(i.upstreamBuffer)
	if n > 0 {
		frame := i.renderFrame(i.upstreamBuffer[:n])
		if err != nil && err != io.EOF {
			m, _ := i.deliver(p, frame)
			return m, err
		}
		if err == io.EOF {
			i.queue([]byte(i.display.Close()))
		}
		if len(frame) == 0 {
			return 0, nil
		}
		return i.deliver(p, frame)
	}
	if err == io.EOF {
		return i.deliver(p, []byte(i.display.Close()))
	}
	return 0, err
}

// renderFrame feeds newly-read remote output through the emulator and,
// once the coalesce interval has elapsed since the last emitted frame,
// returns the escape-sequence diff to draw. Before that interval has
// elapsed it returns nil without losing the update -- i.state is left
// unadvanced, so the next render diffs across the whole coalesced span.
func (i *Interposer) renderFrame(data []byte) []byte {
	i.emulatorMutex.Lock()
	defer i.emulatorMutex.Unlock()

	i.emulator.Perform(string(data))
	i.manager.Notifications.ServerHeard(i.clock.NowMs())

	fb := i.emulator.GetFramebuffer().Clone()
	i.manager.Apply(fb)

	now := time.Now()
	if i.initialized && i.coalesceInterval > 0 && now.Sub(i.lastRender) < i.coalesceInterval {
		return nil
	}

	emission := []byte(i.display.NewFrame(i.initialized, i.state, fb))
	i.initialized = true
	i.state = fb
	i.lastRender = now
	return emission
}

// Write forwards user input upstream unchanged, and separately stages
// it as speculative prediction against the emulator's current (i.e.
// authoritative, last-confirmed) framebuffer. The remote shell, not
// this process, is the one that actually interprets these bytes --
// speculation only ever reads the framebuffer here, never mutates it.
func (i *Interposer) Write(p []byte) (int, error) {
	i.emulatorMutex.Lock()
	fb := i.emulator.GetFramebuffer()
	for _, b := range p {
		i.manager.Predictions.NewUserByte(b, fb)
	}
	i.emulatorMutex.Unlock()

	return i.upstream.Write(p)
}

// Resize changes the interposed terminal's geometry, e.g. in response
// to a forwarded pty-req or window-change request. Like a real Mosh
// client, a resize drops all in-flight predictions -- its effect on the
// remote display is not something local speculation can anticipate.
func (i *Interposer) Resize(w, h int) {
	i.emulatorMutex.Lock()
	defer i.emulatorMutex.Unlock()
	i.width, i.height = w, h
	i.emulator.Resize(w, h)
	i.manager.Predictions.Reset()
}

// ChangeDisplayPreference adjusts how aggressively speculation is shown.
func (i *Interposer) ChangeDisplayPreference(pref DisplayPreference) {
	i.emulatorMutex.Lock()
	defer i.emulatorMutex.Unlock()
	i.manager.Predictions.SetDisplayPreference(pref)
}

// ChangeOverwritePrediction toggles speculation over non-blank cells.
func (i *Interposer) ChangeOverwritePrediction(enabled bool) {
	i.emulatorMutex.Lock()
	defer i.emulatorMutex.Unlock()
	i.manager.Predictions.SetPredictOverwrite(enabled)
}

// CloseEpoch reports that the ping/pong round trip requestGenerator
// initiated for epoch has completed, letting the prediction engine
// update its frame-ack/RTT bookkeeping.
func (i *Interposer) CloseEpoch(epoch uint64, openedAt time.Time) {
	i.upstream.ResponseTo(epoch, openedAt)
}

// CurrentContents produces the escape-sequence patch that transforms a
// freshly reset terminal into one showing the interposer's current
// display contents, for (re)synchronizing a newly attached viewer.
func (i *Interposer) CurrentContents() string {
	i.emulatorMutex.Lock()
	width, height := i.width, i.height
	fb := i.emulator.GetFramebuffer()
	i.emulatorMutex.Unlock()

	blank := terminal.NewFramebuffer(width, height)
	return i.display.NewFrame(false, blank, fb)
}

// deliver copies data into p, queuing whatever doesn't fit for the next
// Read call.
func (i *Interposer) deliver(p []byte, data []byte) (int, error) {
	n := copy(p, data)
	if n < len(data) {
		i.queue(data[n:])
	}
	return n, nil
}

func (i *Interposer) queue(data []byte) {
	i.controlMutex.Lock()
	defer i.controlMutex.Unlock()
	if i.pending == nil {
		i.pending = &bytes.Buffer{}
	}
	i.pending.Write(data)
}
