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
	"github.com/directionless/mosh/internal/clocksrc"
	"github.com/directionless/mosh/internal/terminal"
	"github.com/rs/zerolog"
)

// DisplayPreference controls whether and how aggressively speculation is
// rendered, independent of whether it is computed.
type DisplayPreference int

const (
	PredictAdaptive DisplayPreference = iota
	PredictNever
	PredictAlways
	PredictExperimental
)

// PredictionEngine owns the speculative overlay: rows of conditional
// cells and an ordered history of cursor moves, keyed to frame-ack
// numbers and a monotonically advancing epoch. It never performs I/O;
// every input arrives through an explicit call from a caller that owns
// the framebuffer and the network's ack bookkeeping.
type PredictionEngine struct {
	rows    []*conditionalOverlayRow
	cursors []conditionalCursorMove

	predictionEpoch uint64
	confirmedEpoch  uint64

	hasLastByte bool
	lastByte    byte

	localFrameSent     uint64
	localFrameAcked    uint64
	localFrameLateAcked uint64

	srtt       float64
	sendInterval float64

	srttTrigger           bool
	flagging              bool
	glitchTrigger         int
	lastQuickConfirmation uint64

	displayPreference DisplayPreference
	predictOverwrite  bool

	parser terminal.Parser
	clock  clocksrc.Clock
	log    zerolog.Logger
}

// NewPredictionEngine constructs an engine in Adaptive display mode,
// with no speculation active.
func NewPredictionEngine(clock clocksrc.Clock, log zerolog.Logger) *PredictionEngine {
	return &PredictionEngine{
		clock:             clock,
		log:               log,
		displayPreference: PredictAdaptive,
	}
}

func (p *PredictionEngine) cursor() *conditionalCursorMove {
	if len(p.cursors) == 0 {
		return nil
	}
	return &p.cursors[len(p.cursors)-1]
}

func (p *PredictionEngine) initCursor(fb *terminal.Framebuffer) {
	if len(p.cursors) != 0 {
		return
	}
	c := newConditionalCursorMove(p.predictionEpoch, fb.CursorRow, fb.CursorCol)
	c.expire(p.localFrameSent+1, p.clock.NowMs())
	p.cursors = append(p.cursors, c)
}

func (p *PredictionEngine) moveCursorTo(row, col int) {
	c := newConditionalCursorMove(p.predictionEpoch, row, col)
	c.expire(p.localFrameSent+1, p.clock.NowMs())
	p.cursors = append(p.cursors, c)
}

func (p *PredictionEngine) getOrMakeRow(rowNum, numCols int) *conditionalOverlayRow {
	for _, r := range p.rows {
		if r.rowNum == rowNum {
			return r
		}
	}
	r := newConditionalOverlayRow(rowNum, numCols, p.predictionEpoch)
	p.rows = append(p.rows, r)
	return r
}

// becomeTentative advances the prediction epoch: anything staged after
// this point is hidden until a Correct validation confirms it.
func (p *PredictionEngine) becomeTentative() {
	p.predictionEpoch++
}

// NewUserByte ingests one byte of user input, staging speculative cell
// and cursor edits against fb. fb is read but never mutated here.
func (p *PredictionEngine) NewUserByte(theByte byte, fb *terminal.Framebuffer) {
	if p.displayPreference == PredictNever {
		return
	}
	p.Cull(fb)

	// The ESC-O-for-application-cursor-keys normalization only looks at
	// the immediately preceding byte; an ESC ESC O sequence therefore
	// mis-normalizes. Preserved verbatim rather than fixed.
	if p.hasLastByte && p.lastByte == 0x1b && theByte == 'O' {
		theByte = '['
	}

	actions := p.parser.Input(theByte)
	p.hasLastByte = true
	p.lastByte = theByte

	for _, act := range actions {
		switch act.Kind {
		case terminal.Print:
			p.handlePrint(act, fb)
		case terminal.Execute:
			p.becomeTentative()
			if act.CharPresent && act.Ch == 0x0D {
				p.newlineCarriageReturn(fb)
			}
		case terminal.EscDispatch:
			p.becomeTentative()
		case terminal.CSIDispatch:
			p.handleCSI(act.Ch, fb)
		case terminal.Clear, terminal.Ignore:
			// ignored
		}
	}
}

func (p *PredictionEngine) handlePrint(act terminal.Action, fb *terminal.Framebuffer) {
	if !act.CharPresent {
		p.becomeTentative()
		return
	}
	if act.Ch == 0x7f {
		p.predictBackspace(fb)
		return
	}
	if cell.RuneWidth(act.Ch) != 1 {
		// wide, zero-width, or unprintable: we don't attempt to predict it
		p.becomeTentative()
		return
	}
	p.predictPrint(act.Ch, fb)
}

func (p *PredictionEngine) handleCSI(final rune, fb *terminal.Framebuffer) {
	switch final {
	case 'C':
		p.initCursor(fb)
		cur := p.cursor()
		col := cur.col + 1
		if col >= fb.Width() {
			col = fb.Width() - 1
		}
		p.moveCursorTo(cur.row, col)
	case 'D':
		p.initCursor(fb)
		cur := p.cursor()
		col := cur.col - 1
		if col < 0 {
			col = 0
		}
		p.moveCursorTo(cur.row, col)
	default:
		p.becomeTentative()
	}
}

func (p *PredictionEngine) predictPrint(ch rune, fb *terminal.Framebuffer) {
	p.initCursor(fb)
	cur := p.cursor()
	width := fb.Width()

	if cur.col == width-1 {
		// wrap behavior is the emulator's call, not ours; keep going
		// under a fresh epoch so the guess is hidden until confirmed.
		p.becomeTentative()
	}

	if !p.predictOverwrite && !fb.GetCell(cur.row, cur.col).IsBlank() {
		p.becomeTentative()
		return
	}

	row := p.getOrMakeRow(cur.row, width)
	epoch := p.predictionEpoch
	frame := p.localFrameSent + 1
	now := p.clock.NowMs()

	for i := width - 1; i > cur.col; i-- {
		src := &row.cells[i-1]
		dst := &row.cells[i]

		var replacement cell.Cell
		var unknown bool
		switch {
		case src.active && src.unknown:
			unknown = true
		case src.active:
			replacement = src.replacement
		default:
			replacement = fb.GetCell(cur.row, i-1)
		}

		orig := fb.GetCell(cur.row, i)
		dst.resetWithOrig()
		dst.originalContents = append(dst.originalContents, orig)
		dst.active = true
		dst.tentativeUntilEpoch = epoch
		dst.expire(frame, now)
		if i == width-1 {
			dst.unknown = true
		} else {
			dst.unknown = unknown
			dst.replacement = replacement
		}
	}

	c := &row.cells[cur.col]
	orig := fb.GetCell(cur.row, cur.col)
	c.resetWithOrig()
	c.originalContents = append(c.originalContents, orig)
	c.active = true
	c.replacement = cell.Cell{Contents: []rune{ch}, Width: 1, Renditions: fb.Renditions}
	c.tentativeUntilEpoch = epoch
	c.expire(frame, now)

	if cur.col+1 < width {
		p.moveCursorTo(cur.row, cur.col+1)
	} else {
		p.becomeTentative()
		p.newlineCarriageReturn(fb)
	}
}

func (p *PredictionEngine) predictBackspace(fb *terminal.Framebuffer) {
	p.initCursor(fb)
	cur := p.cursor()
	if cur.col == 0 {
		return
	}
	width := fb.Width()
	newCol := cur.col - 1
	row := p.getOrMakeRow(cur.row, width)
	epoch := p.predictionEpoch
	frame := p.localFrameSent + 1
	now := p.clock.NowMs()

	for i := newCol; i < width; i++ {
		dst := &row.cells[i]

		var replacement cell.Cell
		var unknown bool
		if i+1 < width {
			src := &row.cells[i+1]
			switch {
			case src.active && src.unknown:
				unknown = true
			case src.active:
				replacement = src.replacement
			default:
				replacement = fb.GetCell(cur.row, i+1)
			}
		} else {
			unknown = true
		}

		orig := fb.GetCell(cur.row, i)
		dst.resetWithOrig()
		dst.originalContents = append(dst.originalContents, orig)
		dst.active = true
		dst.tentativeUntilEpoch = epoch
		dst.unknown = unknown
		dst.replacement = replacement
		dst.expire(frame, now)
	}

	p.moveCursorTo(cur.row, newCol)
}

func (p *PredictionEngine) newlineCarriageReturn(fb *terminal.Framebuffer) {
	p.initCursor(fb)
	cur := p.cursor()
	width := fb.Width()
	frame := p.localFrameSent + 1
	now := p.clock.NowMs()

	if cur.row == fb.Height()-1 {
		for _, r := range p.rows {
			r.rowNum--
			for i := range r.cells {
				if r.cells[i].active {
					r.cells[i].expire(frame, now)
				}
			}
		}
		newRow := newConditionalOverlayRow(fb.Height()-1, width, p.predictionEpoch)
		for i := range newRow.cells {
			c := &newRow.cells[i]
			c.active = true
			c.replacement = cell.Blank()
			c.tentativeUntilEpoch = p.predictionEpoch
			c.expire(frame, now)
		}
		p.rows = append(p.rows, newRow)
		p.moveCursorTo(fb.Height()-1, 0)
	} else {
		p.moveCursorTo(cur.row+1, 0)
	}
}

// Cull reconciles all staged predictions against fb and the latest ack
// bookkeeping. It must be called with monotonically non-decreasing
// local_frame_acked/late_acked.
func (p *PredictionEngine) Cull(fb *terminal.Framebuffer) {
	now := p.clock.NowMs()

	if p.sendInterval > SRTTTriggerHigh {
		p.srttTrigger = true
	} else if p.sendInterval <= SRTTTriggerLow {
		p.srttTrigger = false
	}
	if p.sendInterval > FlagTriggerHigh {
		p.flagging = true
	} else if p.sendInterval <= FlagTriggerLow {
		p.flagging = false
	}

	kept := p.rows[:0]
	for _, r := range p.rows {
		if r.rowNum < 0 || r.rowNum >= fb.Height() {
			continue
		}
		kept = append(kept, r)
	}
	p.rows = kept

	for _, r := range p.rows {
		for i := range r.cells {
			c := &r.cells[i]
			switch c.getValidity(fb, r.rowNum, p.localFrameLateAcked) {
			case IncorrectOrExpired:
				if c.tentative(p.confirmedEpoch) {
					p.log.Debug().Uint64("epoch", c.tentativeUntilEpoch).Msg("kill_epoch: wrong tentative prediction")
					p.killEpoch(c.tentativeUntilEpoch, fb)
				} else {
					p.log.Debug().Msg("reset: wrong confirmed prediction")
					p.Reset()
					return
				}
			case Correct:
				if p.confirmedEpoch < c.tentativeUntilEpoch {
					p.confirmedEpoch = c.tentativeUntilEpoch
				}
				if now-c.predictionTime < GlitchThreshold && now-p.lastQuickConfirmation >= GlitchRepairMinInterval {
					if p.glitchTrigger > 0 {
						p.glitchTrigger--
					}
					p.lastQuickConfirmation = now
				}
				c.reset()
			case CorrectNoCredit:
				c.reset()
			case Pending:
				if now-c.predictionTime >= GlitchThreshold {
					p.glitchTrigger = GlitchRepairCount
				}
			case Inactive:
			}
		}
	}

	if cur := p.cursor(); cur != nil {
		if cur.getValidity(fb, p.localFrameLateAcked) == IncorrectOrExpired {
			p.log.Debug().Msg("reset: wrong cursor prediction")
			p.Reset()
			return
		}
	}

	keptCursors := p.cursors[:0]
	for i := range p.cursors {
		if p.cursors[i].getValidity(fb, p.localFrameLateAcked) == Pending {
			keptCursors = append(keptCursors, p.cursors[i])
		}
	}
	p.cursors = keptCursors
}

// killEpoch abandons predictions that belong to a single proven-wrong
// tentative epoch, without discarding speculation built on other epochs.
func (p *PredictionEngine) killEpoch(epoch uint64, fb *terminal.Framebuffer) {
	kept := p.cursors[:0]
	for _, c := range p.cursors {
		// spec: drop cursor predictions whose tentative_until_epoch < epoch
		if c.tentativeUntilEpoch >= epoch {
			kept = append(kept, c)
		}
	}
	p.cursors = kept

	fresh := newConditionalCursorMove(p.predictionEpoch, fb.CursorRow, fb.CursorCol)
	fresh.expire(p.localFrameSent+1, p.clock.NowMs())
	p.cursors = append(p.cursors, fresh)

	for _, r := range p.rows {
		for i := range r.cells {
			if r.cells[i].active && r.cells[i].tentativeUntilEpoch == epoch {
				r.cells[i].reset()
			}
		}
	}

	p.becomeTentative()
}

// Apply renders every non-tentative prediction onto fb, gated by display
// preference and the hysteresis triggers.
func (p *PredictionEngine) Apply(fb *terminal.Framebuffer) {
	show := p.displayPreference != PredictNever &&
		(p.srttTrigger || p.glitchTrigger > 0 ||
			p.displayPreference == PredictAlways || p.displayPreference == PredictExperimental)
	if !show {
		return
	}
	for _, r := range p.rows {
		r.apply(fb, p.confirmedEpoch, p.flagging)
	}
	if cur := p.cursor(); cur != nil {
		cur.apply(fb, p.confirmedEpoch)
	}
}

// Reset drops all speculation and begins a new tentative epoch. Safe to
// call repeatedly; idempotent.
func (p *PredictionEngine) Reset() {
	p.rows = nil
	p.cursors = nil
	p.becomeTentative()
}

// Active reports whether any speculation -- cell or cursor -- is
// currently staged.
func (p *PredictionEngine) Active() bool {
	if len(p.cursors) > 0 {
		return true
	}
	for _, r := range p.rows {
		for i := range r.cells {
			if r.cells[i].active {
				return true
			}
		}
	}
	return false
}

func (p *PredictionEngine) SetDisplayPreference(pref DisplayPreference) {
	p.displayPreference = pref
}

func (p *PredictionEngine) DisplayPreference() DisplayPreference {
	return p.displayPreference
}

// SetPredictOverwrite controls whether printing over a non-blank cell is
// speculated at all. Mosh's real predictor is conservative here because a
// wrong guess over existing content is more visually disruptive than one
// over blank space; this mirrors that knob.
func (p *PredictionEngine) SetPredictOverwrite(enabled bool) {
	p.predictOverwrite = enabled
}

func (p *PredictionEngine) PredictOverwrite() bool {
	return p.predictOverwrite
}

func (p *PredictionEngine) SetLocalFrameSent(v uint64)      { p.localFrameSent = v }
func (p *PredictionEngine) SetLocalFrameAcked(v uint64)     { p.localFrameAcked = v }
func (p *PredictionEngine) SetLocalFrameLateAcked(v uint64) { p.localFrameLateAcked = v }
func (p *PredictionEngine) SetSendInterval(ms float64)      { p.sendInterval = ms }
func (p *PredictionEngine) SetSRTT(ms float64)              { p.srtt = ms }
