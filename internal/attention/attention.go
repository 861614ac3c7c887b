// Package attention classifies per-frame presence and gaze into an attention
// state with temporal hysteresis, and accumulates time spent per state.
package attention

import (
	"math"
	"time"

	"github.com/vthunder/focuspet/internal/landmarks"
	"github.com/vthunder/focuspet/internal/logging"
)

// ema is an exponential moving average seeded by its first value
type ema struct {
	value  float64
	seeded bool
}

func (e *ema) update(v, alpha float64) float64 {
	if !e.seeded {
		e.value, e.seeded = v, true
		return v
	}
	e.value += alpha * (v - e.value)
	return e.value
}

// Machine is the attention state machine for one session.
// It is not safe for concurrent use; the owning session loop is the only writer.
type Machine struct {
	th        Thresholds
	state     State
	enteredAt time.Time
	totals    Durations

	emaX, emaY ema

	lastSeen        time.Time // last tick with a face (absence reference)
	presentSince    time.Time // start of continuous presence
	offDirSince     time.Time
	eyesClosedSince time.Time

	listeners []Listener
	last      Transition
}

// New creates a machine in the Idle state
func New(th Thresholds) *Machine {
	th.Normalize()
	return &Machine{th: th, state: Idle}
}

// AddListener registers a transition callback
func (m *Machine) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Thresholds returns the active configuration
func (m *Machine) Thresholds() Thresholds { return m.th }

// State returns the current state
func (m *Machine) State() State { return m.state }

// Smoothed returns the current smoothed gaze offsets
func (m *Machine) Smoothed() (dx, dy float64) { return m.emaX.value, m.emaY.value }

// Reset starts a fresh session at now: Idle, zero totals, no hysteresis timers.
// The session start counts as the last presence reference so that a user who
// never shows up is classified Away after the absence window.
func (m *Machine) Reset(now time.Time) {
	m.state = Idle
	m.enteredAt = now
	m.totals = Durations{}
	m.emaX, m.emaY = ema{}, ema{}
	m.lastSeen = now
	m.presentSince = time.Time{}
	m.offDirSince = time.Time{}
	m.eyesClosedSince = time.Time{}
}

// Tick advances the machine by one frame. sample is ignored when present is
// false. The returned transition is the zero value when the state did not change.
func (m *Machine) Tick(now time.Time, present bool, sample landmarks.GazeSample) Transition {
	m.last = Transition{}

	// 1. presence
	if !present {
		m.presentSince = time.Time{}
		if !m.lastSeen.IsZero() && now.Sub(m.lastSeen) >= m.th.Absent {
			m.forceAway(now, ReasonAbsent)
		}
		return m.last
	}
	m.lastSeen = now
	if m.presentSince.IsZero() {
		m.presentSince = now
	}

	// 2. smoothing
	x := m.emaX.update(sample.DX, m.th.Alpha)
	y := m.emaY.update(sample.DY, m.th.Alpha)

	// 3. off-direction
	offDir := math.Abs(x) > m.th.GazeXMax || y > m.th.GazeYMaxDown || y < -m.th.GazeYMaxUp
	offHeld := false
	if offDir {
		if m.offDirSince.IsZero() {
			m.offDirSince = now
		}
		offHeld = now.Sub(m.offDirSince) >= m.th.DirectionHold
		if offHeld && m.state == Looking {
			m.forceAway(now, ReasonOffDirection)
		}
	} else {
		m.offDirSince = time.Time{}
	}

	closed := sample.LidRatio < m.th.BlinkGapRatio
	closedHeld := closed && !m.eyesClosedSince.IsZero() && now.Sub(m.eyesClosedSince) >= m.th.EyesClosed

	// 4. looking confirmation; a tick whose off-screen or closed-eyes hold has
	// already expired would be forced straight back to Away, so it does not confirm.
	if m.state != Looking && !m.presentSince.IsZero() && now.Sub(m.presentSince) >= m.th.Present && !offHeld && !closedHeld {
		m.transition(now, Looking, ReasonPresent)
	}

	// 5. closed eyes
	if closed {
		if m.eyesClosedSince.IsZero() {
			m.eyesClosedSince = now
		}
		if m.state == Looking && now.Sub(m.eyesClosedSince) >= m.th.EyesClosed {
			m.forceAway(now, ReasonEyesClosed)
		}
	} else {
		m.eyesClosedSince = time.Time{}
	}
	return m.last
}

// forceAway moves to Away and drops the presence marker so Looking has to be
// re-earned with a full presence window.
func (m *Machine) forceAway(now time.Time, reason Reason) {
	m.transition(now, Away, reason)
	m.presentSince = time.Time{}
}

// transition flushes the elapsed time of the previous state and enters next.
// Same-state transitions are no-ops.
func (m *Machine) transition(now time.Time, next State, reason Reason) {
	prev := m.state
	if prev == next {
		return
	}
	elapsed := m.open(now)
	switch prev {
	case Looking:
		m.totals.Looking += elapsed
	case Away:
		m.totals.Away += elapsed
	}
	m.state = next
	m.enteredAt = now

	logging.Debug("attention", "%s -> %s (%s, %dms)", prev, next, reason, logging.Millis(elapsed))

	tr := Transition{From: prev, To: next, At: now, Reason: reason, Elapsed: elapsed}
	m.last = tr
	for _, l := range m.listeners {
		l(tr)
	}
}

// open returns the time spent in the current state so far, never negative
func (m *Machine) open(now time.Time) time.Duration {
	if m.enteredAt.IsZero() || now.Before(m.enteredAt) {
		return 0
	}
	return now.Sub(m.enteredAt)
}

// Durations returns accumulated totals including the still-open interval
func (m *Machine) Durations(now time.Time) Durations {
	d := m.totals
	switch m.state {
	case Looking:
		d.Looking += m.open(now)
	case Away:
		d.Away += m.open(now)
	}
	return d
}

// Finish closes the open interval, returns to Idle and discards all
// hysteresis timers. The returned totals are final for the session.
func (m *Machine) Finish(now time.Time) Durations {
	m.idle(now, ReasonFinish)
	return m.totals
}

// Pause closes the open interval and parks the machine in Idle without
// clearing totals. Ticks are meaningless until Resume.
func (m *Machine) Pause(now time.Time) {
	m.idle(now, ReasonPause)
}

// Resume restarts classification at now, keeping accumulated totals
func (m *Machine) Resume(now time.Time) {
	if m.state != Idle {
		return
	}
	m.enteredAt = now
	m.lastSeen = now
	m.emaX, m.emaY = ema{}, ema{}
}

func (m *Machine) idle(now time.Time, reason Reason) {
	m.transition(now, Idle, reason)
	m.lastSeen = time.Time{}
	m.presentSince = time.Time{}
	m.offDirSince = time.Time{}
	m.eyesClosedSince = time.Time{}
}
