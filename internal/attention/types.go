package attention

import "time"

// State is the attention classification of the user
type State int

const (
	Idle    State = iota // no session, or not yet classified
	Looking              // face present, eyes open, gaze on screen
	Away                 // absent, eyes closed, or gaze off screen
)

// String returns a string representation of State
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Looking:
		return "looking"
	case Away:
		return "away"
	default:
		return "unknown"
	}
}

// Thresholds configures the hysteresis windows and gaze limits
type Thresholds struct {
	Absent        time.Duration `yaml:"absent"`         // no face this long -> away
	Present       time.Duration `yaml:"present"`        // face this long -> looking
	EyesClosed    time.Duration `yaml:"eyes_closed"`    // continuous closure -> away
	DirectionHold time.Duration `yaml:"direction_hold"` // off-screen gaze this long -> away

	GazeXMax      float64 `yaml:"gaze_x_max"`      // left/right limit
	GazeYMaxDown  float64 `yaml:"gaze_y_max_down"` // looking down past this (phone)
	GazeYMaxUp    float64 `yaml:"gaze_y_max_up"`   // looking far up
	BlinkGapRatio float64 `yaml:"blink_gap_ratio"` // lid gap / eye width below this = closed
	Alpha         float64 `yaml:"alpha"`           // EMA smoothing factor
}

// DefaultThresholds returns the tuned defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		Absent:        800 * time.Millisecond,
		Present:       400 * time.Millisecond,
		EyesClosed:    600 * time.Millisecond,
		DirectionHold: 600 * time.Millisecond,
		GazeXMax:      0.6,
		GazeYMaxDown:  0.35,
		GazeYMaxUp:    0.5,
		BlinkGapRatio: 0.025,
		Alpha:         0.25,
	}
}

// Normalize replaces non-positive values with defaults
func (t *Thresholds) Normalize() {
	d := DefaultThresholds()
	if t.Absent <= 0 {
		t.Absent = d.Absent
	}
	if t.Present <= 0 {
		t.Present = d.Present
	}
	if t.EyesClosed <= 0 {
		t.EyesClosed = d.EyesClosed
	}
	if t.DirectionHold <= 0 {
		t.DirectionHold = d.DirectionHold
	}
	if t.GazeXMax <= 0 {
		t.GazeXMax = d.GazeXMax
	}
	if t.GazeYMaxDown <= 0 {
		t.GazeYMaxDown = d.GazeYMaxDown
	}
	if t.GazeYMaxUp <= 0 {
		t.GazeYMaxUp = d.GazeYMaxUp
	}
	if t.BlinkGapRatio <= 0 {
		t.BlinkGapRatio = d.BlinkGapRatio
	}
	if t.Alpha <= 0 || t.Alpha > 1 {
		t.Alpha = d.Alpha
	}
}

// Reason explains why a transition happened
type Reason string

const (
	ReasonPresent      Reason = "present"
	ReasonAbsent       Reason = "absent"
	ReasonOffDirection Reason = "off_direction"
	ReasonEyesClosed   Reason = "eyes_closed"
	ReasonFinish       Reason = "finish"
	ReasonPause        Reason = "pause"
)

// Transition records a state change
type Transition struct {
	From    State
	To      State
	At      time.Time
	Reason  Reason
	Elapsed time.Duration // time spent in From
}

// Changed reports whether t describes an actual state change
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Listener is called on each successful state transition
type Listener func(Transition)

// Durations holds accumulated time per counted state
type Durations struct {
	Looking time.Duration
	Away    time.Duration
}

// Total returns looking + away
func (d Durations) Total() time.Duration {
	return d.Looking + d.Away
}
