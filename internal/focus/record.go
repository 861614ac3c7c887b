package focus

import (
	"time"

	"github.com/google/uuid"
)

// Record is the finalized result of one session
type Record struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId,omitempty"`
	StartTime  time.Time        `json:"startTime"`
	EndTime    time.Time        `json:"endTime"`
	LookingMs  int64            `json:"lookingMs"`
	AwayMs     int64            `json:"awayMs"`
	Activity   map[string]int64 `json:"activity"`        // app name -> ms
	Sites      map[string]int64 `json:"sites,omitempty"` // hostname -> ms
	FocusScore int              `json:"focusScore"`
}

// NewRecordID returns a fresh session identifier
func NewRecordID() string {
	return uuid.New().String()
}

// Duration returns the wall-clock length of the session
func (r Record) Duration() time.Duration {
	if r.EndTime.Before(r.StartTime) {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Looking returns the looking time as a duration
func (r Record) Looking() time.Duration {
	return time.Duration(r.LookingMs) * time.Millisecond
}

// Away returns the away time as a duration
func (r Record) Away() time.Duration {
	return time.Duration(r.AwayMs) * time.Millisecond
}

// TopApp returns the app with the most time and its milliseconds, or "" if none
func (r Record) TopApp() (string, int64) {
	var best string
	var bestMs int64
	for app, ms := range r.Activity {
		if ms > bestMs || (ms == bestMs && app < best) {
			best, bestMs = app, ms
		}
	}
	return best, bestMs
}

func toMillis(m map[string]time.Duration) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v.Milliseconds()
	}
	return out
}
