package focus

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name          string
		looking, away time.Duration
		want          int
	}{
		{"three quarters", 3 * time.Second, time.Second, 75},
		{"all looking", time.Minute, 0, 100},
		{"all away", 0, time.Minute, 0},
		{"nothing classified", 0, 0, 0},
		{"rounds half up", 1 * time.Millisecond, 7 * time.Millisecond, 13}, // 12.5
		{"negative clamped", -time.Second, time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.looking, tt.away); got != tt.want {
				t.Errorf("Score(%v, %v) = %d, want %d", tt.looking, tt.away, got, tt.want)
			}
		})
	}
}

func TestScoreInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := time.Duration(rapid.Int64Range(0, int64(10*time.Hour)).Draw(rt, "looking"))
		a := time.Duration(rapid.Int64Range(0, int64(10*time.Hour)).Draw(rt, "away"))
		s := Score(l, a)
		if s < 0 || s > 100 {
			rt.Fatalf("score %d out of range", s)
		}
		if l > a && s < 50 {
			rt.Fatalf("looking %v > away %v but score %d", l, a, s)
		}
	})
}

func TestRecordHelpers(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := Record{
		StartTime: start,
		EndTime:   start.Add(90 * time.Second),
		LookingMs: 60000,
		AwayMs:    30000,
		Activity:  map[string]int64{"Code": 50000, "Slack": 40000},
	}
	if r.Duration() != 90*time.Second {
		t.Errorf("Duration = %v", r.Duration())
	}
	if r.Looking() != time.Minute || r.Away() != 30*time.Second {
		t.Errorf("Looking/Away = %v/%v", r.Looking(), r.Away())
	}
	if app, ms := r.TopApp(); app != "Code" || ms != 50000 {
		t.Errorf("TopApp = %s %d", app, ms)
	}
	if id := NewRecordID(); len(id) != 36 || id == NewRecordID() {
		t.Errorf("bad record id %q", id)
	}
}
