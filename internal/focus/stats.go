package focus

import (
	"math"
	"sort"
	"time"
)

// Summary aggregates a user's sessions
type Summary struct {
	Sessions     int `json:"sessions"`
	AverageScore int `json:"averageScore"`
	StreakDays   int `json:"streakDays"`
}

// Summarize computes the average score, session count and current daily
// streak as of now. The streak counts consecutive local days with at least
// one session, anchored on today or, failing that, yesterday.
func Summarize(records []Record, now time.Time) Summary {
	s := Summary{Sessions: len(records)}
	if len(records) == 0 {
		return s
	}
	total := 0
	days := make(map[time.Time]bool)
	for _, r := range records {
		total += r.FocusScore
		days[day(r.StartTime.In(now.Location()))] = true
	}
	s.AverageScore = int(math.Round(float64(total) / float64(len(records))))

	cur := day(now)
	if !days[cur] {
		cur = cur.AddDate(0, 0, -1)
		if !days[cur] {
			return s
		}
	}
	for days[cur] {
		s.StreakDays++
		cur = cur.AddDate(0, 0, -1)
	}
	return s
}

// SortRecent orders records newest first and keeps at most limit (0 = all)
func SortRecent(records []Record, limit int) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
