// Package focus owns a tracking session: it drives the attention machine and
// the activity tracker from a single event loop and scores the result.
package focus

import (
	"math"
	"time"
)

// Score returns the focus percentage: round(100 * looking / (looking + away)).
// It is 0 when no time was classified.
func Score(looking, away time.Duration) int {
	if looking < 0 {
		looking = 0
	}
	if away < 0 {
		away = 0
	}
	total := looking + away
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(looking) / float64(total)))
}
