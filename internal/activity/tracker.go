package activity

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// ErrNotRunning is returned by Stop when no session is being tracked
var ErrNotRunning = errors.New("activity: tracker not running")

// UnknownApp is recorded when the foreground window has no owner name
const UnknownApp = "unknown"

// DefaultBrowsers are the process-name fragments treated as browsers
var DefaultBrowsers = []string{"chrome", "chromium", "safari", "firefox", "edge"}

// Window describes a foreground window change
type Window struct {
	App   string // owning application name
	URL   string // active tab URL, browsers only
	Title string
}

// interval is a named open accrual interval
type interval struct {
	name  string
	since time.Time
}

func (i *interval) open() bool { return i.name != "" }

// Tracker accumulates per-app and per-site foreground time for one session.
// It is not safe for concurrent use.
type Tracker struct {
	browsers []string

	running bool
	paused  bool
	start   time.Time
	end     time.Time

	apps  map[string]time.Duration
	sites map[string]time.Duration
	app   interval
	site  interval
}

// NewTracker creates a tracker. A nil browsers list uses DefaultBrowsers.
func NewTracker(browsers []string) *Tracker {
	if len(browsers) == 0 {
		browsers = DefaultBrowsers
	}
	lower := make([]string, len(browsers))
	for i, b := range browsers {
		lower[i] = strings.ToLower(b)
	}
	return &Tracker{
		browsers: lower,
		apps:     make(map[string]time.Duration),
		sites:    make(map[string]time.Duration),
	}
}

// Start resets all totals and begins tracking at now
func (t *Tracker) Start(now time.Time) {
	t.apps = make(map[string]time.Duration)
	t.sites = make(map[string]time.Duration)
	t.app = interval{}
	t.site = interval{}
	t.start = now
	t.end = time.Time{}
	t.running = true
	t.paused = false
}

// Running reports whether a session is being tracked (paused or not)
func (t *Tracker) Running() bool { return t.running }

// Paused reports whether accrual is frozen
func (t *Tracker) Paused() bool { return t.running && t.paused }

// StartedAt returns the session start
func (t *Tracker) StartedAt() time.Time { return t.start }

// EndedAt returns the session end, zero while running
func (t *Tracker) EndedAt() time.Time { return t.end }

// WindowChanged records a foreground window change. Events are ignored while
// stopped or paused.
func (t *Tracker) WindowChanged(now time.Time, w Window) {
	if !t.running || t.paused {
		return
	}

	name := strings.TrimSpace(w.App)
	if name == "" {
		name = UnknownApp
	}
	switchTo(t.apps, &t.app, name, now)

	host := ""
	if t.IsBrowser(name) {
		host = Hostname(w.URL)
	}
	if host == "" {
		flush(t.sites, &t.site, now)
		t.site = interval{}
		return
	}
	switchTo(t.sites, &t.site, host, now)
}

// Pause closes the open app and site intervals and freezes accrual
func (t *Tracker) Pause(now time.Time) {
	if !t.running || t.paused {
		return
	}
	flush(t.apps, &t.app, now)
	flush(t.sites, &t.site, now)
	t.paused = true
}

// Resume restarts accrual for the app and site that were open at pause time
func (t *Tracker) Resume(now time.Time) {
	if !t.running || !t.paused {
		return
	}
	if t.app.open() {
		t.app.since = now
	}
	if t.site.open() {
		t.site.since = now
	}
	t.paused = false
}

// Stop flushes the open intervals and returns the finalized per-app totals.
// Calling Stop again without an intervening Start returns ErrNotRunning.
func (t *Tracker) Stop(now time.Time) (map[string]time.Duration, error) {
	if !t.running {
		return nil, ErrNotRunning
	}
	if !t.paused {
		flush(t.apps, &t.app, now)
		flush(t.sites, &t.site, now)
	}
	t.app = interval{}
	t.site = interval{}
	t.running = false
	t.paused = false
	t.end = now
	return copyTotals(t.apps), nil
}

// Apps returns per-app totals including the open interval
func (t *Tracker) Apps(now time.Time) map[string]time.Duration {
	return t.live(t.apps, t.app, now)
}

// Sites returns per-site totals including the open interval
func (t *Tracker) Sites(now time.Time) map[string]time.Duration {
	return t.live(t.sites, t.site, now)
}

func (t *Tracker) live(totals map[string]time.Duration, open interval, now time.Time) map[string]time.Duration {
	out := copyTotals(totals)
	if t.running && !t.paused && open.open() && now.After(open.since) {
		out[open.name] += now.Sub(open.since)
	}
	return out
}

// IsBrowser reports whether app matches one of the browser name fragments
func (t *Tracker) IsBrowser(app string) bool {
	app = strings.ToLower(app)
	for _, b := range t.browsers {
		if strings.Contains(app, b) {
			return true
		}
	}
	return false
}

// Hostname extracts the lowercase host of a URL, or "" if it has none
func Hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// switchTo opens name, flushing the previous interval if it differs
func switchTo(totals map[string]time.Duration, cur *interval, name string, now time.Time) {
	if cur.name == name {
		return
	}
	flush(totals, cur, now)
	cur.name = name
	cur.since = now
}

// flush accrues the open interval up to now and restarts it there
func flush(totals map[string]time.Duration, cur *interval, now time.Time) {
	if !cur.open() {
		return
	}
	if now.After(cur.since) {
		totals[cur.name] += now.Sub(cur.since)
	}
	cur.since = now
}

func copyTotals(m map[string]time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
