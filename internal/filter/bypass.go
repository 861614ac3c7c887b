package filter

import (
	"sync"
	"time"
)

// BypassWindow is how long a granted bypass stays usable. It runs from the
// moment the bypass is set and is not extended by later visits.
const BypassWindow = 60 * time.Second

// Bypass is a temporary permission for one tab to skip the interstitial
type Bypass struct {
	TabID int       `json:"tabId"`
	SetAt time.Time `json:"timestamp"`
}

// Fresh reports whether b is set and younger than BypassWindow at now
func (b *Bypass) Fresh(now time.Time) bool {
	return b != nil && now.Sub(b.SetAt) < BypassWindow
}

// Stash is the original URL of a soft-blocked navigation
type Stash struct {
	TabID      int       `json:"tabId"`
	BlockedURL string    `json:"blockedUrl"`
	Timestamp  time.Time `json:"timestamp"`
}

// Bypasses tracks per-tab bypasses and stashed blocked URLs
type Bypasses struct {
	mu      sync.Mutex
	bypass  map[int]Bypass
	blocked map[int]Stash
}

// NewBypasses creates an empty registry
func NewBypasses() *Bypasses {
	return &Bypasses{
		bypass:  make(map[int]Bypass),
		blocked: make(map[int]Stash),
	}
}

// Set grants tab a bypass starting at now. An existing bypass is replaced.
func (r *Bypasses) Set(tab int, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bypass[tab] = Bypass{TabID: tab, SetAt: now}
}

// Get returns the fresh bypass for tab, or nil. Expired entries are dropped.
func (r *Bypasses) Get(tab int, now time.Time) *Bypass {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bypass[tab]
	if !ok {
		return nil
	}
	if !b.Fresh(now) {
		delete(r.bypass, tab)
		return nil
	}
	return &b
}

// Take consumes tab's bypass and reports whether it was fresh
func (r *Bypasses) Take(tab int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bypass[tab]
	if !ok {
		return false
	}
	delete(r.bypass, tab)
	return b.Fresh(now)
}

// Stash records the URL a tab was redirected away from
func (r *Bypasses) Stash(tab int, rawURL string, now time.Time) Stash {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stash{TabID: tab, BlockedURL: rawURL, Timestamp: now}
	r.blocked[tab] = s
	return s
}

// Blocked returns the stashed URL for tab
func (r *Bypasses) Blocked(tab int) (Stash, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.blocked[tab]
	return s, ok
}

// Grant sets a bypass for tab and pops its stashed URL so the caller can
// resume the original navigation. The URL is "" if nothing was stashed.
func (r *Bypasses) Grant(tab int, now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bypass[tab] = Bypass{TabID: tab, SetAt: now}
	s, ok := r.blocked[tab]
	if !ok {
		return ""
	}
	delete(r.blocked, tab)
	return s.BlockedURL
}

// Forget drops all state for a closed tab
func (r *Bypasses) Forget(tab int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bypass, tab)
	delete(r.blocked, tab)
}

// Check evaluates a navigation for tab, consuming a fresh bypass if one
// decided the outcome and stashing the URL on a soft block.
func (r *Bypasses) Check(m *Matcher, tab int, rawURL string, sessionOn bool, now time.Time) Decision {
	d := m.Decide(now, rawURL, sessionOn, r.Get(tab, now))
	switch {
	case d.Reason == ReasonBypass:
		r.Take(tab, now)
	case d.SoftBlock:
		r.Stash(tab, rawURL, now)
	}
	return d
}
