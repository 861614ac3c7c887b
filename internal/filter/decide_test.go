package filter

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDecide(t *testing.T) {
	lists := Lists{
		Allow: []string{"github.com", "re:/^https:\\/\\/docs\\./", "stackoverflow.com/questions"},
		Block: []string{"reddit.com"},
	}
	tests := []struct {
		name      string
		url       string
		sessionOn bool
		bypass    *Bypass
		soft      bool
		reason    string
	}{
		{"session off", "https://youtube.com/", false, nil, false, ReasonSessionOff},
		{"allowed domain", "https://github.com/x", true, nil, false, ReasonAllowed},
		{"allowed subdomain", "https://gist.github.com/", true, nil, false, ReasonAllowed},
		{"allowed regex", "https://docs.python.org/3/", true, nil, false, ReasonAllowed},
		{"allowed path", "https://stackoverflow.com/questions/1", true, nil, false, ReasonAllowed},
		{"block list left to rule engine", "https://old.reddit.com/", true, nil, false, ReasonHardBlock},
		{"lookalike domain", "https://notgithub.com/", true, nil, true, ReasonNotAllowed},
		{"unlisted", "https://youtube.com/", true, nil, true, ReasonNotAllowed},
		{"fresh bypass", "https://youtube.com/", true, &Bypass{SetAt: t0.Add(-59 * time.Second)}, false, ReasonBypass},
		{"stale bypass", "https://youtube.com/", true, &Bypass{SetAt: t0.Add(-60 * time.Second)}, true, ReasonNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(t0, tt.url, lists, tt.sessionOn, tt.bypass)
			if d.SoftBlock != tt.soft || d.Reason != tt.reason {
				t.Errorf("Decide(%s) = %+v, want soft=%v reason=%s", tt.url, d, tt.soft, tt.reason)
			}
		})
	}
}

func TestMatcher_AllowedBlocked(t *testing.T) {
	m := NewMatcher(Lists{Allow: []string{"<all_urls>"}, Block: []string{"re:/([bad/", "/casino"}})
	if !m.Allowed("https://anything.example/") {
		t.Error("<all_urls> should allow everything")
	}
	if !m.Blocked("https://x.com/casino/1") {
		t.Error("path prefix should block")
	}
	if m.Blocked("https://x.com/") {
		t.Error("malformed regex should be ignored")
	}
}

func TestSoftBlockBypassScenario(t *testing.T) {
	m := NewMatcher(Lists{Allow: []string{"github.com"}})
	r := NewBypasses()
	const tab = 7
	url := "https://news.ycombinator.com/"

	d := r.Check(m, tab, url, true, t0)
	if !d.SoftBlock {
		t.Fatalf("expected soft block, got %+v", d)
	}
	if s, ok := r.Blocked(tab); !ok || s.BlockedURL != url {
		t.Fatalf("blocked URL not stashed: %+v", s)
	}

	if got := r.Grant(tab, t0.Add(time.Second)); got != url {
		t.Errorf("Grant returned %q, want stashed URL", got)
	}
	if _, ok := r.Blocked(tab); ok {
		t.Error("stash not cleared by Grant")
	}

	d = r.Check(m, tab, url, true, t0.Add(2*time.Second))
	if d.SoftBlock || d.Reason != ReasonBypass {
		t.Fatalf("bypass not honored: %+v", d)
	}
	// consumed
	if r.Get(tab, t0.Add(3*time.Second)) != nil {
		t.Error("bypass not consumed")
	}

	r.Set(tab, t0.Add(10*time.Second))
	d = r.Check(m, tab, url, true, t0.Add(71*time.Second))
	if !d.SoftBlock {
		t.Errorf("expired bypass honored: %+v", d)
	}
}

func TestBypasses_TakeAndForget(t *testing.T) {
	r := NewBypasses()
	r.Set(1, t0)
	if !r.Take(1, t0.Add(30*time.Second)) {
		t.Error("fresh bypass not taken")
	}
	if r.Take(1, t0.Add(31*time.Second)) {
		t.Error("bypass taken twice")
	}

	r.Set(2, t0)
	if r.Take(2, t0.Add(61*time.Second)) {
		t.Error("stale bypass taken")
	}

	r.Set(3, t0)
	r.Stash(3, "https://x.com/", t0)
	r.Forget(3)
	if r.Get(3, t0) != nil {
		t.Error("bypass survived Forget")
	}
	if _, ok := r.Blocked(3); ok {
		t.Error("stash survived Forget")
	}
}

func TestBypassNotRenewed(t *testing.T) {
	var b *Bypass
	if b.Fresh(t0) {
		t.Error("nil bypass is fresh")
	}
	b = &Bypass{SetAt: t0}
	// repeated checks do not extend the window
	for s := 0; s < 60; s += 10 {
		if !b.Fresh(t0.Add(time.Duration(s) * time.Second)) {
			t.Fatalf("expired early at %ds", s)
		}
	}
	if b.Fresh(t0.Add(60 * time.Second)) {
		t.Error("window extended past 60s")
	}
}
