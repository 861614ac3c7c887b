package filter

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Lists is the pair of user-managed pattern lists
type Lists struct {
	Allow []string `json:"allowlist" yaml:"allowlist"`
	Block []string `json:"blacklist" yaml:"blacklist"`
}

// Empty reports whether both lists are empty
func (l Lists) Empty() bool { return len(l.Allow) == 0 && len(l.Block) == 0 }

// Decision reasons
const (
	ReasonSessionOff = "session_off"
	ReasonBypass     = "bypass"
	ReasonHardBlock  = "hard_block" // left to the rule engine
	ReasonAllowed    = "allowed"
	ReasonNotAllowed = "not_allowed"
)

// Decision is the outcome of a navigation check
type Decision struct {
	SoftBlock bool   `json:"softBlock"`
	Reason    string `json:"reason"`
}

// matcher tests one classified pattern against a navigation URL
type matcher struct {
	p  Pattern
	re *regexp.Regexp // explicit regex only
}

func (m matcher) match(full, host string) bool {
	switch m.p.Kind {
	case KindAllURLs:
		return true
	case KindExplicitRegex:
		return m.re != nil && m.re.MatchString(full)
	case KindBareDomain:
		d := strings.ToLower(m.p.Domain)
		return host != "" && (host == d || strings.HasSuffix(host, "."+d))
	case KindPathPrefix, KindPathSubstring:
		return strings.Contains(strings.ToLower(full), strings.ToLower(m.p.Value))
	}
	return false
}

// Matcher is a compiled form of Lists for repeated navigation checks
type Matcher struct {
	allow []matcher
	block []matcher
}

// NewMatcher compiles lists. Invalid regexes are dropped as in Compile.
func NewMatcher(l Lists) *Matcher {
	return &Matcher{
		allow: buildMatchers(l.Allow),
		block: buildMatchers(l.Block),
	}
}

func buildMatchers(patterns []string) []matcher {
	var out []matcher
	for _, raw := range patterns {
		p, ok := Classify(raw)
		if !ok {
			continue
		}
		m := matcher{p: p}
		if p.Kind == KindExplicitRegex {
			re, err := regexp.Compile(p.Value)
			if err != nil {
				continue
			}
			m.re = re
		}
		out = append(out, m)
	}
	return out
}

// Allowed reports whether rawURL matches the allow list
func (m *Matcher) Allowed(rawURL string) bool {
	full, host := splitURL(rawURL)
	return anyMatch(m.allow, full, host)
}

// Blocked reports whether rawURL matches the block list
func (m *Matcher) Blocked(rawURL string) bool {
	full, host := splitURL(rawURL)
	return anyMatch(m.block, full, host)
}

// Decide evaluates a navigation. A fresh bypass allows it; the caller must
// then consume the bypass (see Bypasses.Take).
func (m *Matcher) Decide(now time.Time, rawURL string, sessionOn bool, bypass *Bypass) Decision {
	if !sessionOn {
		return Decision{Reason: ReasonSessionOff}
	}
	if bypass.Fresh(now) {
		return Decision{Reason: ReasonBypass}
	}
	full, host := splitURL(rawURL)
	if anyMatch(m.block, full, host) {
		return Decision{Reason: ReasonHardBlock}
	}
	if anyMatch(m.allow, full, host) {
		return Decision{Reason: ReasonAllowed}
	}
	return Decision{SoftBlock: true, Reason: ReasonNotAllowed}
}

// Decide is Matcher.Decide for a one-off check
func Decide(now time.Time, rawURL string, lists Lists, sessionOn bool, bypass *Bypass) Decision {
	return NewMatcher(lists).Decide(now, rawURL, sessionOn, bypass)
}

func anyMatch(ms []matcher, full, host string) bool {
	for _, m := range ms {
		if m.match(full, host) {
			return true
		}
	}
	return false
}

func splitURL(raw string) (full, host string) {
	full = strings.TrimSpace(raw)
	if u, err := url.Parse(full); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	return full, host
}
