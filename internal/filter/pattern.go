// Package filter compiles allow/block patterns into declarative network rules
// and decides when a navigation should be soft-blocked.
package filter

import (
	"regexp"
	"strings"
)

// Kind is the classified form of a filter pattern
type Kind int

const (
	KindAllURLs       Kind = iota + 1 // "<all_urls>"
	KindExplicitRegex                 // "re:/.../"
	KindPathPrefix                    // starts with "/"
	KindPathSubstring                 // contains "/"
	KindBareDomain                    // anything else
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindAllURLs:
		return "all_urls"
	case KindExplicitRegex:
		return "regex"
	case KindPathPrefix:
		return "path_prefix"
	case KindPathSubstring:
		return "path_substring"
	case KindBareDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Pattern is a classified filter pattern
type Pattern struct {
	Kind   Kind
	Raw    string // trimmed input
	Value  string // regex for regex kinds, URL filter otherwise
	Domain string // bare-domain patterns only
}

// IsRegex reports whether Value is a regular expression
func (p Pattern) IsRegex() bool {
	return p.Kind == KindExplicitRegex || p.Kind == KindBareDomain
}

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// Classify sorts a raw pattern into its kind. The first matching rule wins.
// Blank patterns yield false.
func Classify(raw string) (Pattern, bool) {
	p := strings.TrimSpace(raw)
	switch {
	case p == "":
		return Pattern{}, false
	case p == "<all_urls>":
		return Pattern{Kind: KindAllURLs, Raw: p, Value: ""}, true
	case len(p) > len("re://") && strings.HasPrefix(p, "re:/") && strings.HasSuffix(p, "/"):
		// body is the text between the slashes
		return Pattern{Kind: KindExplicitRegex, Raw: p, Value: p[4 : len(p)-1]}, true
	case strings.HasPrefix(p, "/"):
		return Pattern{Kind: KindPathPrefix, Raw: p, Value: p}, true
	case strings.Contains(p, "/"):
		return Pattern{Kind: KindPathSubstring, Raw: p, Value: schemePrefix.ReplaceAllString(p, "")}, true
	}
	return Pattern{Kind: KindBareDomain, Raw: p, Value: DomainRegex(p), Domain: p}, true
}

// DomainRegex matches the domain and all its subdomains over http(s),
// with an optional port.
func DomainRegex(domain string) string {
	return `^https?:\/\/([^.]+\.)*` + regexp.QuoteMeta(domain) + `(?::\d+)?(\/|$)`
}
