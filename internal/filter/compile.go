package filter

import (
	"regexp"

	"github.com/vthunder/focuspet/internal/logging"
)

const (
	// FirstRuleID is the id of the first generated rule in a batch
	FirstRuleID = 10000
	// AllowPriority outranks BlockPriority so allow-listed URLs win
	AllowPriority = 1000
	BlockPriority = 500
)

// ResourceTypes is the fixed set every rule applies to
var ResourceTypes = []string{
	"main_frame", "sub_frame", "xmlhttprequest", "script", "image", "media",
	"stylesheet", "font", "ping", "websocket", "csp_report", "object", "other",
	"webbundle", "webtransport",
}

// Action types
const (
	ActionAllow = "allow"
	ActionBlock = "block"
)

// Action is what the rule engine does on match
type Action struct {
	Type string `json:"type"`
}

// Condition selects requests. Exactly one of RegexFilter or URLFilter is set;
// URLFilter is a pointer because the empty filter is meaningful.
type Condition struct {
	RegexFilter   string   `json:"regexFilter,omitempty"`
	URLFilter     *string  `json:"urlFilter,omitempty"`
	ResourceTypes []string `json:"resourceTypes"`
}

// Rule is one declarative network rule
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}

// Skipped reports a pattern left out of a batch
type Skipped struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// Batch is the compiled rule set for one pair of lists
type Batch struct {
	Rules   []Rule    `json:"rules"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// Update is the full-replace payload for the rule engine
type Update struct {
	RemoveRuleIDs []int  `json:"removeRuleIds"`
	AddRules      []Rule `json:"addRules,omitempty"`
}

// Compile turns allow and block patterns into rules. IDs start at
// FirstRuleID and increase monotonically, allow patterns first. Blank
// patterns are dropped and regexes that fail to compile are skipped.
func Compile(allow, block []string) Batch {
	b := Batch{Rules: make([]Rule, 0, len(allow)+len(block))}
	next := FirstRuleID
	add := func(patterns []string, priority int, action string) {
		for _, raw := range patterns {
			p, ok := Classify(raw)
			if !ok {
				continue
			}
			if p.IsRegex() {
				if _, err := regexp.Compile(p.Value); err != nil {
					logging.Warn("filter", "skipping pattern %q: %v", p.Raw, err)
					b.Skipped = append(b.Skipped, Skipped{Pattern: p.Raw, Reason: err.Error()})
					continue
				}
			}
			b.Rules = append(b.Rules, newRule(next, priority, action, p))
			next++
		}
	}
	add(allow, AllowPriority, ActionAllow)
	add(block, BlockPriority, ActionBlock)

	logging.Debug("filter", "compiled %d rules (%d allow, %d block patterns, %d skipped)",
		len(b.Rules), len(allow), len(block), len(b.Skipped))
	return b
}

func newRule(id, priority int, action string, p Pattern) Rule {
	cond := Condition{ResourceTypes: ResourceTypes}
	if p.IsRegex() {
		cond.RegexFilter = p.Value
	} else {
		v := p.Value
		cond.URLFilter = &v
	}
	return Rule{
		ID:        id,
		Priority:  priority,
		Action:    Action{Type: action},
		Condition: cond,
	}
}

// Update returns the payload that replaces every existing rule with b.
func (b Batch) Update(existingIDs []int) Update {
	u := Update{RemoveRuleIDs: make([]int, len(existingIDs))}
	copy(u.RemoveRuleIDs, existingIDs)
	if len(b.Rules) > 0 {
		u.AddRules = b.Rules
	}
	return u
}

// Clear returns the payload that removes every existing rule
func Clear(existingIDs []int) Update {
	return Batch{}.Update(existingIDs)
}

// IDs returns the rule ids in b
func (b Batch) IDs() []int {
	ids := make([]int, len(b.Rules))
	for i, r := range b.Rules {
		ids[i] = r.ID
	}
	return ids
}
