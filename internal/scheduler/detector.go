// Package scheduler detects rules whose activation window opens or closes
// near the current time, so cached copies of the published script can be
// purged right when behavior changes.
package scheduler

import (
	"github.com/novatv-digital/adexclusion/internal/domain"
)

// DefaultWindowMs is how close (in either direction) a start or end date must
// be to "now" to count as a transition. Sized to the cron cadence plus CDN
// cache lifetime so no boundary slips between two runs.
const DefaultWindowMs int64 = 90_000

// TransitionKind says which edge of the activation window was crossed.
type TransitionKind string

const (
	TransitionStart TransitionKind = "start"
	TransitionEnd   TransitionKind = "end"
)

// Transition is one rule boundary detected near the current time.
type Transition struct {
	RuleID   string         `json:"ruleId"`
	RuleName string         `json:"ruleName"`
	Kind     TransitionKind `json:"kind"`
	At       int64          `json:"at"`
}

// DetectTransitions returns the transitions of active rules whose start or
// end date lies within windowMs of nowMs. Inactive rules and rules with no
// dates never transition. A rule with both dates in range yields two entries.
func DetectTransitions(rules domain.RuleSet, nowMs, windowMs int64) []Transition {
	transitions := []Transition{}
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if r.StartDate == nil && r.EndDate == nil {
			continue
		}
		if r.StartDate != nil && within(nowMs, *r.StartDate, windowMs) {
			transitions = append(transitions, Transition{
				RuleID:   r.ID,
				RuleName: r.Name,
				Kind:     TransitionStart,
				At:       *r.StartDate,
			})
		}
		if r.EndDate != nil && within(nowMs, *r.EndDate, windowMs) {
			transitions = append(transitions, Transition{
				RuleID:   r.ID,
				RuleName: r.Name,
				Kind:     TransitionEnd,
				At:       *r.EndDate,
			})
		}
	}
	return transitions
}

func within(nowMs, at, windowMs int64) bool {
	delta := nowMs - at
	if delta < 0 {
		delta = -delta
	}
	return delta <= windowMs
}
