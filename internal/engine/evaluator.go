// Package engine holds the canonical rule evaluation semantics. The script
// compiler re-implements exactly these semantics inside the generated browser
// snippet; the simulator endpoint evaluates through this package directly, so
// the two must never drift.
package engine

import (
	"strings"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// ConditionResult is the outcome of one condition check, with the candidate
// values that matched (used by the simulator to explain its verdict).
type ConditionResult struct {
	Condition domain.Condition `json:"condition"`
	Success   bool             `json:"success"`
	Matches   []string         `json:"matches"`
}

// RuleResult is the outcome of evaluating one rule against a context.
type RuleResult struct {
	RuleID     string            `json:"ruleId"`
	RuleName   string            `json:"ruleName"`
	Matched    bool              `json:"matched"`
	Conditions []ConditionResult `json:"conditions,omitempty"`
}

// EvaluateCondition checks one condition against the targeting context.
//
// The condition value is split on commas into candidate values, so a single
// condition expresses an OR over values of the same field. Both sides are
// trimmed, and lowercased unless the condition is case sensitive. Unknown
// operators never match.
func EvaluateCondition(cond domain.Condition, ctx *domain.TargetingContext) ConditionResult {
	result := ConditionResult{Condition: cond, Matches: []string{}}
	if ctx == nil {
		return result
	}

	normalize := func(v string) string {
		if cond.CaseSensitive {
			return strings.TrimSpace(v)
		}
		return strings.ToLower(strings.TrimSpace(v))
	}

	raw, isArray := ctx.Values(cond.TargetKey)
	actualItems := make([]string, len(raw))
	for i, v := range raw {
		actualItems[i] = normalize(v)
	}

	inputValues := strings.Split(cond.Value, ",")
	for i, v := range inputValues {
		inputValues[i] = normalize(v)
	}

	containsItem := func(items []string, v string) bool {
		for _, item := range items {
			if item == v {
				return true
			}
		}
		return false
	}
	containsSubstring := func(items []string, v string) bool {
		for _, item := range items {
			if strings.Contains(item, v) {
				return true
			}
		}
		return false
	}

	switch cond.Operator {
	case domain.OpEquals:
		for _, iv := range inputValues {
			if containsItem(actualItems, iv) {
				result.Matches = append(result.Matches, iv)
			}
		}
		result.Success = len(result.Matches) > 0

	case domain.OpNotEquals:
		// Strict negation of the equals match set: no candidate value may
		// equal any actual item.
		for _, iv := range inputValues {
			if containsItem(actualItems, iv) {
				return result
			}
		}
		result.Success = true

	case domain.OpContains:
		// Array-valued fields use exact membership; scalar fields use
		// substring containment.
		for _, iv := range inputValues {
			if (isArray && containsItem(actualItems, iv)) || (!isArray && containsSubstring(actualItems, iv)) {
				result.Matches = append(result.Matches, iv)
			}
		}
		result.Success = len(result.Matches) > 0

	case domain.OpNotContains:
		for _, iv := range inputValues {
			if (isArray && containsItem(actualItems, iv)) || (!isArray && containsSubstring(actualItems, iv)) {
				return result
			}
		}
		result.Success = true
	}

	return result
}

// IsActiveAt reports whether the rule is live at nowMs: the active switch is
// on and nowMs lies inside the optional scheduling window. Both bounds are
// inclusive.
func IsActiveAt(rule *domain.Rule, nowMs int64) bool {
	if !rule.IsActive {
		return false
	}
	if rule.StartDate != nil && nowMs < *rule.StartDate {
		return false
	}
	if rule.EndDate != nil && nowMs > *rule.EndDate {
		return false
	}
	return true
}

// Matches evaluates a rule against the context at nowMs. Inactive rules never
// match. When the rule respects the global ads_enabled gate, a context without
// ads enabled short-circuits to false before any condition runs. An empty
// condition list never matches.
func Matches(rule *domain.Rule, ctx *domain.TargetingContext, nowMs int64) RuleResult {
	result := RuleResult{RuleID: rule.ID, RuleName: rule.Name}
	if !IsActiveAt(rule, nowMs) {
		return result
	}
	if rule.RespectAdsEnabled && (ctx == nil || !ctx.AdsEnabled) {
		return result
	}
	if len(rule.Conditions) == 0 {
		return result
	}

	result.Conditions = make([]ConditionResult, len(rule.Conditions))
	for i, cond := range rule.Conditions {
		result.Conditions[i] = EvaluateCondition(cond, ctx)
	}

	if rule.LogicalOperator == domain.LogicOr {
		for _, cr := range result.Conditions {
			if cr.Success {
				result.Matched = true
				break
			}
		}
	} else {
		result.Matched = true
		for _, cr := range result.Conditions {
			if !cr.Success {
				result.Matched = false
				break
			}
		}
	}
	return result
}

// EvaluateSet evaluates every rule in the set, returning one result per rule
// in set order. This is what the simulator renders.
func EvaluateSet(rules domain.RuleSet, ctx *domain.TargetingContext, nowMs int64) []RuleResult {
	results := make([]RuleResult, len(rules))
	for i := range rules {
		results[i] = Matches(&rules[i], ctx, nowMs)
	}
	return results
}
