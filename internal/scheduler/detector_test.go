package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

func scheduledRule(id string, start, end *int64, active bool) domain.Rule {
	return domain.Rule{
		ID:       id,
		Name:     "rule-" + id,
		IsActive: active,
		Conditions: []domain.Condition{
			{TargetKey: domain.KeySection, Operator: domain.OpEquals, Value: "sport"},
		},
		LogicalOperator:       domain.LogicAnd,
		TargetElementSelector: ".ad-slot",
		Action:                domain.ActionHide,
		StartDate:             start,
		EndDate:               end,
	}
}

func ms(v int64) *int64 { return &v }

func TestDetectTransitions_WindowBoundaries(t *testing.T) {
	now := int64(10_000_000)

	tests := []struct {
		name  string
		start *int64
		want  int
	}{
		{"start exactly at now", ms(now), 1},
		{"start just inside, past", ms(now - 89_999), 1},
		{"start exactly at window edge", ms(now - 90_000), 1},
		{"start just outside, past", ms(now - 90_001), 0},
		{"start just inside, future", ms(now + 89_999), 1},
		{"start just outside, future", ms(now + 90_001), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := domain.RuleSet{scheduledRule("r1", tt.start, nil, true)}
			got := DetectTransitions(rules, now, DefaultWindowMs)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDetectTransitions_EndDate(t *testing.T) {
	now := int64(10_000_000)

	rules := domain.RuleSet{scheduledRule("r1", nil, ms(now-50_000), true)}
	got := DetectTransitions(rules, now, DefaultWindowMs)
	require.Len(t, got, 1)
	assert.Equal(t, TransitionEnd, got[0].Kind)
	assert.Equal(t, now-50_000, got[0].At)
}

func TestDetectTransitions_BothEdgesInRange(t *testing.T) {
	now := int64(10_000_000)

	rules := domain.RuleSet{scheduledRule("r1", ms(now-30_000), ms(now+30_000), true)}
	got := DetectTransitions(rules, now, DefaultWindowMs)
	require.Len(t, got, 2)
	assert.Equal(t, TransitionStart, got[0].Kind)
	assert.Equal(t, TransitionEnd, got[1].Kind)
}

func TestDetectTransitions_SkipsInactiveAndUndated(t *testing.T) {
	now := int64(10_000_000)

	rules := domain.RuleSet{
		scheduledRule("inactive", ms(now), ms(now), false),
		scheduledRule("undated", nil, nil, true),
	}
	assert.Empty(t, DetectTransitions(rules, now, DefaultWindowMs))
}

func TestDetectTransitions_ReportsRuleIdentity(t *testing.T) {
	now := int64(10_000_000)

	rules := domain.RuleSet{scheduledRule("r7", ms(now), nil, true)}
	got := DetectTransitions(rules, now, DefaultWindowMs)
	require.Len(t, got, 1)
	assert.Equal(t, "r7", got[0].RuleID)
	assert.Equal(t, "rule-r7", got[0].RuleName)
}
