package engine

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

func sampleContext() *domain.TargetingContext {
	return &domain.TargetingContext{
		Site:           "dnevnik",
		Keywords:       []string{"izbori", "politika", "zagreb"},
		DescriptionURL: "https://dnevnik.hr/vijesti/politika/izbori-2026",
		AdsEnabled:     true,
		PageType:       "article",
		ContentID:      "812345",
		Domain:         "dnevnik.hr",
		Section:        "politika",
		TopSection:     "vijesti",
		ABTest:         "b",
	}
}

func cond(key domain.TargetingKey, op domain.Operator, value string) domain.Condition {
	return domain.Condition{TargetKey: key, Operator: op, Value: value}
}

func TestEvaluateCondition_Equals(t *testing.T) {
	tests := []struct {
		name string
		cond domain.Condition
		want bool
	}{
		{"scalar match", cond(domain.KeySite, domain.OpEquals, "dnevnik"), true},
		{"scalar mismatch", cond(domain.KeySite, domain.OpEquals, "zimo"), false},
		{"case insensitive by default", cond(domain.KeySite, domain.OpEquals, "DNEVNIK"), true},
		{"whitespace trimmed", cond(domain.KeySite, domain.OpEquals, "  dnevnik  "), true},
		{"comma list is OR over values", cond(domain.KeySite, domain.OpEquals, "zimo,dnevnik"), true},
		{"comma list all miss", cond(domain.KeySite, domain.OpEquals, "zimo,net"), false},
		{"array membership", cond(domain.KeyKeywords, domain.OpEquals, "politika"), true},
		{"array no partial match", cond(domain.KeyKeywords, domain.OpEquals, "polit"), false},
		{"bool field stringified", cond(domain.KeyAdsEnabled, domain.OpEquals, "true"), true},
	}

	ctx := sampleContext()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(tt.cond, ctx).Success)
		})
	}
}

func TestEvaluateCondition_CaseSensitive(t *testing.T) {
	ctx := sampleContext()
	ctx.Site = "Dnevnik"

	sensitive := domain.Condition{
		TargetKey: domain.KeySite, Operator: domain.OpEquals,
		Value: "dnevnik", CaseSensitive: true,
	}
	assert.False(t, EvaluateCondition(sensitive, ctx).Success)

	sensitive.Value = "Dnevnik"
	assert.True(t, EvaluateCondition(sensitive, ctx).Success)
}

func TestEvaluateCondition_NotEquals(t *testing.T) {
	ctx := sampleContext()

	assert.True(t, EvaluateCondition(cond(domain.KeySite, domain.OpNotEquals, "zimo"), ctx).Success)
	assert.False(t, EvaluateCondition(cond(domain.KeySite, domain.OpNotEquals, "dnevnik"), ctx).Success)
	// One hit in the candidate list defeats the whole negation.
	assert.False(t, EvaluateCondition(cond(domain.KeySite, domain.OpNotEquals, "zimo,dnevnik"), ctx).Success)
}

func TestEvaluateCondition_Contains(t *testing.T) {
	ctx := sampleContext()

	// Scalar fields use substring containment.
	assert.True(t, EvaluateCondition(cond(domain.KeyDescriptionURL, domain.OpContains, "politika"), ctx).Success)
	assert.False(t, EvaluateCondition(cond(domain.KeyDescriptionURL, domain.OpContains, "sport"), ctx).Success)

	// Array fields use exact membership, not substring.
	assert.True(t, EvaluateCondition(cond(domain.KeyKeywords, domain.OpContains, "izbori"), ctx).Success)
	assert.False(t, EvaluateCondition(cond(domain.KeyKeywords, domain.OpContains, "izbo"), ctx).Success)
}

func TestEvaluateCondition_NotContains(t *testing.T) {
	ctx := sampleContext()

	assert.True(t, EvaluateCondition(cond(domain.KeyDescriptionURL, domain.OpNotContains, "sport"), ctx).Success)
	assert.False(t, EvaluateCondition(cond(domain.KeyDescriptionURL, domain.OpNotContains, "politika"), ctx).Success)
	assert.True(t, EvaluateCondition(cond(domain.KeyKeywords, domain.OpNotContains, "sport"), ctx).Success)
	assert.False(t, EvaluateCondition(cond(domain.KeyKeywords, domain.OpNotContains, "zagreb"), ctx).Success)
}

func TestEvaluateCondition_UnknownOperator(t *testing.T) {
	ctx := sampleContext()
	result := EvaluateCondition(domain.Condition{
		TargetKey: domain.KeySite, Operator: "matches", Value: "dnevnik",
	}, ctx)
	assert.False(t, result.Success)
}

func TestEvaluateCondition_UnknownKey(t *testing.T) {
	ctx := sampleContext()
	// Unknown keys read as an empty scalar, so only conditions satisfied by
	// the empty string can pass.
	assert.False(t, EvaluateCondition(cond("mystery", domain.OpEquals, "anything"), ctx).Success)
	assert.True(t, EvaluateCondition(cond("mystery", domain.OpNotEquals, "anything"), ctx).Success)
}

func TestEvaluateCondition_NilContext(t *testing.T) {
	result := EvaluateCondition(cond(domain.KeySite, domain.OpEquals, "dnevnik"), nil)
	assert.False(t, result.Success)
}

func TestIsActiveAt_Boundaries(t *testing.T) {
	start := int64(1_000_000)
	end := int64(2_000_000)
	rule := &domain.Rule{IsActive: true, StartDate: &start, EndDate: &end}

	assert.False(t, IsActiveAt(rule, start-1))
	assert.True(t, IsActiveAt(rule, start))
	assert.True(t, IsActiveAt(rule, end))
	assert.False(t, IsActiveAt(rule, end+1))
}

func TestIsActiveAt_InactiveAndUnbounded(t *testing.T) {
	assert.False(t, IsActiveAt(&domain.Rule{IsActive: false}, 0))
	assert.True(t, IsActiveAt(&domain.Rule{IsActive: true}, 0))

	start := int64(500)
	assert.True(t, IsActiveAt(&domain.Rule{IsActive: true, StartDate: &start}, 500))
	assert.False(t, IsActiveAt(&domain.Rule{IsActive: true, StartDate: &start}, 499))
}

func TestIsActiveAt_InvertedWindowNeverActive(t *testing.T) {
	start := int64(2_000_000)
	end := int64(1_000_000)
	rule := &domain.Rule{IsActive: true, StartDate: &start, EndDate: &end}

	for _, now := range []int64{999_999, 1_000_000, 1_500_000, 2_000_000, 2_000_001} {
		assert.False(t, IsActiveAt(rule, now), "now=%d", now)
	}
}

func TestMatches_RespectAdsEnabledGate(t *testing.T) {
	ctx := sampleContext()
	ctx.AdsEnabled = false

	rule := domain.Rule{
		ID: "r1", Name: "gate", IsActive: true, RespectAdsEnabled: true,
		LogicalOperator: domain.LogicAnd,
		Conditions:      []domain.Condition{cond(domain.KeySite, domain.OpEquals, "dnevnik")},
	}
	result := Matches(&rule, ctx, 0)
	assert.False(t, result.Matched)
	// The gate short-circuits before any condition is evaluated.
	assert.Empty(t, result.Conditions)

	rule.RespectAdsEnabled = false
	assert.True(t, Matches(&rule, ctx, 0).Matched)
}

func TestMatches_LogicalOperators(t *testing.T) {
	ctx := sampleContext()
	hit := cond(domain.KeySite, domain.OpEquals, "dnevnik")
	miss := cond(domain.KeySection, domain.OpEquals, "sport")

	tests := []struct {
		name  string
		logic domain.LogicalOperator
		conds []domain.Condition
		want  bool
	}{
		{"AND all pass", domain.LogicAnd, []domain.Condition{hit, hit}, true},
		{"AND one fails", domain.LogicAnd, []domain.Condition{hit, miss}, false},
		{"OR one passes", domain.LogicOr, []domain.Condition{miss, hit}, true},
		{"OR all fail", domain.LogicOr, []domain.Condition{miss, miss}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := domain.Rule{
				ID: "r1", Name: tt.name, IsActive: true,
				LogicalOperator: tt.logic, Conditions: tt.conds,
			}
			assert.Equal(t, tt.want, Matches(&rule, ctx, 0).Matched)
		})
	}
}

func TestMatches_EmptyConditionsNeverMatch(t *testing.T) {
	ctx := sampleContext()
	for _, logic := range []domain.LogicalOperator{domain.LogicAnd, domain.LogicOr} {
		rule := domain.Rule{ID: "r1", Name: "empty", IsActive: true, LogicalOperator: logic}
		assert.False(t, Matches(&rule, ctx, 0).Matched)
	}
}

func TestEvaluateSet_PreservesOrder(t *testing.T) {
	ctx := sampleContext()
	rules := domain.RuleSet{
		{ID: "a", Name: "first", IsActive: true, LogicalOperator: domain.LogicAnd,
			Conditions: []domain.Condition{cond(domain.KeySite, domain.OpEquals, "dnevnik")}},
		{ID: "b", Name: "second", IsActive: false,
			Conditions: []domain.Condition{cond(domain.KeySite, domain.OpEquals, "dnevnik")}},
	}

	results := EvaluateSet(rules, ctx, 0)
	assert.Len(t, results, 2)
	assert.Equal(t, "a", results[0].RuleID)
	assert.True(t, results[0].Matched)
	assert.Equal(t, "b", results[1].RuleID)
	assert.False(t, results[1].Matched)
}

func TestEvaluateCondition_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	alphaGen := gen.RegexMatch("[a-zA-Z]{1,12}")

	properties.Property("case-insensitive conditions ignore the casing of both sides", prop.ForAll(
		func(value string) bool {
			ctx := &domain.TargetingContext{Site: strings.ToUpper(value)}
			c := domain.Condition{
				TargetKey: domain.KeySite, Operator: domain.OpEquals,
				Value: strings.ToLower(value),
			}
			return EvaluateCondition(c, ctx).Success
		},
		alphaGen,
	))

	properties.Property("surrounding whitespace never changes the verdict", prop.ForAll(
		func(value string) bool {
			ctx := &domain.TargetingContext{Site: value}
			plain := domain.Condition{TargetKey: domain.KeySite, Operator: domain.OpEquals, Value: value}
			padded := domain.Condition{TargetKey: domain.KeySite, Operator: domain.OpEquals, Value: "  " + value + "\t"}
			return EvaluateCondition(plain, ctx).Success == EvaluateCondition(padded, ctx).Success
		},
		alphaGen,
	))

	properties.Property("not_equals is the exact complement of equals", prop.ForAll(
		func(siteValue, condValue string) bool {
			ctx := &domain.TargetingContext{Site: siteValue}
			eq := domain.Condition{TargetKey: domain.KeySite, Operator: domain.OpEquals, Value: condValue}
			neq := domain.Condition{TargetKey: domain.KeySite, Operator: domain.OpNotEquals, Value: condValue}
			return EvaluateCondition(eq, ctx).Success != EvaluateCondition(neq, ctx).Success
		},
		alphaGen, alphaGen,
	))

	properties.Property("not_contains is the exact complement of contains", prop.ForAll(
		func(siteValue, condValue string) bool {
			ctx := &domain.TargetingContext{Site: siteValue}
			in := domain.Condition{TargetKey: domain.KeySite, Operator: domain.OpContains, Value: condValue}
			out := domain.Condition{TargetKey: domain.KeySite, Operator: domain.OpNotContains, Value: condValue}
			return EvaluateCondition(in, ctx).Success != EvaluateCondition(out, ctx).Success
		},
		alphaGen, alphaGen,
	))

	properties.TestingRun(t)
}

func TestIsActiveAt_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a rule is active exactly inside its inclusive window", prop.ForAll(
		func(start int64, length int64, offset int64) bool {
			end := start + length
			rule := &domain.Rule{IsActive: true, StartDate: &start, EndDate: &end}
			now := start + offset
			inside := now >= start && now <= end
			return IsActiveAt(rule, now) == inside
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<20),
		gen.Int64Range(-1<<21, 1<<21),
	))

	properties.TestingRun(t)
}
