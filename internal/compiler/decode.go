package compiler

import (
	"encoding/json"
	"strings"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

const (
	configStart = "const rules="
	configEnd   = ",targeting="
)

// DecodeConfig recovers the rule configuration embedded in a compiled script.
// Only fields that survive compilation come back: ids, createdAt and inactive
// rules are gone, and every decoded rule reports IsActive since only active
// rules are ever embedded. Placeholder scripts decode to an empty set.
func DecodeConfig(script string) (domain.RuleSet, error) {
	start := strings.Index(script, configStart)
	if start < 0 {
		if strings.HasPrefix(strings.TrimSpace(script), "/*") {
			return domain.RuleSet{}, nil
		}
		return nil, domain.NewAppError(domain.ErrInvalidInput,
			"script does not contain an embedded rule configuration", 400, nil)
	}
	rest := script[start+len(configStart):]
	end := strings.Index(rest, configEnd)
	if end < 0 {
		return nil, domain.NewAppError(domain.ErrInvalidInput,
			"embedded rule configuration is truncated", 400, nil)
	}

	var embedded []scriptRule
	if err := json.Unmarshal([]byte(rest[:end]), &embedded); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInvalidInput,
			"embedded rule configuration is not valid JSON", 400, err, nil)
	}

	rules := make(domain.RuleSet, len(embedded))
	for i, sr := range embedded {
		rules[i] = domain.Rule{
			Name:                  sr.Name,
			Conditions:            sr.Conditions,
			LogicalOperator:       sr.Logic,
			TargetElementSelector: sr.Selector,
			Action:                sr.Action,
			RespectAdsEnabled:     sr.RespectAds,
			CustomJS:              sr.CustomJS,
			IsActive:              true,
			StartDate:             sr.StartDate,
			EndDate:               sr.EndDate,
		}
	}
	return rules, nil
}
