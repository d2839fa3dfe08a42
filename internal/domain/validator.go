package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RuleValidator validates rules before they reach the store. Validation
// failures block the submission; nothing is partially persisted.
type RuleValidator struct {
	validate *validator.Validate
}

// NewRuleValidator creates a validator for rule submissions.
func NewRuleValidator() *RuleValidator {
	return &RuleValidator{validate: validator.New()}
}

// ValidateRule checks a single rule: struct tags first, then the cross-field
// constraints the tags cannot express.
func (v *RuleValidator) ValidateRule(rule *Rule) error {
	if rule == nil {
		return NewAppError(ErrValidationFailed, "Rule cannot be nil", 422, nil)
	}

	if err := v.validate.Struct(rule); err != nil {
		return NewAppErrorWithCause(ErrValidationFailed, formatFieldErrors(err), 422, err,
			map[string]any{"rule_id": rule.ID})
	}

	for i, cond := range rule.Conditions {
		if !IsKnownTargetingKey(cond.TargetKey) {
			return NewAppError(ErrValidationFailed,
				fmt.Sprintf("condition %d references unknown targeting key %q", i, cond.TargetKey),
				422, map[string]any{"rule_id": rule.ID, "target_key": string(cond.TargetKey)})
		}
		if strings.TrimSpace(cond.Value) == "" {
			return NewAppError(ErrValidationFailed,
				fmt.Sprintf("condition %d has an empty value", i),
				422, map[string]any{"rule_id": rule.ID})
		}
	}

	if strings.TrimSpace(rule.TargetElementSelector) == "" {
		return NewAppError(ErrValidationFailed, "target element selector cannot be blank", 422,
			map[string]any{"rule_id": rule.ID})
	}

	// A start after the end would evaluate as "never active"; reject it here
	// so the operator finds out at submission time instead of wondering why
	// the rule never fires.
	if rule.StartDate != nil && rule.EndDate != nil && *rule.StartDate >= *rule.EndDate {
		return NewAppError(ErrValidationFailed, "startDate must be before endDate", 422,
			map[string]any{"rule_id": rule.ID, "start": *rule.StartDate, "end": *rule.EndDate})
	}

	return nil
}

// ValidateRuleSet validates every rule and checks id uniqueness across the set.
func (v *RuleValidator) ValidateRuleSet(rules RuleSet) error {
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		if err := v.ValidateRule(&rules[i]); err != nil {
			return err
		}
		if seen[rules[i].ID] {
			return NewAppError(ErrValidationFailed,
				fmt.Sprintf("duplicate rule id %q", rules[i].ID), 422,
				map[string]any{"rule_id": rules[i].ID})
		}
		seen[rules[i].ID] = true
	}
	return nil
}

func formatFieldErrors(err error) string {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	var messages []string
	for _, e := range fieldErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must have at least %s items", e.Field(), e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
		}
	}
	return "validation errors: " + strings.Join(messages, "; ")
}
