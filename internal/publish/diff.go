package publish

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// classify derives the audit action and a human-readable summary from the old
// and new rule sets. The result is a best-effort annotation for human review,
// not a source of truth: under concurrent edits the diff reflects whichever
// state was read just before the write.
func classify(req Request, nowMs int64) (domain.AuditAction, string) {
	if req.Script != nil {
		return classifyPublish(req, nowMs)
	}

	oldByID := req.Old.ByID()
	newByID := req.New.ByID()

	var created, deleted []string
	for _, r := range req.New {
		if _, ok := oldByID[r.ID]; !ok {
			created = append(created, r.Name)
		}
	}
	for _, r := range req.Old {
		if _, ok := newByID[r.ID]; !ok {
			deleted = append(deleted, r.Name)
		}
	}

	if len(created) > 0 {
		return domain.AuditCreate, fmt.Sprintf("Created rule(s): %s", strings.Join(created, ", "))
	}
	if len(deleted) > 0 {
		return domain.AuditDelete, fmt.Sprintf("Deleted rule(s): %s", strings.Join(deleted, ", "))
	}

	var updatedDetails []string
	var toggled []string
	for _, newRule := range req.New {
		oldRule, ok := oldByID[newRule.ID]
		if !ok {
			continue
		}
		fields := changedFields(&oldRule, &newRule)
		if len(fields) > 0 {
			updatedDetails = append(updatedDetails,
				fmt.Sprintf("%s (%s)", newRule.Name, strings.Join(fields, ", ")))
			continue
		}
		if oldRule.IsActive != newRule.IsActive {
			state := "enabled"
			if !newRule.IsActive {
				state = "disabled"
			}
			toggled = append(toggled, fmt.Sprintf("%s %s", newRule.Name, state))
		}
	}

	if len(updatedDetails) > 0 {
		return domain.AuditUpdate, fmt.Sprintf("Updated rule(s): %s", strings.Join(updatedDetails, "; "))
	}
	if len(toggled) > 0 {
		return domain.AuditToggle, fmt.Sprintf("Toggled rule(s): %s", strings.Join(toggled, "; "))
	}
	return domain.AuditUpdate, "Rule set updated"
}

func classifyPublish(req Request, nowMs int64) (domain.AuditAction, string) {
	action := domain.AuditPublishProd
	label := "PROD"
	if req.Env == domain.EnvDev {
		action = domain.AuditPublishDev
		label = "DEV"
	}

	var immediate, scheduled []string
	for _, r := range req.New {
		if !r.IsActive {
			continue
		}
		if r.StartDate != nil && *r.StartDate > nowMs {
			scheduled = append(scheduled, r.Name)
		} else {
			immediate = append(immediate, r.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Published %d active rule(s) to %s", len(immediate)+len(scheduled), label)
	if len(immediate) > 0 {
		fmt.Fprintf(&b, "; live now: %s", strings.Join(immediate, ", "))
	}
	if len(scheduled) > 0 {
		fmt.Fprintf(&b, "; scheduled: %s", strings.Join(scheduled, ", "))
	}
	return action, b.String()
}

// changedFields lists which rule fields differ, ignoring IsActive and
// CreatedAt so a bare toggle is classified separately.
func changedFields(oldRule, newRule *domain.Rule) []string {
	var fields []string
	if oldRule.Name != newRule.Name {
		fields = append(fields, "name")
	}
	if !conditionsEqual(oldRule.Conditions, newRule.Conditions) {
		fields = append(fields, "conditions")
	}
	if oldRule.LogicalOperator != newRule.LogicalOperator {
		fields = append(fields, "logic")
	}
	if oldRule.TargetElementSelector != newRule.TargetElementSelector {
		fields = append(fields, "selector")
	}
	if oldRule.Action != newRule.Action {
		fields = append(fields, "action")
	}
	if oldRule.CustomJS != newRule.CustomJS {
		fields = append(fields, "custom_js")
	}
	if oldRule.RespectAdsEnabled != newRule.RespectAdsEnabled {
		fields = append(fields, "respect_ads")
	}
	if !int64PtrEqual(oldRule.StartDate, newRule.StartDate) || !int64PtrEqual(oldRule.EndDate, newRule.EndDate) {
		fields = append(fields, "schedule")
	}
	return fields
}

func conditionsEqual(a, b []domain.Condition) bool {
	if len(a) != len(b) {
		return false
	}
	// Conditions are plain data; JSON comparison keeps this in sync with the
	// serialized form without field-by-field bookkeeping.
	aJSON, _ := json.Marshal(a)
	bJSON, _ := json.Marshal(b)
	return string(aJSON) == string(bJSON)
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
