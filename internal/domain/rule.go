package domain

// TargetingKey identifies one field of the page targeting metadata.
// The set is closed: rules may only reference keys the ad server actually
// publishes into page_meta.
type TargetingKey string

const (
	KeySite           TargetingKey = "site"
	KeyKeywords       TargetingKey = "keywords"
	KeyDescriptionURL TargetingKey = "description_url"
	KeyAdsEnabled     TargetingKey = "ads_enabled"
	KeyPageType       TargetingKey = "page_type"
	KeyContentID      TargetingKey = "content_id"
	KeyDomain         TargetingKey = "domain"
	KeySection        TargetingKey = "section"
	KeyTopSection     TargetingKey = "top_section"
	KeyABTest         TargetingKey = "ab_test"
)

// KnownTargetingKeys lists every valid TargetingKey, in display order.
var KnownTargetingKeys = []TargetingKey{
	KeySite,
	KeyKeywords,
	KeySection,
	KeyTopSection,
	KeyPageType,
	KeyContentID,
	KeyDescriptionURL,
	KeyDomain,
	KeyABTest,
	KeyAdsEnabled,
}

// IsKnownTargetingKey reports whether key belongs to the closed key set.
func IsKnownTargetingKey(key TargetingKey) bool {
	for _, k := range KnownTargetingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
)

// ActionType is what happens to the target element when a rule matches.
type ActionType string

const (
	ActionHide ActionType = "hide"
	ActionShow ActionType = "show"
)

// LogicalOperator combines the condition results of one rule.
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "AND"
	LogicOr  LogicalOperator = "OR"
)

// Condition is a single targeting predicate. Value is a comma-separated list
// of candidate values, so one condition can express an OR over values of the
// same field.
type Condition struct {
	TargetKey     TargetingKey `json:"targetKey" validate:"required"`
	Operator      Operator     `json:"operator" validate:"required,oneof=equals not_equals contains not_contains"`
	Value         string       `json:"value" validate:"required"`
	CaseSensitive bool         `json:"caseSensitive,omitempty"`
}

// Rule is a named condition set plus the action taken on a target element
// when it matches. StartDate/EndDate are Unix millisecond timestamps bounding
// the window in which the rule is live; nil means unbounded on that side.
type Rule struct {
	ID                    string          `json:"id" validate:"required"`
	Name                  string          `json:"name" validate:"required,max=200"`
	Conditions            []Condition     `json:"conditions" validate:"required,min=1,dive"`
	LogicalOperator       LogicalOperator `json:"logicalOperator" validate:"required,oneof=AND OR"`
	TargetElementSelector string          `json:"targetElementSelector" validate:"required,max=2048"`
	Action                ActionType      `json:"action" validate:"required,oneof=hide show"`
	CustomJS              string          `json:"customJs,omitempty" validate:"max=102400"`
	IsActive              bool            `json:"isActive"`
	RespectAdsEnabled     bool            `json:"respectAdsEnabled"`
	StartDate             *int64          `json:"startDate,omitempty"`
	EndDate               *int64          `json:"endDate,omitempty"`
	CreatedAt             int64           `json:"createdAt"`
}

// RuleSet is the ordered rule list of one environment. Order carries no
// evaluation semantics but is preserved for display.
type RuleSet []Rule

// ByID indexes the set by rule id.
func (rs RuleSet) ByID() map[string]Rule {
	index := make(map[string]Rule, len(rs))
	for _, r := range rs {
		index[r.ID] = r
	}
	return index
}

// ActiveRules returns the subset with IsActive set, preserving order.
func (rs RuleSet) ActiveRules() RuleSet {
	active := make(RuleSet, 0, len(rs))
	for _, r := range rs {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active
}

// Clone returns a deep copy of the set.
func (rs RuleSet) Clone() RuleSet {
	out := make(RuleSet, len(rs))
	for i, r := range rs {
		out[i] = r
		out[i].Conditions = append([]Condition(nil), r.Conditions...)
		if r.StartDate != nil {
			sd := *r.StartDate
			out[i].StartDate = &sd
		}
		if r.EndDate != nil {
			ed := *r.EndDate
			out[i].EndDate = &ed
		}
	}
	return out
}

// Environment is a named deployment target with its own current rule set and
// compiled script. The environment is always an explicit parameter; nothing is
// inferred from hostnames.
type Environment string

const (
	EnvProd Environment = "prod"
	EnvDev  Environment = "dev"
)

// ParseEnvironment maps a request parameter to an Environment, defaulting to
// production for unknown or empty values.
func ParseEnvironment(s string) Environment {
	switch s {
	case "dev", "development", "stage", "staging":
		return EnvDev
	default:
		return EnvProd
	}
}
