package domain

import "strconv"

// TargetingContext is the page metadata object a rule set is evaluated
// against. On the live site it is read from
// page_meta.third_party_apps.ntAds.targeting; in the simulator it is supplied
// by the operator.
type TargetingContext struct {
	Site           string   `json:"site"`
	Keywords       []string `json:"keywords"`
	DescriptionURL string   `json:"description_url"`
	AdsEnabled     bool     `json:"ads_enabled"`
	PageType       string   `json:"page_type"`
	ContentID      string   `json:"content_id"`
	Domain         string   `json:"domain"`
	Section        string   `json:"section"`
	TopSection     string   `json:"top_section"`
	ABTest         string   `json:"ab_test"`
}

// Values returns the raw values of one targeting field as a string sequence,
// plus whether the field is multi-valued. Scalars come back as a single-element
// sequence; the boolean ads_enabled field is stringified.
func (c *TargetingContext) Values(key TargetingKey) (items []string, isArray bool) {
	switch key {
	case KeySite:
		return []string{c.Site}, false
	case KeyKeywords:
		return c.Keywords, true
	case KeyDescriptionURL:
		return []string{c.DescriptionURL}, false
	case KeyAdsEnabled:
		return []string{strconv.FormatBool(c.AdsEnabled)}, false
	case KeyPageType:
		return []string{c.PageType}, false
	case KeyContentID:
		return []string{c.ContentID}, false
	case KeyDomain:
		return []string{c.Domain}, false
	case KeySection:
		return []string{c.Section}, false
	case KeyTopSection:
		return []string{c.TopSection}, false
	case KeyABTest:
		return []string{c.ABTest}, false
	default:
		return []string{""}, false
	}
}
