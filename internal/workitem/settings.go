package workitem

// OrgSettings are the organisation-level knobs the engines read.
type OrgSettings struct {
	RollingWindowPeriodInDays                   *int `json:"rollingWindowPeriodInDays,omitempty"`
	ExcludeWeekends                             bool `json:"excludeWeekends"`
	StaledItemPortfolioLevelNumberOfDays        *int `json:"staledItemPortfolioLevelNumberOfDays,omitempty"`
	StaledItemTeamLevelNumberOfDays             *int `json:"staledItemTeamLevelNumberOfDays,omitempty"`
	StaledItemIndividualContributorNumberOfDays *int `json:"staledItemIndividualContributorNumberOfDays,omitempty"`
}

// ContextSettings are the overrides attached to a visible context (board or aggregation of boards).
type ContextSettings struct {
	ContextID                 string `json:"contextId"`
	Name                      string `json:"name"`
	RollingWindowPeriodInDays *int   `json:"rollingWindowPeriodInDays,omitempty"`
}

// WorkItemTypeConfig carries the service level expectation of one work item type.
type WorkItemTypeConfig struct {
	ID                            string `json:"id"`
	Name                          string `json:"name"`
	Level                         Level  `json:"level"`
	ServiceLevelExpectationInDays int    `json:"serviceLevelExpectationInDays"`
}

// Custom field tags understood by the engines.
const (
	TagBlockedReason   = "blocked_reason"
	TagDiscardedReason = "discarded_reason"
)

// CustomFieldConfig maps a tracker field onto engine tags.
type CustomFieldConfig struct {
	DatasourceFieldName string   `json:"datasourceFieldName"`
	DisplayName         string   `json:"displayName"`
	Tags                []string `json:"tags,omitempty"`
}

// HasTag reports whether the config carries tag.
func (c CustomFieldConfig) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
