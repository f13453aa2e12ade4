package filters

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/workitem"
)

// Criteria is the resolved, immutable form of QueryFilters handed to the data layer.
type Criteria struct {
	OrgID            string               `json:"orgId"`
	Period           aggregation.Interval `json:"period"`
	ContextID        string               `json:"contextId,omitempty"`
	WorkItemTypes    []string             `json:"workItemTypes,omitempty"`
	WorkItemLevels   []string             `json:"workItemLevels,omitempty"`
	ClassesOfService []string             `json:"classesOfService,omitempty"`
	CustomFields     map[string][]string  `json:"customFields,omitempty"`
	Normalisation    map[string][]string  `json:"normalisation,omitempty"`
	Flagged          *bool                `json:"flagged,omitempty"`
}

// WithPeriod returns a copy scoped to another period.
func (c Criteria) WithPeriod(period aggregation.Interval) Criteria {
	c.Period = period
	return c
}

// Digest is a stable fingerprint of every field, used as part of cache keys. Map keys are emitted
// sorted by encoding/json, so equal criteria always produce equal digests.
func (c Criteria) Digest() string {
	canonical := c
	canonical.WorkItemTypes = sortedCopy(c.WorkItemTypes)
	canonical.WorkItemLevels = sortedCopy(c.WorkItemLevels)
	canonical.ClassesOfService = sortedCopy(c.ClassesOfService)
	canonical.CustomFields = sortedValues(c.CustomFields)
	canonical.Normalisation = sortedValues(c.Normalisation)

	payload, err := json.Marshal(canonical)
	if err != nil {
		// Every field is a plain value; fall back to the printed form.
		payload = []byte(fmt.Sprintf("%+v", canonical))
	}
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Matches applies the non-temporal filters that can be judged from the item alone.
// Normalisation is resolved by the data layer because it depends on stored category membership.
func (c Criteria) Matches(w workitem.WorkItem) bool {
	if c.ContextID != "" && w.ContextID != c.ContextID {
		return false
	}
	if len(c.WorkItemTypes) > 0 && !containsFold(c.WorkItemTypes, w.WorkItemTypeID) && !containsFold(c.WorkItemTypes, w.WorkItemType) {
		return false
	}
	if len(c.WorkItemLevels) > 0 && !containsFold(c.WorkItemLevels, string(w.Level)) {
		return false
	}
	if len(c.ClassesOfService) > 0 && !containsFold(c.ClassesOfService, w.ClassOfService) {
		return false
	}
	if c.Flagged != nil && w.Flagged != *c.Flagged {
		return false
	}
	for field, wanted := range c.CustomFields {
		found := false
		for _, v := range w.CustomFieldValues(field) {
			if containsFold(wanted, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, candidate := range list {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

func sortedValues(in map[string][]string) map[string][]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = sortedCopy(v)
	}
	return out
}
