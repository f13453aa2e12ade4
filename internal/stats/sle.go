package stats

import (
	"fmt"
	"math"
)

// TargetMet is the share of completed items of one type delivered within its service level expectation.
type TargetMet struct {
	WorkItemTypeID string  `json:"workItemTypeId"`
	WorkItemType   string  `json:"workItemType"`
	SLEInDays      int     `json:"serviceLevelExpectationInDays"`
	Completed      int     `json:"completed"`
	WithinSLE      int     `json:"withinSle"`
	Percent        float64 `json:"targetMet"`
}

// CalculateTargetMet counts lead times at or under sleDays. A type without completions reports 0%.
func CalculateTargetMet(leadTimes []int, sleDays int) (within int, percent float64) {
	if len(leadTimes) == 0 {
		return 0, 0
	}
	for _, lt := range leadTimes {
		if lt <= sleDays {
			within++
		}
	}
	return within, Round(float64(within)/float64(len(leadTimes))*100, 2)
}

// AverageTargetMet averages the per-type percentages, ignoring types without completions.
func AverageTargetMet(rows []TargetMet) float64 {
	var values []float64
	for _, r := range rows {
		if r.Completed > 0 {
			values = append(values, r.Percent)
		}
	}
	return Round(Mean(values), 2)
}

// FormatHours renders a duration in seconds as H:MM:SS. Hours are not wrapped at 24.
func FormatHours(seconds float64) string {
	total := int64(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
