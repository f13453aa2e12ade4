package stats

import "math"

// TrafficLight is the product-defined health rating of one fitness criterion.
type TrafficLight string

const (
	LightGood    TrafficLight = "good"
	LightAverage TrafficLight = "average"
	LightBad     TrafficLight = "bad"
	LightNeutral TrafficLight = "neutral"
)

// Thresholds are inclusive upper bounds: value <= Good is good, value <= Average is average.
type Thresholds struct {
	Good    float64
	Average float64
}

var (
	StaleWorkThresholds         = Thresholds{Good: 10, Average: 25}
	BlockersThresholds          = Thresholds{Good: 0, Average: 2}
	WIPExcessThresholds         = Thresholds{Good: 2, Average: 4}
	FlowDebtThresholds          = Thresholds{Good: 1, Average: 1.5}
	DemandOverCapacityThreshold = Thresholds{Good: 0, Average: 20}
)

// Rate maps value onto the thresholds.
func (t Thresholds) Rate(value float64) TrafficLight {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		return LightNeutral
	case value <= t.Good:
		return LightGood
	case value <= t.Average:
		return LightAverage
	default:
		return LightBad
	}
}

// StaleWorkLight rates the percentage of stale WIP. Neutral when there is no WIP.
func StaleWorkLight(stale, wip int) (float64, TrafficLight) {
	if wip == 0 {
		return 0, LightNeutral
	}
	pct := Round(float64(stale)/float64(wip)*100, 2)
	return pct, StaleWorkThresholds.Rate(pct)
}

// BlockersLight rates the number of blocked WIP items. Neutral when there is no WIP.
func BlockersLight(blocked, wip int) TrafficLight {
	if wip == 0 {
		return LightNeutral
	}
	return BlockersThresholds.Rate(float64(blocked))
}

// WIPExcessLight rates how many weeks of throughput the current WIP represents.
func WIPExcessLight(wip int, weeklyThroughput float64) (float64, TrafficLight) {
	if weeklyThroughput <= 0 {
		return 0, LightNeutral
	}
	weeks := Round(float64(wip)/weeklyThroughput, 2)
	return weeks, WIPExcessThresholds.Rate(weeks)
}

// FlowDebtLight rates WIP age P85 against lead time P85.
func FlowDebtLight(wipAgeP85, leadTimeP85 float64) (float64, TrafficLight) {
	if leadTimeP85 <= 0 || wipAgeP85 <= 0 {
		return 0, LightNeutral
	}
	ratio := Round(wipAgeP85/leadTimeP85, 2)
	return ratio, FlowDebtThresholds.Rate(ratio)
}

// DemandOverCapacityPercent is round((demand/capacity - 1) * 100). The second result is false when
// capacity is zero.
func DemandOverCapacityPercent(demand, capacity float64) (int, bool) {
	if capacity == 0 {
		return 0, false
	}
	return int(math.Round((demand/capacity - 1) * 100)), true
}

// DemandOverCapacityLight rates demand against capacity.
func DemandOverCapacityLight(demand, capacity float64) (int, TrafficLight) {
	pct, ok := DemandOverCapacityPercent(demand, capacity)
	if !ok {
		return 0, LightNeutral
	}
	return pct, DemandOverCapacityThreshold.Rate(float64(pct))
}
