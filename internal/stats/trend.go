package stats

// TrendDirection indicates whether a series is moving up, down or holding.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// TrendAnalysis compares two consecutive observations.
type TrendAnalysis struct {
	Direction  TrendDirection `json:"direction"`
	Percentage float64        `json:"percentage"`
	Current    float64        `json:"current"`
	Previous   float64        `json:"previous"`
}

// CalculateTrend compares current against previous. The percentage is the relative change, rounded to
// two places; growth from zero is reported as 100%.
func CalculateTrend(current, previous float64) TrendAnalysis {
	t := TrendAnalysis{Direction: TrendStable, Current: current, Previous: previous}
	switch {
	case current > previous:
		t.Direction = TrendUp
	case current < previous:
		t.Direction = TrendDown
	default:
		return t
	}
	if previous == 0 {
		t.Percentage = 100
		return t
	}
	t.Percentage = Round((current-previous)/previous*100, 2)
	return t
}

// SeriesTrend compares the penultimate value with the antepenultimate one. The last value is usually a
// partial period and is ignored. Fewer than three values yield a stable trend.
func SeriesTrend(values []float64) TrendAnalysis {
	n := len(values)
	if n < 3 {
		return TrendAnalysis{Direction: TrendStable}
	}
	return CalculateTrend(values[n-2], values[n-3])
}
