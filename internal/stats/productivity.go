package stats

// PerformanceBand is one of seven standard-deviation bands around the median.
type PerformanceBand string

const (
	BandBad          PerformanceBand = "Bad Performance"
	BandPoor         PerformanceBand = "Poor Performance"
	BandBelowAverage PerformanceBand = "Below Average Performance"
	BandAverage      PerformanceBand = "Average Performance"
	BandAboveAverage PerformanceBand = "Above Average Performance"
	BandGood         PerformanceBand = "Good Performance"
	BandExcellent    PerformanceBand = "Excellent Performance"
)

// PerformanceBands lists the bands from worst to best.
var PerformanceBands = []PerformanceBand{
	BandBad, BandPoor, BandBelowAverage, BandAverage, BandAboveAverage, BandGood, BandExcellent,
}

// ClassifyPerformance places value in a band anchored on median with width sigma:
// at least +3σ excellent, +2σ good, +σ above average, within ±σ average, down to -3σ and below bad.
// A zero sigma means the baseline never varied, so any movement lands in an outer band.
func ClassifyPerformance(value, median, sigma float64) PerformanceBand {
	d := value - median
	if sigma == 0 {
		switch {
		case d > 0:
			return BandExcellent
		case d < 0:
			return BandBad
		default:
			return BandAverage
		}
	}

	switch {
	case d >= 3*sigma:
		return BandExcellent
	case d >= 2*sigma:
		return BandGood
	case d >= sigma:
		return BandAboveAverage
	case d > -sigma:
		return BandAverage
	case d > -2*sigma:
		return BandBelowAverage
	case d > -3*sigma:
		return BandPoor
	default:
		return BandBad
	}
}

// Productivity is the throughput health summary of a weekly completed-count series.
type Productivity struct {
	Weekly         []float64             `json:"weekly"`
	Median         float64               `json:"median"`
	Current        float64               `json:"current"`
	CurrentIndex   int                   `json:"currentIndex"`
	StdDev         float64               `json:"stdDev"`
	Band           PerformanceBand       `json:"performance"`
	Trend          TrendAnalysis         `json:"trend"`
	RollingAverage []float64             `json:"rollingAverage"`
	Variability    ThroughputVariability `json:"variability"`
}

// RollingAverageWeeks is the window of the productivity rolling average.
const RollingAverageWeeks = 4

// AnalyzeProductivity summarises weekly counts. currentIndex selects the week being judged; the caller
// picks the last week when the period ends on a week boundary and the penultimate one otherwise.
// The baseline for sigma is every week except the judged one.
func AnalyzeProductivity(weekly []float64, currentIndex int, labels []string) Productivity {
	p := Productivity{
		Weekly:       weekly,
		CurrentIndex: currentIndex,
		Band:         BandAverage,
		Trend:        TrendAnalysis{Direction: TrendStable},
	}
	if len(weekly) == 0 {
		p.CurrentIndex = -1
		return p
	}
	if currentIndex < 0 || currentIndex >= len(weekly) {
		currentIndex = len(weekly) - 1
		p.CurrentIndex = currentIndex
	}

	p.Median = CalculateMedianContinuous(weekly)
	p.Current = weekly[currentIndex]

	baseline := make([]float64, 0, len(weekly)-1)
	baseline = append(baseline, weekly[:currentIndex]...)
	baseline = append(baseline, weekly[currentIndex+1:]...)

	anchor := p.Current
	if len(baseline) > 0 {
		anchor = CalculateMedianContinuous(baseline)
	}
	sigma := StdDev(baseline)
	p.StdDev = Round(sigma, 2)
	p.Band = ClassifyPerformance(p.Current, anchor, sigma)

	p.Trend = SeriesTrend(weekly)
	p.RollingAverage = RollingAverage(weekly, RollingAverageWeeks)
	p.Variability = CalculateThroughputVariability(weekly, labels)
	return p
}
