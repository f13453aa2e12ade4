package stats

import (
	"fmt"
	"math"
)

// SignalType classifies a special cause found on a process behaviour chart.
type SignalType string

const (
	SignalOutlier SignalType = "outlier"
	SignalShift   SignalType = "shift"
)

const (
	// naturalProcessScale turns the average moving range into the distance of the natural process limits.
	naturalProcessScale = 2.66
	shiftRunLength      = 8
)

// XmRResult is an Individuals and Moving Range chart of a series.
type XmRResult struct {
	Average      float64   `json:"average"`
	AverageRange float64   `json:"averageMovingRange"`
	UNPL         float64   `json:"upperNaturalProcessLimit"`
	LNPL         float64   `json:"lowerNaturalProcessLimit"`
	Values       []float64 `json:"values"`
	MovingRanges []float64 `json:"movingRanges"`
	Signals      []Signal  `json:"signals"`
}

// Signal is one point of the series showing special cause variation.
type Signal struct {
	Index       int        `json:"index"`
	Label       string     `json:"label,omitempty"`
	Type        SignalType `json:"type"`
	Description string     `json:"description"`
}

// CalculateXmR builds the chart for values. labels, when given, name the points in reported signals.
// The lower limit never goes below zero.
func CalculateXmR(values []float64, labels []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{}
	}
	res := XmRResult{Values: values, Average: Mean(values)}

	for i := 1; i < len(values); i++ {
		res.MovingRanges = append(res.MovingRanges, math.Abs(values[i]-values[i-1]))
	}
	res.AverageRange = Mean(res.MovingRanges)
	res.UNPL = res.Average + naturalProcessScale*res.AverageRange
	res.LNPL = math.Max(0, res.Average-naturalProcessScale*res.AverageRange)

	label := func(i int) string {
		if i < len(labels) {
			return labels[i]
		}
		return ""
	}
	res.Signals = append(outliers(res, label), shifts(res, label)...)
	return res
}

func outliers(res XmRResult, label func(int) string) []Signal {
	var out []Signal
	for i, v := range res.Values {
		switch {
		case v > res.UNPL:
			out = append(out, Signal{Index: i, Label: label(i), Type: SignalOutlier,
				Description: fmt.Sprintf("%.0f is above the upper natural process limit (%.1f)", v, res.UNPL)})
		case v < res.LNPL:
			out = append(out, Signal{Index: i, Label: label(i), Type: SignalOutlier,
				Description: fmt.Sprintf("%.0f is below the lower natural process limit (%.1f)", v, res.LNPL)})
		}
	}
	return out
}

// shifts reports every point completing a run of shiftRunLength points on the same side of the average.
// Points on the average break a run.
func shifts(res XmRResult, label func(int) string) []Signal {
	var out []Signal
	side, run := 0, 0
	for i, v := range res.Values {
		s := 0
		if v > res.Average {
			s = 1
		} else if v < res.Average {
			s = -1
		}
		if s != 0 && s == side {
			run++
		} else {
			side, run = s, 1
		}
		if s != 0 && run == shiftRunLength {
			out = append(out, Signal{Index: i, Label: label(i), Type: SignalShift,
				Description: fmt.Sprintf("%d consecutive points on one side of the average", shiftRunLength)})
		}
	}
	return out
}

// ThroughputVariability summarises how predictable a throughput series is.
type ThroughputVariability struct {
	Mean                   float64   `json:"mean"`
	Median                 float64   `json:"median"`
	StdDev                 float64   `json:"stdDev"`
	CoefficientOfVariation float64   `json:"coefficientOfVariation"`
	Consistent             bool      `json:"consistent"`
	XmR                    XmRResult `json:"xmr"`
	Status                 string    `json:"status"` // "stable", "volatile", "migrating"
}

// CalculateThroughputVariability computes dispersion and process-behaviour signals for per-bucket counts.
// The series is consistent when its coefficient of variation stays under 30%. Any shift makes it migrating,
// otherwise any outlier makes it volatile.
func CalculateThroughputVariability(values []float64, labels []string) ThroughputVariability {
	if len(values) == 0 {
		return ThroughputVariability{Status: "stable"}
	}

	mean := Mean(values)
	sd := StdDev(values)
	cov := 0.0
	if mean > 0 {
		cov = sd / mean
	}

	res := ThroughputVariability{
		Mean:                   Round(mean, 2),
		Median:                 CalculateMedianContinuous(values),
		StdDev:                 Round(sd, 2),
		CoefficientOfVariation: Round(cov, 2),
		Consistent:             cov < 0.3,
		XmR:                    CalculateXmR(values, labels),
		Status:                 "stable",
	}
	for _, s := range res.XmR.Signals {
		if s.Type == SignalShift {
			res.Status = "migrating"
			break
		}
		res.Status = "volatile"
	}
	return res
}
