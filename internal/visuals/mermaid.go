package visuals

import (
	"fmt"
	"math"
	"strings"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/vsm"
	"flow-analytics/internal/workitem"
)

// GenerateCFDChart creates a Mermaid xychart-beta with one stacked line per state category. Each line is the
// population of its category plus every later one, so the bands read like a cumulative flow diagram.
func GenerateCFDChart(res *vsm.CFDResult) string {
	if res == nil || len(res.Categories) == 0 || len(res.Categories[0].Points) == 0 {
		return ""
	}
	n := len(res.Categories[0].Points)

	byCategory := make(map[workitem.StateCategory][]int, len(res.Categories))
	for _, series := range res.Categories {
		counts := make([]int, n)
		for i, p := range series.Points {
			if i < n {
				counts[i] = p.Count
			}
		}
		byCategory[series.StateCategory] = counts
	}

	// Stack from completed upwards.
	stacked := make([]int, n)
	var lines []string
	maxVal := 0
	for i := len(workitem.StateCategories) - 1; i >= 0; i-- {
		counts, ok := byCategory[workitem.StateCategories[i]]
		if !ok {
			continue
		}
		values := make([]string, n)
		for j := range n {
			stacked[j] += counts[j]
			values[j] = fmt.Sprintf("%d", stacked[j])
			maxVal = max(maxVal, stacked[j])
		}
		lines = append(lines, fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	}

	labels := make([]string, n)
	for i, p := range res.Categories[0].Points {
		labels[i] = fmt.Sprintf("%q", aggregation.Label(p.Date, res.Aggregation))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Cumulative Flow\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Work Items\" 0 --> %d\n", axisMax(float64(maxVal))))
	for _, l := range lines {
		sb.WriteString(l)
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateThroughputChart creates a Mermaid bar chart of weekly completions with the median as a line.
func GenerateThroughputChart(res *vsm.ProductivityResult) string {
	if res == nil || len(res.Weekly) == 0 {
		return ""
	}

	var labels, values, medians []string
	maxVal := res.Median
	for i, v := range res.Weekly {
		label := fmt.Sprintf("%d", i+1)
		if i < len(res.Labels) {
			label = res.Labels[i]
		}
		labels = append(labels, fmt.Sprintf("%q", label))
		values = append(values, fmt.Sprintf("%.0f", v))
		medians = append(medians, fmt.Sprintf("%.1f", res.Median))
		maxVal = math.Max(maxVal, v)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Weekly Throughput\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Items Delivered\" 0 --> %d\n", axisMax(maxVal)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(medians, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateDemandChart creates a Mermaid chart with arrivals as bars and departures as a line per bucket.
func GenerateDemandChart(res *vsm.FlowOfDemandsResult) string {
	if res == nil || len(res.Aggregated) == 0 {
		return ""
	}

	var labels, arrivals, departures []string
	maxVal := 0
	for _, p := range res.Aggregated {
		labels = append(labels, fmt.Sprintf("%q", aggregation.Label(p.DateStart, res.Aggregation)))
		arrivals = append(arrivals, fmt.Sprintf("%d", p.Arrivals))
		departures = append(departures, fmt.Sprintf("%d", p.Departures))
		maxVal = max(maxVal, p.Arrivals, p.Departures)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Demand vs Capacity\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Work Items\" 0 --> %d\n", axisMax(float64(maxVal))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(arrivals, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(departures, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// axisMax leaves 20% headroom above the highest value, at least one unit.
func axisMax(maxVal float64) int {
	return int(math.Ceil(maxVal + math.Max(1, maxVal*0.2)))
}
