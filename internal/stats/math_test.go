package stats

import (
	"math"
	"testing"
)

func TestCalculateMedianDiscrete(t *testing.T) {
	tests := []struct {
		name     string
		values   []int
		expected float64
	}{
		{"Empty", []int{}, 0},
		{"SingleItem", []int{5}, 5},
		{"OddCount", []int{1, 3, 2, 4, 5}, 3},
		{"EvenCount", []int{1, 2, 3, 4}, 2.5},
		{"Unsorted", []int{10, 2, 8, 4, 6}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateMedianDiscrete(tt.values); got != tt.expected {
				t.Errorf("CalculateMedianDiscrete() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateMedianContinuous(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"Empty", []float64{}, 0},
		{"SingleItem", []float64{5.5}, 5.5},
		{"OddCount", []float64{1.1, 3.3, 2.2, 4.4, 5.5}, 3.3},
		{"EvenCount", []float64{1.1, 2.2, 3.3, 4.4}, 2.75},
		{"Unsorted", []float64{10.5, 2.5, 8.5, 4.5, 6.5}, 6.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateMedianContinuous(tt.values); got != tt.expected {
				t.Errorf("CalculateMedianContinuous() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	tests := []struct {
		name     string
		p        float64
		expected float64
	}{
		{"P0", 0, 1},
		{"P50", 0.5, 6},
		{"P85", 0.85, 9},
		{"P100Clamped", 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(values, tt.p); got != tt.expected {
				t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.expected)
			}
		})
	}
	if Percentile(nil, 0.85) != 0 {
		t.Error("empty sample should give 0")
	}
	if values[0] != 10 {
		t.Error("Percentile mutated its input")
	}
}

func TestStdDev(t *testing.T) {
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2) > 1e-9 {
		t.Errorf("StdDev() = %v, want 2", got)
	}
	if StdDev([]float64{5, 5, 5}) != 0 {
		t.Error("constant series should have zero deviation")
	}
}

func TestRollingAverage(t *testing.T) {
	got := RollingAverage([]float64{4, 8, 6, 2, 10}, 2)
	expected := []float64{4, 6, 7, 4, 6}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("RollingAverage()[%d] = %v, want %v", i, got[i], expected[i])
		}
	}
}

func TestCalculateTrend(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		previous  float64
		direction TrendDirection
		pct       float64
	}{
		{"Up", 12, 10, TrendUp, 20},
		{"Down", 5, 10, TrendDown, -50},
		{"Flat", 7, 7, TrendStable, 0},
		{"FromZero", 3, 0, TrendUp, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTrend(tt.current, tt.previous)
			if got.Direction != tt.direction || got.Percentage != tt.pct {
				t.Errorf("CalculateTrend() = %+v, want %v/%v", got, tt.direction, tt.pct)
			}
		})
	}
}

func TestSeriesTrend_UsesPenultimateWeek(t *testing.T) {
	// The trailing partial week (1) must not drive the trend.
	got := SeriesTrend([]float64{4, 6, 1})
	if got.Direction != TrendUp || got.Current != 6 || got.Previous != 4 {
		t.Errorf("SeriesTrend() = %+v, want up from 4 to 6", got)
	}
	if SeriesTrend([]float64{1, 2}).Direction != TrendStable {
		t.Error("short series should be stable")
	}
}
