package stats

import "testing"

func TestDemandOverCapacityPercent(t *testing.T) {
	tests := []struct {
		name     string
		demand   float64
		capacity float64
		expected int
		ok       bool
	}{
		{"Over", 120, 100, 20, true},
		{"Under", 80, 100, -20, true},
		{"Equal", 50, 50, 0, true},
		{"Rounded", 101, 300, -66, true},
		{"NoCapacity", 10, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DemandOverCapacityPercent(tt.demand, tt.capacity)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("DemandOverCapacityPercent() = (%d, %v), want (%d, %v)", got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestTrafficLights(t *testing.T) {
	tests := []struct {
		name     string
		got      TrafficLight
		expected TrafficLight
	}{
		{"StaleGood", light(StaleWorkLight(1, 10)), LightGood},
		{"StaleAverage", light(StaleWorkLight(2, 10)), LightAverage},
		{"StaleBad", light(StaleWorkLight(3, 10)), LightBad},
		{"StaleNoWIP", light(StaleWorkLight(0, 0)), LightNeutral},
		{"BlockersNone", BlockersLight(0, 5), LightGood},
		{"BlockersFew", BlockersLight(2, 5), LightAverage},
		{"BlockersMany", BlockersLight(3, 5), LightBad},
		{"WIPExcessGood", light(WIPExcessLight(10, 5)), LightGood},
		{"WIPExcessAverage", light(WIPExcessLight(20, 5)), LightAverage},
		{"WIPExcessBad", light(WIPExcessLight(25, 5)), LightBad},
		{"WIPExcessNoThroughput", light(WIPExcessLight(25, 0)), LightNeutral},
		{"FlowDebtGood", light(FlowDebtLight(8, 10)), LightGood},
		{"FlowDebtAverage", light(FlowDebtLight(15, 10)), LightAverage},
		{"FlowDebtBad", light(FlowDebtLight(16, 10)), LightBad},
		{"DemandGood", lightOfPercent(DemandOverCapacityLight(90, 100)), LightGood},
		{"DemandAverage", lightOfPercent(DemandOverCapacityLight(120, 100)), LightAverage},
		{"DemandBad", lightOfPercent(DemandOverCapacityLight(121, 100)), LightBad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func light(_ float64, l TrafficLight) TrafficLight { return l }

func lightOfPercent(_ int, l TrafficLight) TrafficLight { return l }

func TestTargetMet(t *testing.T) {
	within, pct := CalculateTargetMet([]int{1, 3, 5, 8}, 5)
	if within != 3 || pct != 75 {
		t.Errorf("CalculateTargetMet() = (%d, %v), want (3, 75)", within, pct)
	}

	avg := AverageTargetMet([]TargetMet{
		{Completed: 4, Percent: 75},
		{Completed: 2, Percent: 50},
		{Completed: 0, Percent: 0},
	})
	if avg != 62.5 {
		t.Errorf("AverageTargetMet() = %v, want 62.5", avg)
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0:00:00"},
		{36000, "10:00:00"},
		{3661, "1:01:01"},
		{90061.4, "25:01:01"},
	}
	for _, tt := range tests {
		if got := FormatHours(tt.seconds); got != tt.expected {
			t.Errorf("FormatHours(%v) = %q, want %q", tt.seconds, got, tt.expected)
		}
	}
}
