package aggregation

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Key
	}{
		{"day", Day},
		{"week", Week},
		{"month", Month},
		{"quarter", Quarter},
		{"year", Year},
		{"Week", Day},
		{"", Day},
		{"fortnight", Day},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Parse(tt.input); got != tt.expected {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStartOf(t *testing.T) {
	// Thursday 2024-02-15 13:45
	ts := time.Date(2024, 2, 15, 13, 45, 0, 0, time.UTC)
	tests := []struct {
		key      Key
		expected time.Time
	}{
		{Day, date(2024, 2, 15)},
		{Week, date(2024, 2, 12)},
		{Month, date(2024, 2, 1)},
		{Quarter, date(2024, 1, 1)},
		{Year, date(2024, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			if got := StartOf(ts, tt.key); !got.Equal(tt.expected) {
				t.Errorf("StartOf(%v) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}

	sunday := time.Date(2024, 2, 18, 22, 0, 0, 0, time.UTC)
	if got := StartOf(sunday, Week); !got.Equal(date(2024, 2, 12)) {
		t.Errorf("Sunday should snap to the previous Monday, got %v", got)
	}
}

func TestGenerateDateArray(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		key      Key
		first    time.Time
		count    int
	}{
		{"ThreeDays", Interval{date(2024, 1, 1), EndOf(date(2024, 1, 3), Day)}, Day, date(2024, 1, 1), 3},
		{"SingleInstant", Interval{date(2024, 1, 1), date(2024, 1, 1)}, Day, date(2024, 1, 1), 1},
		{"WeeksFromMidweek", Interval{date(2024, 1, 3), EndOf(date(2024, 1, 21), Day)}, Week, date(2024, 1, 1), 3},
		{"Months", Interval{date(2024, 1, 15), date(2024, 3, 10)}, Month, date(2024, 1, 1), 3},
		{"Quarters", Interval{date(2024, 2, 1), date(2024, 11, 30)}, Quarter, date(2024, 1, 1), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := GenerateDateArray(tt.interval, tt.key)
			if len(dates) != tt.count {
				t.Fatalf("expected %d buckets, got %d: %v", tt.count, len(dates), dates)
			}
			if !dates[0].Equal(tt.first) {
				t.Errorf("first bucket = %v, want %v", dates[0], tt.first)
			}
			for i := 1; i < len(dates); i++ {
				if !dates[i].After(dates[i-1]) {
					t.Errorf("dates not strictly ascending at %d", i)
				}
			}
			if dates[len(dates)-1].After(tt.interval.End) {
				t.Errorf("trailing bucket %v starts after interval end %v", dates[len(dates)-1], tt.interval.End)
			}
		})
	}
}

func TestGenerateDateArray_ZeroInterval(t *testing.T) {
	if got := GenerateDateArray(Interval{}, Day); got != nil {
		t.Errorf("expected nil for zero interval, got %v", got)
	}
}

func TestCoarser(t *testing.T) {
	if Coarser(Day, Week) != Week {
		t.Error("week should be coarser than day")
	}
	if Coarser(Year, Month) != Year {
		t.Error("year should be coarser than month")
	}
	if Coarser(Month, Month) != Month {
		t.Error("equal keys should return the same key")
	}
}

func TestNewInterval_Swaps(t *testing.T) {
	i := NewInterval(date(2024, 3, 1), date(2024, 1, 1))
	if !i.Start.Equal(date(2024, 1, 1)) || !i.End.Equal(date(2024, 3, 1)) {
		t.Errorf("inverted bounds not swapped: %+v", i)
	}
}

func TestLabel(t *testing.T) {
	ts := date(2024, 5, 6)
	tests := []struct {
		key      Key
		expected string
	}{
		{Day, "2024-05-06"},
		{Week, "2024-W19"},
		{Month, "May 2024"},
		{Quarter, "2024-Q2"},
		{Year, "2024"},
	}
	for _, tt := range tests {
		if got := Label(ts, tt.key); got != tt.expected {
			t.Errorf("Label(%v) = %q, want %q", tt.key, got, tt.expected)
		}
	}
}
