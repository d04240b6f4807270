package world

import "testing"

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		minutes int64
		want    Period
	}{
		{0, PeriodNight},
		{5*60 + 59, PeriodNight},
		{6 * 60, PeriodDawn},
		{12 * 60, PeriodDay},
		{19 * 60, PeriodDusk},
		{20 * 60, PeriodNight},
		{MinutesPerDay + 13*60, PeriodDay},
	}
	for _, tt := range tests {
		if got := PeriodOf(tt.minutes); got != tt.want {
			t.Fatalf("PeriodOf(%d) = %s, want %s", tt.minutes, got, tt.want)
		}
	}
}

func TestClock(t *testing.T) {
	if got := Clock(MinutesPerDay + 4*60 + 5); got != "Day 2, 04:05" {
		t.Fatalf("Clock = %q, want %q", got, "Day 2, 04:05")
	}
}

func TestLocationMatches(t *testing.T) {
	loc := Location{ID: "harbor", Name: "Saltmarsh Harbor"}
	for _, ref := range []string{"harbor", "saltmarsh harbor", "the saltmarsh harbor"} {
		if !loc.Matches(ref) {
			t.Fatalf("Matches(%q) = false, want true", ref)
		}
	}
	if loc.Matches("") {
		t.Fatal("Matches(\"\") = true, want false")
	}
}
