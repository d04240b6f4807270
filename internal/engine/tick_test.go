package engine

import "testing"

func TestShouldTick(t *testing.T) {
	tests := []struct {
		t0, t1 int64
		want   bool
	}{
		{230, 245, true},
		{0, 239, false},
		{239, 240, true},
		{240, 479, false},
		{100, 100, false},
		{0, 1000, true},
	}
	for _, tt := range tests {
		if got := ShouldTick(tt.t0, tt.t1, 240); got != tt.want {
			t.Fatalf("ShouldTick(%d, %d) = %v, want %v", tt.t0, tt.t1, got, tt.want)
		}
	}
}

func TestShouldTickMatchesFloorDivision(t *testing.T) {
	const length = 240
	for t0 := int64(0); t0 < 2000; t0 += 37 {
		for _, cost := range []int64{0, 10, 15, 120, 240, 500} {
			t1 := t0 + cost
			want := t0/length != t1/length
			if got := ShouldTick(t0, t1, length); got != want {
				t.Fatalf("ShouldTick(%d, %d) = %v, want %v", t0, t1, got, want)
			}
		}
	}
}

func TestTicksCrossed(t *testing.T) {
	if got := TicksCrossed(230, 245, 240); got != 1 {
		t.Fatalf("crossed = %d, want 1", got)
	}
	if got := TicksCrossed(0, 1000, 240); got != 4 {
		t.Fatalf("crossed = %d, want 4", got)
	}
}
