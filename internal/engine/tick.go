// Package engine holds the between-turn world systems: the world simulator,
// the relationship engine and the arc stage tracker. Every entry point is a
// pure function of its input.
package engine

// DefaultTickLength is the number of world minutes between simulator ticks.
const DefaultTickLength = 240

// TickIndex returns which tick interval world time t falls in.
func TickIndex(t, length int64) int64 {
	if length <= 0 {
		length = DefaultTickLength
	}
	if t < 0 {
		return (t - length + 1) / length
	}
	return t / length
}

// ShouldTick reports whether moving the clock from t0 to t1 crosses a tick
// boundary: floor(t0/L) != floor(t1/L).
func ShouldTick(t0, t1, length int64) bool {
	return TickIndex(t0, length) != TickIndex(t1, length)
}

// TicksCrossed counts the boundaries crossed between t0 and t1.
func TicksCrossed(t0, t1, length int64) int64 {
	d := TickIndex(t1, length) - TickIndex(t0, length)
	if d < 0 {
		return -d
	}
	return d
}
