package world

import "fmt"

const (
	MinutesPerHour = 60
	MinutesPerDay  = 1440
)

// Period is a coarse time of day.
type Period string

const (
	PeriodDawn  Period = "dawn"
	PeriodDay   Period = "day"
	PeriodDusk  Period = "dusk"
	PeriodNight Period = "night"
)

// HourOf returns the hour of day (0–23) for a world time in minutes.
func HourOf(worldMinutes int64) int {
	if worldMinutes < 0 {
		worldMinutes = 0
	}
	return int(worldMinutes%MinutesPerDay) / MinutesPerHour
}

// PeriodOf maps world minutes to a time-of-day period.
// Night runs 20:00 through 05:59.
func PeriodOf(worldMinutes int64) Period {
	h := HourOf(worldMinutes)
	switch {
	case h >= 20 || h < 6:
		return PeriodNight
	case h < 8:
		return PeriodDawn
	case h < 18:
		return PeriodDay
	default:
		return PeriodDusk
	}
}

// IsNight reports whether the period counts as night for mechanics.
func (p Period) IsNight() bool { return p == PeriodNight }

// Clock returns a human-readable world time, e.g. "Day 2, 04:05".
func Clock(worldMinutes int64) string {
	if worldMinutes < 0 {
		worldMinutes = 0
	}
	day := worldMinutes/MinutesPerDay + 1
	hours := (worldMinutes % MinutesPerDay) / MinutesPerHour
	minutes := worldMinutes % MinutesPerHour
	return fmt.Sprintf("Day %d, %02d:%02d", day, hours, minutes)
}
