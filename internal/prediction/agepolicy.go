// Package prediction implements the sleep pattern prediction engine:
// age-conditioned heuristics, descriptive statistics over a history
// window, and an adaptive per-child regression model.
package prediction

import "time"

// AgeWakeWindow is the age-appropriate span of awake time between two
// sleep periods, in hours.
type AgeWakeWindow struct {
	Min     float64 `json:"min"`
	Optimal float64 `json:"optimal"`
	Max     float64 `json:"max"`
}

// MinMax is an inclusive numeric range.
type MinMax struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DailySchedule is the age-typical day used to seed predictions while
// fewer than three events exist. Clock strings use the "3:04 PM" layout.
type DailySchedule struct {
	NapTimes        []string `json:"nap_times"`
	Bedtime         string   `json:"bedtime"`
	TotalSleepHours float64  `json:"total_sleep_hours"`
}

// WakeWindow returns the wake window bounds for the given age. The table
// is total over all ages; values beyond the last bracket reuse it, so
// the result is monotonically non-decreasing with age.
func WakeWindow(ageMonths int) AgeWakeWindow {
	switch {
	case ageMonths <= 1:
		return AgeWakeWindow{Min: 0.75, Optimal: 1, Max: 1.5}
	case ageMonths <= 3:
		return AgeWakeWindow{Min: 1, Optimal: 1.5, Max: 2}
	case ageMonths <= 6:
		return AgeWakeWindow{Min: 1.5, Optimal: 2, Max: 2.5}
	case ageMonths <= 9:
		return AgeWakeWindow{Min: 2, Optimal: 2.5, Max: 3}
	case ageMonths <= 12:
		return AgeWakeWindow{Min: 2.5, Optimal: 3, Max: 3.5}
	case ageMonths <= 18:
		return AgeWakeWindow{Min: 3, Optimal: 4, Max: 5}
	default:
		return AgeWakeWindow{Min: 4, Optimal: 5, Max: 6}
	}
}

// TypicalNapDuration returns the expected single-nap length in minutes.
func TypicalNapDuration(ageMonths int) int {
	switch {
	case ageMonths <= 3:
		return 45
	case ageMonths <= 6:
		return 60
	case ageMonths <= 12:
		return 75
	default:
		return 90
	}
}

// ExpectedDailySleepRange returns the recommended total sleep per day in
// minutes. Used only for recommendation generation.
func ExpectedDailySleepRange(ageMonths int) MinMax {
	switch {
	case ageMonths <= 3:
		return MinMax{Min: 840, Max: 1020} // 14-17h
	case ageMonths <= 6:
		return MinMax{Min: 720, Max: 900} // 12-15h
	case ageMonths <= 12:
		return MinMax{Min: 660, Max: 840} // 11-14h
	case ageMonths <= 18:
		return MinMax{Min: 660, Max: 840}
	default:
		return MinMax{Min: 600, Max: 780} // 10-13h
	}
}

// ExpectedNapsPerDay returns how many naps a child of this age usually
// takes in a day.
func ExpectedNapsPerDay(ageMonths int) MinMax {
	switch {
	case ageMonths <= 3:
		return MinMax{Min: 3, Max: 5}
	case ageMonths <= 6:
		return MinMax{Min: 3, Max: 4}
	case ageMonths <= 9:
		return MinMax{Min: 2, Max: 3}
	case ageMonths <= 12:
		return MinMax{Min: 2, Max: 3}
	case ageMonths <= 18:
		return MinMax{Min: 1, Max: 2}
	default:
		return MinMax{Min: 1, Max: 1}
	}
}

// DefaultDailySchedule returns the start-of-data-collection schedule for
// the given age. Used only when history is insufficient.
func DefaultDailySchedule(ageMonths int) DailySchedule {
	switch {
	case ageMonths <= 3:
		return DailySchedule{
			NapTimes:        []string{"8:30 AM", "11:30 AM", "2:00 PM", "4:30 PM"},
			Bedtime:         "8:00 PM",
			TotalSleepHours: 16,
		}
	case ageMonths <= 6:
		return DailySchedule{
			NapTimes:        []string{"9:00 AM", "1:00 PM", "4:30 PM"},
			Bedtime:         "7:00 PM",
			TotalSleepHours: 14.5,
		}
	case ageMonths <= 9:
		return DailySchedule{
			NapTimes:        []string{"9:30 AM", "2:00 PM"},
			Bedtime:         "7:00 PM",
			TotalSleepHours: 14,
		}
	case ageMonths <= 12:
		return DailySchedule{
			NapTimes:        []string{"9:30 AM", "2:30 PM"},
			Bedtime:         "7:30 PM",
			TotalSleepHours: 13.5,
		}
	case ageMonths <= 18:
		return DailySchedule{
			NapTimes:        []string{"12:30 PM"},
			Bedtime:         "7:30 PM",
			TotalSleepHours: 13,
		}
	default:
		return DailySchedule{
			NapTimes:        []string{"1:00 PM"},
			Bedtime:         "8:00 PM",
			TotalSleepHours: 12.5,
		}
	}
}

// clockOn resolves a "3:04 PM" clock string onto the calendar day of the
// given reference time, in that time's location.
func clockOn(day time.Time, clock string) (time.Time, bool) {
	parsed, err := time.Parse("3:04 PM", clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), true
}

// hourOf returns the fractional hour of day of t in t's own location.
func hourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}
