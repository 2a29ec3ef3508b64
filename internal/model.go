package internal

import "time"

type User struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

type SleepType string

const (
	SleepTypeNap   SleepType = "nap"
	SleepTypeNight SleepType = "night"
)

type SleepQuality string

const (
	QualityPoor      SleepQuality = "poor"
	QualityFair      SleepQuality = "fair"
	QualityGood      SleepQuality = "good"
	QualityExcellent SleepQuality = "excellent"
)

// Ordinal maps a quality label to the 1-4 scale used by the pattern
// statistics. Unknown or empty labels return 0 and are skipped.
func (q SleepQuality) Ordinal() int {
	switch q {
	case QualityPoor:
		return 1
	case QualityFair:
		return 2
	case QualityGood:
		return 3
	case QualityExcellent:
		return 4
	}
	return 0
}

// SleepPause is one paused interval inside a sleep event. Pauses are
// append-only while the event is open; the client may send a start time
// or an explicit duration, the stored record always carries the
// resolved duration.
type SleepPause struct {
	StartTime       *time.Time `json:"start_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Reason          string     `json:"reason,omitempty"`
}

type SleepEvent struct {
	ID        string     `json:"id"`
	ChildID   string     `json:"child_id"`
	Type      SleepType  `json:"type"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	// DurationMinutes is net sleep (gross minus pauses), clamped to >= 0.
	// Both duration fields are derived and recomputed whenever the
	// start, end or pause list changes; an open event carries zero.
	DurationMinutes      int          `json:"duration_minutes"`
	GrossDurationMinutes int          `json:"gross_duration_minutes"`
	Pauses               []SleepPause `json:"pauses,omitempty"`
	Quality              SleepQuality `json:"quality,omitempty"`
	WakeUps              int          `json:"wake_ups"`
	Location             string       `json:"location,omitempty"`
	Temperature          *float64     `json:"temperature,omitempty"`
	NoiseLevel           string       `json:"noise_level,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// Closed reports whether the event has an end time. Open events are
// excluded from every statistic until they are closed.
func (e *SleepEvent) Closed() bool { return e.EndTime != nil }

type ChildProfile struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Name           string         `json:"name"`
	BirthDate      *time.Time     `json:"birth_date,omitempty"`
	IsUnborn       bool           `json:"is_unborn"`
	GestationWeeks int            `json:"gestation_weeks,omitempty"`
	SleepStats     map[string]any `json:"sleep_stats,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AgeInMonths derives the child's age at the given instant. Age is never
// stored; it is recomputed at query time from the birth date.
func (c *ChildProfile) AgeInMonths(now time.Time) int {
	if c.BirthDate == nil {
		return 0
	}
	b := *c.BirthDate
	months := (now.Year()-b.Year())*12 + int(now.Month()) - int(b.Month())
	if now.Day() < b.Day() {
		months--
	}
	if months < 0 {
		months = 0
	}
	return months
}
