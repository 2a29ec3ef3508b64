package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/milifusa/mumpabackend-sub000/internal"
)

func at(dayOffset, hour, minute int) time.Time {
	return baseDay.AddDate(0, 0, dayOffset).Add(
		time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestPredictNextNapNoHistory(t *testing.T) {
	now := at(0, 8, 0)
	nap := PredictNextNap(nil, now, 5)

	// First default slot after 08:00 for a 5-month-old is 9:00 AM.
	assert.Equal(t, at(0, 9, 0), nap.Time)
	assert.Equal(t, SourceDefaultSchedule, nap.Source)
	assert.Equal(t, 30, nap.Confidence)
	assert.Equal(t, 60, nap.DurationMinutes)
	assert.Equal(t, nap.Time.Add(-30*time.Minute), nap.WindowStart)
	assert.Equal(t, nap.Time.Add(30*time.Minute), nap.WindowEnd)
}

func TestPredictNextNapWakeWindow(t *testing.T) {
	events := []internal.SleepEvent{
		closedEvent(internal.SleepTypeNap, 0, 11, 30, 60), // ends 12:30
	}
	now := at(0, 13, 0) // 30 min awake, below the 1.5h minimum

	nap := PredictNextNap(events, now, 5)
	assert.Equal(t, at(0, 14, 30), nap.Time) // end + 2h optimal window
	assert.Equal(t, SourceWakeWindow, nap.Source)
	assert.Equal(t, 75, nap.Confidence)
}

func TestPredictNextNapBucketAverage(t *testing.T) {
	events := []internal.SleepEvent{
		closedEvent(internal.SleepTypeNap, -1, 9, 0, 60),
		closedEvent(internal.SleepTypeNap, -1, 15, 0, 60),
		closedEvent(internal.SleepTypeNap, 0, 9, 0, 60), // ends 10:00
	}
	now := at(0, 13, 30) // wake window elapsed; afternoon bucket remains

	nap := PredictNextNap(events, now, 5)
	assert.Equal(t, at(0, 15, 0), nap.Time)
	assert.Equal(t, SourceBucketAverage, nap.Source)
	assert.Equal(t, 70, nap.Confidence)
}

func TestPredictNextNapAtNightMovesToMorning(t *testing.T) {
	events := []internal.SleepEvent{
		closedEvent(internal.SleepTypeNap, -2, 9, 0, 60),
		closedEvent(internal.SleepTypeNap, -1, 9, 0, 60),
	}
	now := at(0, 20, 0)

	nap := PredictNextNap(events, now, 5)
	assert.Equal(t, at(1, 9, 0), nap.Time)
	assert.Equal(t, SourceBucketAverage, nap.Source)
	assert.False(t, inNightWindow(nap.Time))
}

func TestPredictNextNapNeverInNightWindow(t *testing.T) {
	// Whatever the history, a predicted nap never lands in [19:00, 06:00).
	histories := [][]internal.SleepEvent{
		nil,
		{closedEvent(internal.SleepTypeNap, 0, 17, 30, 60)}, // ends 18:30
		{closedEvent(internal.SleepTypeNap, 0, 9, 0, 60)},
	}
	for _, now := range []time.Time{at(0, 5, 0), at(0, 12, 0), at(0, 18, 45), at(0, 22, 0)} {
		for _, events := range histories {
			nap := PredictNextNap(events, now, 5)
			assert.False(t, inNightWindow(nap.Time),
				"nap at %v predicted for now=%v", nap.Time, now)
		}
	}
}

func TestPredictBedtimeFromHistory(t *testing.T) {
	events := []internal.SleepEvent{
		closedEvent(internal.SleepTypeNight, -3, 19, 30, 600),
		closedEvent(internal.SleepTypeNight, -2, 20, 0, 600),
		closedEvent(internal.SleepTypeNight, -1, 20, 30, 600),
	}
	now := at(0, 15, 0)

	bed := PredictBedtime(events, 5, now)
	assert.Equal(t, at(0, 20, 0), bed.Time)
	assert.Equal(t, SourceHistoryAverage, bed.Source)
	assert.Equal(t, "Alta", bed.Consistency)
	assert.Equal(t, 92, bed.Confidence)
}

func TestPredictBedtimeIgnoresMisloggedNight(t *testing.T) {
	valid := []internal.SleepEvent{
		closedEvent(internal.SleepTypeNight, -3, 19, 30, 600),
		closedEvent(internal.SleepTypeNight, -2, 20, 0, 600),
		closedEvent(internal.SleepTypeNight, -1, 20, 30, 600),
	}
	noisy := append([]internal.SleepEvent{
		closedEvent(internal.SleepTypeNight, -2, 14, 0, 600), // mis-logged afternoon "night"
	}, valid...)
	now := at(0, 15, 0)

	want := PredictBedtime(valid, 5, now)
	got := PredictBedtime(noisy, 5, now)

	// The 14:00 start is outside both plausible bands and must not move
	// the average, the confidence, or the consistency label.
	assert.Equal(t, want, got)
	assert.Equal(t, at(0, 20, 0), got.Time)
}

func TestPredictBedtimeSpansMidnight(t *testing.T) {
	// 21:00 and 01:00 average to 23:00 once the past-midnight start is
	// normalized by +24.
	e1 := closedEvent(internal.SleepTypeNight, -2, 21, 0, 540)
	e2 := closedEvent(internal.SleepTypeNight, -1, 1, 0, 540)
	now := at(0, 15, 0)

	bed := PredictBedtime([]internal.SleepEvent{e1, e2}, 5, now)
	assert.Equal(t, at(0, 23, 0), bed.Time)
	assert.Equal(t, "Baja", bed.Consistency)
}

func TestPredictBedtimeNoValidNights(t *testing.T) {
	// A night logged at noon is mis-logged noise and is discarded.
	events := []internal.SleepEvent{
		closedEvent(internal.SleepTypeNight, -1, 12, 0, 600),
	}
	now := at(0, 15, 0)

	bed := PredictBedtime(events, 5, now)
	assert.Equal(t, SourceDefaultSchedule, bed.Source)
	assert.Equal(t, 40, bed.Confidence)
	assert.Equal(t, "Sin datos", bed.Consistency)
	assert.Equal(t, at(0, 19, 0), bed.Time) // 7:00 PM default for 4-6mo
}

func TestPredictBedtimeNeverInPast(t *testing.T) {
	events := []internal.SleepEvent{
		closedEvent(internal.SleepTypeNight, -2, 20, 0, 600),
		closedEvent(internal.SleepTypeNight, -1, 20, 0, 600),
	}
	now := at(0, 21, 0)

	bed := PredictBedtime(events, 5, now)
	assert.True(t, bed.Time.After(now))
	assert.Equal(t, at(1, 20, 0), bed.Time)
}

func TestCalculateSleepPressureLevels(t *testing.T) {
	cases := []struct {
		sinceMin int
		level    string
	}{
		{60, "low"},
		{120, "medium"},
		{200, "high"},
		{300, "critical"},
	}
	now := at(0, 16, 0)
	for _, tc := range cases {
		end := now.Add(-time.Duration(tc.sinceMin) * time.Minute)
		start := end.Add(-time.Hour)
		events := []internal.SleepEvent{{
			Type: internal.SleepTypeNap, StartTime: start, EndTime: &end, DurationMinutes: 60,
		}}
		p := CalculateSleepPressure(events, now)
		assert.Equal(t, tc.level, p.Level, "%d minutes awake", tc.sinceMin)
		assert.InDelta(t, float64(tc.sinceMin)/60, p.HoursSinceLastSleep, 0.01)
		assert.NotEmpty(t, p.Recommendation)
	}
}

func TestCalculateSleepPressureNoHistory(t *testing.T) {
	p := CalculateSleepPressure(nil, at(0, 16, 0))
	assert.Equal(t, "unknown", p.Level)
	assert.Zero(t, p.HoursSinceLastSleep)
}

func TestCalculateSleepPressureIgnoresFutureEnds(t *testing.T) {
	now := at(0, 16, 0)
	future := now.Add(time.Hour)
	events := []internal.SleepEvent{{
		Type: internal.SleepTypeNap, StartTime: now.Add(-time.Hour), EndTime: &future,
	}}
	p := CalculateSleepPressure(events, now)
	assert.Equal(t, "unknown", p.Level)
}

func TestCalculateConfidenceGrowsWithHistory(t *testing.T) {
	var events []internal.SleepEvent
	for i := 0; i < 10; i++ {
		events = append(events, closedEvent(internal.SleepTypeNap, -i, 9, 0, 60))
	}
	small := CalculateConfidence(events[:3], time.UTC)
	large := CalculateConfidence(events, time.UTC)
	assert.Greater(t, large, small)
	assert.LessOrEqual(t, large, 95)
}
