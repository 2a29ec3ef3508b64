package prediction

import (
	"math"
	"sort"
	"time"

	"github.com/milifusa/mumpabackend-sub000/internal"
)

// Source tags which computation path produced a prediction, so callers
// and tests can assert the exact fallback chain taken.
type Source string

const (
	SourceDefaultSchedule Source = "default_schedule"
	SourceWakeWindow      Source = "wake_window"
	SourceBucketAverage   Source = "bucket_average"
	SourceHistoryAverage  Source = "history_average"
	SourceModel           Source = "model"
)

// NapPrediction is a next-nap estimate. Time is the midpoint of the
// [WindowStart, WindowEnd] interval, never an exact instant.
type NapPrediction struct {
	Time            time.Time `json:"time"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	DurationMinutes int       `json:"duration_minutes"`
	Confidence      int       `json:"confidence"`
	Source          Source    `json:"source"`
	Reason          string    `json:"reason"`
}

type BedtimePrediction struct {
	Time        time.Time `json:"time"`
	Confidence  int       `json:"confidence"`
	Consistency string    `json:"consistency"`
	Source      Source    `json:"source"`
	Reason      string    `json:"reason"`
}

type SleepPressure struct {
	Level               string  `json:"level"`
	HoursSinceLastSleep float64 `json:"hours_since_last_sleep"`
	Recommendation      string  `json:"recommendation"`
}

// closedNaps returns the closed nap events sorted ascending by end time.
func closedNaps(events []internal.SleepEvent) []internal.SleepEvent {
	var naps []internal.SleepEvent
	for _, e := range events {
		if e.Type == internal.SleepTypeNap && e.Closed() {
			naps = append(naps, e)
		}
	}
	sort.Slice(naps, func(i, j int) bool {
		return naps[i].EndTime.Before(*naps[j].EndTime)
	})
	return naps
}

// PredictNextNap estimates the next nap time and window from raw
// history. Hours of day are evaluated in now's location; naps are never
// scheduled between 19:00 and 06:00, that window is pushed to the next
// morning instead.
func PredictNextNap(events []internal.SleepEvent, now time.Time, ageMonths int) NapPrediction {
	loc := now.Location()
	naps := closedNaps(events)

	if len(naps) == 0 {
		return defaultScheduleNap(now, ageMonths, 30,
			"Sin siestas registradas; se usa el horario típico para su edad.")
	}

	dur := expectedNapDuration(naps, ageMonths)

	// Past 19:00 local there is no same-day nap to reason about.
	if now.In(loc).Hour() >= 19 {
		if h, ok := bucketMeanHour(naps, loc, 7, 12); ok {
			t := atHour(now.In(loc).AddDate(0, 0, 1), h)
			return napWindow(t, dur, 60, SourceBucketAverage, 20,
				"Ya es de noche; se estima la primera siesta de mañana según su patrón matutino.")
		}
		sched := DefaultDailySchedule(ageMonths)
		t, _ := clockOn(now.In(loc).AddDate(0, 0, 1), sched.NapTimes[0])
		return napWindow(t, dur, 50, SourceDefaultSchedule, 30,
			"Ya es de noche y no hay patrón matutino; se usa el horario típico para mañana.")
	}

	ww := WakeWindow(ageMonths)
	last := naps[len(naps)-1]
	minutesSince := now.Sub(*last.EndTime).Minutes()

	if minutesSince < ww.Min*60 {
		t := last.EndTime.Add(time.Duration(ww.Optimal * float64(time.Hour))).In(loc)
		if inNightWindow(t) {
			// Naps are never scheduled for tonight past 7pm.
			t, _ = clockOn(now.In(loc).AddDate(0, 0, 1), "9:00 AM")
			return napWindow(t, dur, 70, SourceDefaultSchedule, 30,
				"La ventana de vigilia termina de noche; se estima la primera siesta de mañana.")
		}
		return napWindow(t, dur, 75, SourceWakeWindow, 30,
			"Estimada con la ventana de vigilia óptima desde la última siesta.")
	}

	// The wake window already elapsed: look for the historical nap
	// bucket whose average start is nearest in the future.
	nowHour := hourOf(now.In(loc))
	buckets := []struct {
		lo, hi float64
		conf   int
		label  string
	}{
		{7, 12, 75, "matutino"},
		{12, 16, 70, "de mediodía"},
		{16, 20, 65, "de la tarde"},
	}
	bestHour := -1.0
	bestConf := 0
	bestLabel := ""
	for _, b := range buckets {
		h, ok := bucketMeanHour(naps, loc, b.lo, b.hi)
		if !ok || h >= 19 || h <= nowHour {
			continue
		}
		if bestHour < 0 || h < bestHour {
			bestHour, bestConf, bestLabel = h, b.conf, b.label
		}
	}
	if bestHour >= 0 {
		t := atHour(now.In(loc), bestHour)
		return napWindow(t, dur, bestConf, SourceBucketAverage, 20,
			"Estimada con el promedio del patrón "+bestLabel+" registrado.")
	}

	// No bucket remains today: fall back to wake-window arithmetic.
	t := last.EndTime.Add(time.Duration(ww.Optimal * float64(time.Hour))).In(loc)
	if !t.After(now) {
		t = now.Add(15 * time.Minute)
	}
	if inNightWindow(t) {
		if h, ok := bucketMeanHour(naps, loc, 7, 12); ok {
			tm := atHour(now.In(loc).AddDate(0, 0, 1), h)
			return napWindow(tm, dur, 50, SourceBucketAverage, 20,
				"No quedan siestas hoy; se estima la primera de mañana según su patrón matutino.")
		}
		return defaultScheduleNap(now, ageMonths, 50,
			"No quedan siestas hoy; se usa el horario típico para mañana.")
	}
	return napWindow(t, dur, 55, SourceWakeWindow, 30,
		"Sin patrón claro a futuro; se usa la ventana de vigilia óptima.")
}

func defaultScheduleNap(now time.Time, ageMonths, confidence int, reason string) NapPrediction {
	loc := now.Location()
	sched := DefaultDailySchedule(ageMonths)
	dur := TypicalNapDuration(ageMonths)
	for _, slot := range sched.NapTimes {
		t, ok := clockOn(now.In(loc), slot)
		if ok && t.After(now) && t.Hour() < 19 {
			return napWindow(t, dur, confidence, SourceDefaultSchedule, 30, reason)
		}
	}
	// Nothing remains today: first slot tomorrow.
	t, _ := clockOn(now.In(loc).AddDate(0, 0, 1), sched.NapTimes[0])
	return napWindow(t, dur, confidence, SourceDefaultSchedule, 30, reason)
}

func napWindow(t time.Time, dur, confidence int, src Source, halfWindowMin int, reason string) NapPrediction {
	w := time.Duration(halfWindowMin) * time.Minute
	return NapPrediction{
		Time:            t,
		WindowStart:     t.Add(-w),
		WindowEnd:       t.Add(w),
		DurationMinutes: dur,
		Confidence:      confidence,
		Source:          src,
		Reason:          reason,
	}
}

// expectedNapDuration averages the last five closed naps, falling back
// to the age-typical duration.
func expectedNapDuration(naps []internal.SleepEvent, ageMonths int) int {
	if len(naps) == 0 {
		return TypicalNapDuration(ageMonths)
	}
	start := len(naps) - 5
	if start < 0 {
		start = 0
	}
	sum, n := 0, 0
	for _, e := range naps[start:] {
		sum += e.DurationMinutes
		n++
	}
	if n == 0 {
		return TypicalNapDuration(ageMonths)
	}
	return sum / n
}

func bucketMeanHour(naps []internal.SleepEvent, loc *time.Location, lo, hi float64) (float64, bool) {
	var hours []float64
	for _, e := range naps {
		h := hourOf(e.StartTime.In(loc))
		if h >= lo && h < hi {
			hours = append(hours, h)
		}
	}
	if len(hours) == 0 {
		return 0, false
	}
	return mean(hours), true
}

func atHour(day time.Time, h float64) time.Time {
	hh := int(h)
	mm := int(math.Round((h - float64(hh)) * 60))
	if mm >= 60 {
		hh++
		mm -= 60
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, day.Location())
}

func inNightWindow(t time.Time) bool {
	h := hourOf(t)
	return h >= 19 || h < 6
}

// PredictBedtime averages plausible night start times. Starts outside
// [18:00,24:00) and (04:00,18:00) are discarded as mis-logged noise;
// hours at or before 04:00 are normalized by +24 so a distribution
// spanning midnight averages correctly.
func PredictBedtime(events []internal.SleepEvent, ageMonths int, now time.Time) BedtimePrediction {
	loc := now.Location()
	var hours []float64
	for _, e := range events {
		if e.Type != internal.SleepTypeNight {
			continue
		}
		h := hourOf(e.StartTime.In(loc))
		switch {
		case h >= 18:
			hours = append(hours, h)
		case h <= 4:
			hours = append(hours, h+24)
		}
	}
	if len(hours) == 0 {
		return defaultBedtime(ageMonths, now,
			"Sin registros nocturnos válidos; se usa la hora típica para su edad.")
	}

	sd := stdDev(hours)
	h := math.Mod(mean(hours), 24)
	if h < 18 || h > 23 {
		return defaultBedtime(ageMonths, now,
			"La hora calculada quedó fuera del rango válido; se usa la hora típica para su edad.")
	}

	t := atHour(now.In(loc), h)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return BedtimePrediction{
		Time:        t,
		Confidence:  int(math.Round(clampFloat(100-sd*20, 50, 95))),
		Consistency: consistencyLabel(sd),
		Source:      SourceHistoryAverage,
		Reason:      "Promedio de las horas de acostarse registradas.",
	}
}

func consistencyLabel(stdDevHours float64) string {
	switch {
	case stdDevHours < 0.5:
		return "Alta"
	case stdDevHours < 1:
		return "Media"
	default:
		return "Baja"
	}
}

func defaultBedtime(ageMonths int, now time.Time, reason string) BedtimePrediction {
	loc := now.Location()
	sched := DefaultDailySchedule(ageMonths)
	t, _ := clockOn(now.In(loc), sched.Bedtime)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return BedtimePrediction{
		Time:        t,
		Confidence:  40,
		Consistency: "Sin datos",
		Source:      SourceDefaultSchedule,
		Reason:      reason,
	}
}

// CalculateSleepPressure estimates how urgently the child needs to
// sleep from the elapsed time since the most recent past sleep end.
func CalculateSleepPressure(events []internal.SleepEvent, now time.Time) SleepPressure {
	var lastEnd time.Time
	for _, e := range events {
		if e.EndTime == nil || e.EndTime.After(now) {
			continue
		}
		if e.EndTime.After(lastEnd) {
			lastEnd = *e.EndTime
		}
	}
	if lastEnd.IsZero() {
		return SleepPressure{
			Level:          "unknown",
			Recommendation: "Registra eventos de sueño para estimar la presión de sueño.",
		}
	}

	hours := now.Sub(lastEnd).Hours()
	p := SleepPressure{HoursSinceLastSleep: math.Round(hours*100) / 100}
	switch {
	case hours < 1.5:
		p.Level = "low"
		p.Recommendation = "Descansó hace poco; todavía no necesita dormir."
	case hours < 3:
		p.Level = "medium"
		p.Recommendation = "Se acerca la siguiente ventana de sueño; observa señales de cansancio."
	case hours < 4:
		p.Level = "high"
		p.Recommendation = "Es buen momento para iniciar la rutina de sueño."
	default:
		p.Level = "critical"
		p.Recommendation = "Lleva demasiado tiempo despierto; acuéstalo cuanto antes."
	}
	return p
}

// CalculateConfidence is a descriptive 0-100 score: it grows with
// history size (capped at 95) and is scaled down by schedule
// inconsistency. It never gates whether a prediction is returned.
func CalculateConfidence(events []internal.SleepEvent, loc *time.Location) int {
	base := math.Min(95, 40+4*float64(len(events)))
	return int(math.Round(base * Consistency(events, loc) / 100))
}
