package prediction

import (
	"math"
	"time"

	"github.com/milifusa/mumpabackend-sub000/internal"
)

// Patterns holds the descriptive statistics derived from a history
// window. All averages are computed over closed events only; days with
// no events contribute no row.
type Patterns struct {
	AvgDailySleepMinutes    float64 `json:"avg_daily_sleep_minutes"`
	AvgNapDurationMinutes   float64 `json:"avg_nap_duration_minutes"`
	AvgNapsPerDay           float64 `json:"avg_naps_per_day"`
	AvgNightDurationMinutes float64 `json:"avg_night_duration_minutes"`
	AvgWakeUps              float64 `json:"avg_wake_ups"`
	QualityScore            float64 `json:"quality_score"`
	Quality                 string  `json:"quality"`
	Consistency             float64 `json:"consistency"`
	DaysAnalyzed            int     `json:"days_analyzed"`
	EventsAnalyzed          int     `json:"events_analyzed"`
}

type Recommendation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func closedEvents(events []internal.SleepEvent) []internal.SleepEvent {
	out := make([]internal.SleepEvent, 0, len(events))
	for _, e := range events {
		if e.Closed() {
			out = append(out, e)
		}
	}
	return out
}

// AnalyzePatterns aggregates a history window into daily totals,
// per-type averages, quality and consistency. Hours of day are taken in
// the given location.
func AnalyzePatterns(events []internal.SleepEvent, loc *time.Location) Patterns {
	closed := closedEvents(events)
	p := Patterns{EventsAnalyzed: len(closed)}

	dailyTotals := map[string]int{}
	var napDur, napCount, nightDur, nightCount int
	var wakeUps, nightsWithWakeData int
	var qualitySum, qualityCount int

	for _, e := range closed {
		day := e.StartTime.In(loc).Format("2006-01-02")
		dailyTotals[day] += e.DurationMinutes

		switch e.Type {
		case internal.SleepTypeNap:
			napDur += e.DurationMinutes
			napCount++
		case internal.SleepTypeNight:
			nightDur += e.DurationMinutes
			nightCount++
			wakeUps += e.WakeUps
			nightsWithWakeData++
		}
		if o := e.Quality.Ordinal(); o > 0 {
			qualitySum += o
			qualityCount++
		}
	}

	p.DaysAnalyzed = len(dailyTotals)
	if p.DaysAnalyzed > 0 {
		total := 0
		for _, v := range dailyTotals {
			total += v
		}
		p.AvgDailySleepMinutes = float64(total) / float64(p.DaysAnalyzed)
		p.AvgNapsPerDay = float64(napCount) / float64(p.DaysAnalyzed)
	}
	if napCount > 0 {
		p.AvgNapDurationMinutes = float64(napDur) / float64(napCount)
	}
	if nightCount > 0 {
		p.AvgNightDurationMinutes = float64(nightDur) / float64(nightCount)
	}
	if nightsWithWakeData > 0 {
		p.AvgWakeUps = float64(wakeUps) / float64(nightsWithWakeData)
	}
	if qualityCount > 0 {
		p.QualityScore = float64(qualitySum) / float64(qualityCount)
	}
	p.Quality = qualityLabel(p.QualityScore, qualityCount)
	p.Consistency = Consistency(events, loc)
	return p
}

func qualityLabel(score float64, rated int) string {
	if rated == 0 {
		return "Sin datos"
	}
	switch {
	case score >= 3.5:
		return "Excelente"
	case score >= 2.5:
		return "Buena"
	case score >= 1.5:
		return "Regular"
	default:
		return "Baja"
	}
}

// Consistency scores schedule regularity 0-100 from the standard
// deviation of start hours: 100 - 15*stddev, clamped. Fewer than three
// closed events default to a neutral 50.
func Consistency(events []internal.SleepEvent, loc *time.Location) float64 {
	closed := closedEvents(events)
	if len(closed) < 3 {
		return 50
	}
	hours := make([]float64, 0, len(closed))
	for _, e := range closed {
		hours = append(hours, hourOf(e.StartTime.In(loc)))
	}
	score := 100 - 15*stdDev(hours)
	return clampFloat(score, 0, 100)
}

// GenerateRecommendations runs the advisory rule table over the
// aggregated patterns. An empty flag set yields a single positive
// message.
func GenerateRecommendations(p Patterns, ageMonths int) []Recommendation {
	var recs []Recommendation

	if p.DaysAnalyzed > 0 && p.AvgDailySleepMinutes < float64(ExpectedDailySleepRange(ageMonths).Min) {
		recs = append(recs, Recommendation{
			Kind:    "sueno_total",
			Message: "El sueño total diario está por debajo de lo recomendado para su edad; intenta adelantar la hora de dormir.",
		})
	}
	if p.DaysAnalyzed > 0 && p.AvgNapsPerDay < float64(ExpectedNapsPerDay(ageMonths).Min) {
		recs = append(recs, Recommendation{
			Kind:    "siestas",
			Message: "Se registran menos siestas de las esperadas para su edad; vigila las ventanas de vigilia.",
		})
	}
	if p.AvgWakeUps > 3 {
		recs = append(recs, Recommendation{
			Kind:    "despertares",
			Message: "Hay muchos despertares nocturnos; revisa la rutina antes de dormir y el ambiente de la habitación.",
		})
	}
	if p.Consistency < 60 {
		recs = append(recs, Recommendation{
			Kind:    "consistencia",
			Message: "Los horarios de sueño varían mucho día a día; una rutina más regular suele mejorar el descanso.",
		})
	}
	if p.QualityScore > 0 && p.QualityScore < 2.5 {
		recs = append(recs, Recommendation{
			Kind:    "calidad",
			Message: "La calidad de sueño registrada es baja; revisa temperatura, ruido y luz de la habitación.",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Kind:    "positivo",
			Message: "Los patrones de sueño se ven saludables. ¡Sigue así!",
		})
	}
	return recs
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
