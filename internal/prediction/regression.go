package prediction

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/milifusa/mumpabackend-sub000/internal"
)

// Minimum sample counts before a model is considered trainable. The
// thresholds are fixed, so training on a superset of a trainable
// dataset never makes a model unavailable again.
const (
	minTrainingEvents = 7
	minNapSamples     = 5
	minBedtimeSamples = 3
)

var errSingular = errors.New("prediction: singular training matrix")

// linearModel is an ordinary multivariate least-squares fit over a
// fixed feature vector. weights[0] is the intercept.
type linearModel struct {
	weights []float64
}

// fitLinear solves the normal equations with Gaussian elimination and
// partial pivoting. A small ridge term on the non-intercept diagonal
// keeps the system solvable when samples barely cover the feature
// count.
func fitLinear(rows [][]float64, targets []float64) (*linearModel, error) {
	n := len(rows)
	if n == 0 || n != len(targets) {
		return nil, errors.New("prediction: mismatched training data")
	}
	k := len(rows[0]) + 1

	a := make([][]float64, k)
	for i := range a {
		a[i] = make([]float64, k+1)
	}
	x := make([]float64, k)
	for r, row := range rows {
		if len(row) != k-1 {
			return nil, errors.New("prediction: ragged feature row")
		}
		x[0] = 1
		copy(x[1:], row)
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				a[i][j] += x[i] * x[j]
			}
			a[i][k] += x[i] * targets[r]
		}
	}
	for i := 1; i < k; i++ {
		a[i][i] += 1e-6
	}

	for col := 0; col < k; col++ {
		piv := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[piv][col]) {
				piv = r
			}
		}
		if math.Abs(a[piv][col]) < 1e-12 {
			return nil, errSingular
		}
		a[col], a[piv] = a[piv], a[col]
		for r := col + 1; r < k; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= k; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	w := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		s := a[i][k]
		for j := i + 1; j < k; j++ {
			s -= a[i][j] * w[j]
		}
		w[i] = s / a[i][i]
	}
	return &linearModel{weights: w}, nil
}

func (m *linearModel) predict(features []float64) float64 {
	y := m.weights[0]
	for i, f := range features {
		y += m.weights[i+1] * f
	}
	return y
}

type napSample struct {
	startHour float64
	endHour   float64
	duration  float64
}

type trainingDay struct {
	date     string
	weekday  float64
	wakeHour float64
	naps     []napSample
	bedtime  float64 // normalized hour (>24 past midnight); <0 when absent
}

// buildTrainingDays groups closed events by calendar day in the given
// location. Each day carries its morning wake hour (end of the night
// that finished that morning, default 07:00), its naps in order, and
// the bedtime hour when a plausible night start exists.
func buildTrainingDays(events []internal.SleepEvent, loc *time.Location) []trainingDay {
	byDay := map[string]*trainingDay{}
	day := func(key string, weekday time.Weekday) *trainingDay {
		d, ok := byDay[key]
		if !ok {
			d = &trainingDay{date: key, weekday: float64(weekday), wakeHour: 7, bedtime: -1}
			byDay[key] = d
		}
		return d
	}

	for _, e := range events {
		start := e.StartTime.In(loc)
		switch e.Type {
		case internal.SleepTypeNap:
			end := e.EndTime.In(loc)
			d := day(start.Format("2006-01-02"), start.Weekday())
			d.naps = append(d.naps, napSample{
				startHour: hourOf(start),
				endHour:   hourOf(end),
				duration:  float64(e.DurationMinutes),
			})
		case internal.SleepTypeNight:
			h := hourOf(start)
			switch {
			case h >= 18:
				d := day(start.Format("2006-01-02"), start.Weekday())
				d.bedtime = h
			case h <= 4:
				// A start after midnight belongs to the previous day.
				prev := start.AddDate(0, 0, -1)
				d := day(prev.Format("2006-01-02"), prev.Weekday())
				d.bedtime = h + 24
			}
			// The morning end of a night seeds the next day's wake hour.
			end := e.EndTime.In(loc)
			if eh := hourOf(end); eh < 12 {
				d := day(end.Format("2006-01-02"), end.Weekday())
				d.wakeHour = eh
			}
		}
	}

	days := make([]trainingDay, 0, len(byDay))
	for _, d := range byDay {
		sort.Slice(d.naps, func(i, j int) bool { return d.naps[i].startHour < d.naps[j].startHour })
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date < days[j].date })
	return days
}

// Model holds the three per-child regressions. Any of them may be nil
// when its minimum sample count was not met; the orchestrator falls
// back to the heuristic path for that output.
type Model struct {
	napTime     *linearModel
	napDuration *linearModel
	bedtime     *linearModel

	ageMonths      int
	napSamples     int
	bedtimeSamples int
	napStartStd    float64
	bedtimeStd     float64
	avgNapDuration float64
}

// Train fits the three regressions from the history window. It returns
// nil when fewer than seven closed events exist or no sub-model could
// be trained; training is rebuilt fresh per prediction request and
// never shared across requests.
func Train(events []internal.SleepEvent, ageMonths int, loc *time.Location) *Model {
	closed := closedEvents(events)
	if len(closed) < minTrainingEvents {
		return nil
	}
	days := buildTrainingDays(closed, loc)

	var timeRows, durRows [][]float64
	var timeTargets, durTargets, startHours []float64
	for _, d := range days {
		prevEnd := d.wakeHour
		prevDur := 0.0
		for i, n := range d.naps {
			idx := float64(i + 1)
			timeRows = append(timeRows, []float64{float64(ageMonths), d.wakeHour, idx, d.weekday, prevEnd})
			timeTargets = append(timeTargets, n.startHour)
			durRows = append(durRows, []float64{float64(ageMonths), n.startHour, idx, prevDur})
			durTargets = append(durTargets, n.duration)
			startHours = append(startHours, n.startHour)
			prevEnd = n.endHour
			prevDur = n.duration
		}
	}

	var bedRows [][]float64
	var bedTargets []float64
	for _, d := range days {
		if d.bedtime < 0 || len(d.naps) == 0 {
			continue
		}
		totalDur := 0.0
		for _, n := range d.naps {
			totalDur += n.duration
		}
		last := d.naps[len(d.naps)-1]
		bedRows = append(bedRows, []float64{float64(ageMonths), last.endHour, float64(len(d.naps)), totalDur})
		bedTargets = append(bedTargets, d.bedtime)
	}

	m := &Model{
		ageMonths:      ageMonths,
		napSamples:     len(timeRows),
		bedtimeSamples: len(bedRows),
	}
	if m.napSamples >= minNapSamples {
		m.napTime, _ = fitLinear(timeRows, timeTargets)
		m.napDuration, _ = fitLinear(durRows, durTargets)
		m.napStartStd = stdDev(startHours)
		m.avgNapDuration = mean(durTargets)
	}
	if m.bedtimeSamples >= minBedtimeSamples {
		m.bedtime, _ = fitLinear(bedRows, bedTargets)
		m.bedtimeStd = stdDev(bedTargets)
	}
	if m.napTime == nil && m.napDuration == nil && m.bedtime == nil {
		return nil
	}
	return m
}

func (m *Model) HasNapModel() bool     { return m != nil && m.napTime != nil && m.napDuration != nil }
func (m *Model) HasBedtimeModel() bool { return m != nil && m.bedtime != nil }

// ModelPrediction carries whichever outputs the trained sub-models
// could produce.
type ModelPrediction struct {
	NextNap *NapPrediction
	Bedtime *BedtimePrediction
}

// PredictDay walks today's remaining nap slots, feeding each predicted
// nap's end and duration forward as the next slot's "previous" feature,
// then derives bedtime from the full day. Predicted hours are clamped
// into plausible bounds (naps [6,20], bedtime [18,22]); a slot that
// already passed is pushed 30 minutes ahead rather than re-predicted.
//
// The 85/80 confidences state "model available", not a statistically
// derived figure.
func (m *Model) PredictDay(events []internal.SleepEvent, now time.Time) ModelPrediction {
	loc := now.Location()
	today := now.In(loc).Format("2006-01-02")
	weekday := float64(now.In(loc).Weekday())

	wakeHour := 7.0
	var todayNaps []napSample
	for _, e := range closedEvents(events) {
		start := e.StartTime.In(loc)
		end := e.EndTime.In(loc)
		switch e.Type {
		case internal.SleepTypeNap:
			if start.Format("2006-01-02") == today {
				todayNaps = append(todayNaps, napSample{
					startHour: hourOf(start),
					endHour:   hourOf(end),
					duration:  float64(e.DurationMinutes),
				})
			}
		case internal.SleepTypeNight:
			if end.Format("2006-01-02") == today {
				if eh := hourOf(end); eh < 12 {
					wakeHour = eh
				}
			}
		}
	}
	sort.Slice(todayNaps, func(i, j int) bool { return todayNaps[i].startHour < todayNaps[j].startHour })

	var out ModelPrediction
	age := float64(m.ageMonths)

	prevEnd := wakeHour
	prevDur := 0.0
	totalNaps := len(todayNaps)
	totalDur := 0.0
	for _, n := range todayNaps {
		prevEnd = n.endHour
		prevDur = n.duration
		totalDur += n.duration
	}

	if m.HasNapModel() {
		expected := ExpectedNapsPerDay(m.ageMonths).Max
		for idx := len(todayNaps) + 1; idx <= expected; idx++ {
			startH := clampFloat(m.napTime.predict([]float64{age, wakeHour, float64(idx), weekday, prevEnd}), 6, 20)
			dur := m.napDuration.predict([]float64{age, startH, float64(idx), prevDur})
			dur = clampFloat(dur, 10, 240)

			t := atHour(now.In(loc), startH)
			if !t.After(now) {
				t = now.Add(30 * time.Minute)
			}
			if out.NextNap == nil {
				nap := napWindow(t, int(math.Round(dur)), 85, SourceModel, 20,
					"Estimada con el modelo ajustado al historial del bebé.")
				out.NextNap = &nap
			}
			prevEnd = hourOf(t) + dur/60
			prevDur = dur
			totalNaps++
			totalDur += dur
		}
	}

	if m.HasBedtimeModel() && totalNaps > 0 {
		h := clampFloat(m.bedtime.predict([]float64{age, prevEnd, float64(totalNaps), totalDur}), 18, 22)
		t := atHour(now.In(loc), h)
		if !t.After(now) {
			t = now.Add(30 * time.Minute)
		}
		out.Bedtime = &BedtimePrediction{
			Time:        t,
			Confidence:  80,
			Consistency: consistencyLabel(m.bedtimeStd),
			Source:      SourceModel,
			Reason:      "Estimada con el modelo ajustado al historial del bebé.",
		}
	}
	return out
}

// Advisories are the model-side checks merged into the heuristic
// recommendation list.
func (m *Model) Advisories() []Recommendation {
	var recs []Recommendation
	if m.napSamples >= minNapSamples && m.napStartStd > 1.5 {
		recs = append(recs, Recommendation{
			Kind:    "variabilidad",
			Message: "Las horas de siesta varían bastante día a día; el modelo gana precisión con horarios más regulares.",
		})
	}
	if m.napSamples >= minNapSamples && m.avgNapDuration > 0 &&
		m.avgNapDuration < 0.75*float64(TypicalNapDuration(m.ageMonths)) {
		recs = append(recs, Recommendation{
			Kind:    "duracion_siestas",
			Message: "Las siestas registradas son más cortas que lo típico para su edad.",
		})
	}
	return recs
}
