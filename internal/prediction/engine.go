package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

// MinimumEvents is the history size below which only the default
// schedule is returned.
const MinimumEvents = 3

// ErrChildUnborn signals that no sleep history can exist yet; no
// prediction is attempted for gestation-only profiles.
var ErrChildUnborn = errors.New("prediction: child is unborn")

// Outcome tags which computation path produced the prediction.
type Outcome string

const (
	OutcomeDefault        Outcome = "default"
	OutcomeHeuristic      Outcome = "heuristic"
	OutcomeHeuristicModel Outcome = "heuristic+model"
)

// SleepPrediction is the unified, transient prediction object. It is
// never persisted; callers may write StatsSummary back onto the child
// profile as a cache.
type SleepPrediction struct {
	Outcome         Outcome            `json:"outcome"`
	NextNap         *NapPrediction     `json:"next_nap,omitempty"`
	Bedtime         *BedtimePrediction `json:"bedtime,omitempty"`
	Pressure        SleepPressure      `json:"sleep_pressure"`
	Patterns        *Patterns          `json:"patterns,omitempty"`
	Recommendations []Recommendation   `json:"recommendations"`
	Confidence      int                `json:"confidence"`
	DataPoints      int                `json:"data_points"`
	MinimumRequired int                `json:"minimum_required"`
	DefaultSchedule *DailySchedule     `json:"default_schedule,omitempty"`
	PredictedAt     time.Time          `json:"predicted_at"`
}

// StatsSummary is the compact view persisted onto the child profile by
// the caller. The engine itself performs no writes.
func (p *SleepPrediction) StatsSummary() map[string]any {
	s := map[string]any{
		"outcome":     string(p.Outcome),
		"confidence":  p.Confidence,
		"data_points": p.DataPoints,
		"updated_at":  p.PredictedAt,
	}
	if p.Patterns != nil {
		s["avg_daily_sleep_minutes"] = p.Patterns.AvgDailySleepMinutes
		s["avg_naps_per_day"] = p.Patterns.AvgNapsPerDay
		s["consistency"] = p.Patterns.Consistency
		s["quality"] = p.Patterns.Quality
	}
	return s
}

type Analysis struct {
	Patterns        Patterns         `json:"patterns"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Engine ties the heuristic predictor, pattern analyzer and regression
// model together behind one entry point. It is a value constructed per
// process with no mutable state of its own: every prediction works on
// the immutable history snapshot fetched at call time, so concurrent
// calls need no locking.
type Engine struct {
	events     storage.SleepEventRepository
	children   storage.ChildRepository
	logger     internal.Logger
	windowDays int
}

func NewEngine(events storage.SleepEventRepository, children storage.ChildRepository, logger internal.Logger, windowDays int) *Engine {
	if windowDays <= 0 {
		windowDays = 14
	}
	return &Engine{events: events, children: children, logger: logger, windowDays: windowDays}
}

func (e *Engine) loadHistory(ctx context.Context, childID string, now time.Time, windowDays int) (*internal.ChildProfile, []internal.SleepEvent, error) {
	child, err := e.children.GetChild(ctx, childID)
	if err != nil {
		return nil, nil, fmt.Errorf("prediction: load child: %w", err)
	}
	if child.IsUnborn || child.BirthDate == nil {
		return nil, nil, ErrChildUnborn
	}
	since := now.AddDate(0, 0, -windowDays)
	history, err := e.events.ListEventsSince(ctx, childID, since)
	if err != nil {
		return nil, nil, fmt.Errorf("prediction: load events: %w", err)
	}
	return child, history, nil
}

// Predict loads the history window and produces the unified prediction.
// The heuristic predictor always runs; when the regression model trains
// successfully its nap/bedtime outputs are preferred, while pressure,
// patterns and recommendations stay heuristic. Model failures degrade
// silently to heuristic-only output.
func (e *Engine) Predict(ctx context.Context, childID string, now time.Time) (*SleepPrediction, error) {
	child, history, err := e.loadHistory(ctx, childID, now, e.windowDays)
	if err != nil {
		return nil, err
	}
	age := child.AgeInMonths(now)
	loc := now.Location()

	pred := &SleepPrediction{
		Pressure:        CalculateSleepPressure(history, now),
		DataPoints:      len(history),
		MinimumRequired: MinimumEvents,
		PredictedAt:     now,
	}

	if len(history) < MinimumEvents {
		sched := DefaultDailySchedule(age)
		pred.Outcome = OutcomeDefault
		pred.DefaultSchedule = &sched
		pred.Confidence = 30
		pred.Recommendations = []Recommendation{{
			Kind:    "datos",
			Message: "Aún hay pocos registros; sigue anotando el sueño para recibir predicciones personalizadas.",
		}}
		return pred, nil
	}

	nap := PredictNextNap(history, now, age)
	bed := PredictBedtime(history, age, now)
	patterns := AnalyzePatterns(history, loc)

	pred.Outcome = OutcomeHeuristic
	pred.NextNap = &nap
	pred.Bedtime = &bed
	pred.Patterns = &patterns
	pred.Recommendations = GenerateRecommendations(patterns, age)
	pred.Confidence = CalculateConfidence(history, loc)

	if model := Train(history, age, loc); model != nil {
		mp := model.PredictDay(history, now)
		used := false
		if mp.NextNap != nil && !inNightWindow(mp.NextNap.Time) {
			pred.NextNap = mp.NextNap
			used = true
		}
		if mp.Bedtime != nil {
			pred.Bedtime = mp.Bedtime
			used = true
		}
		if used {
			pred.Outcome = OutcomeHeuristicModel
		}
		pred.Recommendations = mergeRecommendations(pred.Recommendations, model.Advisories())
	} else {
		e.logger.Debugf("prediction: model unavailable for child %s (%d events)", childID, len(history))
	}

	return pred, nil
}

// Analyze returns the pattern analyzer output alone, for dashboards.
// windowDays <= 0 uses a 7 day window.
func (e *Engine) Analyze(ctx context.Context, childID string, windowDays int, now time.Time) (*Analysis, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	child, history, err := e.loadHistory(ctx, childID, now, windowDays)
	if err != nil {
		return nil, err
	}
	patterns := AnalyzePatterns(history, now.Location())
	return &Analysis{
		Patterns:        patterns,
		Recommendations: GenerateRecommendations(patterns, child.AgeInMonths(now)),
	}, nil
}

// Pressure is the standalone sleep pressure accessor.
func (e *Engine) Pressure(ctx context.Context, childID string, now time.Time) (SleepPressure, error) {
	_, history, err := e.loadHistory(ctx, childID, now, e.windowDays)
	if err != nil {
		return SleepPressure{}, err
	}
	return CalculateSleepPressure(history, now), nil
}

// mergeRecommendations appends the model advisories; a lone positive
// message is dropped when the model flagged something after all.
func mergeRecommendations(recs, advisories []Recommendation) []Recommendation {
	if len(advisories) == 0 {
		return recs
	}
	if len(recs) == 1 && recs[0].Kind == "positivo" {
		recs = recs[:0]
	}
	return append(recs, advisories...)
}
