package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

var validate = validator.New()

var (
	ErrEventClosed    = errors.New("service: sleep event already closed")
	ErrEndBeforeStart = errors.New("service: end_time must be after start_time")
	ErrInvalidPause   = errors.New("service: pause requires duration_minutes or start_time and end_time")
)

type SleepEventRequest struct {
	Type        internal.SleepType    `json:"type" validate:"required,oneof=nap night"`
	StartTime   time.Time             `json:"start_time" validate:"required"`
	EndTime     *time.Time            `json:"end_time,omitempty"`
	Quality     internal.SleepQuality `json:"quality,omitempty" validate:"omitempty,oneof=poor fair good excellent"`
	WakeUps     int                   `json:"wake_ups" validate:"gte=0"`
	Location    string                `json:"location,omitempty"`
	Temperature *float64              `json:"temperature,omitempty"`
	NoiseLevel  string                `json:"noise_level,omitempty"`
}

type CloseSleepEventRequest struct {
	EndTime time.Time             `json:"end_time" validate:"required"`
	Quality internal.SleepQuality `json:"quality,omitempty" validate:"omitempty,oneof=poor fair good excellent"`
	WakeUps int                   `json:"wake_ups" validate:"gte=0"`
}

type PauseRequest struct {
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes" validate:"gte=0"`
	Reason          string     `json:"reason,omitempty"`
}

func ValidateSleepEventRequest(body *SleepEventRequest) error {
	if err := validate.Struct(body); err != nil {
		return err
	}
	if body.EndTime != nil && !body.EndTime.After(body.StartTime) {
		return ErrEndBeforeStart
	}
	return nil
}

// RecomputeDurations rederives both duration fields from the start, end
// and pause list. Net duration is gross minus the paused minutes,
// clamped to zero; an open event carries no duration at all.
func RecomputeDurations(e *internal.SleepEvent) {
	if e.EndTime == nil {
		e.DurationMinutes = 0
		e.GrossDurationMinutes = 0
		return
	}
	gross := int(e.EndTime.Sub(e.StartTime).Minutes())
	if gross < 0 {
		gross = 0
	}
	paused := 0
	for _, p := range e.Pauses {
		paused += p.DurationMinutes
	}
	net := gross - paused
	if net < 0 {
		net = 0
	}
	e.GrossDurationMinutes = gross
	e.DurationMinutes = net
}

func CreateSleepEvent(ctx context.Context, events storage.SleepEventRepository, child *internal.ChildProfile, body *SleepEventRequest) (*internal.SleepEvent, error) {
	event := &internal.SleepEvent{
		ID:          uuid.NewString(),
		ChildID:     child.ID,
		Type:        body.Type,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		Quality:     body.Quality,
		WakeUps:     body.WakeUps,
		Location:    body.Location,
		Temperature: body.Temperature,
		NoiseLevel:  body.NoiseLevel,
		CreatedAt:   time.Now(),
	}
	RecomputeDurations(event)
	if err := events.SaveEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func CloseSleepEvent(ctx context.Context, events storage.SleepEventRepository, eventID string, body *CloseSleepEventRequest) (*internal.SleepEvent, error) {
	if err := validate.Struct(body); err != nil {
		return nil, err
	}
	event, err := events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Closed() {
		return nil, ErrEventClosed
	}
	if !body.EndTime.After(event.StartTime) {
		return nil, ErrEndBeforeStart
	}
	end := body.EndTime
	event.EndTime = &end
	if body.Quality != "" {
		event.Quality = body.Quality
	}
	if body.WakeUps > 0 {
		event.WakeUps = body.WakeUps
	}
	RecomputeDurations(event)
	if err := events.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// AddPause appends one pause to an open event. The pause list is
// append-only: pauses are never edited or removed, the derived duration
// is simply recomputed.
func AddPause(ctx context.Context, events storage.SleepEventRepository, eventID string, body *PauseRequest) (*internal.SleepEvent, error) {
	if err := validate.Struct(body); err != nil {
		return nil, err
	}
	event, err := events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Closed() {
		return nil, ErrEventClosed
	}

	minutes := body.DurationMinutes
	if minutes == 0 {
		if body.StartTime == nil || body.EndTime == nil || !body.EndTime.After(*body.StartTime) {
			return nil, ErrInvalidPause
		}
		minutes = int(body.EndTime.Sub(*body.StartTime).Minutes())
	}
	if minutes <= 0 {
		return nil, ErrInvalidPause
	}

	event.Pauses = append(event.Pauses, internal.SleepPause{
		StartTime:       body.StartTime,
		DurationMinutes: minutes,
		Reason:          body.Reason,
	})
	RecomputeDurations(event)
	if err := events.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}
