package storage

import (
	"context"
	"errors"
	"time"

	"github.com/milifusa/mumpabackend-sub000/internal"
)

var ErrNotFound = errors.New("storage: not found")

// SleepEventRepository is the event store consumed by the prediction
// engine. ListEventsSince returns events ordered ascending by start
// time, pauses included.
type SleepEventRepository interface {
	SaveEvent(ctx context.Context, event *internal.SleepEvent) error
	UpdateEvent(ctx context.Context, event *internal.SleepEvent) error
	GetEvent(ctx context.Context, id string) (*internal.SleepEvent, error)
	ListEventsSince(ctx context.Context, childID string, since time.Time) ([]internal.SleepEvent, error)
}

type ChildRepository interface {
	SaveChild(ctx context.Context, child *internal.ChildProfile) error
	UpdateChild(ctx context.Context, child *internal.ChildProfile) error
	GetChild(ctx context.Context, id string) (*internal.ChildProfile, error)
}

type UserRepository interface {
	GetUserByToken(ctx context.Context, token string) (*internal.User, error)
}
