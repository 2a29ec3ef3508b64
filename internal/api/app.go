package api

import (
	"time"

	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/cache"
	"github.com/milifusa/mumpabackend-sub000/internal/prediction"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

type App interface {
	Logger() internal.Logger
	Events() storage.SleepEventRepository
	Children() storage.ChildRepository
	Engine() *prediction.Engine
	// Cache returns nil when prediction caching is disabled.
	Cache() *cache.PredictionCache
	// Timezone is the fallback location for requests without a tz param.
	Timezone() *time.Location
}
