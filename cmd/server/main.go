package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/api"
	"github.com/milifusa/mumpabackend-sub000/internal/auth"
	"github.com/milifusa/mumpabackend-sub000/internal/cache"
	"github.com/milifusa/mumpabackend-sub000/internal/config"
	"github.com/milifusa/mumpabackend-sub000/internal/prediction"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

type app struct {
	logger internal.Logger
	repos  *storage.Repositories
	engine *prediction.Engine
	cache  *cache.PredictionCache
	loc    *time.Location
}

func (a *app) Logger() internal.Logger              { return a.logger }
func (a *app) Events() storage.SleepEventRepository { return a.repos.Events }
func (a *app) Children() storage.ChildRepository    { return a.repos.Children }
func (a *app) Engine() *prediction.Engine           { return a.engine }
func (a *app) Cache() *cache.PredictionCache        { return a.cache }
func (a *app) Timezone() *time.Location             { return a.loc }

var _ api.App = (*app)(nil)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	var repos *storage.Repositories
	switch cfg.DBType {
	case "postgres":
		repos, err = storage.NewPostgresRepositories(cfg.DBDSN, logger)
	default:
		ensureDataDir(cfg.FileUsers)
		repos, err = storage.NewFileRepositories(cfg.FileUsers, cfg.FileChildren, cfg.FileSleep, logger)
	}
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}

	// Validated in config.Load already.
	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Fatalf("failed to load timezone %s: %v", cfg.DefaultTimezone, err)
	}

	a := &app{
		logger: logger,
		repos:  repos,
		engine: prediction.NewEngine(repos.Events, repos.Children, logger, cfg.HistoryWindowDays),
		loc:    loc,
	}
	if cfg.RedisAddr != "" {
		a.cache = cache.NewPredictionCache(cfg.RedisAddr, cfg.PredictionCacheTTL, logger)
	}

	var provider auth.Provider
	if cfg.Env == "development" {
		provider = auth.NewLocalAuthProvider(repos.Users, logger)
	} else {
		provider = auth.NewRemoteAuthProvider(cfg.AuthServiceURL, logger)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestIDMiddleware())
	r.Use(api.RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	protected := r.Group("", auth.AuthMiddleware(provider))
	protected.POST("/children", api.PostChild(a))
	protected.GET("/children/:id", api.GetChild(a))
	protected.POST("/children/:id/sleep", api.PostSleepEvent(a))
	protected.GET("/children/:id/sleep", api.GetSleepEvents(a))
	protected.POST("/children/:id/sleep/:eventId/end", api.EndSleepEvent(a))
	protected.POST("/children/:id/sleep/:eventId/pauses", api.PostSleepPause(a))
	protected.GET("/children/:id/prediction", api.GetPrediction(a))
	protected.GET("/children/:id/analysis", api.GetAnalysis(a))
	protected.GET("/children/:id/sleep-pressure", api.GetSleepPressure(a))

	logger.Infof("server running on :%s (env=%s, storage=%s)", cfg.Port, cfg.Env, cfg.DBType)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("failed to start server: %v", err)
	}
}

func ensureDataDir(usersFile string) {
	dir := "data"
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.Mkdir(dir, 0755)
	}
	// Seed a default user so local clients can authenticate out of the box.
	if _, err := os.Stat(usersFile); os.IsNotExist(err) {
		_ = os.WriteFile(usersFile, []byte(`[{"id":"u1","token":"MOCK-TOKEN","name":"Demo User"}]`), 0644)
	}
}
