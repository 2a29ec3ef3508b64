package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/prediction"
)

func GetPrediction(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		if pc := app.Cache(); pc != nil {
			if pred, hit := pc.Get(ctx, child.ID); hit {
				HandleSuccess(c, app.Logger(), pred, map[string]any{"cached": true})
				return
			}
		}

		now := time.Now().In(requestLocation(c, app))
		pred, err := app.Engine().Predict(ctx, child.ID, now)
		if err != nil {
			handlePredictionError(c, app, err)
			return
		}

		// Persist the derived stats onto the profile so clients that only
		// fetch the child still see a summary. The engine itself never
		// writes.
		child.SleepStats = pred.StatsSummary()
		if err := app.Children().UpdateChild(ctx, child); err != nil {
			app.Logger().Warnf("failed to persist sleep stats for child %s: %v", child.ID, err)
		}

		if pc := app.Cache(); pc != nil {
			pc.Set(ctx, child.ID, pred)
		}
		HandleSuccess(c, app.Logger(), pred, nil)
	}
}

func GetAnalysis(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}

		days := queryInt(c, "window_days", 7)
		now := time.Now().In(requestLocation(c, app))
		analysis, err := app.Engine().Analyze(c.Request.Context(), child.ID, days, now)
		if err != nil {
			handlePredictionError(c, app, err)
			return
		}

		HandleSuccess(c, app.Logger(), analysis, map[string]any{"window_days": days})
	}
}

func GetSleepPressure(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}

		now := time.Now().In(requestLocation(c, app))
		pressure, err := app.Engine().Pressure(c.Request.Context(), child.ID, now)
		if err != nil {
			handlePredictionError(c, app, err)
			return
		}

		HandleSuccess(c, app.Logger(), pressure, nil)
	}
}

func handlePredictionError(c *gin.Context, app App, err error) {
	if errors.Is(err, prediction.ErrChildUnborn) {
		HandleError(c, app.Logger(), err, 422, "Sleep prediction is not available before birth")
		return
	}
	HandleError(c, app.Logger(), err, 500, "Failed to compute prediction")
}
