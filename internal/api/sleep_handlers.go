package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/service"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

func PostSleepEvent(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}

		var body service.SleepEventRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		if err := service.ValidateSleepEventRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		event, err := service.CreateSleepEvent(c.Request.Context(), app.Events(), child, &body)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to save sleep event")
			return
		}

		invalidatePrediction(c, app, child.ID)
		HandleSuccess(c, app.Logger(), event, nil)
	}
}

func GetSleepEvents(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}

		days := queryInt(c, "days", 14)
		since := time.Now().AddDate(0, 0, -days)
		events, err := app.Events().ListEventsSince(c.Request.Context(), child.ID, since)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch sleep events")
			return
		}

		HandleSuccess(c, app.Logger(), events, map[string]any{"days": days, "count": len(events)})
	}
}

func EndSleepEvent(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}

		var body service.CloseSleepEventRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		if !eventBelongsToChild(c, app, child.ID) {
			return
		}
		event, err := service.CloseSleepEvent(c.Request.Context(), app.Events(), c.Param("eventId"), &body)
		if err != nil {
			handleEventError(c, app, err)
			return
		}

		invalidatePrediction(c, app, child.ID)
		HandleSuccess(c, app.Logger(), event, nil)
	}
}

func PostSleepPause(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}

		var body service.PauseRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		if !eventBelongsToChild(c, app, child.ID) {
			return
		}
		event, err := service.AddPause(c.Request.Context(), app.Events(), c.Param("eventId"), &body)
		if err != nil {
			handleEventError(c, app, err)
			return
		}

		invalidatePrediction(c, app, child.ID)
		HandleSuccess(c, app.Logger(), event, nil)
	}
}

// eventBelongsToChild verifies the :eventId route param against the
// already-authorized child before any mutation happens.
func eventBelongsToChild(c *gin.Context, app App, childID string) bool {
	event, err := app.Events().GetEvent(c.Request.Context(), c.Param("eventId"))
	if err != nil || event.ChildID != childID {
		HandleError(c, app.Logger(), storage.ErrNotFound, 404, "Sleep event not found")
		return false
	}
	return true
}

func handleEventError(c *gin.Context, app App, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, storage.ErrNotFound):
		HandleError(c, app.Logger(), err, 404, "Sleep event not found")
	case errors.As(err, &verrs),
		errors.Is(err, service.ErrEventClosed),
		errors.Is(err, service.ErrEndBeforeStart),
		errors.Is(err, service.ErrInvalidPause):
		HandleError(c, app.Logger(), err, 400, "Invalid sleep event update")
	default:
		HandleError(c, app.Logger(), err, 500, "Failed to update sleep event")
	}
}

// Any event write makes a cached prediction stale.
func invalidatePrediction(c *gin.Context, app App, childID string) {
	if pc := app.Cache(); pc != nil {
		pc.Invalidate(c.Request.Context(), childID)
	}
}
