package api

import (
	"github.com/gin-gonic/gin"
	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/service"
)

func PostChild(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var body service.ChildRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		if err := service.ValidateChildRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		child, err := service.CreateChild(c.Request.Context(), app.Children(), user, &body)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to save child")
			return
		}

		HandleSuccess(c, app.Logger(), child, nil)
	}
}

func GetChild(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		child, ok := ownedChild(c, app, user)
		if !ok {
			return
		}
		HandleSuccess(c, app.Logger(), child, nil)
	}
}
