package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	var resp response.APIResponse
	switch status {
	case 400:
		resp = response.BadRequest(msg + ": " + err.Error())
	case 404:
		resp = response.NotFound(msg + ": " + err.Error())
	case 500:
		resp = response.InternalError(msg + ": " + err.Error())
	default:
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.JSON(status, resp)
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Infof("[request_id=%s] Success", requestID)
	c.JSON(200, response.Success(data, meta))
}

// ownedChild loads the child from the :id route param and checks that it
// belongs to the authenticated user. Other users' children read as not
// found rather than forbidden, so child IDs cannot be probed.
func ownedChild(c *gin.Context, app App, user *internal.User) (*internal.ChildProfile, bool) {
	child, err := app.Children().GetChild(c.Request.Context(), c.Param("id"))
	if err != nil || child.UserID != user.ID {
		if err == nil {
			err = internal.NewAppError(404, "child does not belong to user")
		}
		HandleError(c, app.Logger(), err, 404, "Child not found")
		return nil, false
	}
	return child, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// requestLocation resolves the timezone used for "next nap"/"bedtime"
// clock math: an explicit ?tz= IANA name wins, otherwise the configured
// default.
func requestLocation(c *gin.Context, app App) *time.Location {
	if tz := c.Query("tz"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
		app.Logger().Warnf("ignoring invalid tz param %q", tz)
	}
	return app.Timezone()
}
