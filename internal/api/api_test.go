package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/api"
	"github.com/milifusa/mumpabackend-sub000/internal/auth"
	"github.com/milifusa/mumpabackend-sub000/internal/cache"
	"github.com/milifusa/mumpabackend-sub000/internal/prediction"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

type testApp struct {
	logger internal.Logger
	repos  *storage.Repositories
	engine *prediction.Engine
}

func (a *testApp) Logger() internal.Logger              { return a.logger }
func (a *testApp) Events() storage.SleepEventRepository { return a.repos.Events }
func (a *testApp) Children() storage.ChildRepository    { return a.repos.Children }
func (a *testApp) Engine() *prediction.Engine           { return a.engine }
func (a *testApp) Cache() *cache.PredictionCache        { return nil }
func (a *testApp) Timezone() *time.Location             { return time.UTC }

func setupRouter(t *testing.T) (*gin.Engine, *testApp) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	usersFile := dir + "/users.json"
	assert.NoError(t, os.WriteFile(usersFile,
		[]byte(`[{"id":"u1","token":"MOCK-TOKEN","name":"Test User"},{"id":"u2","token":"OTHER-TOKEN","name":"Other User"}]`), 0644))

	logger := internal.NewZapLogger(zap.NewNop().Sugar())
	repos, err := storage.NewFileRepositories(usersFile, dir+"/children.json", dir+"/sleep.json", logger)
	assert.NoError(t, err)

	a := &testApp{
		logger: logger,
		repos:  repos,
		engine: prediction.NewEngine(repos.Events, repos.Children, logger, 14),
	}

	r := gin.New()
	r.Use(api.RequestIDMiddleware())
	protected := r.Group("", auth.AuthMiddleware(auth.NewLocalAuthProvider(repos.Users, logger)))
	protected.POST("/children", api.PostChild(a))
	protected.GET("/children/:id", api.GetChild(a))
	protected.POST("/children/:id/sleep", api.PostSleepEvent(a))
	protected.GET("/children/:id/sleep", api.GetSleepEvents(a))
	protected.POST("/children/:id/sleep/:eventId/end", api.EndSleepEvent(a))
	protected.POST("/children/:id/sleep/:eventId/pauses", api.PostSleepPause(a))
	protected.GET("/children/:id/prediction", api.GetPrediction(a))
	protected.GET("/children/:id/analysis", api.GetAnalysis(a))
	protected.GET("/children/:id/sleep-pressure", api.GetSleepPressure(a))
	return r, a
}

func doRequest(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Data map[string]any `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func createChild(t *testing.T, r *gin.Engine, token string) string {
	t.Helper()
	birth := time.Now().UTC().AddDate(0, -5, 0).Format(time.RFC3339)
	w := doRequest(r, "POST", "/children", token, `{"name":"Luna","birth_date":"`+birth+`"}`)
	assert.Equal(t, 200, w.Code)
	id, _ := dataOf(t, w)["id"].(string)
	assert.NotEmpty(t, id)
	return id
}

func TestUnauthorized(t *testing.T) {
	r, _ := setupRouter(t)
	assert.Equal(t, 401, doRequest(r, "POST", "/children", "", `{}`).Code)
	assert.Equal(t, 401, doRequest(r, "POST", "/children", "BAD-TOKEN", `{}`).Code)
}

func TestPostChild_ValidAndInvalid(t *testing.T) {
	r, _ := setupRouter(t)

	id := createChild(t, r, "MOCK-TOKEN")
	w := doRequest(r, "GET", "/children/"+id, "MOCK-TOKEN", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "Luna", dataOf(t, w)["name"])

	// Unborn profile with gestation weeks is accepted.
	w = doRequest(r, "POST", "/children", "MOCK-TOKEN", `{"name":"Peanut","is_unborn":true,"gestation_weeks":30}`)
	assert.Equal(t, 200, w.Code)

	// Neither birth date nor gestation data.
	w = doRequest(r, "POST", "/children", "MOCK-TOKEN", `{"name":"Nadie"}`)
	assert.Equal(t, 400, w.Code)

	// Missing name.
	w = doRequest(r, "POST", "/children", "MOCK-TOKEN", `{"is_unborn":true,"gestation_weeks":30}`)
	assert.Equal(t, 400, w.Code)
}

func TestChildOwnership(t *testing.T) {
	r, _ := setupRouter(t)
	id := createChild(t, r, "MOCK-TOKEN")

	// Another user's child reads as not found.
	assert.Equal(t, 404, doRequest(r, "GET", "/children/"+id, "OTHER-TOKEN", "").Code)
	assert.Equal(t, 404, doRequest(r, "GET", "/children/nope", "MOCK-TOKEN", "").Code)
	assert.Equal(t, 404, doRequest(r, "GET", "/children/"+id+"/prediction", "OTHER-TOKEN", "").Code)
}

func TestSleepEventLifecycle(t *testing.T) {
	r, _ := setupRouter(t)
	id := createChild(t, r, "MOCK-TOKEN")

	start := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	w := doRequest(r, "POST", "/children/"+id+"/sleep", "MOCK-TOKEN",
		`{"type":"nap","start_time":"`+start+`"}`)
	assert.Equal(t, 200, w.Code)
	eventID, _ := dataOf(t, w)["id"].(string)
	assert.NotEmpty(t, eventID)

	// Invalid type.
	w = doRequest(r, "POST", "/children/"+id+"/sleep", "MOCK-TOKEN",
		`{"type":"banana","start_time":"`+start+`"}`)
	assert.Equal(t, 400, w.Code)

	// Pause the open event.
	w = doRequest(r, "POST", "/children/"+id+"/sleep/"+eventID+"/pauses", "MOCK-TOKEN",
		`{"duration_minutes":15,"reason":"feeding"}`)
	assert.Equal(t, 200, w.Code)

	// Close it.
	end := time.Now().UTC().Format(time.RFC3339)
	w = doRequest(r, "POST", "/children/"+id+"/sleep/"+eventID+"/end", "MOCK-TOKEN",
		`{"end_time":"`+end+`","quality":"good"}`)
	assert.Equal(t, 200, w.Code)
	data := dataOf(t, w)
	assert.InDelta(t, 105, data["duration_minutes"], 1) // 120 gross - 15 paused
	assert.Equal(t, "good", data["quality"])

	// Closing twice fails.
	w = doRequest(r, "POST", "/children/"+id+"/sleep/"+eventID+"/end", "MOCK-TOKEN",
		`{"end_time":"`+end+`"}`)
	assert.Equal(t, 400, w.Code)

	// Pausing a closed event fails.
	w = doRequest(r, "POST", "/children/"+id+"/sleep/"+eventID+"/pauses", "MOCK-TOKEN",
		`{"duration_minutes":5}`)
	assert.Equal(t, 400, w.Code)

	// Unknown event.
	w = doRequest(r, "POST", "/children/"+id+"/sleep/nope/end", "MOCK-TOKEN",
		`{"end_time":"`+end+`"}`)
	assert.Equal(t, 404, w.Code)

	w = doRequest(r, "GET", "/children/"+id+"/sleep", "MOCK-TOKEN", "")
	assert.Equal(t, 200, w.Code)
}

func TestPredictionInsufficientData(t *testing.T) {
	r, a := setupRouter(t)
	id := createChild(t, r, "MOCK-TOKEN")

	w := doRequest(r, "GET", "/children/"+id+"/prediction", "MOCK-TOKEN", "")
	assert.Equal(t, 200, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "default", data["outcome"])
	assert.NotNil(t, data["default_schedule"])
	assert.Equal(t, float64(3), data["minimum_required"])

	// The derived stats were written back onto the profile.
	child, err := a.repos.Children.GetChild(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, "default", child.SleepStats["outcome"])
}

func TestPredictionWithHistory(t *testing.T) {
	r, _ := setupRouter(t)
	id := createChild(t, r, "MOCK-TOKEN")

	// Three closed naps on consecutive mornings.
	for d := 3; d >= 1; d-- {
		start := time.Now().UTC().AddDate(0, 0, -d).Truncate(time.Hour)
		end := start.Add(time.Hour)
		body := `{"type":"nap","start_time":"` + start.Format(time.RFC3339) +
			`","end_time":"` + end.Format(time.RFC3339) + `","quality":"good"}`
		w := doRequest(r, "POST", "/children/"+id+"/sleep", "MOCK-TOKEN", body)
		assert.Equal(t, 200, w.Code)
	}

	w := doRequest(r, "GET", "/children/"+id+"/prediction", "MOCK-TOKEN", "")
	assert.Equal(t, 200, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "heuristic", data["outcome"])
	assert.NotNil(t, data["next_nap"])
	assert.NotNil(t, data["patterns"])
}

func TestPredictionUnborn(t *testing.T) {
	r, _ := setupRouter(t)
	w := doRequest(r, "POST", "/children", "MOCK-TOKEN", `{"name":"Peanut","is_unborn":true,"gestation_weeks":30}`)
	assert.Equal(t, 200, w.Code)
	id, _ := dataOf(t, w)["id"].(string)

	for _, path := range []string{"/prediction", "/analysis", "/sleep-pressure"} {
		w = doRequest(r, "GET", "/children/"+id+path, "MOCK-TOKEN", "")
		assert.Equal(t, 422, w.Code, path)
	}
}

func TestAnalysisAndPressure(t *testing.T) {
	r, _ := setupRouter(t)
	id := createChild(t, r, "MOCK-TOKEN")

	w := doRequest(r, "GET", "/children/"+id+"/analysis?window_days=7", "MOCK-TOKEN", "")
	assert.Equal(t, 200, w.Code)
	data := dataOf(t, w)
	assert.NotNil(t, data["patterns"])

	w = doRequest(r, "GET", "/children/"+id+"/sleep-pressure", "MOCK-TOKEN", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "unknown", dataOf(t, w)["level"])
}
