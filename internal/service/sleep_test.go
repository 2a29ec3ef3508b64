package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

func setupRepos(t *testing.T) *storage.Repositories {
	t.Helper()
	dir := t.TempDir()
	repos, err := storage.NewFileRepositories(
		dir+"/users.json", dir+"/children.json", dir+"/sleep.json",
		internal.NewZapLogger(zap.NewNop().Sugar()))
	assert.NoError(t, err)
	return repos
}

func testChild(t *testing.T, repos *storage.Repositories) *internal.ChildProfile {
	t.Helper()
	user := &internal.User{ID: "u1", Token: "tok", Name: "Test User"}
	birth := time.Now().AddDate(0, -5, 0)
	child, err := CreateChild(context.Background(), repos.Children, user, &ChildRequest{
		Name:      "Luna",
		BirthDate: &birth,
	})
	assert.NoError(t, err)
	return child
}

func TestRecomputeDurations(t *testing.T) {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	e := &internal.SleepEvent{StartTime: start, EndTime: &end}
	RecomputeDurations(e)
	assert.Equal(t, 120, e.GrossDurationMinutes)
	assert.Equal(t, 120, e.DurationMinutes)

	e.Pauses = []internal.SleepPause{{DurationMinutes: 15}, {DurationMinutes: 10}}
	RecomputeDurations(e)
	assert.Equal(t, 120, e.GrossDurationMinutes)
	assert.Equal(t, 95, e.DurationMinutes)

	// Pauses exceeding the gross span clamp to zero, never negative.
	e.Pauses = []internal.SleepPause{{DurationMinutes: 500}}
	RecomputeDurations(e)
	assert.Equal(t, 0, e.DurationMinutes)

	// Open events carry no duration.
	e.EndTime = nil
	RecomputeDurations(e)
	assert.Equal(t, 0, e.GrossDurationMinutes)
	assert.Equal(t, 0, e.DurationMinutes)
}

func TestValidateSleepEventRequest(t *testing.T) {
	start := time.Now()
	end := start.Add(time.Hour)

	valid := &SleepEventRequest{Type: internal.SleepTypeNap, StartTime: start, EndTime: &end}
	assert.NoError(t, ValidateSleepEventRequest(valid))

	badType := &SleepEventRequest{Type: "siesta", StartTime: start}
	assert.Error(t, ValidateSleepEventRequest(badType))

	before := start.Add(-time.Hour)
	backwards := &SleepEventRequest{Type: internal.SleepTypeNap, StartTime: start, EndTime: &before}
	assert.ErrorIs(t, ValidateSleepEventRequest(backwards), ErrEndBeforeStart)

	badQuality := &SleepEventRequest{Type: internal.SleepTypeNap, StartTime: start, Quality: "great"}
	assert.Error(t, ValidateSleepEventRequest(badQuality))
}

func TestCreateAndCloseSleepEvent(t *testing.T) {
	repos := setupRepos(t)
	child := testChild(t, repos)
	ctx := context.Background()

	start := time.Now().Add(-2 * time.Hour)
	event, err := CreateSleepEvent(ctx, repos.Events, child, &SleepEventRequest{
		Type:      internal.SleepTypeNap,
		StartTime: start,
	})
	assert.NoError(t, err)
	assert.False(t, event.Closed())
	assert.Zero(t, event.DurationMinutes)

	end := start.Add(90 * time.Minute)
	closed, err := CloseSleepEvent(ctx, repos.Events, event.ID, &CloseSleepEventRequest{
		EndTime: end,
		Quality: internal.QualityGood,
	})
	assert.NoError(t, err)
	assert.True(t, closed.Closed())
	assert.Equal(t, 90, closed.DurationMinutes)
	assert.Equal(t, internal.QualityGood, closed.Quality)

	// Closing twice is rejected.
	_, err = CloseSleepEvent(ctx, repos.Events, event.ID, &CloseSleepEventRequest{EndTime: end})
	assert.ErrorIs(t, err, ErrEventClosed)

	// End before start is rejected.
	open, err := CreateSleepEvent(ctx, repos.Events, child, &SleepEventRequest{
		Type:      internal.SleepTypeNight,
		StartTime: start,
	})
	assert.NoError(t, err)
	_, err = CloseSleepEvent(ctx, repos.Events, open.ID, &CloseSleepEventRequest{
		EndTime: start.Add(-time.Minute),
	})
	assert.ErrorIs(t, err, ErrEndBeforeStart)
}

func TestAddPause(t *testing.T) {
	repos := setupRepos(t)
	child := testChild(t, repos)
	ctx := context.Background()

	start := time.Now().Add(-3 * time.Hour)
	event, err := CreateSleepEvent(ctx, repos.Events, child, &SleepEventRequest{
		Type:      internal.SleepTypeNight,
		StartTime: start,
	})
	assert.NoError(t, err)

	// Pause by explicit duration.
	updated, err := AddPause(ctx, repos.Events, event.ID, &PauseRequest{DurationMinutes: 20, Reason: "feeding"})
	assert.NoError(t, err)
	assert.Len(t, updated.Pauses, 1)

	// Pause by start/end pair.
	ps := start.Add(time.Hour)
	pe := ps.Add(10 * time.Minute)
	updated, err = AddPause(ctx, repos.Events, event.ID, &PauseRequest{StartTime: &ps, EndTime: &pe})
	assert.NoError(t, err)
	assert.Len(t, updated.Pauses, 2)
	assert.Equal(t, 10, updated.Pauses[1].DurationMinutes)

	// Neither duration nor a valid interval.
	_, err = AddPause(ctx, repos.Events, event.ID, &PauseRequest{})
	assert.ErrorIs(t, err, ErrInvalidPause)

	// Closing now subtracts both pauses from the gross span.
	end := start.Add(3 * time.Hour)
	closed, err := CloseSleepEvent(ctx, repos.Events, event.ID, &CloseSleepEventRequest{EndTime: end})
	assert.NoError(t, err)
	assert.Equal(t, 180, closed.GrossDurationMinutes)
	assert.Equal(t, 150, closed.DurationMinutes)

	// Pauses on a closed event are rejected.
	_, err = AddPause(ctx, repos.Events, event.ID, &PauseRequest{DurationMinutes: 5})
	assert.ErrorIs(t, err, ErrEventClosed)
}

func TestValidateChildRequest(t *testing.T) {
	birth := time.Now().AddDate(0, -5, 0)
	assert.NoError(t, ValidateChildRequest(&ChildRequest{Name: "Luna", BirthDate: &birth}))
	assert.NoError(t, ValidateChildRequest(&ChildRequest{Name: "Peanut", IsUnborn: true, GestationWeeks: 30}))

	assert.Error(t, ValidateChildRequest(&ChildRequest{BirthDate: &birth})) // missing name
	assert.ErrorIs(t, ValidateChildRequest(&ChildRequest{Name: "Luna"}), ErrMissingBirthData)
	assert.ErrorIs(t, ValidateChildRequest(&ChildRequest{Name: "Luna", IsUnborn: true}), ErrMissingBirthData)
}
