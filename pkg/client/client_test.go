package client

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wurt83ow/locsync-client/pkg/models"
	"github.com/wurt83ow/locsync-client/pkg/services"
)

type submitCall struct {
	owner    string
	lat, lng float64
}

type fakeEngine struct {
	calls  []submitCall
	status models.SyncStatus
	latest []models.LatestLocation
	err    error
}

func (e *fakeEngine) Submit(_ context.Context, owner string, lat, lng float64) services.Outcome {
	e.calls = append(e.calls, submitCall{owner, lat, lng})
	return services.OutcomeQueued
}

func (e *fakeEngine) LatestLocations(context.Context) ([]models.LatestLocation, error) {
	return e.latest, e.err
}

func (e *fakeEngine) Status(context.Context) (models.SyncStatus, error) {
	return e.status, e.err
}

type fakeTrigger struct {
	tags []string
	err  error
}

func (t *fakeTrigger) Dispatch(_ context.Context, tag string) error {
	t.tags = append(t.tags, tag)
	return t.err
}

func newTestShell(owner string) (*Shell, *fakeEngine, *fakeTrigger, *[]bool, *bytes.Buffer) {
	var out bytes.Buffer
	var online []bool
	e := &fakeEngine{}
	tr := &fakeTrigger{}
	s := newShell(e, tr, func(v bool) { online = append(online, v) }, owner, &out)
	return s, e, tr, &online, &out
}

func TestHandle_Submit(t *testing.T) {
	s, e, _, _, out := newTestShell("u1")
	ctx := context.Background()

	assert.True(t, s.Handle(ctx, "submit 1.5 2.5"))
	assert.Equal(t, []submitCall{{"u1", 1.5, 2.5}}, e.calls)
	assert.Contains(t, out.String(), "Sample queued")

	out.Reset()
	s.Handle(ctx, "submit north 2")
	assert.Contains(t, out.String(), "Latitude must be a number!")

	out.Reset()
	s.Handle(ctx, "submit 1")
	assert.Contains(t, out.String(), "Usage: submit")
	assert.Len(t, e.calls, 1)
}

func TestHandle_SubmitWithoutUser(t *testing.T) {
	s, e, _, _, out := newTestShell("")
	ctx := context.Background()

	s.Handle(ctx, "submit 1 2")
	assert.Empty(t, e.calls)
	assert.Contains(t, out.String(), "No user set")

	s.Handle(ctx, "user u7")
	s.Handle(ctx, "submit 1 2")
	assert.Equal(t, []submitCall{{"u7", 1, 2}}, e.calls)
}

func TestHandle_Connectivity(t *testing.T) {
	s, _, _, online, _ := newTestShell("u1")
	ctx := context.Background()

	s.Handle(ctx, "offline")
	s.Handle(ctx, "online")
	assert.Equal(t, []bool{false, true}, *online)
}

func TestHandle_Drain(t *testing.T) {
	s, e, tr, _, out := newTestShell("u1")
	e.status = models.SyncStatus{Queued: 2, Online: true}

	s.Handle(context.Background(), "drain")
	assert.Equal(t, []string{"location-sync"}, tr.tags)
	assert.Contains(t, out.String(), "queued: 2")
	assert.Contains(t, out.String(), "last write: never")

	out.Reset()
	tr.err = errors.New("queue unavailable")
	s.Handle(context.Background(), "drain")
	assert.Contains(t, out.String(), "Sync failed: queue unavailable")
}

func TestHandle_Latest(t *testing.T) {
	s, e, _, _, out := newTestShell("u1")
	e.latest = []models.LatestLocation{
		{UserID: "u1", Username: "ann", Latitude: 1, Longitude: 2, Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	s.Handle(context.Background(), "latest")
	assert.Contains(t, out.String(), "USER")
	assert.Contains(t, out.String(), "ann")
	assert.Contains(t, out.String(), "2024-03-01T12:00:00Z")
}

func TestHandle_QuitAndUnknown(t *testing.T) {
	s, _, _, _, out := newTestShell("u1")
	ctx := context.Background()

	assert.True(t, s.Handle(ctx, ""))
	assert.True(t, s.Handle(ctx, "fly"))
	assert.Contains(t, out.String(), `Unknown command "fly"`)
	assert.False(t, s.Handle(ctx, "quit"))
}
