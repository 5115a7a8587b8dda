package gksync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wurt83ow/locsync-client/pkg/models"
)

func TestSaveLocation_Success(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/save-location", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	s, err := NewSync(srv.URL)
	require.NoError(t, err)

	err = s.SaveLocation(context.Background(), models.NewLocationRecord("u1", 1.0, 2.0))
	require.NoError(t, err)

	assert.Equal(t, "u1", got["user_id"])
	assert.Equal(t, 1.0, got["latitude"])
	assert.Equal(t, 2.0, got["longitude"])
}

func TestSaveLocation_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"db down"}`))
	}))
	defer srv.Close()

	s, err := NewSync(srv.URL)
	require.NoError(t, err)

	err = s.SaveLocation(context.Background(), models.NewLocationRecord("u1", 1, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.False(t, errors.Is(err, ErrNetworkUnavailable))

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusInternalServerError, rej.StatusCode)
	assert.Equal(t, "db down", rej.Message)
}

func TestSaveLocation_NetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s, err := NewSync(url)
	require.NoError(t, err)

	err = s.SaveLocation(context.Background(), models.NewLocationRecord("u1", 1, 2))
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestSaveLocation_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := NewSync(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.SaveLocation(ctx, models.NewLocationRecord("u1", 1, 2))
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestSaveLocation_RequestEditor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSync(srv.URL, WithRequestEditorFn(func(ctx context.Context, req *http.Request) error {
		req.Header.Set("apikey", "secret")
		return nil
	}))
	require.NoError(t, err)

	assert.NoError(t, s.SaveLocation(context.Background(), models.NewLocationRecord("u1", 1, 2)))
}

func TestLatestLocations(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest-locations", r.URL.Path)
		rows := []models.LatestLocation{
			{UserID: "u1", Latitude: 1, Longitude: 2, Timestamp: ts, Username: "alice"},
		}
		if uid := r.URL.Query().Get("user_id"); uid != "" {
			assert.Equal(t, "u1", uid)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	s, err := NewSync(srv.URL)
	require.NoError(t, err)

	rows, err := s.LatestLocations(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Username)
	assert.True(t, ts.Equal(rows[0].Timestamp))

	rows, err = s.LatestLocations(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLatestLocations_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewSync(srv.URL)
	require.NoError(t, err)

	_, err = s.LatestLocations(context.Background(), "")
	assert.ErrorIs(t, err, ErrRemoteRejected)
}

func TestNewGetLatestLocationsRequest_Query(t *testing.T) {
	uid := "u 1"
	req, err := NewGetLatestLocationsRequest("http://example.com/api/", &GetLatestLocationsParams{UserID: &uid})
	require.NoError(t, err)

	assert.Equal(t, "/api/latest-locations", req.URL.Path)
	assert.Equal(t, "u 1", req.URL.Query().Get("user_id"))
}
