package gksync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wurt83ow/locsync-client/pkg/models"
)

var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrRemoteRejected     = errors.New("remote rejected")
)

// RejectedError is returned when the server answers with a non-2xx status.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRemoteRejected
}

type Sync struct {
	client ClientWithResponsesInterface
}

func NewSync(serverURL string, opts ...ClientOption) (*Sync, error) {
	client, err := NewClientWithResponses(serverURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Sync{client: client}, nil
}

func rejected(code int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	return &RejectedError{StatusCode: code, Message: msg}
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// SaveLocation posts one record to the server. Transport failures map to
// ErrNetworkUnavailable, non-2xx answers to ErrRemoteRejected.
func (s *Sync) SaveLocation(ctx context.Context, rec models.LocationRecord) error {
	body := PostSaveLocationJSONRequestBody{
		UserID:    rec.OwnerID,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
	}

	resp, err := s.client.PostSaveLocationWithResponse(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	if !isSuccess(resp.StatusCode()) {
		return rejected(resp.StatusCode(), resp.Body)
	}
	return nil
}

// LatestLocations fetches the last known position of every user, or of
// a single user when userID is not empty.
func (s *Sync) LatestLocations(ctx context.Context, userID string) ([]models.LatestLocation, error) {
	var params *GetLatestLocationsParams
	if userID != "" {
		params = &GetLatestLocationsParams{UserID: &userID}
	}

	resp, err := s.client.GetLatestLocationsWithResponse(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	if !isSuccess(resp.StatusCode()) {
		return nil, rejected(resp.StatusCode(), resp.Body)
	}
	if resp.JSON200 == nil {
		return nil, nil
	}
	return *resp.JSON200, nil
}
