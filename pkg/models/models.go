package models

import "time"

// LocationRecord is a single position sample tagged with its owner.
// LocalID is zero until the record is admitted into the local queue.
type LocationRecord struct {
	LocalID   int64   `json:"-"`
	OwnerID   string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LatestLocation is one row of the read side: the last known position of a user.
type LatestLocation struct {
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username,omitempty"`
	Phone     string    `json:"phone,omitempty"`
}

// SyncStatus describes the local state of the write path.
type SyncStatus struct {
	Queued              int
	LastWrittenAtMillis int64
	Online              bool
}

// NewLocationRecord builds a transient record for a fresh sample.
func NewLocationRecord(ownerID string, lat, lng float64) LocationRecord {
	return LocationRecord{
		OwnerID:   ownerID,
		Latitude:  lat,
		Longitude: lng,
	}
}

// Equal reports whether two records carry the same sample, ignoring LocalID.
func (r LocationRecord) Equal(other LocationRecord) bool {
	return r.OwnerID == other.OwnerID &&
		r.Latitude == other.Latitude &&
		r.Longitude == other.Longitude
}

// DrainReport summarizes one replay of the local queue.
type DrainReport struct {
	Attempted int
	Synced    int
	Failed    int
}
