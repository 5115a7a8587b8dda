// Package services is the sync engine of the location write path.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/wurt83ow/locsync-client/pkg/appcontext"
	"github.com/wurt83ow/locsync-client/pkg/bdkeeper"
	"github.com/wurt83ow/locsync-client/pkg/bgsync"
	"github.com/wurt83ow/locsync-client/pkg/gksync"
	"github.com/wurt83ow/locsync-client/pkg/models"
)

// DefaultRequestTimeout bounds every remote write.
const DefaultRequestTimeout = 15 * time.Second

// Outcome is the result of a single Submit call.
type Outcome int

const (
	OutcomeSaved Outcome = iota
	OutcomeQueued
	OutcomeRateLimited
	OutcomeBusy
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeQueued:
		return "queued"
	case OutcomeRateLimited:
		return "rate-limited"
	case OutcomeBusy:
		return "busy"
	case OutcomeDropped:
		return "dropped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Queue interface {
	Enqueue(ctx context.Context, rec models.LocationRecord) (int64, error)
	ListAll(ctx context.Context) ([]models.LocationRecord, error)
	Remove(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type Remote interface {
	SaveLocation(ctx context.Context, rec models.LocationRecord) error
	LatestLocations(ctx context.Context, userID string) ([]models.LatestLocation, error)
}

type Gate interface {
	CanWriteNow(ctx context.Context) bool
	RecordSuccessfulWrite(ctx context.Context, ts int64) error
	Watermark(ctx context.Context) (int64, error)
	Now() int64
}

type Connectivity interface {
	Online() bool
}

// Registrar receives "sync when connectivity returns" registrations.
type Registrar interface {
	Register(tag string) error
}

type Option func(*Service)

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

func WithRegistrar(r Registrar) Option {
	return func(s *Service) { s.registrar = r }
}

type Service struct {
	queue     Queue
	remote    Remote
	gate      Gate
	net       Connectivity
	registrar Registrar
	timeout   time.Duration
	log       logrus.FieldLogger

	inFlight atomic.Bool
	drains   singleflight.Group
}

func NewServices(queue Queue, remote Remote, gate Gate, net Connectivity, opts ...Option) *Service {
	s := &Service{
		queue:   queue,
		remote:  remote,
		gate:    gate,
		net:     net,
		timeout: DefaultRequestTimeout,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetRegistrar wires the background trigger after both sides are built.
func (s *Service) SetRegistrar(r Registrar) {
	s.registrar = r
}

func (s *Service) write(ctx context.Context, rec models.LocationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.remote.SaveLocation(ctx, rec)
}

func (s *Service) enqueue(ctx context.Context, rec models.LocationRecord, log logrus.FieldLogger) bool {
	id, err := s.queue.Enqueue(ctx, rec)
	if err != nil {
		if errors.Is(err, bdkeeper.ErrStorageUnavailable) {
			log.WithError(err).Error("local queue unavailable, sample dropped")
		} else {
			log.WithError(err).Error("failed to queue location, sample dropped")
		}
		return false
	}
	log.WithField("local_id", id).Info("location saved to local queue")

	if s.registrar != nil {
		if err := s.registrar.Register(bgsync.TagLocationSync); err != nil {
			log.WithError(err).Warn("failed to register background sync")
		}
	}
	return true
}

func (s *Service) markWritten(ctx context.Context, ts int64, log logrus.FieldLogger) {
	if err := s.gate.RecordSuccessfulWrite(ctx, ts); err != nil {
		log.WithError(err).Warn("failed to update watermark")
	}
}

// Submit handles one position sample. Only one Submit runs at a time;
// concurrent calls return OutcomeBusy without effect.
func (s *Service) Submit(ctx context.Context, ownerID string, lat, lng float64) Outcome {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.WithField("user_id", ownerID).Debug("write already in flight, sample skipped")
		return OutcomeBusy
	}
	defer s.inFlight.Store(false)

	now := s.gate.Now()
	rec := models.NewLocationRecord(ownerID, lat, lng)
	log := s.log.WithField("user_id", ownerID)

	if !s.net.Online() {
		if !s.gate.CanWriteNow(ctx) {
			log.Debug("too soon to queue location")
			return OutcomeRateLimited
		}
		log.Info("offline, saving location to local queue")
		if !s.enqueue(ctx, rec, log) {
			return OutcomeDropped
		}
		s.markWritten(ctx, now, log)
		return OutcomeQueued
	}

	if !s.gate.CanWriteNow(ctx) {
		log.Debug("too soon to save location")
		return OutcomeRateLimited
	}

	if err := s.write(ctx, rec); err != nil {
		log.WithError(err).Warn("remote write failed, saving location to local queue")
		if !s.enqueue(ctx, rec, log) {
			return OutcomeDropped
		}
		return OutcomeQueued
	}

	log.Info("location saved")
	s.markWritten(ctx, now, log)
	return OutcomeSaved
}

// Drain replays the local queue against the server, one record at a time,
// in insertion order. Synced records are removed; failed ones stay queued.
// Concurrent callers share the run in progress.
func (s *Service) Drain(ctx context.Context) (models.DrainReport, error) {
	v, err, _ := s.drains.Do("drain", func() (interface{}, error) {
		return s.drain(ctx)
	})
	report, _ := v.(models.DrainReport)
	return report, err
}

func (s *Service) drain(ctx context.Context) (models.DrainReport, error) {
	var report models.DrainReport

	log := s.log
	if id, ok := appcontext.GetRunID(ctx); ok {
		log = log.WithField("run_id", id)
	}

	records, err := s.queue.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list queued locations: %w", err)
	}
	log.WithField("queued", len(records)).Debug("draining local queue")

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rlog := log.WithFields(logrus.Fields{"local_id": rec.LocalID, "user_id": rec.OwnerID})
		report.Attempted++

		if err := s.write(ctx, rec); err != nil {
			report.Failed++
			rlog.WithError(err).Warn("failed to sync location")
			continue
		}

		if err := s.queue.Remove(ctx, rec.LocalID); err != nil {
			rlog.WithError(err).Error("location synced but not removed from local queue")
		} else {
			rlog.Info("location synced")
		}
		report.Synced++
	}

	return report, nil
}

// LatestLocations returns the last known position of each user, one row
// per user, ordered by user id.
func (s *Service) LatestLocations(ctx context.Context) ([]models.LatestLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.remote.LatestLocations(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest locations: %w", err)
	}
	return latestPerUser(rows), nil
}

func latestPerUser(rows []models.LatestLocation) []models.LatestLocation {
	latest := make(map[string]models.LatestLocation, len(rows))
	for _, row := range rows {
		cur, ok := latest[row.UserID]
		if !ok || row.Timestamp.After(cur.Timestamp) {
			latest[row.UserID] = row
		}
	}

	out := make([]models.LatestLocation, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Service) Status(ctx context.Context) (models.SyncStatus, error) {
	st := models.SyncStatus{Online: s.net.Online()}

	n, err := s.queue.Count(ctx)
	if err != nil {
		return st, err
	}
	st.Queued = n

	ts, err := s.gate.Watermark(ctx)
	if err != nil {
		return st, err
	}
	st.LastWrittenAtMillis = ts
	return st, nil
}

var (
	_ Remote = (*gksync.Sync)(nil)
	_ Queue  = (*bdkeeper.Keeper)(nil)
)
