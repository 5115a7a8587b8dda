// Package syncinfo provides the rate gate: it keeps the watermark of the
// last successful server write and decides whether a new write may start.
package syncinfo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wurt83ow/locsync-client/pkg/storage"
)

// DefaultCooldown is the minimum interval between server write attempts.
const DefaultCooldown = 5 * time.Minute

// CacheKey is the fast-cache key holding the watermark as a decimal string.
const CacheKey = "lastWritten"

// WatermarkStore is the durable tier of the watermark.
type WatermarkStore interface {
	GetWatermark(ctx context.Context) (int64, bool, error)
	PutWatermark(ctx context.Context, ts int64) error
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Gate) { g.log = l }
}

// Gate enforces a minimum interval between write attempts.
type Gate struct {
	mu       sync.Mutex // serializes cache writes
	cache    storage.Cache
	store    WatermarkStore
	cooldown time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewGate(cache storage.Cache, store WatermarkStore, cooldown time.Duration, opts ...Option) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	g := &Gate{
		cache:    cache,
		store:    store,
		cooldown: cooldown,
		now:      time.Now,
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// Now returns the gate's clock reading in epoch millis.
func (g *Gate) Now() int64 {
	return g.now().UnixMilli()
}

func (g *Gate) cached(ctx context.Context) (int64, bool) {
	v, ok, err := g.cache.Get(ctx, CacheKey)
	if err != nil {
		g.log.WithError(err).Warn("fast cache read failed, falling back to durable watermark")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		g.log.WithField("value", v).Warn("malformed watermark in fast cache")
		return 0, false
	}
	return ts, true
}

// Watermark returns the last successful write time in epoch millis, zero if
// none was ever recorded. The fast cache is consulted first; a durable hit
// back-fills it.
func (g *Gate) Watermark(ctx context.Context) (int64, error) {
	if ts, ok := g.cached(ctx); ok {
		return ts, nil
	}

	ts, ok, err := g.store.GetWatermark(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read durable watermark: %w", err)
	}
	if !ok {
		return 0, nil
	}

	return g.backfill(ctx, ts), nil
}

// backfill raises the cached watermark to ts and returns the larger of the
// two. A write recorded meanwhile is never overwritten with an older value.
func (g *Gate) backfill(ctx context.Context, ts int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.cached(ctx); ok && cur >= ts {
		return cur
	}
	if err := g.cache.Set(ctx, CacheKey, strconv.FormatInt(ts, 10)); err != nil {
		g.log.WithError(err).Warn("failed to back-fill fast cache")
	}
	return ts
}

// CanWriteNow reports whether the cooldown since the last successful write
// has elapsed. An unreadable watermark counts as epoch 0.
func (g *Gate) CanWriteNow(ctx context.Context) bool {
	last, err := g.Watermark(ctx)
	if err != nil {
		g.log.WithError(err).Warn("watermark unavailable, treating as never written")
		last = 0
	}
	return g.Now()-last >= g.cooldown.Milliseconds()
}

// RecordSuccessfulWrite raises the watermark to ts in both tiers. A ts older
// than the stored value is ignored.
func (g *Gate) RecordSuccessfulWrite(ctx context.Context, ts int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	if err := g.store.PutWatermark(ctx, ts); err != nil {
		errs = append(errs, fmt.Errorf("durable watermark: %w", err))
	}

	if cur, ok := g.cached(ctx); !ok || ts > cur {
		if err := g.cache.Set(ctx, CacheKey, strconv.FormatInt(ts, 10)); err != nil {
			errs = append(errs, fmt.Errorf("cached watermark: %w", err))
		}
	}

	return errors.Join(errs...)
}
