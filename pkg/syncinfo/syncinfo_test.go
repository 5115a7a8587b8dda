package syncinfo

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wurt83ow/locsync-client/pkg/bdkeeper"
	"github.com/wurt83ow/locsync-client/pkg/storage"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Set(ms int64) { c.t = time.UnixMilli(ms) }

type failingStore struct{}

func (failingStore) GetWatermark(context.Context) (int64, bool, error) {
	return 0, false, bdkeeper.ErrStorageUnavailable
}

func (failingStore) PutWatermark(context.Context, int64) error {
	return bdkeeper.ErrStorageUnavailable
}

// pausingStore holds the first GetWatermark call after it has read the
// durable value, until released.
type pausingStore struct {
	WatermarkStore
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (s *pausingStore) GetWatermark(ctx context.Context) (int64, bool, error) {
	ts, ok, err := s.WatermarkStore.GetWatermark(ctx)
	s.once.Do(func() {
		close(s.reached)
		<-s.release
	})
	return ts, ok, err
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestGate(t *testing.T) (*Gate, *storage.Storage, *bdkeeper.Keeper, *fakeClock) {
	t.Helper()
	keeper := bdkeeper.New(filepath.Join(t.TempDir(), "locations.db"))
	t.Cleanup(func() { keeper.Close() })

	cache := storage.New()
	clock := &fakeClock{}
	clock.Set(10_000_000)

	gate := NewGate(cache, keeper, DefaultCooldown, WithClock(clock.Now), WithLogger(quietLogger()))
	return gate, cache, keeper, clock
}

func TestCanWriteNow_FirstRun(t *testing.T) {
	gate, _, _, _ := newTestGate(t)
	assert.True(t, gate.CanWriteNow(context.Background()))
}

func TestCanWriteNow_Cooldown(t *testing.T) {
	ctx := context.Background()
	gate, _, _, clock := newTestGate(t)

	const T = int64(50_000_000)
	require.NoError(t, gate.RecordSuccessfulWrite(ctx, T))

	cooldown := DefaultCooldown.Milliseconds()
	tests := []struct {
		name     string
		now      int64
		expected bool
	}{
		{"same instant", T, false},
		{"one ms later", T + 1, false},
		{"just before cooldown", T + cooldown - 1, false},
		{"exactly cooldown", T + cooldown, true},
		{"well after cooldown", T + 10*cooldown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Set(tt.now)
			assert.Equal(t, tt.expected, gate.CanWriteNow(ctx))
		})
	}
}

func TestRecordSuccessfulWrite_WritesBothTiers(t *testing.T) {
	ctx := context.Background()
	gate, cache, keeper, _ := newTestGate(t)

	require.NoError(t, gate.RecordSuccessfulWrite(ctx, 1234))

	v, ok, err := cache.Get(ctx, CacheKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1234", v)

	ts, _, err := keeper.GetWatermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), ts)
}

func TestRecordSuccessfulWrite_RejectsDecrease(t *testing.T) {
	ctx := context.Background()
	gate, cache, keeper, _ := newTestGate(t)

	require.NoError(t, gate.RecordSuccessfulWrite(ctx, 2000))
	require.NoError(t, gate.RecordSuccessfulWrite(ctx, 2000))
	require.NoError(t, gate.RecordSuccessfulWrite(ctx, 1000))

	ts, err := gate.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ts)

	v, _, _ := cache.Get(ctx, CacheKey)
	assert.Equal(t, "2000", v)

	durable, _, err := keeper.GetWatermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), durable)
}

func TestWatermark_CacheWipedFallsBackAndBackfills(t *testing.T) {
	ctx := context.Background()
	gate, cache, _, clock := newTestGate(t)

	const T = int64(20_000_000)
	require.NoError(t, gate.RecordSuccessfulWrite(ctx, T))
	cache.Clear()

	clock.Set(T + 1000)
	assert.False(t, gate.CanWriteNow(ctx))

	v, ok, err := cache.Get(ctx, CacheKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20000000", v)
}

func TestWatermark_BackfillDoesNotLowerConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	keeper := bdkeeper.New(filepath.Join(t.TempDir(), "locations.db"))
	defer keeper.Close()
	require.NoError(t, keeper.PutWatermark(ctx, 1000))

	store := &pausingStore{
		WatermarkStore: keeper,
		reached:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	cache := storage.New()
	gate := NewGate(cache, store, DefaultCooldown, WithLogger(quietLogger()))

	read := make(chan int64)
	go func() {
		ts, _ := gate.Watermark(ctx)
		read <- ts
	}()

	<-store.reached
	require.NoError(t, gate.RecordSuccessfulWrite(ctx, 5000))
	close(store.release)

	assert.Equal(t, int64(5000), <-read)

	ts, err := gate.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), ts)

	v, ok, err := cache.Get(ctx, CacheKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5000", v)
}

func TestWatermark_MalformedCacheValue(t *testing.T) {
	ctx := context.Background()
	gate, cache, _, _ := newTestGate(t)

	require.NoError(t, gate.RecordSuccessfulWrite(ctx, 555))
	require.NoError(t, cache.Set(ctx, CacheKey, "not-a-number"))

	ts, err := gate.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(555), ts)
}

func TestCanWriteNow_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(storage.New(), failingStore{}, DefaultCooldown, WithLogger(quietLogger()))

	assert.True(t, gate.CanWriteNow(ctx))

	err := gate.RecordSuccessfulWrite(ctx, 100)
	assert.True(t, errors.Is(err, bdkeeper.ErrStorageUnavailable))

	// The fast tier still took the value.
	ts, err := gate.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts)
}

func TestNewGate_DefaultCooldown(t *testing.T) {
	gate := NewGate(storage.New(), failingStore{}, 0)
	assert.Equal(t, DefaultCooldown, gate.Cooldown())
}
