package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "lastWritten")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "lastWritten", "42"))
	v, ok, err := s.Get(ctx, "lastWritten")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	require.NoError(t, s.Delete(ctx, "lastWritten"))
	_, ok, _ = s.Get(ctx, "lastWritten")
	assert.False(t, ok)
}

func TestStorage_Clear(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))

	s.Clear()

	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "b")
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	c, err := Open("memory", nil)
	require.NoError(t, err)
	assert.IsType(t, &Storage{}, c)

	c, err = Open("", nil)
	require.NoError(t, err)
	assert.IsType(t, &Storage{}, c)

	_, err = Open("memcached", nil)
	assert.ErrorIs(t, err, ErrUnknownCache)
}

func TestRedisCache_InvalidParams(t *testing.T) {
	c := &RedisCache{}
	assert.Error(t, c.Init(map[string]string{"db": "zero"}))
	assert.Error(t, c.Init(map[string]string{"ttl": "forever"}))
}
