// Package storage holds the fast, ephemeral key/value cache that fronts the
// durable store. Its contents may vanish at any time independently of the
// database.
package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrUnknownCache = errors.New("cache driver isn't supported")

// Cache is a string key/value store. A missing key is reported with ok == false.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Storage struct {
	mu   sync.RWMutex
	data map[string]string
}

// New returns an in-process cache that lives as long as the process.
func New() *Storage {
	return &Storage{
		data: make(map[string]string),
	}
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Clear drops every entry, simulating the cache being wiped by its host.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
}

func (s *Storage) Close() error {
	return nil
}

// Open builds a cache for the configured driver: "memory" or "redis".
func Open(driver string, params map[string]string) (Cache, error) {
	switch driver {
	case "", "memory":
		return New(), nil
	case "redis":
		c := &RedisCache{}
		if err := c.Init(params); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, ErrUnknownCache
	}
}
