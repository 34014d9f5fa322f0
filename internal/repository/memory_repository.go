package repository

import (
	"context"

	"github.com/patrickmn/go-cache"
)

type memorySessionRepository struct {
	cache *cache.Cache
}

// NewMemorySessionRepository keeps values for the life of the process only.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{cache: cache.New(cache.NoExpiration, 0)}
}

func (r *memorySessionRepository) Get(_ context.Context, key string) (string, bool, error) {
	if x, found := r.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (r *memorySessionRepository) Set(_ context.Context, key, value string) error {
	r.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (r *memorySessionRepository) Clear(_ context.Context, key string) error {
	r.cache.Delete(key)
	return nil
}
