package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/cache"
)

const artifactPrefix = "artifact"

// CacheArtifactPersister keeps model blobs in the shared cache (Redis or layered).
// Blobs are stored raw, not re-encoded as JSON.
type CacheArtifactPersister struct {
	c   cache.Service
	ttl time.Duration
}

func NewCacheArtifactPersister(c cache.Service, ttl time.Duration) *CacheArtifactPersister {
	return &CacheArtifactPersister{c: c, ttl: ttl}
}

func (p *CacheArtifactPersister) Save(ctx context.Context, key string, blob []byte) error {
	if err := p.c.Set(ctx, cache.Key(artifactPrefix, key), blob, p.ttl); err != nil {
		return fmt.Errorf("save artifact %s: %w", key, err)
	}
	return nil
}

func (p *CacheArtifactPersister) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := p.c.Get(ctx, cache.Key(artifactPrefix, key), &blob)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load artifact %s: %w", key, err)
	}
	return blob, true, nil
}

var _ domrepo.ArtifactPersister = (*CacheArtifactPersister)(nil)
