// Package querycache wraps the Query Surface's Search operation with an
// optional Redis result cache. The spec treats this as ambient
// infrastructure, not a domain feature: Search results are cheap to
// recompute but the Store round-trip (and, for semantic clauses, an
// encoder call) is not free under a busy UI, so short-TTL caching keyed on
// the request shape cuts load without changing results.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fennec/internal/domain"
)

// Searcher is the query.Service method this cache wraps.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error)
}

// Cache adds a Redis-backed cache in front of a Searcher. A disabled Cache
// (constructed with addr == "") passes every call straight through, so
// callers never need a nil check.
type Cache struct {
	inner  Searcher
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Cache. If addr is empty, caching is disabled and Search
// simply delegates to inner.
func New(inner Searcher, addr string, ttl time.Duration) *Cache {
	c := &Cache{inner: inner, ttl: ttl}
	if addr != "" {
		c.client = redis.NewClient(&redis.Options{Addr: addr})
	}
	return c
}

// Search serves req from cache when present and unexpired, otherwise
// delegates to inner and populates the cache.
func (c *Cache) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	if c.client == nil {
		return c.inner.Search(ctx, req)
	}

	key, err := cacheKey(req)
	if err != nil {
		return c.inner.Search(ctx, req)
	}

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var hits []domain.SearchHit
		if json.Unmarshal(raw, &hits) == nil {
			return hits, nil
		}
	}

	hits, err := c.inner.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(hits); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Debug().Err(err).Msg("query cache set failed")
		}
	}
	return hits, nil
}

func cacheKey(req domain.SearchRequest) (string, error) {
	// Clause structs of different kinds can marshal identically (e.g. a
	// visual-text and a dialog-semantic clause), so each clause's kind is
	// part of the key.
	kinds := make([]domain.FilterKind, len(req.Filters))
	for i, f := range req.Filters {
		kinds[i] = f.Kind()
	}
	raw, err := json.Marshal(struct {
		Kinds []domain.FilterKind
		Req   domain.SearchRequest
	}{kinds, req})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return "fennec:search:" + hex.EncodeToString(sum[:]), nil
}
