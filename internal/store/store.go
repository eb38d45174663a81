// Package store is the sole holder of durable Fennec state: files, scenes,
// faces, embeddings, the enrichment queue and the runtime config table. It
// uses a pgx connection pool directly against Postgres/pgvector, and folds
// what could be a separate FullTextSearch/VectorStore/Manager split into
// one Store type because every Fennec component needs the full contract,
// not a pluggable subset.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fennec/internal/config"
)

// Store wraps a pgx connection pool and exposes the typed operations
// described by the data model: files, scenes, faces, embeddings, queue,
// config and admin actions. All methods are safe for concurrent use; the
// Pipeline and Scanner tasks within one ingest process, and the separate
// Query Surface process, share nothing but rows in this Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, ensures the pgvector extension and schema
// exist, and returns a ready Store.
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// NewWithPool wraps an already-open pool, useful for tests against a
// throwaway database. The schema is still ensured.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for callers that need a raw transaction
// spanning multiple Store calls (the Pipeline's per-stage commits).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
