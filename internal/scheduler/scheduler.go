// Package scheduler runs the ingest process's two cooperating long-running
// tasks — Scan and Pipeline — on parallel threads of control coordinating
// solely through the Store, as a poll-forever daemon rather than a
// one-shot batch job.
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fennec/internal/cluster"
	"fennec/internal/domain"
)

// Store is the subset of *store.Store the Scheduler depends on directly;
// scanner.Store and pipeline.Store cover the rest.
type Store interface {
	ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error)
	ResetProcessing(ctx context.Context) (int64, error)
	ClaimOnePending(ctx context.Context) (domain.QueueItem, bool, error)
}

// Scanner runs one full reconciliation pass over the watch roots.
type Scanner interface {
	Run(ctx context.Context, watchFolders []string) error
}

// Pipeline runs the enabled stages over one claimed queue item.
type Pipeline interface {
	Run(ctx context.Context, item domain.QueueItem) error
}

// ClusterStore is the subset needed to run an opportunistic clustering pass.
type ClusterStore interface {
	cluster.SceneStore
	cluster.FaceStore
}

// Config is the Scheduler's tunable behavior, fixed when New is called.
// Only the indexer_state entry is re-read from the Store's config table,
// before every claim, so pausing ingest takes effect without a restart;
// a changed poll interval or watch folder list does not.
type Config struct {
	PollInterval    time.Duration
	ModelBackoff    time.Duration
	WatchFolders    []string
	ClusterEvery    int // run a clustering pass after this many completions
	ClusterParams   cluster.Params
}

// Scheduler alternates "scan if poll interval elapsed" and "drain queue if
// indexer state = running".
type Scheduler struct {
	store    Store
	scanner  Scanner
	pipeline Pipeline
	clusterStore ClusterStore
	cfg      Config

	lastScan      time.Time
	completedSinceCluster int
}

// New constructs a Scheduler. Each Run call generates a fresh uuid run id
// and stamps it into its "scheduler starting" and "scan starting" log
// lines, so multiple ingest runs in the same log stream can be told apart;
// the other log lines do not carry it.
func New(store Store, scanner Scanner, pipeline Pipeline, clusterStore ClusterStore, cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.ModelBackoff <= 0 {
		cfg.ModelBackoff = 30 * time.Second
	}
	if cfg.ClusterEvery <= 0 {
		cfg.ClusterEvery = 50
	}
	return &Scheduler{store: store, scanner: scanner, pipeline: pipeline, clusterStore: clusterStore, cfg: cfg}
}

// Run blocks until ctx is canceled, running the scan task and the pipeline
// task as two goroutines under one errgroup so either one's fatal error
// cancels the other. ResetProcessing runs once up front, reclaiming rows
// left in "processing" by a prior crash.
func (s *Scheduler) Run(ctx context.Context) error {
	runID := uuid.New()
	log.Info().Str("run_id", runID.String()).Msg("scheduler starting")

	if n, err := s.store.ResetProcessing(ctx); err != nil {
		return err
	} else if n > 0 {
		log.Warn().Int64("reclaimed", n).Msg("reclaimed orphaned processing rows at startup")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.scanLoop(ctx, runID) })
	g.Go(func() error { return s.pipelineLoop(ctx, runID) })
	return g.Wait()
}

func (s *Scheduler) scanLoop(ctx context.Context, runID uuid.UUID) error {
	for {
		if time.Since(s.lastScan) >= s.cfg.PollInterval {
			log.Info().Str("run_id", runID.String()).Msg("scan starting")
			if err := s.scanner.Run(ctx, s.cfg.WatchFolders); err != nil {
				log.Error().Err(err).Msg("scan failed")
			}
			s.lastScan = time.Now()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
}

func (s *Scheduler) pipelineLoop(ctx context.Context, runID uuid.UUID) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !s.indexerRunning(ctx) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		item, ok, err := s.store.ClaimOnePending(ctx)
		if err != nil {
			log.Error().Err(err).Msg("claim failed")
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		err = s.pipeline.Run(ctx, item)
		if err != nil && domain.KindOf(err) == domain.KindModelNotReady {
			log.Warn().Err(err).Int64("file_id", item.FileID).Msg("model not ready, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ModelBackoff):
			}
			continue
		}
		if err != nil {
			log.Error().Err(err).Int64("file_id", item.FileID).Msg("pipeline stage failed")
			continue
		}

		s.completedSinceCluster++
		if s.completedSinceCluster >= s.cfg.ClusterEvery {
			s.completedSinceCluster = 0
			s.runClustering(ctx)
		}
	}
}

func (s *Scheduler) indexerRunning(ctx context.Context) bool {
	raw, found, err := s.store.ConfigGet(ctx, "indexer_state")
	if err != nil || !found {
		return true
	}
	var state string
	if err := json.Unmarshal(raw, &state); err != nil {
		return true
	}
	return state != "paused"
}

// runClustering runs an opportunistic clustering pass over scene visual
// vectors and face vectors after a batch of completions.
func (s *Scheduler) runClustering(ctx context.Context) {
	if s.clusterStore == nil {
		return
	}
	if n, err := cluster.RunScenes(ctx, s.clusterStore, s.cfg.ClusterParams); err != nil {
		log.Error().Err(err).Msg("scene clustering failed")
	} else {
		log.Info().Int("rows", n).Msg("scene clustering complete")
	}
	if n, err := cluster.RunFaces(ctx, s.clusterStore, s.cfg.ClusterParams); err != nil {
		log.Error().Err(err).Msg("face clustering failed")
	} else {
		log.Info().Int("rows", n).Msg("face clustering complete")
	}
}
