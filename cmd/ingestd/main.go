// Command ingestd is the background ingest process: it runs the Scanner
// and Pipeline tasks under one Scheduler, reconciling watch roots and
// draining the enrichment queue until the process is terminated.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"fennec/internal/cluster"
	"fennec/internal/config"
	"fennec/internal/ffmpeg"
	"fennec/internal/modelhost"
	"fennec/internal/objectstore"
	"fennec/internal/observability"
	"fennec/internal/pipeline"
	"fennec/internal/probe"
	"fennec/internal/runtimeconfig"
	"fennec/internal/scanner"
	"fennec/internal/scheduler"
	"fennec/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	shutdown, err := observability.InitOTel(context.Background(), cfg.Observability)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without tracing/metrics")
	} else {
		defer shutdown(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	if err := db.SeedDefaults(ctx, cfg.WatchFoldersEnv); err != nil {
		log.Fatal().Err(err).Msg("seed default config")
	}

	posters, err := newObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open object store")
	}

	prober := probe.New("")
	detector := ffmpeg.New("", ffmpeg.ProbeAdapter{Prober: prober})
	extractor := ffmpeg.NewExtractor("")

	visual := modelhost.NewVisualEncoder(cfg.VisualModel, 512)
	sentence := modelhost.NewSentenceEncoder(cfg.SentenceModel, 384)
	speech := modelhost.NewSpeechToText(cfg.SpeechModel)
	faces := modelhost.NewFaceDetector(cfg.FaceModel, 512)

	versions := runtimeconfig.New(db)

	pipe := pipeline.New(db, detector, extractor, posters,
		visual, sentence, speech, pipeline.WrapFaceDetector(faces),
		prober, versions, versions)

	scan := scanner.New(db, prober)

	watchFolders := cfg.WatchFoldersEnv
	if len(watchFolders) == 0 {
		if raw, found, err := db.ConfigGet(ctx, store.ConfigWatchFolders); err == nil && found {
			_ = json.Unmarshal(raw, &watchFolders)
		}
	}

	sched := scheduler.New(db, scan, pipe, db, scheduler.Config{
		PollInterval:  pollInterval(ctx, db),
		ModelBackoff:  cfg.ModelNotReadyBackoff,
		WatchFolders:  watchFolders,
		ClusterEvery:  50,
		ClusterParams: cluster.DefaultParams,
	})

	log.Info().Msg("ingestd starting")
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("scheduler exited")
	}
	log.Info().Msg("ingestd stopped")
}

// pollInterval reads poll_interval_seconds from the Store's config table,
// seeded by SeedDefaults to 3600 on a fresh database.
func pollInterval(ctx context.Context, db *store.Store) time.Duration {
	raw, found, err := db.ConfigGet(ctx, store.ConfigPollIntervalSeconds)
	if err != nil || !found {
		return time.Hour
	}
	var seconds int
	if err := json.Unmarshal(raw, &seconds); err != nil || seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}

func newObjectStore(ctx context.Context, cfg config.Config) (objectstore.ObjectStore, error) {
	if cfg.ObjectStore.Backend == "s3" {
		return objectstore.NewS3Store(ctx, cfg.ObjectStore.S3)
	}
	return objectstore.NewLocalStore(cfg.ObjectStore.LocalDir)
}
