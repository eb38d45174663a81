// Command queryd is the read-oriented Query Surface process. It owns its
// own visual and sentence encoders for query-side encoding, independent of
// ingestd's copies, since each process loads its own Model Host instances
// rather than sharing them over IPC. Full HTTP route definitions and
// serialization are a thin JSON shell here; this process mainly wires the
// Query Surface service and exposes liveness/readiness endpoints around it.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rs/zerolog/log"

	"fennec/internal/config"
	"fennec/internal/domain"
	"fennec/internal/edl"
	"fennec/internal/modelhost"
	"fennec/internal/observability"
	"fennec/internal/query"
	"fennec/internal/querycache"
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

	visual := modelhost.NewVisualEncoder(cfg.VisualModel, 512)
	sentence := modelhost.NewSentenceEncoder(cfg.SentenceModel, 384)

	svc := query.New(db, visual, sentence)

	var redisAddr string
	if cfg.Redis.Enabled {
		redisAddr = cfg.Redis.Addr
	}
	cached := querycache.New(svc, redisAddr, cfg.Redis.Ttl)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := db.GetStats(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Minimal functional endpoints exercising the Query Surface.
	mux.HandleFunc("/stats", jsonHandler(func(r *http.Request) (any, error) {
		return db.GetStats(r.Context())
	}))
	mux.HandleFunc("/queue", jsonHandler(func(r *http.Request) (any, error) {
		return svc.QueueSnapshot(r.Context())
	}))
	mux.HandleFunc("/browse", jsonHandler(func(r *http.Request) (any, error) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		hits, total, err := svc.Browse(r.Context(), offset, limit)
		if err != nil {
			return nil, err
		}
		return struct {
			Hits  []query.BrowseHit `json:"hits"`
			Total int64             `json:"total"`
		}{hits, total}, nil
	}))
	mux.HandleFunc("/search/dialog", jsonHandler(func(r *http.Request) (any, error) {
		q := r.URL.Query().Get("q")
		return cached.Search(r.Context(), domain.SearchRequest{
			Filters: []domain.Filter{domain.DialogKeywordFilter{Query: q}},
			Limit:   50,
		})
	}))

	mux.HandleFunc("/export/edl", func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["scene"]
		clips := make([]edl.Clip, 0, len(ids))
		for _, idStr := range ids {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				continue
			}
			sc, err := db.GetScene(r.Context(), id)
			if err != nil {
				continue
			}
			file, err := db.GetFile(r.Context(), sc.FileID)
			if err != nil {
				continue
			}
			clips = append(clips, edl.Clip{
				SceneID: sc.ID,
				InTime:  sc.StartSeconds,
				OutTime: sc.EndSeconds,
				FPS:     file.FrameRate,
			})
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(edl.Export("fennec export", clips)))
	})

	srv := &http.Server{
		Addr:    ":8090",
		Handler: otelhttp.NewHandler(mux, "queryd"),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Info().Str("addr", srv.Addr).Msg("queryd listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("queryd exited")
	}
	log.Info().Msg("queryd stopped")
}

func jsonHandler(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
