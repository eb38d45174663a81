package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Runtime config keys, the semantic set from the external interfaces.
const (
	ConfigIndexerState          = "indexer_state"
	ConfigPollIntervalSeconds   = "poll_interval_seconds"
	ConfigWatchFolders          = "watch_folders"
	ConfigEnrichmentModels      = "enrichment_models"
	ConfigPosterWidth           = "poster_width"
	ConfigPosterQuality         = "poster_quality"
	ConfigPosterFormat          = "poster_format"
	ConfigThresholdVisual       = "search_threshold_visual"
	ConfigThresholdVisualMatch  = "search_threshold_visual_match"
	ConfigThresholdFace         = "search_threshold_face"
	ConfigThresholdTranscript   = "search_threshold_transcript"
	ConfigModelVersions         = "model_versions"
)

// IndexerState is the ConfigIndexerState value: "running" or "paused".
type IndexerState string

const (
	IndexerRunning IndexerState = "running"
	IndexerPaused  IndexerState = "paused"
)

// ModelVersion is one entry of the ConfigModelVersions registry.
type ModelVersion struct {
	Version   string `json:"version"`
	Dimension int    `json:"dimension"`
}

// ConfigGet fetches a raw JSON config value by key.
func (s *Store) ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error) {
	const q = `SELECT value FROM config_entries WHERE key=$1`
	var raw json.RawMessage
	err := s.pool.QueryRow(ctx, q, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return raw, true, nil
}

// ConfigSet persists a config value, marshaling it to JSON.
func (s *Store) ConfigSet(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO config_entries (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err = s.pool.Exec(ctx, q, key, raw)
	return err
}

// ListConfig returns every config entry as a key -> raw JSON map, used by
// the Query Surface's config listing.
func (s *Store) ListConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM config_entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var key string
		var raw json.RawMessage
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		out[key] = raw
	}
	return out, rows.Err()
}

// SeedDefaults writes default values for any config key not already
// present, seeding watchFolders from the process environment the first
// time a fresh Store is used. Process-wide config is a persistent
// key/value map read through the Store rather than an ambient global;
// this is the one place defaults are materialized into it.
func (s *Store) SeedDefaults(ctx context.Context, watchFolders []string) error {
	defaults := map[string]any{
		ConfigIndexerState:        IndexerRunning,
		ConfigPollIntervalSeconds: 3600,
		ConfigWatchFolders:        watchFolders,
		ConfigEnrichmentModels: map[string]bool{
			"clip": true, "whisper": true, "arcface": true,
		},
		ConfigPosterWidth:          1280,
		ConfigPosterQuality:        80,
		ConfigPosterFormat:         "webp",
		ConfigThresholdVisual:      0.2,
		ConfigThresholdVisualMatch: 0.2,
		ConfigThresholdFace:        0.25,
		ConfigThresholdTranscript:  0.2,
		ConfigModelVersions: map[string]ModelVersion{
			"clip":       {Version: "v1", Dimension: 512},
			"whisper":    {Version: "base.en", Dimension: 0},
			"transcript": {Version: "v1", Dimension: 384},
			"arcface":    {Version: "v1", Dimension: 512},
		},
	}
	for key, value := range defaults {
		_, found, err := s.ConfigGet(ctx, key)
		if err != nil {
			return err
		}
		if found {
			continue
		}
		if err := s.ConfigSet(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}
