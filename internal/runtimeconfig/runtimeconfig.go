// Package runtimeconfig adapts the Store's config table into the small
// read interfaces internal/pipeline needs (ModelVersions, EnabledStages),
// keeping process-wide config a persistent key/value map read through the
// Store rather than an ambient global.
package runtimeconfig

import (
	"context"
	"encoding/json"

	"fennec/internal/store"
)

// Store is the subset of *store.Store this package reads.
type Store interface {
	ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error)
}

// Reader answers the Pipeline's per-stage ModelVersions and EnabledStages
// queries by re-reading the Store's config_entries table, so an operator's
// config change takes effect on the next claimed job without a restart.
type Reader struct {
	store Store
}

// New constructs a Reader over store.
func New(s Store) *Reader {
	return &Reader{store: s}
}

// Version returns the configured version string for modelName, or "" if
// unset. Each model name has its own entry; "transcript" is looked up
// under "transcript", separately from "whisper".
func (r *Reader) Version(modelName string) string {
	ctx := context.Background()
	raw, found, err := r.store.ConfigGet(ctx, store.ConfigModelVersions)
	if err != nil || !found {
		return ""
	}
	var versions map[string]store.ModelVersion
	if err := json.Unmarshal(raw, &versions); err != nil {
		return ""
	}
	if v, ok := versions[modelName]; ok {
		return v.Version
	}
	return ""
}

// Enabled reports whether stage is turned on per the enrichment_models
// config entry. metadata, scene_detection and poster_extraction always
// run; visual_embedding/transcription/transcript_embedding/face_detection
// gate on clip/whisper/whisper/arcface respectively.
func (r *Reader) Enabled(stage string) bool {
	switch stage {
	case "metadata", "scene_detection", "poster_extraction":
		return true
	}

	ctx := context.Background()
	raw, found, err := r.store.ConfigGet(ctx, store.ConfigEnrichmentModels)
	if err != nil || !found {
		return true
	}
	var models map[string]bool
	if err := json.Unmarshal(raw, &models); err != nil {
		return true
	}

	switch stage {
	case "visual_embedding":
		return models["clip"]
	case "transcription", "transcript_embedding":
		return models["whisper"]
	case "face_detection":
		return models["arcface"]
	default:
		return false
	}
}
