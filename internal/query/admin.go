package query

import (
	"context"
	"encoding/json"

	"fennec/internal/domain"
	"fennec/internal/store"
)

// Browse returns a page of scenes for the UI's thumbnail grid, attaching
// each scene's faces for the bbox overlay.
func (svc *Service) Browse(ctx context.Context, offset, limit int) ([]BrowseHit, int64, error) {
	rows, total, err := svc.store.BrowseScenes(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]BrowseHit, len(rows))
	for i, r := range rows {
		faces, err := svc.store.ListFacesByScene(ctx, r.Scene.ID)
		if err != nil {
			return nil, 0, err
		}
		out[i] = BrowseHit{Row: r, Faces: faces}
	}
	return out, total, nil
}

// BrowseHit is one Browse result row plus its faces.
type BrowseHit struct {
	Row   store.BrowseRow
	Faces []domain.Face
}

// Stats returns library-wide counts for the Query Surface stats operation.
func (svc *Service) Stats(ctx context.Context) (store.Stats, error) {
	return svc.store.GetStats(ctx)
}

// QueueSnapshot returns the queue's current per-status counts and
// currently-processing item.
func (svc *Service) QueueSnapshot(ctx context.Context) (store.QueueSnapshot, error) {
	return svc.store.Snapshot(ctx)
}

// ConfigGet fetches a runtime config value by key.
func (svc *Service) ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return svc.store.ConfigGet(ctx, key)
}

// ConfigSet persists a runtime config value.
func (svc *Service) ConfigSet(ctx context.Context, key string, value any) error {
	return svc.store.ConfigSet(ctx, key, value)
}

// ListConfig returns every runtime config entry.
func (svc *Service) ListConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	return svc.store.ListConfig(ctx)
}

// ResetFailed moves every failed queue item back to pending.
func (svc *Service) ResetFailed(ctx context.Context) (int64, error) {
	return svc.store.ResetFailed(ctx)
}

// ResetProcessing moves every processing queue item back to pending,
// used for manual crash recovery.
func (svc *Service) ResetProcessing(ctx context.Context) (int64, error) {
	return svc.store.ResetProcessing(ctx)
}

// PurgeSoftDeleted permanently removes every soft-deleted file.
func (svc *Service) PurgeSoftDeleted(ctx context.Context) (int64, error) {
	return svc.store.PurgeSoftDeleted(ctx)
}

// PurgeOrphans removes live files outside the current watch roots.
func (svc *Service) PurgeOrphans(ctx context.Context, currentRoots []string) (int64, error) {
	return svc.store.PurgeOrphans(ctx, currentRoots)
}

// Wipe deletes all files, scenes, faces, embeddings and queue items,
// preserving config.
func (svc *Service) Wipe(ctx context.Context) error {
	return svc.store.Wipe(ctx)
}
