package store

import (
	"context"

	"fennec/internal/domain"
)

// PurgeSoftDeleted permanently removes every soft-deleted file (cascading
// to its scenes, faces and embeddings) and returns the count removed.
func (s *Store) PurgeSoftDeleted(ctx context.Context) (int64, error) {
	const q = `DELETE FROM files WHERE deleted_at IS NOT NULL`
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeOrphans removes live files whose path is not under any of
// currentRoots, e.g. after a watch root is removed from config.
func (s *Store) PurgeOrphans(ctx context.Context, currentRoots []string) (int64, error) {
	if len(currentRoots) == 0 {
		return 0, nil
	}
	const q = `
		DELETE FROM files
		WHERE deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM unnest($1::text[]) AS root WHERE files.path LIKE root || '/%'
		  )`
	tag, err := s.pool.Exec(ctx, q, currentRoots)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Wipe deletes all files, scenes, faces, embeddings and queue items.
// Config is preserved. Confirmation is the caller's responsibility, not
// the Store's.
func (s *Store) Wipe(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// queue_items and scenes both cascade from files; deleting files is
	// enough, but queue_items has no dependent rows of its own to cascade
	// so it is cleared explicitly first for clarity.
	for _, stmt := range []string{
		`DELETE FROM queue_items`,
		`DELETE FROM files`,
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Stats summarizes library contents for the Query Surface stats operation.
type Stats struct {
	Files           int64
	Scenes          int64
	Faces           int64
	TotalDuration   float64
	ModelCoverage   []ModelCoverage
}

// ModelCoverage reports how many non-soft-deleted scenes have an embedding
// for a given model, alongside the distinct "scanned but produced none"
// count for models whose input is conditional (transcript, faces).
type ModelCoverage struct {
	ModelName     string
	Found         int64
	ScenesTotal   int64
	ScannedNoData int64
}

// GetStats computes library-wide counts.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	const q = `
		SELECT
			(SELECT count(*) FROM files WHERE deleted_at IS NULL),
			(SELECT count(*) FROM scenes sc JOIN files f ON f.id=sc.file_id WHERE f.deleted_at IS NULL),
			(SELECT count(*) FROM faces fa JOIN scenes sc ON sc.id=fa.scene_id JOIN files f ON f.id=sc.file_id WHERE f.deleted_at IS NULL),
			(SELECT COALESCE(sum(duration_seconds),0) FROM files WHERE deleted_at IS NULL)`
	if err := s.pool.QueryRow(ctx, q).Scan(&st.Files, &st.Scenes, &st.Faces, &st.TotalDuration); err != nil {
		return st, err
	}

	const modelQ = `
		SELECT e.model_name, count(*) AS found
		FROM embeddings e
		JOIN scenes sc ON sc.id = e.scene_id
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL
		GROUP BY e.model_name`
	rows, err := s.pool.Query(ctx, modelQ)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var mc ModelCoverage
		if err := rows.Scan(&mc.ModelName, &mc.Found); err != nil {
			return st, err
		}
		mc.ScenesTotal = st.Scenes
		st.ModelCoverage = append(st.ModelCoverage, mc)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	// scanned-but-produced-none applies to conditionally-present inputs:
	// scenes whose transcription ran (has_transcript) but produced an
	// empty transcript, and scenes whose face_detection ran
	// (has_faces_scanned) but produced zero faces. has_transcript and
	// has_faces_scanned are the per-scene "stage ran" markers; an empty
	// transcript or a zero-row face set is "scanned" but has no data.
	const transcriptNoDataQ = `
		SELECT count(*) FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND sc.has_transcript = true AND sc.transcript = ''`
	var transcriptNoData int64
	if err := s.pool.QueryRow(ctx, transcriptNoDataQ).Scan(&transcriptNoData); err != nil {
		return st, err
	}

	foundTranscript := false
	for i := range st.ModelCoverage {
		if st.ModelCoverage[i].ModelName == domain.ModelTranscript {
			st.ModelCoverage[i].ScannedNoData = transcriptNoData
			foundTranscript = true
		}
	}
	if !foundTranscript && transcriptNoData > 0 {
		st.ModelCoverage = append(st.ModelCoverage, ModelCoverage{
			ModelName: domain.ModelTranscript, ScenesTotal: st.Scenes, ScannedNoData: transcriptNoData,
		})
	}

	const faceCoverageQ = `
		SELECT
			(SELECT count(DISTINCT fa.scene_id) FROM faces fa
				JOIN scenes sc ON sc.id = fa.scene_id
				JOIN files f ON f.id = sc.file_id
				WHERE f.deleted_at IS NULL),
			(SELECT count(*) FROM scenes sc
				JOIN files f ON f.id = sc.file_id
				WHERE f.deleted_at IS NULL AND sc.has_faces_scanned = true
				  AND NOT EXISTS (SELECT 1 FROM faces fa WHERE fa.scene_id = sc.id))`
	var faceFound, faceNoData int64
	if err := s.pool.QueryRow(ctx, faceCoverageQ).Scan(&faceFound, &faceNoData); err != nil {
		return st, err
	}
	st.ModelCoverage = append(st.ModelCoverage, ModelCoverage{
		ModelName: domain.ModelFace, Found: faceFound, ScenesTotal: st.Scenes, ScannedNoData: faceNoData,
	})

	return st, nil
}
