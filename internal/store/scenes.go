package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"fennec/internal/domain"
)

// ReplaceScenes deletes any existing scenes for fileID (which cascades to
// their faces and embeddings) and inserts the given ordered scenes. This
// is the scene_detection stage's idempotent re-entry point: a retry always
// starts from a clean slate of scene rows for the file.
func (s *Store) ReplaceScenes(ctx context.Context, fileID int64, scenes []domain.Scene) ([]domain.Scene, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scenes WHERE file_id=$1`, fileID); err != nil {
		return nil, err
	}

	out := make([]domain.Scene, len(scenes))
	for i, sc := range scenes {
		sc.FileID = fileID
		sc.SceneIndex = i
		sc.VisualClusterID = domain.UnclusteredID
		const q = `
			INSERT INTO scenes (file_id, scene_index, start_seconds, end_seconds, visual_cluster_id)
			VALUES ($1,$2,$3,$4,$5) RETURNING id`
		if err := tx.QueryRow(ctx, q, fileID, sc.SceneIndex, sc.StartSeconds, sc.EndSeconds,
			sc.VisualClusterID).Scan(&sc.ID); err != nil {
			return nil, err
		}
		out[i] = sc
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteScenesForFile removes every scene for a file (cascading to faces
// and embeddings), used when the Scanner detects a changed file.
func (s *Store) DeleteScenesForFile(ctx context.Context, fileID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM scenes WHERE file_id=$1`, fileID)
	return err
}

// ListScenesByFile returns a file's scenes ordered by scene_index.
func (s *Store) ListScenesByFile(ctx context.Context, fileID int64) ([]domain.Scene, error) {
	const q = sceneSelectCols + ` FROM scenes WHERE file_id=$1 ORDER BY scene_index`
	rows, err := s.pool.Query(ctx, q, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetScene fetches a scene by its global id.
func (s *Store) GetScene(ctx context.Context, id int64) (domain.Scene, error) {
	const q = sceneSelectCols + ` FROM scenes WHERE id=$1`
	sc, err := scanScene(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Scene{}, domain.ErrSceneNotFound
	}
	return sc, err
}

// GetSceneByFileIndex fetches a scene by its human-facing (file, scene_index) label.
func (s *Store) GetSceneByFileIndex(ctx context.Context, fileID int64, sceneIndex int) (domain.Scene, error) {
	const q = sceneSelectCols + ` FROM scenes WHERE file_id=$1 AND scene_index=$2`
	sc, err := scanScene(s.pool.QueryRow(ctx, q, fileID, sceneIndex))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Scene{}, domain.ErrSceneNotFound
	}
	return sc, err
}

// SetPoster records a scene's poster image path, written by poster_extraction.
func (s *Store) SetPoster(ctx context.Context, sceneID int64, path string) error {
	_, err := s.pool.Exec(ctx, `UPDATE scenes SET poster_path=$2 WHERE id=$1`, sceneID, path)
	return err
}

// SetTranscript records a scene's transcript text, written by transcription.
func (s *Store) SetTranscript(ctx context.Context, sceneID int64, text string) error {
	_, err := s.pool.Exec(ctx, `UPDATE scenes SET transcript=$2, has_transcript=true WHERE id=$1`, sceneID, text)
	return err
}

// UpdateSceneCluster writes a scene's visual cluster assignment.
func (s *Store) UpdateSceneCluster(ctx context.Context, sceneID, clusterID int64, order float64) error {
	const q = `UPDATE scenes SET visual_cluster_id=$2, visual_cluster_ord=$3 WHERE id=$1`
	_, err := s.pool.Exec(ctx, q, sceneID, clusterID, order)
	return err
}

// AllSceneVisualVectors returns (scene id, clip vector) pairs for every
// non-soft-deleted scene with a clip embedding, used by Clustering.
func (s *Store) AllSceneVisualVectors(ctx context.Context) ([]int64, [][]float32, error) {
	const q = `
		SELECT e.scene_id, e.vector::text
		FROM embeddings e
		JOIN scenes s ON s.id = e.scene_id
		JOIN files f ON f.id = s.file_id
		WHERE e.model_name = $1 AND f.deleted_at IS NULL`
	rows, err := s.pool.Query(ctx, q, domain.ModelClip)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var ids []int64
	var vecs [][]float32
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		vecs = append(vecs, parseVectorLiteral(raw))
	}
	return ids, vecs, rows.Err()
}

const sceneSelectCols = `SELECT id, file_id, scene_index, start_seconds, end_seconds, poster_path,
	transcript, has_transcript, visual_cluster_id, visual_cluster_ord`

func scanScene(row rowScanner) (domain.Scene, error) {
	var sc domain.Scene
	err := row.Scan(&sc.ID, &sc.FileID, &sc.SceneIndex, &sc.StartSeconds, &sc.EndSeconds,
		&sc.PosterPath, &sc.Transcript, &sc.HasTranscript, &sc.VisualClusterID, &sc.VisualClusterOrd)
	return sc, err
}
