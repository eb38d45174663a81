package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"fennec/internal/domain"
)

// UpsertEmbedding writes (scene, model) -> vector, overwriting any earlier
// version for that pair. At most one row exists per (scene, model).
func (s *Store) UpsertEmbedding(ctx context.Context, e domain.Embedding) error {
	const q = `
		INSERT INTO embeddings (scene_id, model_name, model_version, dimension, vector)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (scene_id, model_name) DO UPDATE
		SET model_version = EXCLUDED.model_version,
			dimension = EXCLUDED.dimension,
			vector = EXCLUDED.vector`
	_, err := s.pool.Exec(ctx, q, e.SceneID, e.ModelName, e.ModelVersion, e.Dimension,
		toVectorLiteral(e.Vector))
	return err
}

// GetEmbedding fetches the (scene, model) row if present.
func (s *Store) GetEmbedding(ctx context.Context, sceneID int64, modelName string) (domain.Embedding, bool, error) {
	const q = `
		SELECT id, scene_id, model_name, model_version, dimension, vector::text
		FROM embeddings WHERE scene_id=$1 AND model_name=$2`
	var e domain.Embedding
	var vecText string
	err := s.pool.QueryRow(ctx, q, sceneID, modelName).Scan(&e.ID, &e.SceneID, &e.ModelName,
		&e.ModelVersion, &e.Dimension, &vecText)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Embedding{}, false, nil
	}
	if err != nil {
		return domain.Embedding{}, false, err
	}
	e.Vector = parseVectorLiteral(vecText)
	return e, true, nil
}

// HasCurrentVersion reports whether (scene, model) already has an
// embedding at the given version, the Pipeline's per-model-version skip
// check: "before embedding a scene for model M, check whether an existing
// row for (scene, M) has a matching version".
func (s *Store) HasCurrentVersion(ctx context.Context, sceneID int64, modelName, version string) (bool, error) {
	const q = `SELECT model_version FROM embeddings WHERE scene_id=$1 AND model_name=$2`
	var existing string
	err := s.pool.QueryRow(ctx, q, sceneID, modelName).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing == version, nil
}

// ListEmbeddingsByScene returns every embedding row attached to a scene,
// used by scene detail's per-model presence summary.
func (s *Store) ListEmbeddingsByScene(ctx context.Context, sceneID int64) ([]domain.Embedding, error) {
	const q = `SELECT id, scene_id, model_name, model_version, dimension FROM embeddings WHERE scene_id=$1`
	rows, err := s.pool.Query(ctx, q, sceneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Embedding
	for rows.Next() {
		var e domain.Embedding
		if err := rows.Scan(&e.ID, &e.SceneID, &e.ModelName, &e.ModelVersion, &e.Dimension); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SceneSimilarity is one nearest-neighbour hit: a scene id and its cosine
// similarity to the query vector.
type SceneSimilarity struct {
	SceneID    int64
	Similarity float64
}

// NearestScenes runs a cosine-similarity nearest-neighbour query restricted
// to modelName (embeddings of different models share storage but not
// dimension, so the model_name restriction is what keeps the comparison
// well-defined), returning scenes whose similarity is at least threshold,
// ordered by similarity descending. excludeScene, if non-zero, is omitted
// from the results (used by scene-to-scene visual match).
func (s *Store) NearestScenes(ctx context.Context, modelName string, query []float32, threshold float64, excludeScene int64, limit int) ([]SceneSimilarity, error) {
	q := `
		SELECT e.scene_id, ` + cosineSimilarityExpr("e.vector", 2) + ` AS sim
		FROM embeddings e
		JOIN scenes sc ON sc.id = e.scene_id
		JOIN files f ON f.id = sc.file_id
		WHERE e.model_name = $1 AND f.deleted_at IS NULL
		  AND e.scene_id <> $3
		  AND ` + cosineSimilarityExpr("e.vector", 2) + ` >= $4
		ORDER BY sim DESC
		LIMIT $5`
	rows, err := s.pool.Query(ctx, q, modelName, toVectorLiteral(query), excludeScene, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SceneSimilarity
	for rows.Next() {
		var hit SceneSimilarity
		if err := rows.Scan(&hit.SceneID, &hit.Similarity); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

// FaceSimilarity is one nearest-neighbour hit against the faces table.
type FaceSimilarity struct {
	FaceID     int64
	SceneID    int64
	Similarity float64
}

// NearestFaces runs a cosine-similarity nearest-neighbour query over faces
// belonging to non-soft-deleted files.
func (s *Store) NearestFaces(ctx context.Context, query []float32, threshold float64, limit int) ([]FaceSimilarity, error) {
	q := `
		SELECT fa.id, fa.scene_id, ` + cosineSimilarityExpr("fa.vector", 1) + ` AS sim
		FROM faces fa
		JOIN scenes sc ON sc.id = fa.scene_id
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL
		  AND ` + cosineSimilarityExpr("fa.vector", 1) + ` >= $2
		ORDER BY sim DESC
		LIMIT $3`
	rows, err := s.pool.Query(ctx, q, toVectorLiteral(query), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FaceSimilarity
	for rows.Next() {
		var hit FaceSimilarity
		if err := rows.Scan(&hit.FaceID, &hit.SceneID, &hit.Similarity); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}
