package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"fennec/internal/domain"
)

// ReplaceFaces deletes any existing faces for sceneID and bulk-inserts the
// given ones. Per the idempotence rule "faces are created exactly once per
// (scene x detection-run)", a retry of face_detection first clears the
// scene's faces.
func (s *Store) ReplaceFaces(ctx context.Context, sceneID int64, faces []domain.Face) ([]domain.Face, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM faces WHERE scene_id=$1`, sceneID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE scenes SET has_faces_scanned=true WHERE id=$1`, sceneID); err != nil {
		return nil, err
	}

	out := make([]domain.Face, len(faces))
	for i, fa := range faces {
		fa.SceneID = sceneID
		fa.FaceClusterID = domain.UnclusteredID
		const q = `
			INSERT INTO faces (scene_id, bbox_x, bbox_y, bbox_w, bbox_h, vector, face_cluster_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`
		if err := tx.QueryRow(ctx, q, sceneID, fa.BBoxX, fa.BBoxY, fa.BBoxW, fa.BBoxH,
			toVectorLiteral(fa.Vector), fa.FaceClusterID).Scan(&fa.ID); err != nil {
			return nil, err
		}
		out[i] = fa
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFacesByScene returns every face detected in a scene.
func (s *Store) ListFacesByScene(ctx context.Context, sceneID int64) ([]domain.Face, error) {
	const q = faceSelectCols + ` FROM faces WHERE scene_id=$1 ORDER BY id`
	rows, err := s.pool.Query(ctx, q, sceneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Face
	for rows.Next() {
		fa, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fa)
	}
	return out, rows.Err()
}

// ListFacesByCluster returns every face assigned to clusterID.
func (s *Store) ListFacesByCluster(ctx context.Context, clusterID int64) ([]domain.Face, error) {
	const q = faceSelectCols + ` FROM faces WHERE face_cluster_id=$1 ORDER BY face_cluster_ord`
	rows, err := s.pool.Query(ctx, q, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Face
	for rows.Next() {
		fa, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fa)
	}
	return out, rows.Err()
}

// GetFace fetches a face by id.
func (s *Store) GetFace(ctx context.Context, id int64) (domain.Face, error) {
	const q = faceSelectCols + ` FROM faces WHERE id=$1`
	fa, err := scanFace(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Face{}, domain.ErrFaceNotFound
	}
	return fa, err
}

// UpdateFaceCluster writes a face's cluster assignment.
func (s *Store) UpdateFaceCluster(ctx context.Context, faceID, clusterID int64, order float64) error {
	const q = `UPDATE faces SET face_cluster_id=$2, face_cluster_ord=$3 WHERE id=$1`
	_, err := s.pool.Exec(ctx, q, faceID, clusterID, order)
	return err
}

// AllFaceVectors returns (face id, vector) pairs for every face belonging
// to a non-soft-deleted file, used by Clustering.
func (s *Store) AllFaceVectors(ctx context.Context) ([]int64, [][]float32, error) {
	const q = `
		SELECT fa.id, fa.vector::text
		FROM faces fa
		JOIN scenes s ON s.id = fa.scene_id
		JOIN files f ON f.id = s.file_id
		WHERE f.deleted_at IS NULL`
	rows, err := s.pool.Query(ctx, q)
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

const faceSelectCols = `SELECT id, scene_id, bbox_x, bbox_y, bbox_w, bbox_h, vector::text,
	face_cluster_id, face_cluster_ord`

func scanFace(row rowScanner) (domain.Face, error) {
	var fa domain.Face
	var vecText string
	err := row.Scan(&fa.ID, &fa.SceneID, &fa.BBoxX, &fa.BBoxY, &fa.BBoxW, &fa.BBoxH, &vecText,
		&fa.FaceClusterID, &fa.FaceClusterOrd)
	if err != nil {
		return domain.Face{}, err
	}
	fa.Vector = parseVectorLiteral(vecText)
	return fa, nil
}
