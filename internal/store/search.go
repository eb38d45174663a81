package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DialogKeywordSceneIDs returns ids of scenes whose transcript contains
// substr case-insensitively. Uses the pg_trgm-indexed ILIKE form rather
// than tokenized full-text search, since a literal substring match is
// wanted here, not stemmed/ranked text search.
func (s *Store) DialogKeywordSceneIDs(ctx context.Context, substr string) ([]int64, error) {
	const q = `
		SELECT sc.id FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND sc.transcript ILIKE '%' || $1 || '%'`
	return queryIDs(ctx, s.pool, q, substr)
}

// SceneIDsByPath returns ids of scenes whose owning file's path contains
// substr case-insensitively.
func (s *Store) SceneIDsByPath(ctx context.Context, substr string) ([]int64, error) {
	const q = `
		SELECT sc.id FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND f.path ILIKE '%' || $1 || '%'`
	return queryIDs(ctx, s.pool, q, substr)
}

// SceneIDsByCodec returns ids of scenes whose owning file's codec equals codec.
func (s *Store) SceneIDsByCodec(ctx context.Context, codec string) ([]int64, error) {
	const q = `
		SELECT sc.id FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND f.codec = $1`
	return queryIDs(ctx, s.pool, q, codec)
}

// SceneIDsByFpsRange returns ids of scenes whose owning file's frame rate
// lies in [min, max].
func (s *Store) SceneIDsByFpsRange(ctx context.Context, min, max float64) ([]int64, error) {
	const q = `
		SELECT sc.id FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND f.frame_rate BETWEEN $1 AND $2`
	return queryIDs(ctx, s.pool, q, min, max)
}

// SceneIDsByDurationRange returns ids of scenes whose owning file's
// duration in seconds lies in [min, max].
func (s *Store) SceneIDsByDurationRange(ctx context.Context, min, max float64) ([]int64, error) {
	const q = `
		SELECT sc.id FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND f.duration_seconds BETWEEN $1 AND $2`
	return queryIDs(ctx, s.pool, q, min, max)
}

// SceneIDsByResolutionMin returns ids of scenes whose owning file's
// dimensions are at least (minWidth, minHeight).
func (s *Store) SceneIDsByResolutionMin(ctx context.Context, minWidth, minHeight int) ([]int64, error) {
	const q = `
		SELECT sc.id FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND f.width >= $1 AND f.height >= $2`
	return queryIDs(ctx, s.pool, q, minWidth, minHeight)
}

// SceneIDsByTimecodeRange returns ids of scenes overlapping [start, end) seconds.
func (s *Store) SceneIDsByTimecodeRange(ctx context.Context, start, end float64) ([]int64, error) {
	const q = `
		SELECT sc.id FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL AND sc.start_seconds < $2 AND sc.end_seconds > $1`
	return queryIDs(ctx, s.pool, q, start, end)
}

// BrowseSceneFields carries the scene display fields of a BrowseRow.
type BrowseSceneFields struct {
	ID         int64
	FileID     int64
	SceneIndex int
	Start      float64
	End        float64
	PosterPath string
}

// BrowseFile carries the display fields of a file for browse rows.
type BrowseFile struct {
	ID        int64
	Path      string
	Filename  string
	FrameRate float64
}

// BrowseRow is one row of the paginated scene browse, carrying the
// display fields the UI needs without a further round trip. Faces are
// attached by the query package, which already loads per-scene faces for
// the similarity clauses.
type BrowseRow struct {
	Scene BrowseSceneFields
	File  BrowseFile
}

// BrowseScenes returns a page of scenes ordered by file id then scene
// index, for the UI's thumbnail grid.
func (s *Store) BrowseScenes(ctx context.Context, offset, limit int) ([]BrowseRow, int64, error) {
	const countQ = `
		SELECT count(*) FROM scenes sc JOIN files f ON f.id=sc.file_id WHERE f.deleted_at IS NULL`
	var total int64
	if err := s.pool.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `
		SELECT sc.id, sc.file_id, sc.scene_index, sc.start_seconds, sc.end_seconds, sc.poster_path,
			f.id, f.path, f.filename, f.frame_rate
		FROM scenes sc
		JOIN files f ON f.id = sc.file_id
		WHERE f.deleted_at IS NULL
		ORDER BY f.id, sc.scene_index
		OFFSET $1 LIMIT $2`
	rows, err := s.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []BrowseRow
	for rows.Next() {
		var r BrowseRow
		if err := rows.Scan(&r.Scene.ID, &r.Scene.FileID, &r.Scene.SceneIndex, &r.Scene.Start,
			&r.Scene.End, &r.Scene.PosterPath, &r.File.ID, &r.File.Path, &r.File.Filename,
			&r.File.FrameRate); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func queryIDs(ctx context.Context, pool *pgxpool.Pool, q string, args ...any) ([]int64, error) {
	rows, err := pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
