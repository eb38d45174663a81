package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"fennec/internal/domain"
)

// UpsertFile inserts a new File row, or updates an existing live row for
// the same path, reviving a soft-deleted one if necessary. It returns the
// resulting row's id and whether the row was newly created.
func (s *Store) UpsertFile(ctx context.Context, f domain.File) (id int64, created bool, err error) {
	existing, found, err := s.GetFileByPath(ctx, f.Path)
	if err != nil {
		return 0, false, err
	}
	if !found {
		const q = `
			INSERT INTO files (path, filename, parent_folder, duration_seconds, width, height,
				frame_rate, codec, audio_tracks, pixel_format, color_space, color_transfer,
				color_primaries, size_bytes, fs_created_at, fs_modified_at, tags)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			RETURNING id`
		err := s.pool.QueryRow(ctx, q, f.Path, f.Filename, f.ParentFolder, f.DurationSeconds,
			f.Width, f.Height, f.FrameRate, f.Codec, f.AudioTracks, f.PixelFormat, f.ColorSpace,
			f.ColorTransfer, f.ColorPrimaries, f.SizeBytes, f.FSCreatedAt, f.FSModifiedAt, f.Tags).Scan(&id)
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	const q = `
		UPDATE files SET filename=$2, parent_folder=$3, duration_seconds=$4, width=$5, height=$6,
			frame_rate=$7, codec=$8, audio_tracks=$9, pixel_format=$10, color_space=$11,
			color_transfer=$12, color_primaries=$13, size_bytes=$14, fs_created_at=$15,
			fs_modified_at=$16, tags=$17, deleted_at=NULL, indexed_at=NULL
		WHERE id=$1`
	_, err = s.pool.Exec(ctx, q, existing.ID, f.Filename, f.ParentFolder, f.DurationSeconds,
		f.Width, f.Height, f.FrameRate, f.Codec, f.AudioTracks, f.PixelFormat, f.ColorSpace,
		f.ColorTransfer, f.ColorPrimaries, f.SizeBytes, f.FSCreatedAt, f.FSModifiedAt, f.Tags)
	if err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

// Unchanged reports whether a file already in the Store matches the given
// size and mtime, meaning the Scanner can skip it.
func (s *Store) Unchanged(ctx context.Context, path string, size int64, mtime time.Time) (bool, error) {
	f, found, err := s.GetFileByPath(ctx, path)
	if err != nil || !found {
		return false, err
	}
	return f.SizeBytes == size && f.FSModifiedAt.Equal(mtime), nil
}

// MarkMissing sets deleted_at on every live file whose path is not in
// seenPaths, used by the Scanner's checking_missing phase.
func (s *Store) MarkMissing(ctx context.Context, seenPaths []string) (int64, error) {
	const q = `
		UPDATE files SET deleted_at = now()
		WHERE deleted_at IS NULL AND NOT (path = ANY($1))`
	tag, err := s.pool.Exec(ctx, q, seenPaths)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SoftDelete marks a single file deleted and clears its queue item, per
// the ownership rule that soft-delete clears the queue but keeps
// scenes/faces until purge.
func (s *Store) SoftDelete(ctx context.Context, fileID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE files SET deleted_at = now() WHERE id=$1`, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM queue_items WHERE file_id=$1`, fileID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetFile fetches a file by id.
func (s *Store) GetFile(ctx context.Context, id int64) (domain.File, error) {
	const q = fileSelectCols + ` FROM files WHERE id=$1`
	row := s.pool.QueryRow(ctx, q, id)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.File{}, domain.ErrFileNotFound
	}
	return f, err
}

// GetFileByPath fetches a live (non-soft-deleted) file by path, or the
// most recent soft-deleted row for that path if no live row exists, so the
// Scanner can revive it.
func (s *Store) GetFileByPath(ctx context.Context, path string) (domain.File, bool, error) {
	const q = fileSelectCols + ` FROM files WHERE path=$1 ORDER BY deleted_at NULLS FIRST LIMIT 1`
	row := s.pool.QueryRow(ctx, q, path)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.File{}, false, nil
	}
	if err != nil {
		return domain.File{}, false, err
	}
	return f, true, nil
}

// ListFiles returns live files ordered by id, for browse/admin use.
func (s *Store) ListFiles(ctx context.Context, offset, limit int) ([]domain.File, error) {
	const q = fileSelectCols + ` FROM files WHERE deleted_at IS NULL ORDER BY id OFFSET $1 LIMIT $2`
	rows, err := s.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetIndexed stamps indexed_at on a file once the Pipeline's final enabled
// stage completes.
func (s *Store) SetIndexed(ctx context.Context, fileID int64, when time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE files SET indexed_at=$2 WHERE id=$1`, fileID, when)
	return err
}

const fileSelectCols = `SELECT id, path, filename, parent_folder, duration_seconds, width, height,
	frame_rate, codec, audio_tracks, pixel_format, color_space, color_transfer, color_primaries,
	size_bytes, fs_created_at, fs_modified_at, tags, created_at, indexed_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (domain.File, error) {
	var f domain.File
	var fsCreated, fsModified, indexedAt, deletedAt *time.Time
	err := row.Scan(&f.ID, &f.Path, &f.Filename, &f.ParentFolder, &f.DurationSeconds, &f.Width,
		&f.Height, &f.FrameRate, &f.Codec, &f.AudioTracks, &f.PixelFormat, &f.ColorSpace,
		&f.ColorTransfer, &f.ColorPrimaries, &f.SizeBytes, &fsCreated, &fsModified, &f.Tags,
		&f.CreatedAt, &indexedAt, &deletedAt)
	if err != nil {
		return domain.File{}, err
	}
	if fsCreated != nil {
		f.FSCreatedAt = *fsCreated
	}
	if fsModified != nil {
		f.FSModifiedAt = *fsModified
	}
	f.IndexedAt = indexedAt
	f.DeletedAt = deletedAt
	return f, nil
}
