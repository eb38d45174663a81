package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"fennec/internal/domain"
)

// Enqueue creates a pending queue item for fileID with queued_at = now,
// retry_count = 0 and empty stage fields.
func (s *Store) Enqueue(ctx context.Context, fileID int64) (int64, error) {
	const q = `
		INSERT INTO queue_items (file_id, status, queued_at)
		VALUES ($1, 'pending', now())
		RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, q, fileID).Scan(&id)
	return id, err
}

// ClaimOnePending atomically flips the oldest pending row to processing
// and returns it. Fencing is a single UPDATE ... WHERE status='pending'
// guarded by a SELECT FOR UPDATE SKIP LOCKED subquery on id, so two
// concurrent callers never observe and claim the same row. Returns
// (domain.QueueItem{}, false, nil) when the queue is empty.
func (s *Store) ClaimOnePending(ctx context.Context) (domain.QueueItem, bool, error) {
	const q = `
		UPDATE queue_items
		SET status = 'processing', started_at = now(), last_error = ''
		WHERE id = (
			SELECT id FROM queue_items
			WHERE status = 'pending'
			ORDER BY queued_at, id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + queueReturningCols

	item, err := scanQueueItem(s.pool.QueryRow(ctx, q))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueItem{}, false, nil
	}
	if err != nil {
		return domain.QueueItem{}, false, err
	}
	return item, true, nil
}

// SetStage advances a processing item's current stage fields.
func (s *Store) SetStage(ctx context.Context, itemID int64, stage string, stageNum, totalStages int) error {
	const q = `
		UPDATE queue_items
		SET current_stage=$2, current_stage_num=$3, total_stages=$4
		WHERE id=$1 AND status='processing'`
	_, err := s.pool.Exec(ctx, q, itemID, stage, stageNum, totalStages)
	return err
}

// Complete transitions a processing item to complete.
func (s *Store) Complete(ctx context.Context, itemID int64) error {
	const q = `
		UPDATE queue_items SET status='complete', completed_at=now()
		WHERE id=$1 AND status='processing'`
	_, err := s.pool.Exec(ctx, q, itemID)
	return err
}

// Fail transitions a processing item to failed, recording the message and
// incrementing retry_count.
func (s *Store) Fail(ctx context.Context, itemID int64, message string) error {
	const q = `
		UPDATE queue_items
		SET status='failed', last_error=$2, retry_count=retry_count+1, completed_at=now()
		WHERE id=$1 AND status='processing'`
	_, err := s.pool.Exec(ctx, q, itemID, message)
	return err
}

// ReturnToPending transitions a processing item back to pending without
// incrementing retry_count or marking it failed, used for ModelNotReady:
// the failure is environmental, not per-file.
func (s *Store) ReturnToPending(ctx context.Context, itemID int64) error {
	const q = `
		UPDATE queue_items SET status='pending', started_at=NULL
		WHERE id=$1 AND status='processing'`
	_, err := s.pool.Exec(ctx, q, itemID)
	return err
}

// ResetFailed moves every failed item back to pending, clearing the error.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	const q = `UPDATE queue_items SET status='pending', last_error='' WHERE status='failed'`
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResetProcessing moves every processing item back to pending, used at
// startup to reclaim rows orphaned by a crash, and by admin crash recovery.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	const q = `UPDATE queue_items SET status='pending', started_at=NULL WHERE status='processing'`
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// QueueSnapshot is the queue's current state for the Query Surface.
type QueueSnapshot struct {
	Pending    int64
	Processing int64
	Complete   int64
	Failed     int64
	Current    *domain.QueueItem
}

// Snapshot returns per-status counts and the currently-processing item, if any.
func (s *Store) Snapshot(ctx context.Context) (QueueSnapshot, error) {
	var snap QueueSnapshot
	const countQ = `SELECT status, count(*) FROM queue_items GROUP BY status`
	rows, err := s.pool.Query(ctx, countQ)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return snap, err
		}
		switch domain.QueueStatus(status) {
		case domain.QueuePending:
			snap.Pending = n
		case domain.QueueProcessing:
			snap.Processing = n
		case domain.QueueComplete:
			snap.Complete = n
		case domain.QueueFailed:
			snap.Failed = n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	const curQ = `SELECT ` + queueReturningCols + ` FROM queue_items WHERE status='processing' ORDER BY started_at LIMIT 1`
	item, err := scanQueueItem(s.pool.QueryRow(ctx, curQ))
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return snap, err
	}
	snap.Current = &item
	return snap, nil
}

const queueReturningCols = `id, file_id, status, queued_at, started_at, completed_at, last_error,
	retry_count, current_stage, current_stage_num, total_stages`

func scanQueueItem(row rowScanner) (domain.QueueItem, error) {
	var item domain.QueueItem
	var status string
	var startedAt, completedAt *time.Time
	err := row.Scan(&item.ID, &item.FileID, &status, &item.QueuedAt, &startedAt, &completedAt,
		&item.LastError, &item.RetryCount, &item.CurrentStage, &item.CurrentStageNum, &item.TotalStages)
	if err != nil {
		return domain.QueueItem{}, err
	}
	item.Status = domain.QueueStatus(status)
	item.StartedAt = startedAt
	item.CompletedAt = completedAt
	return item, nil
}
