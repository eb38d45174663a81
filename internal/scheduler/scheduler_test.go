package scheduler

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fennec/internal/domain"
)

type fakeStore struct {
	claims  int32
	paused  bool
	reset   int64
}

func (f *fakeStore) ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error) {
	state := "running"
	if f.paused {
		state = "paused"
	}
	raw, _ := json.Marshal(state)
	return raw, true, nil
}
func (f *fakeStore) ResetProcessing(ctx context.Context) (int64, error) { return f.reset, nil }
func (f *fakeStore) ClaimOnePending(ctx context.Context) (domain.QueueItem, bool, error) {
	n := atomic.AddInt32(&f.claims, 1)
	if n > 1 {
		return domain.QueueItem{}, false, nil
	}
	return domain.QueueItem{ID: 1, FileID: 1}, true, nil
}

type fakeScanner struct{ ran int32 }

func (f *fakeScanner) Run(ctx context.Context, folders []string) error {
	atomic.AddInt32(&f.ran, 1)
	return nil
}

type fakePipeline struct{ ran int32 }

func (f *fakePipeline) Run(ctx context.Context, item domain.QueueItem) error {
	atomic.AddInt32(&f.ran, 1)
	return nil
}

func TestScheduler_RunsScanAndPipeline(t *testing.T) {
	store := &fakeStore{}
	scan := &fakeScanner{}
	pipe := &fakePipeline{}
	sched := New(store, scan, pipe, nil, Config{PollInterval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := sched.Run(ctx)
	require.Error(t, err) // context deadline exceeded, expected on clean shutdown

	assert.GreaterOrEqual(t, atomic.LoadInt32(&scan.ran), int32(1))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&pipe.ran), int32(1))
	assert.Equal(t, int64(0), store.reset)
}
