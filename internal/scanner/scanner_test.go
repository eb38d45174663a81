package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fennec/internal/domain"
	"fennec/internal/probe"
)

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("/media/clip.MP4"))
	assert.True(t, IsVideoFile("/media/clip.mkv"))
	assert.False(t, IsVideoFile("/media/notes.txt"))
}

type fakeStore struct {
	files         map[string]domain.File
	nextID        int64
	enqueued      []int64
	missingCh     []string
	deletedScenes []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string]domain.File{}}
}

func (f *fakeStore) UpsertFile(ctx context.Context, file domain.File) (int64, bool, error) {
	if existing, ok := f.files[file.Path]; ok {
		file.ID = existing.ID
		f.files[file.Path] = file
		return existing.ID, false, nil
	}
	f.nextID++
	file.ID = f.nextID
	f.files[file.Path] = file
	return file.ID, true, nil
}

func (f *fakeStore) Unchanged(ctx context.Context, path string, size int64, mtime time.Time) (bool, error) {
	existing, ok := f.files[path]
	if !ok {
		return false, nil
	}
	return existing.SizeBytes == size && existing.FSModifiedAt.Equal(mtime), nil
}

func (f *fakeStore) MarkMissing(ctx context.Context, seenPaths []string) (int64, error) {
	f.missingCh = seenPaths
	return 0, nil
}

func (f *fakeStore) Enqueue(ctx context.Context, fileID int64) (int64, error) {
	f.enqueued = append(f.enqueued, fileID)
	return fileID, nil
}

func (f *fakeStore) DeleteScenesForFile(ctx context.Context, fileID int64) error {
	f.deletedScenes = append(f.deletedScenes, fileID)
	return nil
}

type fakeProber struct{}

func (fakeProber) Probe(ctx context.Context, path string) (probe.Metadata, error) {
	return probe.Metadata{DurationSeconds: 12.5, Width: 1920, Height: 1080, Codec: "h264"}, nil
}

func TestScanner_Run_NewFileEnqueued(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignore"), 0o644))

	fs := newFakeStore()
	sc := New(fs, fakeProber{})

	require.NoError(t, sc.Run(context.Background(), []string{dir}))

	assert.Len(t, fs.files, 1)
	assert.Len(t, fs.enqueued, 1)
	progress := sc.Progress()
	assert.Equal(t, domain.ScanComplete, progress.Phase)
	assert.Equal(t, 1, progress.FilesNew)
}

func TestScanner_Run_UnchangedFileCountsSkippedNotReenqueued(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("data"), 0o644))

	fs := newFakeStore()
	sc := New(fs, fakeProber{})

	require.NoError(t, sc.Run(context.Background(), []string{dir}))
	first := sc.Progress()
	assert.Equal(t, 1, first.FilesNew)
	assert.Equal(t, 0, first.FilesSkipped)

	require.NoError(t, sc.Run(context.Background(), []string{dir}))
	second := sc.Progress()
	assert.Equal(t, 0, second.FilesNew)
	assert.Equal(t, 0, second.FilesUpdated)
	assert.Equal(t, 1, second.FilesSkipped)
	assert.Equal(t, second.FilesNew+second.FilesUpdated+second.FilesSkipped, second.FilesProcessed)
	assert.Len(t, fs.enqueued, 1) // only the first run enqueued anything
}

func TestScanner_Run_UpdatedFileDeletesStaleScenes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	fs := newFakeStore()
	sc := New(fs, fakeProber{})
	require.NoError(t, sc.Run(context.Background(), []string{dir}))
	assert.Empty(t, fs.deletedScenes)

	require.NoError(t, os.WriteFile(path, []byte("data-changed"), 0o644))
	require.NoError(t, sc.Run(context.Background(), []string{dir}))

	progress := sc.Progress()
	assert.Equal(t, 1, progress.FilesUpdated)
	assert.Equal(t, []int64{1}, fs.deletedScenes)
}

func TestScanner_Run_UnmountedRootSkipped(t *testing.T) {
	fs := newFakeStore()
	sc := New(fs, fakeProber{})

	require.NoError(t, sc.Run(context.Background(), []string{"/nonexistent/watch/root"}))

	progress := sc.Progress()
	assert.Equal(t, []string{"/nonexistent/watch/root"}, progress.UnmountedRoots)
}
