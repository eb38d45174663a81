package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fennec/internal/domain"
	"fennec/internal/probe"
)

type fakeStore struct {
	file       domain.File
	scenes     map[int64][]domain.Scene
	embeddings map[string]domain.Embedding
	completed  bool
	failed     string
	returned   bool
}

func newFakeStore(file domain.File, scenes []domain.Scene) *fakeStore {
	s := &fakeStore{file: file, scenes: map[int64][]domain.Scene{file.ID: scenes}, embeddings: map[string]domain.Embedding{}}
	return s
}

func (s *fakeStore) GetFile(ctx context.Context, id int64) (domain.File, error) { return s.file, nil }

func (s *fakeStore) ReplaceScenes(ctx context.Context, fileID int64, scenes []domain.Scene) ([]domain.Scene, error) {
	for i := range scenes {
		scenes[i].ID = int64(i + 1)
		scenes[i].FileID = fileID
	}
	s.scenes[fileID] = scenes
	return scenes, nil
}

func (s *fakeStore) ListScenesByFile(ctx context.Context, fileID int64) ([]domain.Scene, error) {
	return s.scenes[fileID], nil
}

func (s *fakeStore) SetPoster(ctx context.Context, sceneID int64, path string) error {
	scenes := s.scenes[s.file.ID]
	for i := range scenes {
		if scenes[i].ID == sceneID {
			scenes[i].PosterPath = path
		}
	}
	return nil
}

func (s *fakeStore) SetTranscript(ctx context.Context, sceneID int64, text string) error {
	scenes := s.scenes[s.file.ID]
	for i := range scenes {
		if scenes[i].ID == sceneID {
			scenes[i].Transcript = text
			scenes[i].HasTranscript = true
		}
	}
	return nil
}

func (s *fakeStore) UpsertEmbedding(ctx context.Context, e domain.Embedding) error {
	s.embeddings[e.ModelName] = e
	return nil
}

func (s *fakeStore) HasCurrentVersion(ctx context.Context, sceneID int64, modelName, version string) (bool, error) {
	return false, nil
}

func (s *fakeStore) ReplaceFaces(ctx context.Context, sceneID int64, faces []domain.Face) ([]domain.Face, error) {
	return faces, nil
}

func (s *fakeStore) SetIndexed(ctx context.Context, fileID int64, when time.Time) error { return nil }
func (s *fakeStore) SetStage(ctx context.Context, itemID int64, stage string, stageNum, totalStages int) error {
	return nil
}
func (s *fakeStore) Complete(ctx context.Context, itemID int64) error { s.completed = true; return nil }
func (s *fakeStore) Fail(ctx context.Context, itemID int64, message string) error {
	s.failed = message
	return nil
}
func (s *fakeStore) ReturnToPending(ctx context.Context, itemID int64) error {
	s.returned = true
	return nil
}

type fakeEnabled struct{ stages map[string]bool }

func (f fakeEnabled) Enabled(stage string) bool { return f.stages[stage] }

type fakeVersions struct{}

func (fakeVersions) Version(modelName string) string { return "v1" }

type fakeProber struct{ calls int }

func (f *fakeProber) Probe(ctx context.Context, path string) (probe.Metadata, error) {
	f.calls++
	return probe.Metadata{}, nil
}

func TestPipeline_Run_MetadataOnlyCompletes(t *testing.T) {
	file := domain.File{ID: 1, Path: "/videos/clip.mp4"}
	fs := newFakeStore(file, nil)
	enabled := fakeEnabled{stages: map[string]bool{domain.StageMetadata: true}}
	prober := &fakeProber{}

	p := New(fs, nil, nil, nil, nil, nil, nil, nil, prober, fakeVersions{}, enabled)
	err := p.Run(context.Background(), domain.QueueItem{ID: 10, FileID: 1})
	require.NoError(t, err)
	assert.True(t, fs.completed)
	assert.Empty(t, fs.failed)
	assert.Equal(t, 1, prober.calls)
}

type fakeDetector struct{ scenes []domain.Scene }

func (f fakeDetector) Detect(ctx context.Context, path string) ([]domain.Scene, error) {
	return f.scenes, nil
}

func TestPipeline_Run_SceneDetectionReplacesScenes(t *testing.T) {
	file := domain.File{ID: 1, Path: "/videos/clip.mp4"}
	fs := newFakeStore(file, nil)
	enabled := fakeEnabled{stages: map[string]bool{domain.StageSceneDetection: true}}
	detector := fakeDetector{scenes: []domain.Scene{{StartSeconds: 0, EndSeconds: 5}, {StartSeconds: 5, EndSeconds: 10}}}

	p := New(fs, detector, nil, nil, nil, nil, nil, nil, nil, fakeVersions{}, enabled)
	err := p.Run(context.Background(), domain.QueueItem{ID: 10, FileID: 1})
	require.NoError(t, err)
	assert.True(t, fs.completed)
	assert.Len(t, fs.scenes[1], 2)
}

type fakeVisualHost struct{ loadErr error }

func (f fakeVisualHost) Ready() bool                    { return false }
func (f fakeVisualHost) Load(ctx context.Context) error { return f.loadErr }
func (f fakeVisualHost) Dimension() int                 { return 512 }
func (f fakeVisualHost) EmbedImage(ctx context.Context, s string) ([]float32, error) {
	return nil, nil
}

func TestPipeline_Run_ModelNotReadyReturnsToPending(t *testing.T) {
	file := domain.File{ID: 1, Path: "/videos/clip.mp4"}
	fs := newFakeStore(file, []domain.Scene{{ID: 1, PosterPath: "scenes/1/poster.webp"}})
	enabled := fakeEnabled{stages: map[string]bool{domain.StageVisualEmbedding: true}}
	visual := fakeVisualHost{loadErr: assert.AnError}

	p := New(fs, nil, nil, nil, visual, nil, nil, nil, nil, fakeVersions{}, enabled)
	err := p.Run(context.Background(), domain.QueueItem{ID: 10, FileID: 1})
	require.Error(t, err)
	assert.Equal(t, domain.KindModelNotReady, domain.KindOf(err))
	assert.True(t, fs.returned)
	assert.False(t, fs.completed)
}
