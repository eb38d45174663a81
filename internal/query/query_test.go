package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fennec/internal/domain"
	"fennec/internal/store"
)

type fakeStore struct {
	scenes map[int64]domain.Scene
	files  map[int64]domain.File
	faces  map[int64][]domain.Face
	byPath []int64
	byCodec []int64
}

func (f *fakeStore) GetFile(ctx context.Context, id int64) (domain.File, error) { return f.files[id], nil }
func (f *fakeStore) GetScene(ctx context.Context, id int64) (domain.Scene, error) {
	sc, ok := f.scenes[id]
	if !ok {
		return domain.Scene{}, domain.ErrSceneNotFound
	}
	return sc, nil
}
func (f *fakeStore) ListFacesByScene(ctx context.Context, sceneID int64) ([]domain.Face, error) {
	return f.faces[sceneID], nil
}
func (f *fakeStore) GetFace(ctx context.Context, id int64) (domain.Face, error) {
	for _, faces := range f.faces {
		for _, fa := range faces {
			if fa.ID == id {
				return fa, nil
			}
		}
	}
	return domain.Face{}, domain.ErrFaceNotFound
}
func (f *fakeStore) ListEmbeddingsByScene(ctx context.Context, sceneID int64) ([]domain.Embedding, error) {
	return nil, nil
}
func (f *fakeStore) DialogKeywordSceneIDs(ctx context.Context, substr string) ([]int64, error) {
	var out []int64
	for id, sc := range f.scenes {
		if sc.Transcript != "" && contains(sc.Transcript, substr) {
			out = append(out, id)
		}
	}
	return out, nil
}
func (f *fakeStore) SceneIDsByPath(ctx context.Context, substr string) ([]int64, error) { return f.byPath, nil }
func (f *fakeStore) SceneIDsByCodec(ctx context.Context, codec string) ([]int64, error) { return f.byCodec, nil }
func (f *fakeStore) SceneIDsByFpsRange(ctx context.Context, min, max float64) ([]int64, error) { return nil, nil }
func (f *fakeStore) SceneIDsByDurationRange(ctx context.Context, min, max float64) ([]int64, error) { return nil, nil }
func (f *fakeStore) SceneIDsByResolutionMin(ctx context.Context, minWidth, minHeight int) ([]int64, error) { return nil, nil }
func (f *fakeStore) SceneIDsByTimecodeRange(ctx context.Context, start, end float64) ([]int64, error) { return nil, nil }
func (f *fakeStore) NearestScenes(ctx context.Context, modelName string, query []float32, threshold float64, excludeScene int64, limit int) ([]store.SceneSimilarity, error) {
	return nil, nil
}
func (f *fakeStore) NearestFaces(ctx context.Context, query []float32, threshold float64, limit int) ([]store.FaceSimilarity, error) {
	return nil, nil
}
func (f *fakeStore) GetEmbedding(ctx context.Context, sceneID int64, modelName string) (domain.Embedding, bool, error) {
	return domain.Embedding{}, false, nil
}
func (f *fakeStore) BrowseScenes(ctx context.Context, offset, limit int) ([]store.BrowseRow, int64, error) {
	return nil, 0, nil
}
func (f *fakeStore) GetStats(ctx context.Context) (store.Stats, error)       { return store.Stats{}, nil }
func (f *fakeStore) Snapshot(ctx context.Context) (store.QueueSnapshot, error) { return store.QueueSnapshot{}, nil }
func (f *fakeStore) ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return nil, false, nil
}
func (f *fakeStore) ConfigSet(ctx context.Context, key string, value any) error { return nil }
func (f *fakeStore) ListConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	return nil, nil
}
func (f *fakeStore) ResetFailed(ctx context.Context) (int64, error)     { return 0, nil }
func (f *fakeStore) ResetProcessing(ctx context.Context) (int64, error) { return 0, nil }
func (f *fakeStore) PurgeSoftDeleted(ctx context.Context) (int64, error) { return 0, nil }
func (f *fakeStore) PurgeOrphans(ctx context.Context, currentRoots []string) (int64, error) {
	return 0, nil
}
func (f *fakeStore) Wipe(ctx context.Context) error { return nil }

func contains(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestSearch_IntersectsClausesByPath(t *testing.T) {
	fs := &fakeStore{
		scenes: map[int64]domain.Scene{1: {ID: 1, FileID: 10}, 2: {ID: 2, FileID: 11}},
		files:  map[int64]domain.File{10: {ID: 10, Path: "/a.mp4"}, 11: {ID: 11, Path: "/b.mp4"}},
		faces:  map[int64][]domain.Face{},
		byPath: []int64{1, 2},
		byCodec: []int64{1},
	}
	svc := New(fs, nil, nil)

	req := domain.SearchRequest{
		Filters: []domain.Filter{domain.PathFilter{Substring: "mp4"}, domain.CodecFilter{Codec: "h264"}},
		Limit:   10,
	}
	hits, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].Scene.ID)
}

func TestSearch_NoFilters(t *testing.T) {
	svc := New(&fakeStore{}, nil, nil)
	hits, err := svc.Search(context.Background(), domain.SearchRequest{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

type fakeSentenceEncoder struct {
	ready bool
	calls int
}

func (f *fakeSentenceEncoder) Ready() bool { return f.ready }
func (f *fakeSentenceEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	return [][]float32{{1, 2, 3}}, nil
}

func TestSearch_DialogSemanticFallsBackToKeywordWhenNotReady(t *testing.T) {
	fs := &fakeStore{
		scenes: map[int64]domain.Scene{1: {ID: 1, FileID: 10, Transcript: "hello world"}},
		files:  map[int64]domain.File{10: {ID: 10, Path: "/a.mp4"}},
		faces:  map[int64][]domain.Face{},
	}
	sentence := &fakeSentenceEncoder{ready: false}
	svc := New(fs, nil, sentence)

	hits, err := svc.Search(context.Background(), domain.SearchRequest{
		Filters: []domain.Filter{domain.DialogSemanticFilter{Query: "hello"}},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, sentence.calls) // never embedded; fell back to keyword match
}

func TestResolveFaceVector_ByFaceIDStandalone(t *testing.T) {
	fs := &fakeStore{
		faces: map[int64][]domain.Face{
			5: {{ID: 42, SceneID: 5, Vector: []float32{1, 2, 3}}},
		},
	}
	svc := New(fs, nil, nil)

	// FaceID alone, no SceneID — the preferred global-handle lookup.
	vec, err := svc.resolveFaceVector(context.Background(), domain.FaceFilter{FaceID: 42})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestResolveFaceVector_UnknownFaceID(t *testing.T) {
	svc := New(&fakeStore{faces: map[int64][]domain.Face{}}, nil, nil)
	_, err := svc.resolveFaceVector(context.Background(), domain.FaceFilter{FaceID: 999})
	require.Error(t, err)
}

func TestResolveFaceVector_BySceneAndIndex(t *testing.T) {
	fs := &fakeStore{
		faces: map[int64][]domain.Face{
			5: {{ID: 1, SceneID: 5, Vector: []float32{9, 9}}},
		},
	}
	svc := New(fs, nil, nil)

	vec, err := svc.resolveFaceVector(context.Background(), domain.FaceFilter{SceneID: 5, FaceIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, vec)
}
