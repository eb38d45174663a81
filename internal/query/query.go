// Package query implements the read-side Query Surface: paginated scene
// browse, combined-filter search, scene detail, stats, queue snapshot,
// config get/set and admin actions. Search fans out over independent
// filter clauses: each clause resolves to a set of scene ids concurrently,
// then the sets intersect.
package query

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"fennec/internal/domain"
	"fennec/internal/store"
)

// Store is the subset of *store.Store the Query Surface depends on.
type Store interface {
	GetFile(ctx context.Context, id int64) (domain.File, error)
	GetScene(ctx context.Context, id int64) (domain.Scene, error)
	GetFace(ctx context.Context, id int64) (domain.Face, error)
	ListFacesByScene(ctx context.Context, sceneID int64) ([]domain.Face, error)
	ListEmbeddingsByScene(ctx context.Context, sceneID int64) ([]domain.Embedding, error)

	DialogKeywordSceneIDs(ctx context.Context, substr string) ([]int64, error)
	SceneIDsByPath(ctx context.Context, substr string) ([]int64, error)
	SceneIDsByCodec(ctx context.Context, codec string) ([]int64, error)
	SceneIDsByFpsRange(ctx context.Context, min, max float64) ([]int64, error)
	SceneIDsByDurationRange(ctx context.Context, min, max float64) ([]int64, error)
	SceneIDsByResolutionMin(ctx context.Context, minWidth, minHeight int) ([]int64, error)
	SceneIDsByTimecodeRange(ctx context.Context, start, end float64) ([]int64, error)

	NearestScenes(ctx context.Context, modelName string, query []float32, threshold float64, excludeScene int64, limit int) ([]store.SceneSimilarity, error)
	NearestFaces(ctx context.Context, query []float32, threshold float64, limit int) ([]store.FaceSimilarity, error)
	GetEmbedding(ctx context.Context, sceneID int64, modelName string) (domain.Embedding, bool, error)

	BrowseScenes(ctx context.Context, offset, limit int) ([]store.BrowseRow, int64, error)
	GetStats(ctx context.Context) (store.Stats, error)
	Snapshot(ctx context.Context) (store.QueueSnapshot, error)
	ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error)
	ConfigSet(ctx context.Context, key string, value any) error
	ListConfig(ctx context.Context) (map[string]json.RawMessage, error)

	ResetFailed(ctx context.Context) (int64, error)
	ResetProcessing(ctx context.Context) (int64, error)
	PurgeSoftDeleted(ctx context.Context) (int64, error)
	PurgeOrphans(ctx context.Context, currentRoots []string) (int64, error)
	Wipe(ctx context.Context) error
}

// VisualEncoder encodes query text into the visual embedding space.
type VisualEncoder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SentenceEncoder encodes query text into the sentence embedding space.
type SentenceEncoder interface {
	Ready() bool
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service answers Query Surface requests.
type Service struct {
	store    Store
	visual   VisualEncoder
	sentence SentenceEncoder
}

// New constructs a Query Surface service.
func New(store Store, visual VisualEncoder, sentence SentenceEncoder) *Service {
	return &Service{store: store, visual: visual, sentence: sentence}
}

// clauseResult is one filter's resolved scene-id set plus, for similarity
// clauses, the per-scene score.
type clauseResult struct {
	index  int
	ids    map[int64]bool
	scores map[int64]float64
}

// Search resolves every clause in req concurrently, intersects the
// resulting scene-id sets, and orders hits by the first similarity
// clause's score (descending) when one is present.
func (svc *Service) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	if len(req.Filters) == 0 {
		return nil, nil
	}

	primaryIdx := req.FirstSimilarityClause()
	results := make([]clauseResult, len(req.Filters))

	var wg sync.WaitGroup
	errs := make([]error, len(req.Filters))
	for i, f := range req.Filters {
		wg.Add(1)
		go func(i int, f domain.Filter) {
			defer wg.Done()
			ids, scores, err := svc.resolveClause(ctx, f)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = clauseResult{index: i, ids: ids, scores: scores}
		}(i, f)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	intersection := results[0].ids
	for _, r := range results[1:] {
		intersection = intersectSets(intersection, r.ids)
	}

	hits := make([]domain.SearchHit, 0, len(intersection))
	for sceneID := range intersection {
		sc, err := svc.store.GetScene(ctx, sceneID)
		if err != nil {
			continue
		}
		file, err := svc.store.GetFile(ctx, sc.FileID)
		if err != nil {
			continue
		}
		hit := domain.SearchHit{Scene: sc, File: file}
		if primaryIdx >= 0 {
			if score, ok := results[primaryIdx].scores[sceneID]; ok {
				hit.Similarity = score
				hit.HasScore = true
			}
		}
		hits = append(hits, hit)
	}

	if primaryIdx >= 0 {
		sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	} else {
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].Scene.FileID != hits[j].Scene.FileID {
				return hits[i].Scene.FileID < hits[j].Scene.FileID
			}
			return hits[i].Scene.SceneIndex < hits[j].Scene.SceneIndex
		})
	}

	if req.Offset > len(hits) {
		return nil, nil
	}
	end := req.Offset + req.Limit
	if req.Limit <= 0 || end > len(hits) {
		end = len(hits)
	}
	return hits[req.Offset:end], nil
}

func (svc *Service) resolveClause(ctx context.Context, f domain.Filter) (map[int64]bool, map[int64]float64, error) {
	switch clause := f.(type) {
	case domain.VisualTextFilter:
		vec, err := svc.visual.EmbedText(ctx, clause.Query)
		if err != nil {
			return nil, nil, err
		}
		hits, err := svc.store.NearestScenes(ctx, domain.ModelClip, vec, clause.Threshold, 0, 1000)
		if err != nil {
			return nil, nil, err
		}
		return sceneSimilaritySets(hits)

	case domain.DialogKeywordFilter:
		ids, err := svc.store.DialogKeywordSceneIDs(ctx, clause.Query)
		return toSet(ids), nil, err

	case domain.DialogSemanticFilter:
		// Readiness, not liveness: the sentence encoder may still be
		// loading, so a semantic dialog query degrades to a keyword
		// match over the same field rather than erroring the request.
		if svc.sentence == nil || !svc.sentence.Ready() {
			ids, err := svc.store.DialogKeywordSceneIDs(ctx, clause.Query)
			return toSet(ids), nil, err
		}
		vecs, err := svc.sentence.EmbedBatch(ctx, []string{clause.Query})
		if err != nil {
			return nil, nil, err
		}
		hits, err := svc.store.NearestScenes(ctx, domain.ModelTranscript, vecs[0], clause.Threshold, 0, 1000)
		if err != nil {
			return nil, nil, err
		}
		return sceneSimilaritySets(hits)

	case domain.FaceFilter:
		vec, err := svc.resolveFaceVector(ctx, clause)
		if err != nil {
			return nil, nil, err
		}
		hits, err := svc.store.NearestFaces(ctx, vec, clause.Threshold, 1000)
		if err != nil {
			return nil, nil, err
		}
		ids := map[int64]bool{}
		scores := map[int64]float64{}
		for _, h := range hits {
			ids[h.SceneID] = true
			if h.Similarity > scores[h.SceneID] {
				scores[h.SceneID] = h.Similarity
			}
		}
		return ids, scores, nil

	case domain.VisualMatchFilter:
		emb, found, err := svc.store.GetEmbedding(ctx, clause.SceneID, domain.ModelClip)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return map[int64]bool{}, nil, nil
		}
		hits, err := svc.store.NearestScenes(ctx, domain.ModelClip, emb.Vector, clause.Threshold, clause.SceneID, 1000)
		if err != nil {
			return nil, nil, err
		}
		return sceneSimilaritySets(hits)

	case domain.PathFilter:
		ids, err := svc.store.SceneIDsByPath(ctx, clause.Substring)
		return toSet(ids), nil, err

	case domain.CodecFilter:
		ids, err := svc.store.SceneIDsByCodec(ctx, clause.Codec)
		return toSet(ids), nil, err

	case domain.FpsRangeFilter:
		ids, err := svc.store.SceneIDsByFpsRange(ctx, clause.Min, clause.Max)
		return toSet(ids), nil, err

	case domain.DurationRangeFilter:
		ids, err := svc.store.SceneIDsByDurationRange(ctx, clause.Min, clause.Max)
		return toSet(ids), nil, err

	case domain.ResolutionMinFilter:
		ids, err := svc.store.SceneIDsByResolutionMin(ctx, clause.MinWidth, clause.MinHeight)
		return toSet(ids), nil, err

	case domain.TimecodeRangeFilter:
		ids, err := svc.store.SceneIDsByTimecodeRange(ctx, clause.Start, clause.End)
		return toSet(ids), nil, err

	default:
		return nil, nil, domain.NewError(domain.KindBadRequest, "unknown filter clause", nil)
	}
}

// resolveFaceVector prefers the global face id, the stable handle a
// FaceFilter can carry on its own; it only needs (SceneID, FaceIndex)
// when FaceID is unset.
func (svc *Service) resolveFaceVector(ctx context.Context, clause domain.FaceFilter) ([]float32, error) {
	if clause.FaceID != 0 {
		fa, err := svc.store.GetFace(ctx, clause.FaceID)
		if err != nil {
			return nil, err
		}
		return fa.Vector, nil
	}
	faces, err := svc.store.ListFacesByScene(ctx, clause.SceneID)
	if err != nil {
		return nil, err
	}
	if clause.FaceIndex < 0 || clause.FaceIndex >= len(faces) {
		return nil, domain.NewError(domain.KindNotFound, "face index out of range", nil)
	}
	return faces[clause.FaceIndex].Vector, nil
}

func sceneSimilaritySets(hits []store.SceneSimilarity) (map[int64]bool, map[int64]float64, error) {
	ids := map[int64]bool{}
	scores := map[int64]float64{}
	for _, h := range hits {
		ids[h.SceneID] = true
		scores[h.SceneID] = h.Similarity
	}
	return ids, scores, nil
}

func toSet(ids []int64) map[int64]bool {
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func intersectSets(a, b map[int64]bool) map[int64]bool {
	out := map[int64]bool{}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for id := range small {
		if large[id] {
			out[id] = true
		}
	}
	return out
}

// SceneDetail is a scene's full display payload: the scene itself, its
// faces, and a per-model embedding presence summary.
type SceneDetail struct {
	Scene      domain.Scene
	File       domain.File
	Faces      []domain.Face
	Embeddings []domain.Embedding
}

// SceneDetail fetches one scene's full detail payload.
func (svc *Service) SceneDetail(ctx context.Context, sceneID int64) (SceneDetail, error) {
	sc, err := svc.store.GetScene(ctx, sceneID)
	if err != nil {
		return SceneDetail{}, err
	}
	file, err := svc.store.GetFile(ctx, sc.FileID)
	if err != nil {
		return SceneDetail{}, err
	}
	faces, err := svc.store.ListFacesByScene(ctx, sceneID)
	if err != nil {
		return SceneDetail{}, err
	}
	embeddings, err := svc.store.ListEmbeddingsByScene(ctx, sceneID)
	if err != nil {
		return SceneDetail{}, err
	}
	return SceneDetail{Scene: sc, File: file, Faces: faces, Embeddings: embeddings}, nil
}

// NormalizeKeyword trims and lowercases a dialog keyword query the same
// way the Store's ILIKE clause implicitly case-folds it, so callers can
// short-circuit an empty query before issuing it.
func NormalizeKeyword(q string) string { return strings.ToLower(strings.TrimSpace(q)) }
