// Package pipeline runs the seven enrichment stages over a queue item's
// file: metadata, scene_detection, poster_extraction, visual_embedding,
// transcription, transcript_embedding, face_detection. Each stage is
// idempotent on retry and commits its own output before advancing, stage
// by stage, rather than all-or-nothing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"fennec/internal/domain"
	"fennec/internal/objectstore"
	"fennec/internal/observability"
	"fennec/internal/probe"
)

// Store is the subset of *store.Store the Pipeline depends on.
type Store interface {
	GetFile(ctx context.Context, id int64) (domain.File, error)
	ReplaceScenes(ctx context.Context, fileID int64, scenes []domain.Scene) ([]domain.Scene, error)
	ListScenesByFile(ctx context.Context, fileID int64) ([]domain.Scene, error)
	SetPoster(ctx context.Context, sceneID int64, path string) error
	SetTranscript(ctx context.Context, sceneID int64, text string) error
	UpsertEmbedding(ctx context.Context, e domain.Embedding) error
	HasCurrentVersion(ctx context.Context, sceneID int64, modelName, version string) (bool, error)
	ReplaceFaces(ctx context.Context, sceneID int64, faces []domain.Face) ([]domain.Face, error)
	SetIndexed(ctx context.Context, fileID int64, when time.Time) error
	SetStage(ctx context.Context, itemID int64, stage string, stageNum, totalStages int) error
	Complete(ctx context.Context, itemID int64) error
	Fail(ctx context.Context, itemID int64, message string) error
	ReturnToPending(ctx context.Context, itemID int64) error
}

// SceneDetector splits a file into scenes by timestamp. The Pipeline
// treats scene-cut detection as a pluggable step, not a bundled
// algorithm.
type SceneDetector interface {
	Detect(ctx context.Context, path string) ([]domain.Scene, error)
}

// FrameExtractor extracts a representative poster frame and an audio
// range for a scene, both as raw bytes. Like SceneDetector this is a
// pluggable boundary around ffmpeg-shaped work.
type FrameExtractor interface {
	ExtractPoster(ctx context.Context, path string, scene domain.Scene) (imageBytes []byte, format string, err error)
	ExtractAudio(ctx context.Context, path string, scene domain.Scene) (wavBytes []byte, err error)
}

// Prober re-probes a file's media metadata, satisfied by *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.Metadata, error)
}

// ModelVersions reports the configured version string for a model name,
// used for the per-model-version skip check.
type ModelVersions interface {
	Version(modelName string) string
}

// EnabledStages reports which stages are currently turned on, per the
// enrichment_models runtime config.
type EnabledStages interface {
	Enabled(stage string) bool
}

// VisualHost is the Ready/Load/EmbedImage contract satisfied by
// *modelhost.VisualEncoder.
type VisualHost interface {
	Ready() bool
	Load(ctx context.Context) error
	Dimension() int
	EmbedImage(ctx context.Context, imageBase64 string) ([]float32, error)
}

// SentenceHost is the Ready/Load/EmbedBatch contract satisfied by
// *modelhost.SentenceEncoder.
type SentenceHost interface {
	Ready() bool
	Load(ctx context.Context) error
	Dimension() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SpeechHost is the Ready/Load/Transcribe contract satisfied by
// *modelhost.SpeechToText.
type SpeechHost interface {
	Ready() bool
	Load(ctx context.Context) error
	Transcribe(ctx context.Context, wavBytes []byte) (string, error)
}

// FaceHost is the Ready/Load/Detect contract satisfied by
// *modelhost.FaceDetector. FaceDetection mirrors modelhost.FaceDetection
// to avoid a modelhost import here.
type FaceHost interface {
	Ready() bool
	Load(ctx context.Context) error
	Detect(ctx context.Context, imagePNG []byte) ([]FaceDetection, error)
}

// FaceDetection is one detected face region plus its embedding vector.
type FaceDetection struct {
	X, Y, W, H int
	Vector     []float32
}

// Pipeline drives one file's queue item through every enabled stage.
type Pipeline struct {
	store    Store
	detector SceneDetector
	frames   FrameExtractor
	posters  objectstore.ObjectStore
	visual   VisualHost
	sentence SentenceHost
	speech   SpeechHost
	faces    FaceHost
	prober   Prober
	versions ModelVersions
	enabled  EnabledStages
}

// New constructs a Pipeline wired to every Model Host and the poster
// ObjectStore.
func New(store Store, detector SceneDetector, frames FrameExtractor, posters objectstore.ObjectStore,
	visual VisualHost, sentence SentenceHost, speech SpeechHost,
	faces FaceHost, prober Prober, versions ModelVersions, enabled EnabledStages) *Pipeline {
	return &Pipeline{
		store: store, detector: detector, frames: frames, posters: posters,
		visual: visual, sentence: sentence, speech: speech, faces: faces,
		prober: prober, versions: versions, enabled: enabled,
	}
}

var stageOrder = []string{
	domain.StageMetadata,
	domain.StageSceneDetection,
	domain.StagePosterExtraction,
	domain.StageVisualEmbedding,
	domain.StageTranscription,
	domain.StageTranscriptEmbedding,
	domain.StageFaceDetection,
}

// Run drives item's file through every enabled stage in order, committing
// each stage's output before advancing. A domain.KindModelNotReady error
// returns the item to pending without counting as a failed retry; any
// other error fails the item with the retry count incremented. Returns
// nil once every enabled stage has committed, after which the file's
// indexed_at is stamped.
func (p *Pipeline) Run(ctx context.Context, item domain.QueueItem) error {
	log := observability.LoggerWithTrace(ctx)

	file, err := p.store.GetFile(ctx, item.FileID)
	if err != nil {
		return p.fail(ctx, item.ID, err)
	}

	for i, stage := range stageOrder {
		if !p.enabled.Enabled(stage) {
			continue
		}
		if err := p.store.SetStage(ctx, item.ID, stage, i+1, len(stageOrder)); err != nil {
			return err
		}
		log.Debug().Int64("file_id", file.ID).Str("stage", stage).Msg("pipeline stage starting")

		var stageErr error
		switch stage {
		case domain.StageMetadata:
			stageErr = p.runMetadata(ctx, file)
		case domain.StageSceneDetection:
			stageErr = p.runSceneDetection(ctx, file)
		case domain.StagePosterExtraction:
			stageErr = p.runPosterExtraction(ctx, file)
		case domain.StageVisualEmbedding:
			stageErr = p.runVisualEmbedding(ctx, file)
		case domain.StageTranscription:
			stageErr = p.runTranscription(ctx, file)
		case domain.StageTranscriptEmbedding:
			stageErr = p.runTranscriptEmbedding(ctx, file)
		case domain.StageFaceDetection:
			stageErr = p.runFaceDetection(ctx, file)
		}
		if stageErr != nil {
			log.Warn().Int64("file_id", file.ID).Str("stage", stage).Err(stageErr).Msg("pipeline stage failed")
			if domain.KindOf(stageErr) == domain.KindModelNotReady {
				if err := p.store.ReturnToPending(ctx, item.ID); err != nil {
					return err
				}
				return stageErr
			}
			return p.fail(ctx, item.ID, stageErr)
		}
	}

	if err := p.store.SetIndexed(ctx, file.ID, time.Now()); err != nil {
		return err
	}
	return p.store.Complete(ctx, item.ID)
}

func (p *Pipeline) fail(ctx context.Context, itemID int64, err error) error {
	_ = p.store.Fail(ctx, itemID, err.Error())
	return err
}

// runMetadata re-probes the file on every claimed job, failing the stage
// if the file can no longer be probed. The probe result is discarded: the
// File row keeps the duration/codec/resolution the Scanner wrote.
func (p *Pipeline) runMetadata(ctx context.Context, file domain.File) error {
	_, err := p.prober.Probe(ctx, file.Path)
	return err
}

func (p *Pipeline) runSceneDetection(ctx context.Context, file domain.File) error {
	scenes, err := p.detector.Detect(ctx, file.Path)
	if err != nil {
		return fmt.Errorf("scene detection %s: %w", file.Path, err)
	}
	_, err = p.store.ReplaceScenes(ctx, file.ID, scenes)
	return err
}

func (p *Pipeline) runPosterExtraction(ctx context.Context, file domain.File) error {
	scenes, err := p.store.ListScenesByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	for _, sc := range scenes {
		img, format, err := p.frames.ExtractPoster(ctx, file.Path, sc)
		if err != nil {
			return fmt.Errorf("extract poster scene %d: %w", sc.ID, err)
		}
		key := fmt.Sprintf("scenes/%d/poster.%s", sc.ID, format)
		if _, err := p.posters.Put(ctx, key, bytesReader(img), objectstore.PutOptions{ContentType: "image/" + format}); err != nil {
			return err
		}
		if err := p.store.SetPoster(ctx, sc.ID, key); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runVisualEmbedding(ctx context.Context, file domain.File) error {
	if !p.visual.Ready() {
		if err := p.visual.Load(ctx); err != nil {
			return domain.NewError(domain.KindModelNotReady, "visual encoder not ready", err)
		}
	}
	version := p.versions.Version(domain.ModelClip)

	scenes, err := p.store.ListScenesByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	for _, sc := range scenes {
		if sc.PosterPath == "" {
			continue
		}
		current, err := p.store.HasCurrentVersion(ctx, sc.ID, domain.ModelClip, version)
		if err != nil {
			return err
		}
		if current {
			continue
		}

		r, _, err := p.posters.Get(ctx, sc.PosterPath)
		if err != nil {
			return err
		}
		img, err := readAllClose(r)
		if err != nil {
			return err
		}
		vec, err := p.visual.EmbedImage(ctx, base64Encode(img))
		if err != nil {
			return fmt.Errorf("embed poster scene %d: %w", sc.ID, err)
		}
		if err := p.store.UpsertEmbedding(ctx, domain.Embedding{
			SceneID: sc.ID, ModelName: domain.ModelClip, ModelVersion: version,
			Dimension: p.visual.Dimension(), Vector: vec,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runTranscription(ctx context.Context, file domain.File) error {
	if !p.speech.Ready() {
		if err := p.speech.Load(ctx); err != nil {
			return domain.NewError(domain.KindModelNotReady, "speech model not ready", err)
		}
	}

	scenes, err := p.store.ListScenesByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	for _, sc := range scenes {
		wav, err := p.frames.ExtractAudio(ctx, file.Path, sc)
		if err != nil {
			return fmt.Errorf("extract audio scene %d: %w", sc.ID, err)
		}
		text, err := p.speech.Transcribe(ctx, wav)
		if err != nil {
			return fmt.Errorf("transcribe scene %d: %w", sc.ID, err)
		}
		if err := p.store.SetTranscript(ctx, sc.ID, text); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runTranscriptEmbedding(ctx context.Context, file domain.File) error {
	if !p.sentence.Ready() {
		if err := p.sentence.Load(ctx); err != nil {
			return domain.NewError(domain.KindModelNotReady, "sentence encoder not ready", err)
		}
	}
	version := p.versions.Version(domain.ModelTranscript)

	scenes, err := p.store.ListScenesByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	for _, sc := range scenes {
		if !sc.HasTranscript || sc.Transcript == "" {
			continue
		}
		current, err := p.store.HasCurrentVersion(ctx, sc.ID, domain.ModelTranscript, version)
		if err != nil {
			return err
		}
		if current {
			continue
		}

		vecs, err := p.sentence.EmbedBatch(ctx, []string{sc.Transcript})
		if err != nil {
			return fmt.Errorf("embed transcript scene %d: %w", sc.ID, err)
		}
		if err := p.store.UpsertEmbedding(ctx, domain.Embedding{
			SceneID: sc.ID, ModelName: domain.ModelTranscript, ModelVersion: version,
			Dimension: p.sentence.Dimension(), Vector: vecs[0],
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runFaceDetection(ctx context.Context, file domain.File) error {
	if !p.faces.Ready() {
		if err := p.faces.Load(ctx); err != nil {
			return domain.NewError(domain.KindModelNotReady, "face detector not ready", err)
		}
	}

	scenes, err := p.store.ListScenesByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	for _, sc := range scenes {
		if sc.PosterPath == "" {
			continue
		}
		r, _, err := p.posters.Get(ctx, sc.PosterPath)
		if err != nil {
			return err
		}
		img, err := readAllClose(r)
		if err != nil {
			return err
		}
		detections, err := p.faces.Detect(ctx, img)
		if err != nil {
			return fmt.Errorf("detect faces scene %d: %w", sc.ID, err)
		}
		faces := make([]domain.Face, len(detections))
		for i, d := range detections {
			faces[i] = domain.Face{BBoxX: d.X, BBoxY: d.Y, BBoxW: d.W, BBoxH: d.H, Vector: d.Vector}
		}
		if _, err := p.store.ReplaceFaces(ctx, sc.ID, faces); err != nil {
			return err
		}
	}
	return nil
}
