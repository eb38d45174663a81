// Package domain holds the entity types shared by the store, scanner,
// pipeline and query surface. None of these types know how they are
// persisted; that is the store package's job.
package domain

import "time"

// File is a video discovered under a watch root.
type File struct {
	ID              int64
	Path            string
	Filename        string
	ParentFolder    string
	DurationSeconds float64
	Width           int
	Height          int
	FrameRate       float64
	Codec           string
	AudioTracks     int
	PixelFormat     string
	ColorSpace      string
	ColorTransfer   string
	ColorPrimaries  string
	SizeBytes       int64
	FSCreatedAt     time.Time
	FSModifiedAt    time.Time
	Tags            []string
	CreatedAt       time.Time
	IndexedAt       *time.Time
	DeletedAt       *time.Time
}

// SoftDeleted reports whether the file has been marked missing by a scan.
func (f File) SoftDeleted() bool { return f.DeletedAt != nil }

// Scene is a soft cut within a File.
type Scene struct {
	ID               int64
	FileID           int64
	SceneIndex       int
	StartSeconds     float64
	EndSeconds       float64
	PosterPath       string
	Transcript       string
	HasTranscript    bool
	VisualClusterID  int64
	VisualClusterOrd float64
}

// Face is a detected face within a Scene's poster frame.
type Face struct {
	ID             int64
	SceneID        int64
	BBoxX          int
	BBoxY          int
	BBoxW          int
	BBoxH          int
	Vector         []float32
	FaceClusterID  int64
	FaceClusterOrd float64
}

// Embedding is a model-tagged vector attached to a scene.
type Embedding struct {
	ID           int64
	SceneID      int64
	ModelName    string
	ModelVersion string
	Dimension    int
	Vector       []float32
}

// QueueStatus is the lifecycle state of a QueueItem.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueComplete   QueueStatus = "complete"
	QueueFailed     QueueStatus = "failed"
)

// QueueItem is a unit of enrichment work for one File.
type QueueItem struct {
	ID              int64
	FileID          int64
	Status          QueueStatus
	QueuedAt        time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastError       string
	RetryCount      int
	CurrentStage    string
	CurrentStageNum int
	TotalStages     int
}

// ScanPhase is the phase of an in-flight scan.
type ScanPhase string

const (
	ScanIdle             ScanPhase = "idle"
	ScanDiscovering      ScanPhase = "discovering"
	ScanProcessingPhase  ScanPhase = "processing"
	ScanCheckingMissing  ScanPhase = "checking_missing"
	ScanComplete         ScanPhase = "complete"
)

// ScanProgress is the ephemeral singleton describing an in-flight scan.
type ScanProgress struct {
	Phase            ScanPhase
	CurrentFolder    string
	DirsScanned      int
	FilesFound       int
	FilesProcessed   int
	FilesNew         int
	FilesUpdated     int
	FilesSkipped     int
	FilesErrored     int
	StartedAt        time.Time
	FinishedAt       time.Time
	LastScanDuration time.Duration
	UnmountedRoots   []string
}

// Stage names, in pipeline order.
const (
	StageMetadata           = "metadata"
	StageSceneDetection     = "scene_detection"
	StagePosterExtraction   = "poster_extraction"
	StageVisualEmbedding    = "visual_embedding"
	StageTranscription      = "transcription"
	StageTranscriptEmbedding = "transcript_embedding"
	StageFaceDetection      = "face_detection"
)

// Model names used as the Embedding.ModelName tag. ModelFace is not an
// embeddings-table tag (face vectors live in the faces table) but reuses
// this naming for its ModelCoverage row in stats.
const (
	ModelClip       = "clip"
	ModelTranscript = "transcript"
	ModelFace       = "face"
)

// UnclusteredID is the dedicated cluster id meaning "noise / singleton".
const UnclusteredID int64 = -1
