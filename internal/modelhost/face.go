package modelhost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"fennec/internal/config"
)

// FaceDetection is one detected face: its bounding box in source-image
// pixel coordinates and its L2-normalized embedding vector.
type FaceDetection struct {
	X, Y, W, H int
	Vector     []float32
}

// FaceDetector detects faces in a poster image and encodes each one.
// Unlike the visual/sentence encoders it does not reuse the shared
// embeddings contract because its response shape is a list of regions,
// not one vector per input; it speaks a small sibling JSON contract over
// the same kind of HTTP endpoint.
type FaceDetector struct {
	cfg       config.EmbeddingConfig
	dimension int
	client    *http.Client

	mu    sync.Mutex
	ready bool
}

// NewFaceDetector constructs a lazy-loading face detector+encoder adapter.
func NewFaceDetector(cfg config.EmbeddingConfig, dimension int) *FaceDetector {
	return &FaceDetector{cfg: cfg, dimension: dimension, client: &http.Client{Timeout: 60 * time.Second}}
}

func (f *FaceDetector) Name() string   { return f.cfg.Model }
func (f *FaceDetector) Dimension() int { return f.dimension }

func (f *FaceDetector) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *FaceDetector) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ready {
		return nil
	}
	if _, err := f.detect(ctx, tinyPNGProbe); err != nil {
		return fmt.Errorf("face detector not ready: %w", err)
	}
	f.ready = true
	return nil
}

// Detect runs detection+encoding over one poster image.
func (f *FaceDetector) Detect(ctx context.Context, imagePNG []byte) ([]FaceDetection, error) {
	return f.detect(ctx, imagePNG)
}

type faceDetectReq struct {
	Model string `json:"model"`
	Image []byte `json:"image"`
}

type faceDetectResp struct {
	Faces []struct {
		BBox      [4]int    `json:"bbox"`
		Embedding []float32 `json:"embedding"`
	} `json:"faces"`
}

func (f *FaceDetector) detect(ctx context.Context, image []byte) ([]FaceDetection, error) {
	timeout := time.Duration(f.cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, _ := json.Marshal(faceDetectReq{Model: f.cfg.Model, Image: image})
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, f.cfg.BaseURL+f.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if f.cfg.APIHeader == "Authorization" && f.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	} else if f.cfg.APIHeader != "" {
		req.Header.Set(f.cfg.APIHeader, f.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face detect error: %s: %s", resp.Status, string(b))
	}

	var fr faceDetectResp
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decode face detect response: %w", err)
	}

	out := make([]FaceDetection, len(fr.Faces))
	for i, face := range fr.Faces {
		out[i] = FaceDetection{
			X: face.BBox[0], Y: face.BBox[1], W: face.BBox[2], H: face.BBox[3],
			Vector: face.Embedding,
		}
	}
	return out, nil
}

// tinyPNGProbe is the 8-byte PNG signature alone (no image data), used only
// to verify the face detector endpoint is reachable during Load.
var tinyPNGProbe = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
}
