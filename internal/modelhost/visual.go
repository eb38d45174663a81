package modelhost

import (
	"context"
	"fmt"
	"sync"

	"fennec/internal/config"
	"fennec/internal/embedding"
)

// VisualEncoder embeds query text and scene poster images into the same
// fixed-dimension L2-normalized vector space, so cosine similarity between
// a text query's encoding and an image's encoding is meaningful. Both
// calls go through one HTTP endpoint, which treats "input" as opaque
// strings; images are sent base64.
type VisualEncoder struct {
	cfg       config.EmbeddingConfig
	dimension int

	mu    sync.Mutex
	ready bool
}

// NewVisualEncoder constructs a lazy-loading visual encoder adapter.
func NewVisualEncoder(cfg config.EmbeddingConfig, dimension int) *VisualEncoder {
	return &VisualEncoder{cfg: cfg, dimension: dimension}
}

func (v *VisualEncoder) Name() string   { return v.cfg.Model }
func (v *VisualEncoder) Dimension() int { return v.dimension }

func (v *VisualEncoder) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Load performs a reachability check against the configured endpoint.
func (v *VisualEncoder) Load(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ready {
		return nil
	}
	if err := embedding.CheckReachability(ctx, v.cfg); err != nil {
		return fmt.Errorf("visual encoder not ready: %w", err)
	}
	v.ready = true
	return nil
}

// EmbedText encodes free-text search queries into the visual vector space.
func (v *VisualEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := embedding.EmbedText(ctx, v.cfg, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedImage encodes a poster frame (already-decoded image bytes) into the
// visual vector space. Images are passed as base64 text in the same batch
// request shape the text path uses, since the embedding endpoint accepts
// opaque string inputs either way.
func (v *VisualEncoder) EmbedImage(ctx context.Context, imageBase64 string) ([]float32, error) {
	out, err := embedding.EmbedText(ctx, v.cfg, []string{"data:image/webp;base64," + imageBase64})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
