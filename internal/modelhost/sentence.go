package modelhost

import (
	"context"
	"fmt"
	"sync"

	"fennec/internal/config"
	"fennec/internal/embedding"
)

// SentenceEncoder embeds transcript text and dialog search queries into a
// fixed-dimension L2-normalized vector space, wrapping the
// internal/embedding HTTP client.
type SentenceEncoder struct {
	cfg       config.EmbeddingConfig
	dimension int

	mu    sync.Mutex
	ready bool
}

// NewSentenceEncoder constructs a lazy-loading sentence encoder adapter.
func NewSentenceEncoder(cfg config.EmbeddingConfig, dimension int) *SentenceEncoder {
	return &SentenceEncoder{cfg: cfg, dimension: dimension}
}

func (e *SentenceEncoder) Name() string   { return e.cfg.Model }
func (e *SentenceEncoder) Dimension() int { return e.dimension }

func (e *SentenceEncoder) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *SentenceEncoder) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}
	if err := embedding.CheckReachability(ctx, e.cfg); err != nil {
		return fmt.Errorf("sentence encoder not ready: %w", err)
	}
	e.ready = true
	return nil
}

// EmbedBatch encodes one vector per input text, in the order given.
func (e *SentenceEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return embedding.EmbedText(ctx, e.cfg, texts)
}
