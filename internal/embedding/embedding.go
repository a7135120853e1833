// Package embedding turns text into fixed-dimension vectors through the
// generation cache, so re-embedding unchanged text never hits the model.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scribehq/scribe/internal/gencache"
)

// VectorDimension is the pinned embedding width. The pgvector column type
// and the embedder's OutputDimensionality must both match it.
const VectorDimension = 1536

// DefaultTokenBudget caps how much text one embedding request carries.
const DefaultTokenBudget = 8000

// cacheArtifactType tags embedding entries in the generation cache so they
// never collide with text artifacts for the same input.
const cacheArtifactType = "embedding"

// ErrEmptyText indicates the input normalized to nothing.
var ErrEmptyText = errors.New("empty text for embedding")

// ModelEmbedder is the raw embedding call, satisfied by modelclient.Client.
type ModelEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces embeddings with normalization, word-boundary truncation
// to a token budget, and cache-through storage.
//
// Generator is safe for concurrent use by multiple goroutines.
type Generator struct {
	embedder ModelEmbedder
	cache    *gencache.Cache
	budget   int
	logger   *slog.Logger
}

// NewGenerator creates a Generator. budget <= 0 selects DefaultTokenBudget.
func NewGenerator(embedder ModelEmbedder, cache *gencache.Cache, budget int, logger *slog.Logger) (*Generator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{embedder: embedder, cache: cache, budget: budget, logger: logger}, nil
}

// Generate returns the vector for text. Identical normalized inputs share
// one cache entry and at most one concurrent model call.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	norm := Normalize(text)
	if norm == "" {
		return nil, ErrEmptyText
	}
	norm = TruncateToTokens(norm, g.budget)

	key := gencache.Key(norm, cacheArtifactType, "")
	content, _, err := g.cache.GetOrCreate(ctx, key, gencache.Meta{ArtifactType: cacheArtifactType}, func(ctx context.Context) (string, error) {
		vec, err := g.embedder.Embed(ctx, norm)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(vec)
		if err != nil {
			return "", fmt.Errorf("encoding vector: %w", err)
		}
		return string(encoded), nil
	})
	if err != nil {
		return nil, err
	}

	vec, decodeErr := decodeVector(content)
	if decodeErr == nil {
		return vec, nil
	}

	// A corrupted cached vector is a miss, not a failure: bypass the cache
	// and embed directly.
	g.logger.Warn("corrupted cached embedding, regenerating", "key", key, "error", decodeErr)
	vec, err = g.embedder.Embed(ctx, norm)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func decodeVector(content string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(content), &vec); err != nil {
		return nil, fmt.Errorf("%w: %v", gencache.ErrCorrupted, err)
	}
	if len(vec) != VectorDimension {
		return nil, fmt.Errorf("%w: dimension %d, want %d", gencache.ErrCorrupted, len(vec), VectorDimension)
	}
	return vec, nil
}
