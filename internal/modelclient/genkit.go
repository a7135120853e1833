package modelclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// GenkitGenerator adapts a Genkit instance to the Generator interface.
// Low temperature and a hard output cap keep generation deterministic enough
// for content-addressed caching to pay off.
type GenkitGenerator struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	maxTokens   int
}

// NewGenkitGenerator creates the production Generator. modelName must be
// provider-qualified ("googleai/gemini-2.5-flash").
func NewGenkitGenerator(g *genkit.Genkit, modelName string, temperature float32, maxTokens int) *GenkitGenerator {
	return &GenkitGenerator{g: g, modelName: modelName, temperature: temperature, maxTokens: maxTokens}
}

func (m *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.modelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(m.temperature),
			MaxOutputTokens: int32(m.maxTokens),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}

// GenkitEmbedder adapts an ai.Embedder to the Embedder interface, pinning
// the output dimensionality so stored vectors stay comparable across calls.
type GenkitEmbedder struct {
	embedder  ai.Embedder
	dimension int32
}

// NewGenkitEmbedder creates the production Embedder.
func NewGenkitEmbedder(embedder ai.Embedder, dimension int) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder, dimension: int32(dimension)}
}

func (e *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := e.dimension
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != int(e.dimension) {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vec), e.dimension)
	}
	return vec, nil
}
