package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/embedding"
	"github.com/scribehq/scribe/internal/gencache"
	"github.com/scribehq/scribe/internal/semantic"
)

const (
	// answerThreshold filters retrieval noise; hits at or below it are
	// not worth citing.
	answerThreshold = 0.3

	// answerLimit caps how many snippets feed one answer.
	answerLimit = 5
)

// AnswerRequest is one question against the documentation corpus.
type AnswerRequest struct {
	Question  string
	Context   string // caller-supplied extra context, optional
	Language  string
	ProjectID *uuid.UUID // scopes retrieval, optional
}

// AnswerResponse is the generated answer with the context it was built from.
type AnswerResponse struct {
	Answer  string
	Context []string
}

// Answer retrieves the most similar indexed documentation and generates an
// answer grounded on it. Retrieval is skipped when no index is configured;
// the model then answers from caller-supplied context alone.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrValidation)
	}

	var snippets []string
	if req.Context != "" {
		snippets = append(snippets, req.Context)
	}

	if s.embedder != nil && s.index != nil {
		vec, err := s.embedder.Generate(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("embedding question: %w", err)
		}
		results, err := s.index.Search(ctx, semantic.Query{
			Vector:    vec,
			Threshold: answerThreshold,
			Limit:     answerLimit,
			ProjectID: req.ProjectID,
		})
		if err != nil {
			return nil, fmt.Errorf("searching documentation: %w", err)
		}
		for _, r := range results {
			snippets = append(snippets, r.Content)
		}
	}

	combined := strings.Join(snippets, "\n---\n")
	promptText, err := s.prompts.Render(artifact.TypeChatAnswer, req.Language, nil, map[string]string{
		"question": question,
		"context":  combined,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// Same question over the same context is a cache hit, not a model call.
	key := gencache.Key(embedding.Normalize(question+"\x00"+combined), string(artifact.TypeChatAnswer), req.Language)
	answer, hit, err := s.cache.GetOrCreate(ctx, key, gencache.Meta{
		ArtifactType: string(artifact.TypeChatAnswer),
		Language:     req.Language,
		ModelName:    s.modelName,
	}, func(ctx context.Context) (string, error) {
		return s.model.Generate(ctx, promptText)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("question answered",
		"snippets", len(snippets),
		"cache_hit", hit)
	return &AnswerResponse{Answer: answer, Context: snippets}, nil
}
