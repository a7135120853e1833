// Package pipeline orchestrates artifact generation: metadata extraction,
// prompt construction, cached model invocation, persistence, embedding, and
// indexing, plus the project lifecycle around a full run.
//
// Components below the orchestrator return typed failures; only this package
// decides when a failure flips a project into the Error state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/embedding"
	"github.com/scribehq/scribe/internal/gencache"
	"github.com/scribehq/scribe/internal/metadata"
	"github.com/scribehq/scribe/internal/project"
	"github.com/scribehq/scribe/internal/prompt"
	"github.com/scribehq/scribe/internal/semantic"
)

// maxConcurrentGenerations bounds the fan-out across artifact types in one
// pipeline run. Same-key requests still collapse in the generation cache.
const maxConcurrentGenerations = 4

// TextGenerator is the model call used for artifact content, satisfied by
// modelclient.Client.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProjectStore is the slice of project persistence the orchestrator needs.
type ProjectStore interface {
	Get(ctx context.Context, id uuid.UUID) (*project.Project, error)
	Update(ctx context.Context, p *project.Project, expectedStatus project.Status) error
}

// ArtifactStore is the slice of artifact persistence the orchestrator needs.
type ArtifactStore interface {
	Save(ctx context.Context, a *artifact.Artifact) error
}

// Service drives the generation pipeline.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	extractor *metadata.Extractor
	prompts   *prompt.Engine
	cache     *gencache.Cache
	model     TextGenerator
	embedder  *embedding.Generator
	index     semantic.Index
	projects  ProjectStore
	artifacts ArtifactStore

	modelName string
	logger    *slog.Logger
	now       func() time.Time
}

// Deps collects the orchestrator's collaborators. Projects and Artifacts may
// be nil for a store-less deployment; persistence and indexing are then
// skipped.
type Deps struct {
	Extractor *metadata.Extractor
	Prompts   *prompt.Engine
	Cache     *gencache.Cache
	Model     TextGenerator
	Embedder  *embedding.Generator
	Index     semantic.Index
	Projects  ProjectStore
	Artifacts ArtifactStore
	ModelName string
	Logger    *slog.Logger
	Now       func() time.Time
}

// New creates the pipeline Service.
func New(d Deps) (*Service, error) {
	switch {
	case d.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case d.Prompts == nil:
		return nil, fmt.Errorf("prompt engine is required")
	case d.Cache == nil:
		return nil, fmt.Errorf("cache is required")
	case d.Model == nil:
		return nil, fmt.Errorf("model is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		extractor: d.Extractor,
		prompts:   d.Prompts,
		cache:     d.Cache,
		model:     d.Model,
		embedder:  d.Embedder,
		index:     d.Index,
		projects:  d.Projects,
		artifacts: d.Artifacts,
		modelName: d.ModelName,
		logger:    d.Logger,
		now:       d.Now,
	}, nil
}

// GenerateRequest describes one artifact generation.
type GenerateRequest struct {
	SourceText   string
	SourceKind   metadata.SourceKind
	ArtifactType artifact.Type
	Language     string
	ExtraParams  map[string]string

	// ProjectID, when set, persists the artifact and refreshes its
	// embeddings in the similarity index.
	ProjectID *uuid.UUID
}

// GenerateResult carries the artifact plus run diagnostics.
type GenerateResult struct {
	Artifact *artifact.Artifact
	CacheHit bool
	Warnings []string
}

// GenerateArtifact runs one generation end to end. Validation failures are
// rejected before any cache write or model call.
func (s *Service) GenerateArtifact(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if !req.ArtifactType.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrValidation, artifact.ErrInvalidType, req.ArtifactType)
	}
	if !s.prompts.Supports(req.ArtifactType, req.Language) {
		return nil, fmt.Errorf("%w: %w: %s/%s", ErrValidation, prompt.ErrUnsupportedCombination, req.ArtifactType, req.Language)
	}

	tree, err := s.extractor.Extract(req.SourceText, req.SourceKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if len(tree.Warnings) > 0 {
		s.logger.Debug("extraction produced warnings",
			"artifact_type", req.ArtifactType,
			"warnings", tree.Warnings)
	}

	promptText, err := s.prompts.Render(req.ArtifactType, req.Language, tree, req.ExtraParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	key := gencache.Key(embedding.Normalize(req.SourceText), string(req.ArtifactType), req.Language)
	content, hit, err := s.cache.GetOrCreate(ctx, key, gencache.Meta{
		ArtifactType: string(req.ArtifactType),
		Language:     req.Language,
		ModelName:    s.modelName,
	}, func(ctx context.Context) (string, error) {
		return s.model.Generate(ctx, promptText)
	})
	if err != nil {
		return nil, err
	}

	a := &artifact.Artifact{
		Type:      req.ArtifactType,
		Language:  req.Language,
		Content:   content,
		CacheKey:  key,
		ModelName: s.modelName,
		CreatedAt: s.now(),
	}

	if req.ProjectID != nil {
		a.ProjectID = *req.ProjectID
		if err := s.persistAndIndex(ctx, a, req.SourceKind); err != nil {
			return nil, err
		}
	}

	s.logger.Info("artifact generated",
		"type", req.ArtifactType,
		"language", req.Language,
		"cache_hit", hit)
	return &GenerateResult{Artifact: a, CacheHit: hit, Warnings: tree.Warnings}, nil
}

// persistAndIndex stores the artifact and swaps its embeddings. The model
// call already succeeded; a crash between these steps loses at most a cache
// regeneration, never consistency.
func (s *Service) persistAndIndex(ctx context.Context, a *artifact.Artifact, kind metadata.SourceKind) error {
	if s.artifacts == nil {
		return nil
	}
	if err := s.artifacts.Save(ctx, a); err != nil {
		return fmt.Errorf("persisting artifact: %w", err)
	}

	if s.embedder == nil || s.index == nil {
		return nil
	}
	vec, err := s.embedder.Generate(ctx, a.Content)
	if err != nil {
		return fmt.Errorf("embedding artifact: %w", err)
	}

	sourceType := semantic.SourceAPI
	if kind == metadata.SourceDatabase {
		sourceType = semantic.SourceDatabase
	}
	doc := semantic.Document{
		ProjectID:  a.ProjectID,
		ArtifactID: &a.ID,
		Content:    a.Content,
		SourceType: sourceType,
		Metadata: map[string]string{
			"artifact_type": string(a.Type),
			"language":      a.Language,
		},
		Vector:    vec,
		CreatedAt: a.CreatedAt,
	}
	if err := s.index.ReplaceForArtifact(ctx, a.ID, []semantic.Document{doc}); err != nil {
		return fmt.Errorf("indexing artifact: %w", err)
	}
	return nil
}

// artifactPlan returns which artifact types a project kind produces.
func artifactPlan(kind project.Kind) []artifact.Type {
	api := []artifact.Type{
		artifact.TypeOpenAPISpec,
		artifact.TypeUsageGuide,
		artifact.TypePostmanCollection,
		artifact.TypeTypeScriptSDK,
		artifact.TypeCSharpSDK,
	}
	db := []artifact.Type{
		artifact.TypeERDiagram,
		artifact.TypeDataDictionary,
		artifact.TypeUsageGuide,
	}
	switch kind {
	case project.KindAPI:
		return api
	case project.KindDatabase:
		return db
	case project.KindHybrid:
		seen := map[artifact.Type]bool{}
		var union []artifact.Type
		for _, t := range append(api, db...) {
			if !seen[t] {
				seen[t] = true
				union = append(union, t)
			}
		}
		return union
	}
	return nil
}

// RunPipeline drives a configured project through analysis and generation,
// fanning out across its artifact types. Any failure flips the project into
// Error; the caller can re-enter Configured and retry.
func (s *Service) RunPipeline(ctx context.Context, projectID uuid.UUID, by string) error {
	if s.projects == nil {
		return fmt.Errorf("project store not configured")
	}

	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}

	prev := p.Status
	if err := p.BeginAnalysis(by, s.now()); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.projects.Update(ctx, p, prev); err != nil {
		return err
	}

	if err := s.runGenerations(ctx, p, by); err != nil {
		s.failProject(ctx, p, by, err)
		return err
	}

	prev = p.Status
	if err := p.MarkDocumentationGenerated(by, s.now()); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.projects.Update(ctx, p, prev); err != nil {
		return err
	}

	s.logger.Info("pipeline completed", "project_id", projectID, "kind", p.Kind)
	return nil
}

// runGenerations performs the analysis step and the artifact fan-out.
func (s *Service) runGenerations(ctx context.Context, p *project.Project, by string) error {
	sourceKind := metadata.SourceKind(p.SourceKind)

	// Analysis gate: the metadata must extract before any generation.
	if _, err := s.extractor.Extract(p.SourceContent, sourceKind); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	prev := p.Status
	if err := p.MarkAnalyzed(by, s.now()); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.projects.Update(ctx, p, prev); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentGenerations)
	for _, typ := range artifactPlan(p.Kind) {
		if !s.prompts.Supports(typ, p.Language) {
			s.logger.Warn("skipping unsupported artifact type for language",
				"type", typ, "language", p.Language)
			continue
		}
		g.Go(func() error {
			_, err := s.GenerateArtifact(gctx, GenerateRequest{
				SourceText:   p.SourceContent,
				SourceKind:   sourceKind,
				ArtifactType: typ,
				Language:     p.Language,
				ProjectID:    &p.ID,
			})
			if err != nil {
				return fmt.Errorf("generating %s: %w", typ, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// failProject flips the project into Error, best-effort.
func (s *Service) failProject(ctx context.Context, p *project.Project, by string, cause error) {
	prev := p.Status
	if err := p.MarkError(by, s.now()); err != nil {
		s.logger.Error("cannot mark project errored", "project_id", p.ID, "error", err)
		return
	}
	if err := s.projects.Update(ctx, p, prev); err != nil {
		s.logger.Error("persisting error state failed", "project_id", p.ID, "error", err)
		return
	}
	s.logger.Warn("project flipped to error", "project_id", p.ID, "cause", cause)
}
