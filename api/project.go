package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/pipeline"
	"github.com/scribehq/scribe/internal/project"
)

// Project validation constants.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 2000
)

// ProjectStore is the persistence surface the project endpoints need,
// satisfied by project.Store.
type ProjectStore interface {
	Create(ctx context.Context, p *project.Project) error
	Get(ctx context.Context, id uuid.UUID) (*project.Project, error)
	Update(ctx context.Context, p *project.Project, expectedStatus project.Status) error
	List(ctx context.Context) ([]*project.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ArtifactReader is the read surface for generated artifacts, satisfied by
// artifact.Store.
type ArtifactReader interface {
	Current(ctx context.Context, projectID uuid.UUID, typ artifact.Type, language string) (*artifact.Artifact, error)
	History(ctx context.Context, projectID uuid.UUID, typ artifact.Type) ([]*artifact.Artifact, error)
	ListCurrent(ctx context.Context, projectID uuid.UUID) ([]*artifact.Artifact, error)
}

// ProjectHandler handles project CRUD and lifecycle endpoints.
type ProjectHandler struct {
	store     ProjectStore
	artifacts ArtifactReader
	pipeline  *pipeline.Service
	logger    *slog.Logger
	now       func() time.Time
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(store ProjectStore, artifacts ArtifactReader, p *pipeline.Service, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{store: store, artifacts: artifacts, pipeline: p, logger: logger, now: time.Now}
}

// RegisterRoutes registers project routes on the given mux.
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects", h.create)
	mux.HandleFunc("GET /api/projects", h.list)
	mux.HandleFunc("GET /api/projects/{id}", h.get)
	mux.HandleFunc("DELETE /api/projects/{id}", h.delete)
	mux.HandleFunc("POST /api/projects/{id}/configure", h.configure)
	mux.HandleFunc("POST /api/projects/{id}/run", h.run)
	mux.HandleFunc("POST /api/projects/{id}/pause", h.pause)
	mux.HandleFunc("POST /api/projects/{id}/resume", h.resume)

	if h.artifacts != nil {
		mux.HandleFunc("GET /api/projects/{id}/artifacts", h.listArtifacts)
		mux.HandleFunc("GET /api/projects/{id}/artifacts/{type}", h.currentArtifact)
		mux.HandleFunc("GET /api/projects/{id}/artifacts/{type}/history", h.artifactHistory)
	}
}

// ProjectResponse is the wire form of a project.
type ProjectResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Version        string     `json:"version"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	Language       string     `json:"language,omitempty"`
	SourceKind     string     `json:"source_kind,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	UpdatedBy      string     `json:"updated_by,omitempty"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
}

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		Description:    p.Description,
		Version:        p.Version,
		Kind:           string(p.Kind),
		Status:         string(p.Status),
		Language:       p.Language,
		SourceKind:     p.SourceKind,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		UpdatedBy:      p.UpdatedBy,
		LastAnalyzedAt: p.LastAnalyzedAt,
	}
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Kind        string `json:"kind"`
	CreatedBy   string `json:"created_by"`
}

func (h *ProjectHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Name) > MaxNameLength {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "name is required (max 100 characters)")
		return
	}
	if len(req.Description) > MaxDescriptionLength {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "description too long (max 2000 characters)")
		return
	}

	p, err := project.New(req.Name, req.Version, project.Kind(req.Kind), req.CreatedBy, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err.Error())
		return
	}
	p.Description = req.Description

	if err := h.store.Create(r.Context(), p); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

func (h *ProjectHandler) list(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.List(r.Context())
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": resp,
		"total":    len(resp),
	})
}

func (h *ProjectHandler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

func (h *ProjectHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfigureProjectRequest attaches source material to a project.
type ConfigureProjectRequest struct {
	Language   string `json:"language"`
	SourceKind string `json:"source_kind"`
	SourceText string `json:"source_text"`
	Version    string `json:"version,omitempty"`
	UpdatedBy  string `json:"updated_by"`
}

func (h *ProjectHandler) configure(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	var req ConfigureProjectRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxSourceBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid request body")
		return
	}
	if req.Version != "" {
		if err := project.ValidateVersion(req.Version); err != nil {
			writeError(w, http.StatusBadRequest, pipeline.KindValidation, err.Error())
			return
		}
		p.Version = req.Version
	}
	if req.Language != "" {
		p.Language = req.Language
	}
	if req.SourceKind != "" {
		p.SourceKind = req.SourceKind
	}
	if req.SourceText != "" {
		p.SourceContent = req.SourceText
	}

	prev := p.Status
	if err := p.MarkConfigured(req.UpdatedBy, h.now()); err != nil {
		writeError(w, http.StatusConflict, pipeline.KindValidation, err.Error())
		return
	}
	if err := h.store.Update(r.Context(), p, prev); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// LifecycleRequest identifies who triggered a lifecycle action.
type LifecycleRequest struct {
	UpdatedBy string `json:"updated_by"`
}

func (h *ProjectHandler) run(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, pipeline.KindInternal, "pipeline not configured")
		return
	}

	var req LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid request body")
		return
	}

	if err := h.pipeline.RunPipeline(r.Context(), id, req.UpdatedBy); err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

func (h *ProjectHandler) pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(p *project.Project, by string, now time.Time) error {
		return p.Pause(by, now)
	})
}

func (h *ProjectHandler) resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(p *project.Project, by string, now time.Time) error {
		return p.Resume(by, now)
	})
}

func (h *ProjectHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(*project.Project, string, time.Time) error) {
	p, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	var req LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid request body")
		return
	}

	prev := p.Status
	if err := op(p, req.UpdatedBy, h.now()); err != nil {
		writeError(w, http.StatusConflict, pipeline.KindValidation, err.Error())
		return
	}
	if err := h.store.Update(r.Context(), p, prev); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

func (h *ProjectHandler) listArtifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	artifacts, err := h.artifacts.ListCurrent(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	resp := make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, toArtifactResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifacts": resp,
		"total":     len(resp),
	})
}

func (h *ProjectHandler) currentArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	typ := artifact.Type(r.PathValue("type"))
	if !typ.Valid() {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "unknown artifact type")
		return
	}
	language := r.URL.Query().Get("language")

	a, err := h.artifacts.Current(r.Context(), id, typ, language)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toArtifactResponse(a))
}

func (h *ProjectHandler) artifactHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	typ := artifact.Type(r.PathValue("type"))
	if !typ.Valid() {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "unknown artifact type")
		return
	}

	artifacts, err := h.artifacts.History(r.Context(), id, typ)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	resp := make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, toArtifactResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifacts": resp,
		"total":     len(resp),
	})
}

func (h *ProjectHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProjectHandler) loadProject(w http.ResponseWriter, r *http.Request) (*project.Project, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return nil, false
	}
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, err)
		return nil, false
	}
	return p, true
}
