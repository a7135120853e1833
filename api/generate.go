package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/metadata"
	"github.com/scribehq/scribe/internal/pipeline"
)

// MaxSourceBytes bounds request bodies carrying source text.
const MaxSourceBytes = 10 << 20 // 10 MB

// GenerateHandler handles one-shot artifact generation.
type GenerateHandler struct {
	pipeline *pipeline.Service
	logger   *slog.Logger
}

// NewGenerateHandler creates a new generation handler.
func NewGenerateHandler(p *pipeline.Service, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{pipeline: p, logger: logger}
}

// RegisterRoutes registers generation routes on the given mux.
func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.pipeline == nil {
		h.logger.Warn("pipeline not configured, skipping generation routes")
		return
	}
	mux.HandleFunc("POST /api/generate/{type}", h.generate)
}

// GenerateRequest is the request body for one-shot generation.
type GenerateRequest struct {
	SourceText  string            `json:"source_text"`
	SourceKind  string            `json:"source_kind"` // "api" or "database"
	Language    string            `json:"language"`
	ProjectID   string            `json:"project_id,omitempty"`
	ExtraParams map[string]string `json:"extra_params,omitempty"`
}

// ArtifactResponse is the wire form of a generated artifact.
type ArtifactResponse struct {
	ID        string    `json:"id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Type      string    `json:"type"`
	Language  string    `json:"language"`
	Content   string    `json:"content"`
	ModelName string    `json:"model_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateResponse is the response body for one-shot generation.
type GenerateResponse struct {
	Success  bool             `json:"success"`
	Artifact ArtifactResponse `json:"artifact"`
	CacheHit bool             `json:"cache_hit"`
	Warnings []string         `json:"warnings,omitempty"`
}

func (h *GenerateHandler) generate(w http.ResponseWriter, r *http.Request) {
	typ := artifact.Type(r.PathValue("type"))

	var req GenerateRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxSourceBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid request body")
		return
	}

	preq := pipeline.GenerateRequest{
		SourceText:   req.SourceText,
		SourceKind:   metadata.SourceKind(req.SourceKind),
		ArtifactType: typ,
		Language:     req.Language,
		ExtraParams:  req.ExtraParams,
	}
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid project_id")
			return
		}
		preq.ProjectID = &id
	}

	res, err := h.pipeline.GenerateArtifact(r.Context(), preq)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Success:  true,
		Artifact: toArtifactResponse(res.Artifact),
		CacheHit: res.CacheHit,
		Warnings: res.Warnings,
	})
}

func toArtifactResponse(a *artifact.Artifact) ArtifactResponse {
	resp := ArtifactResponse{
		Type:      string(a.Type),
		Language:  a.Language,
		Content:   a.Content,
		ModelName: a.ModelName,
		CreatedAt: a.CreatedAt,
	}
	if a.ID != uuid.Nil {
		resp.ID = a.ID.String()
	}
	if a.ProjectID != uuid.Nil {
		resp.ProjectID = a.ProjectID.String()
	}
	return resp
}
