package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/pipeline"
)

// ChatHandler answers questions about generated documentation.
type ChatHandler struct {
	pipeline *pipeline.Service
	logger   *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(p *pipeline.Service, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{pipeline: p, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.pipeline == nil {
		h.logger.Warn("pipeline not configured, skipping chat routes")
		return
	}
	mux.HandleFunc("POST /api/chat", h.answer)
}

// ChatRequest is the request body for a documentation question.
type ChatRequest struct {
	Question  string `json:"question"`
	Context   string `json:"context,omitempty"`
	Language  string `json:"language,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// ChatResponse is the response body for a documentation question.
type ChatResponse struct {
	Success bool     `json:"success"`
	Answer  string   `json:"answer"`
	Context []string `json:"context,omitempty"`
}

func (h *ChatHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxSourceBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid request body")
		return
	}

	areq := pipeline.AnswerRequest{
		Question: req.Question,
		Context:  req.Context,
		Language: req.Language,
	}
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, pipeline.KindValidation, "invalid project_id")
			return
		}
		areq.ProjectID = &id
	}

	resp, err := h.pipeline.Answer(r.Context(), areq)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Success: true,
		Answer:  resp.Answer,
		Context: resp.Context,
	})
}
