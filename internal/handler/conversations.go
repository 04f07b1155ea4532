// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatshare/internal/idgen"
	"github.com/capitalize-ai/chatshare/internal/middleware"
	"github.com/capitalize-ai/chatshare/internal/model"
	"github.com/capitalize-ai/chatshare/internal/service"
	"github.com/capitalize-ai/chatshare/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	baseURL string
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler. baseURL prefixes
// the links returned to clients and may be empty.
func NewConversationHandler(svc *service.ConversationService, baseURL string, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log,
	}
}

// Create handles POST /api/conversations
//
// The body is either the transcript itself or a JSON object {"content": "..."}.
// ?mode=raw stores the text without format detection.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := h.service.MaxContentBytes()

	if r.ContentLength > int64(limit) {
		writeError(w, http.StatusRequestEntityTooLarge, "content exceeds maximum size")
		return
	}

	// one byte past the limit is enough for the service to see the overflow
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	content := string(body)
	if isJSONRequest(r) {
		var req model.CreateConversationRequest
		if err := json.Unmarshal(body, &req); err == nil && req.Content != "" {
			content = req.Content
		}
	}

	record, err := h.service.Create(ctx, service.CreateInput{
		Body:           content,
		ClientIdentity: middleware.GetClientIdentity(ctx),
		Raw:            r.URL.Query().Get("mode") == "raw",
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "content cannot be empty")
		return
	case errors.Is(err, service.ErrContentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "content exceeds maximum size")
		return
	case errors.Is(err, idgen.ErrAllocationExhausted):
		h.requestLogger(r).Error("id allocation exhausted", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not allocate conversation id")
		return
	default:
		h.requestLogger(r).Error("failed to create conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	url := h.baseURL + "/api/conversations/" + record.ID
	w.Header().Set("Location", url)
	writeJSON(w, http.StatusCreated, &model.CreateConversationResponse{
		ID:           record.ID,
		URL:          url,
		Format:       record.Content.Parsed.Format,
		MessageCount: record.Content.Parsed.MessageCount,
	})
}

// Get handles GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Raw handles GET /api/conversations/{id}/raw
func (h *ConversationHandler) Raw(w http.ResponseWriter, r *http.Request) {
	record, ok := h.load(w, r)
	if !ok {
		return
	}
	writeText(w, http.StatusOK, record.Content.Raw)
}

func (h *ConversationHandler) requestLogger(r *http.Request) *logger.Logger {
	ctx := r.Context()
	return h.logger.WithContext(middleware.GetCorrelationID(ctx), middleware.GetClientIdentity(ctx))
}

func (h *ConversationHandler) load(w http.ResponseWriter, r *http.Request) (*model.ConversationRecord, bool) {
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	record, err := h.service.Get(r.Context(), conversationID)
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	if err != nil {
		h.requestLogger(r).Error("failed to load conversation", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return nil, false
	}
	return record, true
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
