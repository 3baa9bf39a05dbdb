// Package handlers provides HTTP handlers for the assistant API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/opsloom/assistant-engine/internal/assistant"
	"github.com/opsloom/assistant-engine/internal/observability"
	"github.com/opsloom/assistant-engine/internal/storage"
)

// Pipeline answers one assistant request.
type Pipeline interface {
	Answer(ctx context.Context, req assistant.Request) (*assistant.Result, error)
}

// FeedbackStore records user feedback on a logged interaction.
type FeedbackStore interface {
	SetFeedback(ctx context.Context, customerID, interactionID uuid.UUID, helpful *bool, text *string) error
}

// AssistantHandler handles assistant query and feedback requests.
type AssistantHandler struct {
	logger   *observability.Logger
	pipeline Pipeline
	feedback FeedbackStore
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(logger *observability.Logger, pipeline Pipeline, feedback FeedbackStore) *AssistantHandler {
	return &AssistantHandler{
		logger:   logger,
		pipeline: pipeline,
		feedback: feedback,
	}
}

// QueryRequestDTO represents the API request for an assistant query.
type QueryRequestDTO struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId"`
	CustomerID     string `json:"customerId"`
	UserID         string `json:"userId"`
}

// QueryResponseDTO represents the API response.
type QueryResponseDTO struct {
	Response         string              `json:"response"`
	Sources          []SourceDTO         `json:"sources"`
	InsightGenerated bool                `json:"insight_generated"`
	Insight          *InsightSummaryDTO  `json:"insight,omitempty"`
	ConversationID   string              `json:"conversation_id"`
	Warnings         []string            `json:"warnings,omitempty"`
}

// SourceDTO represents a cited knowledge article.
type SourceDTO struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// InsightSummaryDTO represents a classified insight.
type InsightSummaryDTO struct {
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

// FeedbackRequestDTO represents user feedback on an interaction.
type FeedbackRequestDTO struct {
	InteractionID string  `json:"interactionId"`
	CustomerID    string  `json:"customerId"`
	Helpful       *bool   `json:"helpful,omitempty"`
	FeedbackText  *string `json:"feedbackText,omitempty"`
}

// Query handles POST /assistant/query.
func (h *AssistantHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if reqDTO.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	customerID, err := uuid.Parse(reqDTO.CustomerID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "customerId must be a valid UUID")
		return
	}

	userID, err := uuid.Parse(reqDTO.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "userId must be a valid UUID")
		return
	}

	// A fresh conversation may start without an ID; the generated one is
	// echoed back so the client can continue the thread.
	conversationID := uuid.New()
	if reqDTO.ConversationID != "" {
		conversationID, err = uuid.Parse(reqDTO.ConversationID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "conversationId must be a valid UUID")
			return
		}
	}

	result, err := h.pipeline.Answer(ctx, assistant.Request{
		Query:          reqDTO.Query,
		ConversationID: conversationID,
		CustomerID:     customerID,
		UserID:         userID,
	})
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Msg("Assistant request failed")
		h.writeError(w, http.StatusInternalServerError, "assistant request failed")
		return
	}

	h.writeJSON(w, http.StatusOK, toQueryResponseDTO(result))
}

// Feedback handles POST /assistant/feedback.
func (h *AssistantHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO FeedbackRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	interactionID, err := uuid.Parse(reqDTO.InteractionID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "interactionId must be a valid UUID")
		return
	}

	customerID, err := uuid.Parse(reqDTO.CustomerID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "customerId must be a valid UUID")
		return
	}

	if reqDTO.Helpful == nil && reqDTO.FeedbackText == nil {
		h.writeError(w, http.StatusBadRequest, "feedback is empty")
		return
	}

	err = h.feedback.SetFeedback(ctx, customerID, interactionID, reqDTO.Helpful, reqDTO.FeedbackText)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "interaction not found")
		return
	}
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Msg("Failed to record feedback")
		h.writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toQueryResponseDTO(result *assistant.Result) QueryResponseDTO {
	dto := QueryResponseDTO{
		Response:         result.Response,
		Sources:          make([]SourceDTO, 0, len(result.Sources)),
		InsightGenerated: result.InsightGenerated,
		ConversationID:   result.ConversationID.String(),
		Warnings:         result.Warnings,
	}

	for _, src := range result.Sources {
		dto.Sources = append(dto.Sources, SourceDTO{
			ID:    src.ID.String(),
			Title: src.Title,
			Type:  string(src.Type),
		})
	}

	if result.Insight != nil {
		dto.Insight = &InsightSummaryDTO{
			Title:      result.Insight.Title,
			Confidence: result.Insight.Confidence,
		}
	}

	return dto
}

func (h *AssistantHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *AssistantHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
