// Package assistant implements the retrieval-augmented request pipeline behind
// the OpsLoom assistant endpoint.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opsloom/assistant-engine/internal/cache"
	"github.com/opsloom/assistant-engine/internal/llm"
	"github.com/opsloom/assistant-engine/internal/observability"
	"github.com/opsloom/assistant-engine/internal/storage"
)

// ArticleStore is the article access the pipeline needs.
type ArticleStore interface {
	ListPublished(ctx context.Context, customerID uuid.UUID, limit int) ([]*storage.KnowledgeArticle, error)
	Create(ctx context.Context, article *storage.KnowledgeArticle) error
}

// InsightStore is the insight access the pipeline needs.
type InsightStore interface {
	ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*storage.KnowledgeInsight, error)
	Create(ctx context.Context, insight *storage.KnowledgeInsight) error
}

// WorkflowStore reads workflow execution history.
type WorkflowStore interface {
	ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*storage.WorkflowExecution, error)
}

// InteractionStore reads and appends the interaction log.
type InteractionStore interface {
	ListByConversation(ctx context.Context, customerID, conversationID uuid.UUID, limit int) ([]*storage.AIInteraction, error)
	Create(ctx context.Context, interaction *storage.AIInteraction) error
}

// MetricStore bumps daily learning metrics.
type MetricStore interface {
	RecordInteraction(ctx context.Context, customerID uuid.UUID, metricDate string, insightGenerated bool) error
}

// Config holds pipeline tuning parameters, injected at construction.
type Config struct {
	MaxArticles       int
	MaxInsights       int
	MaxWorkflowRuns   int
	MaxHistoryTurns   int
	InsightThreshold  float64
	DefaultConfidence float64
	Temperature       float32
	MaxTokens         int
	ContextTTL        time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxArticles:       5,
		MaxInsights:       5,
		MaxWorkflowRuns:   10,
		MaxHistoryTurns:   10,
		InsightThreshold:  0.7,
		DefaultConfidence: 0.8,
		Temperature:       0.7,
		MaxTokens:         2000,
		ContextTTL:        2 * time.Minute,
	}
}

// Request is one assistant invocation.
type Request struct {
	Query          string
	ConversationID uuid.UUID
	CustomerID     uuid.UUID
	UserID         uuid.UUID
}

// SourceRef identifies a knowledge article the answer drew on.
type SourceRef struct {
	ID    uuid.UUID           `json:"id"`
	Title string              `json:"title"`
	Type  storage.ArticleType `json:"type"`
}

// InsightSummary is the caller-facing view of a classified insight.
type InsightSummary struct {
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

// Result is the pipeline outcome. Warnings surfaces soft failures (degraded
// context, skipped persistence) that did not prevent an answer.
type Result struct {
	Response         string
	Sources          []SourceRef
	InsightGenerated bool
	Insight          *InsightSummary
	ConversationID   uuid.UUID
	Warnings         []string
}

// Service runs the assistant pipeline. Stateless per request; safe for
// concurrent use.
type Service struct {
	logger       *observability.Logger
	chat         llm.ChatClient
	articles     ArticleStore
	insights     InsightStore
	workflows    WorkflowStore
	interactions InteractionStore
	metrics      MetricStore
	cache        cache.Client
	cfg          Config
}

// NewService creates the assistant pipeline. The cache is optional.
func NewService(logger *observability.Logger, chat llm.ChatClient, repos *storage.Repositories, contextCache cache.Client, cfg Config) *Service {
	return &Service{
		logger:       logger,
		chat:         chat,
		articles:     repos.Articles,
		insights:     repos.Insights,
		workflows:    repos.Workflows,
		interactions: repos.Interactions,
		metrics:      repos.Metrics,
		cache:        contextCache,
		cfg:          cfg,
	}
}

// NewServiceWithStores creates the pipeline from individual stores. Used by
// tests to substitute fakes.
func NewServiceWithStores(logger *observability.Logger, chat llm.ChatClient, articles ArticleStore, insights InsightStore, workflows WorkflowStore, interactions InteractionStore, metrics MetricStore, contextCache cache.Client, cfg Config) *Service {
	return &Service{
		logger:       logger,
		chat:         chat,
		articles:     articles,
		insights:     insights,
		workflows:    workflows,
		interactions: interactions,
		metrics:      metrics,
		cache:        contextCache,
		cfg:          cfg,
	}
}

// Answer runs the full pipeline for one request. The two gateway calls are
// the only hard failures; context fetches and persistence degrade to
// warnings so the user still gets their answer.
func (s *Service) Answer(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if req.CustomerID == uuid.Nil {
		return nil, storage.ErrInvalidTenant
	}

	logger := s.logger.WithTenant(req.CustomerID.String())

	bundle, warnings := s.gatherTenantContext(ctx, req.CustomerID)

	history, err := s.interactions.ListByConversation(ctx, req.CustomerID, req.ConversationID, s.cfg.MaxHistoryTurns)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch conversation history")
		warnings = append(warnings, "conversation history unavailable")
		history = nil
	}

	messages := buildMessages(bundle, history, req.Query)
	opts := llm.Options{Temperature: s.cfg.Temperature, MaxTokens: s.cfg.MaxTokens}

	answer, err := s.chat.Complete(ctx, messages, opts)
	if err != nil {
		return nil, fmt.Errorf("primary completion: %w", err)
	}

	classificationRaw, err := s.chat.Complete(ctx, classificationMessages(req.Query, answer), opts)
	if err != nil {
		return nil, fmt.Errorf("insight classification: %w", err)
	}

	classification, err := parseClassification(classificationRaw)
	if err != nil {
		logger.Warn().Err(err).Msg("Insight classification rejected")
		warnings = append(warnings, "insight classification unusable")
		classification = nil
	}
	insightDetected := classification != nil && classification.HasInsight

	confidence := s.cfg.DefaultConfidence
	if insightDetected {
		confidence = classification.ConfidenceScore
	}

	sources := make([]SourceRef, 0, len(bundle.Articles))
	sourceIDs := make([]uuid.UUID, 0, len(bundle.Articles))
	for _, a := range bundle.Articles {
		sources = append(sources, SourceRef{ID: a.ID, Title: a.Title, Type: a.ArticleType})
		sourceIDs = append(sourceIDs, a.ID)
	}

	interaction := &storage.AIInteraction{
		ConversationID:   req.ConversationID,
		CustomerID:       req.CustomerID,
		UserID:           req.UserID,
		Query:            req.Query,
		Response:         answer,
		KnowledgeSources: sourceIDs,
		ConfidenceScore:  confidence,
		InsightGenerated: insightDetected,
		Metadata:         contextMetadata(bundle, history),
	}
	if err := s.interactions.Create(ctx, interaction); err != nil {
		logger.Error().Err(err).Msg("Failed to record interaction")
		warnings = append(warnings, "interaction not recorded")
	}

	if insightDetected && classification.ConfidenceScore > s.cfg.InsightThreshold {
		s.persistInsight(ctx, logger, req, interaction.ID, classification, &warnings)
	}

	if err := s.metrics.RecordInteraction(ctx, req.CustomerID, storage.MetricDate(time.Now()), insightDetected); err != nil {
		logger.Error().Err(err).Msg("Failed to update learning metrics")
		warnings = append(warnings, "learning metrics not updated")
	}

	result := &Result{
		Response:         answer,
		Sources:          sources,
		InsightGenerated: insightDetected,
		ConversationID:   req.ConversationID,
		Warnings:         warnings,
	}
	if insightDetected {
		result.Insight = &InsightSummary{
			Title:      classification.Title,
			Confidence: classification.ConfidenceScore,
		}
	}

	logger.Info().
		Str("conversation_id", req.ConversationID.String()).
		Int("sources", len(sources)).
		Bool("insight_generated", insightDetected).
		Int("warnings", len(warnings)).
		Msg("Assistant request completed")

	return result, nil
}

// persistInsight writes the KnowledgeInsight row and, when requested, a draft
// article referencing the interaction. Both inserts are best-effort.
func (s *Service) persistInsight(ctx context.Context, logger *observability.Logger, req Request, interactionID uuid.UUID, c *InsightClassification, warnings *[]string) {
	dataSources, _ := json.Marshal(map[string]string{
		"interaction_id":  interactionID.String(),
		"conversation_id": req.ConversationID.String(),
	})

	insight := &storage.KnowledgeInsight{
		CustomerID:      req.CustomerID,
		InsightType:     c.StorageType(),
		Title:           c.Title,
		Description:     c.Description,
		ConfidenceScore: c.ConfidenceScore,
		Status:          storage.InsightStatusNew,
		DataSources:     dataSources,
		SuggestedTags:   c.SuggestedTags,
	}
	if err := s.insights.Create(ctx, insight); err != nil {
		logger.Error().Err(err).Msg("Failed to persist insight")
		*warnings = append(*warnings, "insight not persisted")
		return
	}

	// The cached context bundle is now stale; drop it so the next request
	// picks up the new insight.
	if s.cache != nil {
		key := cache.TenantKey(req.CustomerID.String(), "assistant", "context")
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Msg("Failed to invalidate tenant context cache")
		}
	}

	if !c.ShouldCreateArticle {
		return
	}

	article := &storage.KnowledgeArticle{
		CustomerID:          req.CustomerID,
		Title:               c.Title,
		Content:             c.Description,
		Tags:                c.SuggestedTags,
		ArticleType:         storage.ArticleTypeAutoGenerated,
		Status:              storage.ArticleStatusDraft,
		SourceInteractionID: &interactionID,
	}
	if err := s.articles.Create(ctx, article); err != nil {
		logger.Error().Err(err).Msg("Failed to draft knowledge article")
		*warnings = append(*warnings, "draft article not created")
	}
}

// buildMessages assembles the chat sequence: system instruction plus context,
// each prior turn as a user/assistant pair, then the new query.
func buildMessages(bundle *ContextBundle, history []*storage.AIInteraction, query string) []llm.Message {
	messages := make([]llm.Message, 0, 2*len(history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: systemInstruction + "\n\nCONTEXT:\n" + buildContextBlock(bundle),
	})
	for _, turn := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.Query},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Response},
		)
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: query})
}

// classificationMessages builds the second, independent gateway call.
func classificationMessages(query, answer string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: classificationInstruction},
		{Role: llm.RoleUser, Content: fmt.Sprintf("QUESTION:\n%s\n\nANSWER:\n%s", query, answer)},
	}
}

// contextMetadata records how much context fed the answer.
func contextMetadata(bundle *ContextBundle, history []*storage.AIInteraction) json.RawMessage {
	meta, _ := json.Marshal(map[string]int{
		"articles_used":      len(bundle.Articles),
		"insights_available": len(bundle.Insights),
		"workflow_runs":      len(bundle.Workflows),
		"history_turns":      len(history),
	})
	return meta
}
