package assistant

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/opsloom/assistant-engine/internal/cache"
	"github.com/opsloom/assistant-engine/internal/storage"
)

// ContextBundle is the per-tenant knowledge context assembled for a request.
// Conversation history is fetched separately and never cached.
type ContextBundle struct {
	Articles  []*storage.KnowledgeArticle  `json:"articles"`
	Insights  []*storage.KnowledgeInsight  `json:"insights"`
	Workflows []*storage.WorkflowExecution `json:"workflows"`
}

// gatherTenantContext fetches articles, insights and workflow history for the
// tenant. Each fetch failure degrades to an empty section and is reported as
// a warning; nothing here aborts the request.
func (s *Service) gatherTenantContext(ctx context.Context, customerID uuid.UUID) (*ContextBundle, []string) {
	cacheKey := cache.TenantKey(customerID.String(), "assistant", "context")

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var bundle ContextBundle
			if err := json.Unmarshal(data, &bundle); err == nil {
				return &bundle, nil
			}
			// Stale or corrupt entry; fall through to a fresh fetch.
			_ = s.cache.Delete(ctx, cacheKey)
		}
	}

	bundle := &ContextBundle{}
	var warnings []string
	fetchFailed := false

	articles, err := s.articles.ListPublished(ctx, customerID, s.cfg.MaxArticles)
	if err != nil {
		s.logger.Warn().Err(err).Str("customer_id", customerID.String()).Msg("Failed to fetch knowledge articles")
		warnings = append(warnings, "knowledge articles unavailable")
		fetchFailed = true
	} else {
		bundle.Articles = articles
	}

	insights, err := s.insights.ListRecent(ctx, customerID, s.cfg.MaxInsights)
	if err != nil {
		s.logger.Warn().Err(err).Str("customer_id", customerID.String()).Msg("Failed to fetch recent insights")
		warnings = append(warnings, "recent insights unavailable")
		fetchFailed = true
	} else {
		bundle.Insights = insights
	}

	workflows, err := s.workflows.ListRecent(ctx, customerID, s.cfg.MaxWorkflowRuns)
	if err != nil {
		s.logger.Warn().Err(err).Str("customer_id", customerID.String()).Msg("Failed to fetch workflow executions")
		warnings = append(warnings, "workflow history unavailable")
		fetchFailed = true
	} else {
		bundle.Workflows = workflows
	}

	// Only complete bundles are cached, so a degraded fetch is retried on the
	// next request instead of being pinned for the TTL.
	if s.cache != nil && !fetchFailed && s.cfg.ContextTTL > 0 {
		if data, err := json.Marshal(bundle); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.cfg.ContextTTL); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to cache tenant context")
			}
		}
	}

	return bundle, warnings
}
