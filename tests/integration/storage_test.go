package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsloom/assistant-engine/internal/storage"
)

func TestRepositories_Postgres(t *testing.T) {
	skipUnlessIntegration(t)

	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	db := setup.OpenDB(t)
	defer db.Close()

	ctx := context.Background()
	repos := storage.NewRepositories(db)

	tenantA := uuid.New()
	tenantB := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("articles scoped to tenant and status", func(t *testing.T) {
		published := &storage.KnowledgeArticle{
			ID:          uuid.New(),
			CustomerID:  tenantA,
			Title:       "Resetting a user's MFA",
			Content:     "Verify identity first, then reset from the console.",
			Tags:        []string{"security", "identity"},
			ArticleType: storage.ArticleTypeHowTo,
			Status:      storage.ArticleStatusPublished,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		draft := &storage.KnowledgeArticle{
			ID:          uuid.New(),
			CustomerID:  tenantA,
			Title:       "Draft runbook",
			Content:     "Not yet reviewed.",
			Tags:        []string{},
			ArticleType: storage.ArticleTypeRunbook,
			Status:      storage.ArticleStatusDraft,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		otherTenant := &storage.KnowledgeArticle{
			ID:          uuid.New(),
			CustomerID:  tenantB,
			Title:       "Other tenant article",
			Content:     "Should never leak.",
			Tags:        []string{},
			ArticleType: storage.ArticleTypePolicy,
			Status:      storage.ArticleStatusPublished,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		for _, article := range []*storage.KnowledgeArticle{published, draft, otherTenant} {
			require.NoError(t, repos.Articles.Create(ctx, article))
		}

		listed, err := repos.Articles.ListPublished(ctx, tenantA, 5)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, published.ID, listed[0].ID)
		assert.Equal(t, []string{"security", "identity"}, listed[0].Tags)

		got, err := repos.Articles.GetByID(ctx, tenantA, published.ID)
		require.NoError(t, err)
		assert.Equal(t, published.Title, got.Title)

		// Tenant B must not see tenant A's article by ID either.
		_, err = repos.Articles.GetByID(ctx, tenantB, published.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("insights ordered newest first", func(t *testing.T) {
		var lastID uuid.UUID
		for i := 0; i < 3; i++ {
			insight := &storage.KnowledgeInsight{
				ID:              uuid.New(),
				CustomerID:      tenantA,
				InsightType:     storage.InsightTypeKnowledgeGap,
				Title:           "Gap " + uuid.NewString()[:8],
				Description:     "Observed repeatedly in conversations.",
				ConfidenceScore: 0.8,
				Status:          storage.InsightStatusNew,
				DataSources:     json.RawMessage(`{}`),
				SuggestedTags:   []string{"gap"},
			}
			require.NoError(t, repos.Insights.Create(ctx, insight))
			lastID = insight.ID
			time.Sleep(5 * time.Millisecond) // created_at ordering needs distinct stamps
		}

		listed, err := repos.Insights.ListRecent(ctx, tenantA, 2)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, lastID, listed[0].ID)
		assert.False(t, listed[0].CreatedAt.Before(listed[1].CreatedAt))
	})

	t.Run("interactions round trip with feedback", func(t *testing.T) {
		conversation := uuid.New()
		user := uuid.New()

		first := &storage.AIInteraction{
			ID:               uuid.New(),
			ConversationID:   conversation,
			CustomerID:       tenantA,
			UserID:           user,
			Query:            "How do I reset MFA?",
			Response:         "Use the identity console.",
			KnowledgeSources: []uuid.UUID{uuid.New()},
			ConfidenceScore:  0.8,
			InsightGenerated: false,
			Metadata:         json.RawMessage(`{"articles_used":1}`),
			CreatedAt:        now,
		}
		second := &storage.AIInteraction{
			ID:               uuid.New(),
			ConversationID:   conversation,
			CustomerID:       tenantA,
			UserID:           user,
			Query:            "And for a locked account?",
			Response:         "Unlock it from the same panel.",
			KnowledgeSources: []uuid.UUID{},
			ConfidenceScore:  0.8,
			InsightGenerated: true,
			Metadata:         json.RawMessage(`{}`),
			CreatedAt:        now.Add(time.Minute),
		}
		require.NoError(t, repos.Interactions.Create(ctx, first))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, repos.Interactions.Create(ctx, second))

		history, err := repos.Interactions.ListByConversation(ctx, tenantA, conversation, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, first.ID, history[0].ID, "oldest turn first")
		assert.Equal(t, first.KnowledgeSources, history[0].KnowledgeSources)

		helpful := true
		text := "spot on"
		require.NoError(t, repos.Interactions.SetFeedback(ctx, tenantA, first.ID, &helpful, &text))

		history, err = repos.Interactions.ListByConversation(ctx, tenantA, conversation, 10)
		require.NoError(t, err)
		require.NotNil(t, history[0].FeedbackHelpful)
		assert.True(t, *history[0].FeedbackHelpful)

		// Feedback is tenant-scoped.
		err = repos.Interactions.SetFeedback(ctx, tenantB, first.ID, &helpful, nil)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("workflow runs ordered by start time", func(t *testing.T) {
		workflowID := uuid.New()
		errMsg := "upstream connector timeout"

		insert := func(status storage.ExecutionStatus, started time.Time, msg *string) {
			_, err := db.ExecContext(ctx, `
				INSERT INTO workflow_executions (id, workflow_id, customer_id, status, started_at, error_message)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New(), workflowID, tenantA, status, started, msg,
			)
			require.NoError(t, err)
		}
		insert(storage.ExecutionStatusCompleted, now.Add(-3*time.Hour), nil)
		insert(storage.ExecutionStatusFailed, now.Add(-2*time.Hour), &errMsg)
		insert(storage.ExecutionStatusCompleted, now.Add(-1*time.Hour), nil)

		runs, err := repos.Workflows.ListRecent(ctx, tenantA, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
		assert.Equal(t, storage.ExecutionStatusFailed, runs[1].Status)
		require.NotNil(t, runs[1].ErrorMessage)
		assert.Equal(t, errMsg, *runs[1].ErrorMessage)
	})

	t.Run("metric upsert accumulates per day", func(t *testing.T) {
		tenant := uuid.New()
		day := storage.MetricDate(now)

		require.NoError(t, repos.Metrics.RecordInteraction(ctx, tenant, day, false))
		require.NoError(t, repos.Metrics.RecordInteraction(ctx, tenant, day, true))
		require.NoError(t, repos.Metrics.RecordInteraction(ctx, tenant, day, true))

		metric, err := repos.Metrics.GetByDate(ctx, tenant, day)
		require.NoError(t, err)
		assert.Equal(t, 3, metric.TotalInteractions)
		assert.Equal(t, 2, metric.InsightsGenerated)

		// A different day starts a fresh row.
		nextDay := storage.MetricDate(now.Add(24 * time.Hour))
		require.NoError(t, repos.Metrics.RecordInteraction(ctx, tenant, nextDay, false))

		metric, err = repos.Metrics.GetByDate(ctx, tenant, nextDay)
		require.NoError(t, err)
		assert.Equal(t, 1, metric.TotalInteractions)
		assert.Equal(t, 0, metric.InsightsGenerated)
	})

	t.Run("concurrent metric updates do not lose counts", func(t *testing.T) {
		tenant := uuid.New()
		day := storage.MetricDate(now)

		const writers = 8
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			go func(withInsight bool) {
				errs <- repos.Metrics.RecordInteraction(ctx, tenant, day, withInsight)
			}(i%2 == 0)
		}
		for i := 0; i < writers; i++ {
			require.NoError(t, <-errs)
		}

		metric, err := repos.Metrics.GetByDate(ctx, tenant, day)
		require.NoError(t, err)
		assert.Equal(t, writers, metric.TotalInteractions)
		assert.Equal(t, writers/2, metric.InsightsGenerated)
	})
}
