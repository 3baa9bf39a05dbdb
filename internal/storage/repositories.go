package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidTenant = errors.New("invalid tenant")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Tags and ID lists are stored as JSON text so the same SQL works on both
// Postgres and SQLite.
func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeStrings(s string) []string {
	var v []string
	if s == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

func encodeUUIDs(v []uuid.UUID) string {
	if v == nil {
		v = []uuid.UUID{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeUUIDs(s string) []uuid.UUID {
	var v []uuid.UUID
	if s == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

// ArticleRepository handles knowledge article operations.
type ArticleRepository struct {
	db DB
}

// NewArticleRepository creates a new article repository.
func NewArticleRepository(db DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Create inserts a new knowledge article.
func (r *ArticleRepository) Create(ctx context.Context, article *KnowledgeArticle) error {
	if article.CustomerID == uuid.Nil {
		return ErrInvalidTenant
	}
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}
	article.CreatedAt = time.Now()
	article.UpdatedAt = time.Now()

	query := `
		INSERT INTO knowledge_articles (id, customer_id, title, content, tags,
			article_type, status, source_interaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		article.ID, article.CustomerID, article.Title, article.Content,
		encodeStrings(article.Tags), article.ArticleType, article.Status,
		article.SourceInteractionID, article.CreatedAt, article.UpdatedAt,
	)
	return err
}

// ListPublished retrieves up to limit published articles for a tenant.
// No explicit ordering is requested; callers get store order.
func (r *ArticleRepository) ListPublished(ctx context.Context, customerID uuid.UUID, limit int) ([]*KnowledgeArticle, error) {
	query := `
		SELECT id, customer_id, title, content, tags, article_type, status,
			source_interaction_id, created_at, updated_at
		FROM knowledge_articles
		WHERE customer_id = $1 AND status = 'published'
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*KnowledgeArticle
	for rows.Next() {
		article := &KnowledgeArticle{}
		var tags string
		if err := rows.Scan(
			&article.ID, &article.CustomerID, &article.Title, &article.Content,
			&tags, &article.ArticleType, &article.Status,
			&article.SourceInteractionID, &article.CreatedAt, &article.UpdatedAt,
		); err != nil {
			return nil, err
		}
		article.Tags = decodeStrings(tags)
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// GetByID retrieves an article by ID with tenant scoping.
func (r *ArticleRepository) GetByID(ctx context.Context, customerID, articleID uuid.UUID) (*KnowledgeArticle, error) {
	query := `
		SELECT id, customer_id, title, content, tags, article_type, status,
			source_interaction_id, created_at, updated_at
		FROM knowledge_articles
		WHERE id = $1 AND customer_id = $2
	`
	article := &KnowledgeArticle{}
	var tags string
	err := r.db.QueryRowContext(ctx, query, articleID, customerID).Scan(
		&article.ID, &article.CustomerID, &article.Title, &article.Content,
		&tags, &article.ArticleType, &article.Status,
		&article.SourceInteractionID, &article.CreatedAt, &article.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	article.Tags = decodeStrings(tags)
	return article, err
}

// InsightRepository handles knowledge insight operations.
type InsightRepository struct {
	db DB
}

// NewInsightRepository creates a new insight repository.
func NewInsightRepository(db DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Create inserts a new insight.
func (r *InsightRepository) Create(ctx context.Context, insight *KnowledgeInsight) error {
	if insight.CustomerID == uuid.Nil {
		return ErrInvalidTenant
	}
	if insight.ID == uuid.Nil {
		insight.ID = uuid.New()
	}
	if insight.Status == "" {
		insight.Status = InsightStatusNew
	}
	insight.CreatedAt = time.Now()

	dataSources := insight.DataSources
	if dataSources == nil {
		dataSources = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO knowledge_insights (id, customer_id, insight_type, title,
			description, confidence_score, status, data_sources, suggested_tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		insight.ID, insight.CustomerID, insight.InsightType, insight.Title,
		insight.Description, insight.ConfidenceScore, insight.Status,
		string(dataSources), encodeStrings(insight.SuggestedTags), insight.CreatedAt,
	)
	return err
}

// ListRecent retrieves up to limit insights for a tenant, newest first.
func (r *InsightRepository) ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*KnowledgeInsight, error) {
	query := `
		SELECT id, customer_id, insight_type, title, description,
			confidence_score, status, data_sources, suggested_tags, created_at
		FROM knowledge_insights
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []*KnowledgeInsight
	for rows.Next() {
		insight := &KnowledgeInsight{}
		var dataSources, tags string
		if err := rows.Scan(
			&insight.ID, &insight.CustomerID, &insight.InsightType, &insight.Title,
			&insight.Description, &insight.ConfidenceScore, &insight.Status,
			&dataSources, &tags, &insight.CreatedAt,
		); err != nil {
			return nil, err
		}
		insight.DataSources = json.RawMessage(dataSources)
		insight.SuggestedTags = decodeStrings(tags)
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}

// WorkflowRepository reads workflow execution history. The automation
// subsystem owns writes to this table.
type WorkflowRepository struct {
	db DB
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// ListRecent retrieves up to limit executions for a tenant, newest start first.
func (r *WorkflowRepository) ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*WorkflowExecution, error) {
	query := `
		SELECT id, workflow_id, customer_id, status, started_at, completed_at, error_message
		FROM workflow_executions
		WHERE customer_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*WorkflowExecution
	for rows.Next() {
		exec := &WorkflowExecution{}
		if err := rows.Scan(
			&exec.ID, &exec.WorkflowID, &exec.CustomerID, &exec.Status,
			&exec.StartedAt, &exec.CompletedAt, &exec.ErrorMessage,
		); err != nil {
			return nil, err
		}
		executions = append(executions, exec)
	}
	return executions, rows.Err()
}

// InteractionRepository handles the append-only interaction log.
type InteractionRepository struct {
	db DB
}

// NewInteractionRepository creates a new interaction repository.
func NewInteractionRepository(db DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Create inserts an interaction record.
func (r *InteractionRepository) Create(ctx context.Context, interaction *AIInteraction) error {
	if interaction.CustomerID == uuid.Nil {
		return ErrInvalidTenant
	}
	if interaction.ID == uuid.Nil {
		interaction.ID = uuid.New()
	}
	interaction.CreatedAt = time.Now()

	metadata := interaction.Metadata
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO ai_interactions (id, conversation_id, customer_id, user_id,
			query, response, knowledge_sources, confidence_score, insight_generated,
			metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		interaction.ID, interaction.ConversationID, interaction.CustomerID,
		interaction.UserID, interaction.Query, interaction.Response,
		encodeUUIDs(interaction.KnowledgeSources), interaction.ConfidenceScore,
		interaction.InsightGenerated, string(metadata), interaction.CreatedAt,
	)
	return err
}

// ListByConversation retrieves up to limit turns of a conversation, oldest first.
func (r *InteractionRepository) ListByConversation(ctx context.Context, customerID, conversationID uuid.UUID, limit int) ([]*AIInteraction, error) {
	query := `
		SELECT id, conversation_id, customer_id, user_id, query, response,
			knowledge_sources, confidence_score, insight_generated, metadata,
			feedback_helpful, feedback_text, created_at
		FROM ai_interactions
		WHERE customer_id = $1 AND conversation_id = $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, customerID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interactions []*AIInteraction
	for rows.Next() {
		interaction := &AIInteraction{}
		var sources, metadata string
		if err := rows.Scan(
			&interaction.ID, &interaction.ConversationID, &interaction.CustomerID,
			&interaction.UserID, &interaction.Query, &interaction.Response,
			&sources, &interaction.ConfidenceScore, &interaction.InsightGenerated,
			&metadata, &interaction.FeedbackHelpful, &interaction.FeedbackText,
			&interaction.CreatedAt,
		); err != nil {
			return nil, err
		}
		interaction.KnowledgeSources = decodeUUIDs(sources)
		interaction.Metadata = json.RawMessage(metadata)
		interactions = append(interactions, interaction)
	}
	return interactions, rows.Err()
}

// SetFeedback records user feedback on an interaction. The only mutation the
// log permits.
func (r *InteractionRepository) SetFeedback(ctx context.Context, customerID, interactionID uuid.UUID, helpful *bool, text *string) error {
	query := `
		UPDATE ai_interactions SET feedback_helpful = $1, feedback_text = $2
		WHERE id = $3 AND customer_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, helpful, text, interactionID, customerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MetricRepository maintains per-tenant daily learning metrics.
type MetricRepository struct {
	db DB
}

// NewMetricRepository creates a new metric repository.
func NewMetricRepository(db DB) *MetricRepository {
	return &MetricRepository{db: db}
}

// RecordInteraction bumps today's counters for a tenant in a single atomic
// statement, so concurrent requests cannot lose increments.
func (r *MetricRepository) RecordInteraction(ctx context.Context, customerID uuid.UUID, metricDate string, insightGenerated bool) error {
	if customerID == uuid.Nil {
		return ErrInvalidTenant
	}

	insightCount := 0
	if insightGenerated {
		insightCount = 1
	}
	now := time.Now()

	query := `
		INSERT INTO learning_metrics (id, customer_id, metric_date,
			total_interactions, insights_generated, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		ON CONFLICT (customer_id, metric_date) DO UPDATE SET
			total_interactions = learning_metrics.total_interactions + 1,
			insights_generated = learning_metrics.insights_generated + excluded.insights_generated,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New(), customerID, metricDate, insightCount, now, now,
	)
	return err
}

// GetByDate retrieves the metric row for a tenant and day.
func (r *MetricRepository) GetByDate(ctx context.Context, customerID uuid.UUID, metricDate string) (*LearningMetric, error) {
	query := `
		SELECT id, customer_id, metric_date, total_interactions,
			insights_generated, created_at, updated_at
		FROM learning_metrics
		WHERE customer_id = $1 AND metric_date = $2
	`
	metric := &LearningMetric{}
	err := r.db.QueryRowContext(ctx, query, customerID, metricDate).Scan(
		&metric.ID, &metric.CustomerID, &metric.MetricDate,
		&metric.TotalInteractions, &metric.InsightsGenerated,
		&metric.CreatedAt, &metric.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return metric, err
}

// Repositories bundles all repositories together.
type Repositories struct {
	Articles     *ArticleRepository
	Insights     *InsightRepository
	Workflows    *WorkflowRepository
	Interactions *InteractionRepository
	Metrics      *MetricRepository
}

// NewRepositories creates all repositories with the given database connection.
func NewRepositories(db DB) *Repositories {
	return &Repositories{
		Articles:     NewArticleRepository(db),
		Insights:     NewInsightRepository(db),
		Workflows:    NewWorkflowRepository(db),
		Interactions: NewInteractionRepository(db),
		Metrics:      NewMetricRepository(db),
	}
}
