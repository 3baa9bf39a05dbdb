// Package storage provides database models and repositories for the assistant engine.
package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArticleStatus represents the lifecycle state of a knowledge article.
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusArchived  ArticleStatus = "archived"
)

// ArticleType represents the kind of knowledge article.
type ArticleType string

const (
	ArticleTypeHowTo         ArticleType = "how_to"
	ArticleTypeRunbook       ArticleType = "runbook"
	ArticleTypePolicy        ArticleType = "policy"
	ArticleTypeTroubleshoot  ArticleType = "troubleshooting"
	ArticleTypeAutoGenerated ArticleType = "auto_generated"
)

// InsightType represents the classification of a generated insight.
type InsightType string

const (
	InsightTypeProcess       InsightType = "process_improvement"
	InsightTypeKnowledgeGap  InsightType = "knowledge_gap"
	InsightTypeAutomation    InsightType = "automation_opportunity"
	InsightTypeTrend         InsightType = "trend"
)

// InsightStatus represents the review state of an insight.
type InsightStatus string

const (
	InsightStatusNew       InsightStatus = "new"
	InsightStatusReviewed  InsightStatus = "reviewed"
	InsightStatusDismissed InsightStatus = "dismissed"
)

// ExecutionStatus represents the outcome of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// KnowledgeArticle represents a published reference document.
// Articles are created by tenant users or drafted by the assistant when an
// insight is promoted to documentation. Immutable once archived.
type KnowledgeArticle struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	CustomerID           uuid.UUID     `json:"customer_id" db:"customer_id"`
	Title                string        `json:"title" db:"title"`
	Content              string        `json:"content" db:"content"`
	Tags                 []string      `json:"tags" db:"tags"`
	ArticleType          ArticleType   `json:"article_type" db:"article_type"`
	Status               ArticleStatus `json:"status" db:"status"`
	SourceInteractionID  *uuid.UUID    `json:"source_interaction_id,omitempty" db:"source_interaction_id"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

// KnowledgeInsight represents a generated observation awaiting human review.
type KnowledgeInsight struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	CustomerID      uuid.UUID       `json:"customer_id" db:"customer_id"`
	InsightType     InsightType     `json:"insight_type" db:"insight_type"`
	Title           string          `json:"title" db:"title"`
	Description     string          `json:"description" db:"description"`
	ConfidenceScore float64         `json:"confidence_score" db:"confidence_score"`
	Status          InsightStatus   `json:"status" db:"status"`
	DataSources     json.RawMessage `json:"data_sources" db:"data_sources"`
	SuggestedTags   []string        `json:"suggested_tags" db:"suggested_tags"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// WorkflowExecution records one automation run. Read-only to the assistant;
// the automation subsystem owns writes.
type WorkflowExecution struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	WorkflowID   uuid.UUID       `json:"workflow_id" db:"workflow_id"`
	CustomerID   uuid.UUID       `json:"customer_id" db:"customer_id"`
	Status       ExecutionStatus `json:"status" db:"status"`
	StartedAt    time.Time       `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
}

// AIInteraction is the append-only log of one query/response exchange.
// Feedback fields may be set once by the user after the fact; nothing else
// is ever mutated.
type AIInteraction struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	ConversationID   uuid.UUID       `json:"conversation_id" db:"conversation_id"`
	CustomerID       uuid.UUID       `json:"customer_id" db:"customer_id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	Query            string          `json:"query" db:"query"`
	Response         string          `json:"response" db:"response"`
	KnowledgeSources []uuid.UUID     `json:"knowledge_sources" db:"knowledge_sources"`
	ConfidenceScore  float64         `json:"confidence_score" db:"confidence_score"`
	InsightGenerated bool            `json:"insight_generated" db:"insight_generated"`
	Metadata         json.RawMessage `json:"metadata" db:"metadata"`
	FeedbackHelpful  *bool           `json:"feedback_helpful,omitempty" db:"feedback_helpful"`
	FeedbackText     *string         `json:"feedback_text,omitempty" db:"feedback_text"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// LearningMetric holds one row per tenant per calendar day.
type LearningMetric struct {
	ID                uuid.UUID `json:"id" db:"id"`
	CustomerID        uuid.UUID `json:"customer_id" db:"customer_id"`
	MetricDate        string    `json:"metric_date" db:"metric_date"` // YYYY-MM-DD, UTC
	TotalInteractions int       `json:"total_interactions" db:"total_interactions"`
	InsightsGenerated int       `json:"insights_generated" db:"insights_generated"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// MetricDate formats t as the canonical metric day key.
func MetricDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
