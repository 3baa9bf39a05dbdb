package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opsloom/assistant-engine/internal/assistant"
	"github.com/opsloom/assistant-engine/internal/cache"
	"github.com/opsloom/assistant-engine/internal/llm"
	"github.com/opsloom/assistant-engine/internal/storage"
)

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var (
		customerID     string
		userID         string
		conversationID string
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask the assistant a question against a tenant's knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			customer, err := uuid.Parse(customerID)
			if err != nil {
				return fmt.Errorf("invalid --customer: %w", err)
			}

			user, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			conversation := uuid.New()
			if conversationID != "" {
				conversation, err = uuid.Parse(conversationID)
				if err != nil {
					return fmt.Errorf("invalid --conversation: %w", err)
				}
			}

			db, err := storage.Open(storage.OpenConfig{
				Driver:          cfg.Database.Driver,
				DSN:             cfg.DatabaseDSN(),
				MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
				MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
			})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			chat, err := llm.NewClient(llm.Config{
				BaseURL: cfg.AI.BaseURL,
				APIKey:  cfg.AI.APIKey,
				Model:   cfg.AI.Model,
				Timeout: cfg.AI.Timeout,
			})
			if err != nil {
				return fmt.Errorf("gateway client: %w", err)
			}

			service := assistant.NewService(logger, chat, storage.NewRepositories(db), cache.NewMemoryClient(cfg.Cache.MaxEntries), assistant.Config{
				MaxArticles:       cfg.Assistant.MaxArticles,
				MaxInsights:       cfg.Assistant.MaxInsights,
				MaxWorkflowRuns:   cfg.Assistant.MaxWorkflowRuns,
				MaxHistoryTurns:   cfg.Assistant.MaxHistoryTurns,
				InsightThreshold:  cfg.Assistant.InsightThreshold,
				DefaultConfidence: cfg.Assistant.DefaultConfidence,
				Temperature:       cfg.AI.Temperature,
				MaxTokens:         cfg.AI.MaxTokens,
				ContextTTL:        cfg.Cache.ContextTTL,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sp := NewSpinner("Thinking...")
			sp.Start()
			result, err := service.Answer(ctx, assistant.Request{
				Query:          query,
				ConversationID: conversation,
				CustomerID:     customer,
				UserID:         user,
			})
			sp.Stop()
			if err != nil {
				return fmt.Errorf("assistant: %w", err)
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"response":          result.Response,
					"sources":           result.Sources,
					"insight_generated": result.InsightGenerated,
					"insight":           result.Insight,
					"conversation_id":   result.ConversationID,
					"warnings":          result.Warnings,
				})
			}

			fmt.Println(result.Response)

			if len(result.Sources) > 0 {
				Section("Sources")
				for _, src := range result.Sources {
					Info("%s (%s)", src.Title, src.Type)
				}
			}

			if result.Insight != nil {
				Success("Insight captured: %s (confidence %.2f)", result.Insight.Title, result.Insight.Confidence)
			}

			for _, warning := range result.Warnings {
				Warning("%s", warning)
			}

			Info("Conversation: %s", result.ConversationID)
			return nil
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "customer (tenant) UUID")
	cmd.Flags().StringVar(&userID, "user", "", "user UUID")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation UUID to continue (default: new conversation)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall request timeout")
	cmd.MarkFlagRequired("customer")
	cmd.MarkFlagRequired("user")

	return cmd
}
