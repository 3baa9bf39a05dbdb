package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opsloom/assistant-engine/internal/storage"
)

var sampleArticles = []struct {
	title       string
	content     string
	articleType storage.ArticleType
	tags        []string
}{
	{
		title:       "Onboarding a new employee",
		content:     "Create the account in the directory, assign the starter role bundle, and schedule the orientation workflow. Hardware requests go through the equipment form.",
		articleType: storage.ArticleTypeHowTo,
		tags:        []string{"onboarding", "hr"},
	},
	{
		title:       "Resetting a user's MFA",
		content:     "Verify the user's identity over a second channel before resetting. Use the identity console's MFA panel; the reset takes effect immediately.",
		articleType: storage.ArticleTypeHowTo,
		tags:        []string{"security", "identity"},
	},
	{
		title:       "Invoice approval policy",
		content:     "Invoices under $500 auto-approve. Between $500 and $5000 the department lead approves. Above $5000 requires finance sign-off.",
		articleType: storage.ArticleTypePolicy,
		tags:        []string{"finance", "approvals"},
	},
	{
		title:       "Nightly sync job failures",
		content:     "Check the integration dashboard first. Most failures are expired credentials on the upstream connector; rotate them and re-run the job.",
		articleType: storage.ArticleTypeTroubleshoot,
		tags:        []string{"integrations", "sync"},
	},
	{
		title:       "Quarterly access review runbook",
		content:     "Export the entitlement report, distribute per-team slices to managers, and chase sign-offs within ten business days. Revoke anything unconfirmed.",
		articleType: storage.ArticleTypeRunbook,
		tags:        []string{"security", "compliance"},
	},
}

// newSeedCmd creates the seed subcommand.
func newSeedCmd() *cobra.Command {
	var (
		customerID string
		workflows  int
		failRate   float64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with sample tenant data for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			customer := uuid.New()
			if customerID != "" {
				var err error
				customer, err = uuid.Parse(customerID)
				if err != nil {
					return fmt.Errorf("invalid --customer: %w", err)
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

			ctx := cmd.Context()
			if err := storage.ApplySchema(ctx, db); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}

			total := int64(len(sampleArticles) + workflows + 2)
			bar := NewProgressBar(total, "seeding")

			articles := storage.NewArticleRepository(db)
			now := time.Now().UTC()
			for i, sample := range sampleArticles {
				article := &storage.KnowledgeArticle{
					ID:          uuid.New(),
					CustomerID:  customer,
					Title:       sample.title,
					Content:     sample.content,
					Tags:        sample.tags,
					ArticleType: sample.articleType,
					Status:      storage.ArticleStatusPublished,
					CreatedAt:   now.Add(-time.Duration(i) * 24 * time.Hour),
					UpdatedAt:   now,
				}
				if err := articles.Create(ctx, article); err != nil {
					return fmt.Errorf("seed article %q: %w", sample.title, err)
				}
				bar.Add(1)
			}

			insights := storage.NewInsightRepository(db)
			seedInsights := []*storage.KnowledgeInsight{
				{
					ID:              uuid.New(),
					CustomerID:      customer,
					InsightType:     storage.InsightTypeKnowledgeGap,
					Title:           "No article covers contractor offboarding",
					Description:     "Three conversations this week asked about revoking contractor access; nothing published addresses it.",
					ConfidenceScore: 0.85,
					Status:          storage.InsightStatusNew,
					DataSources:     json.RawMessage(`{}`),
					SuggestedTags:   []string{"offboarding", "contractors"},
					CreatedAt:       now.Add(-48 * time.Hour),
				},
				{
					ID:              uuid.New(),
					CustomerID:      customer,
					InsightType:     storage.InsightTypeAutomation,
					Title:           "Invoice approvals are done manually",
					Description:     "Users repeatedly ask how to chase invoice approvals; a reminder workflow would remove the manual follow-up.",
					ConfidenceScore: 0.78,
					Status:          storage.InsightStatusNew,
					DataSources:     json.RawMessage(`{}`),
					SuggestedTags:   []string{"finance", "automation"},
					CreatedAt:       now.Add(-24 * time.Hour),
				},
			}
			for _, insight := range seedInsights {
				if err := insights.Create(ctx, insight); err != nil {
					return fmt.Errorf("seed insight %q: %w", insight.Title, err)
				}
				bar.Add(1)
			}

			workflowID := uuid.New()
			for i := 0; i < workflows; i++ {
				if err := seedWorkflowRun(ctx, db, customer, workflowID, i, failRate, now); err != nil {
					return fmt.Errorf("seed workflow run: %w", err)
				}
				bar.Add(1)
			}
			bar.Finish()

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"customer_id": customer,
					"articles":    len(sampleArticles),
					"insights":    len(seedInsights),
					"workflows":   workflows,
				})
			}

			Success("Seeded %d articles, %d insights, %d workflow runs", len(sampleArticles), len(seedInsights), workflows)
			Info("Customer: %s", customer)
			return nil
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "customer (tenant) UUID to seed (default: generate one)")
	cmd.Flags().IntVar(&workflows, "workflows", 8, "number of workflow execution rows to create")
	cmd.Flags().Float64Var(&failRate, "fail-rate", 0.25, "fraction of workflow runs seeded as failures")

	return cmd
}

// seedWorkflowRun inserts one workflow execution row. The assistant treats
// workflow_executions as read-only, so the seeder writes it directly.
func seedWorkflowRun(ctx context.Context, db *sql.DB, customer, workflowID uuid.UUID, i int, failRate float64, now time.Time) error {
	started := now.Add(-time.Duration(i+1) * 6 * time.Hour)
	completed := started.Add(3 * time.Minute)

	status := storage.ExecutionStatusCompleted
	var errMsg *string
	if failRate > 0 && i%max(int(1/failRate), 1) == 0 {
		status = storage.ExecutionStatusFailed
		msg := "upstream connector timeout"
		errMsg = &msg
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, workflow_id, customer_id, status, started_at, completed_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), workflowID, customer, status, started, completed, errMsg,
	)
	return err
}
