package assistant

import (
	"fmt"
	"math"
	"strings"

	"github.com/opsloom/assistant-engine/internal/storage"
)

// systemInstruction is the fixed role prompt for the primary completion.
// The gathered tenant context is appended below it.
const systemInstruction = `You are the OpsLoom operations assistant for a business-operations platform covering compliance, change management, HR, sales, finance and ticketing.

Answer the user's question using the context provided below. When you draw on a knowledge article, cite it by title. When you notice a pattern worth documenting or an automation opportunity, say so. Be concise and practical.`

// classificationInstruction asks the model to classify the exchange as a
// reusable insight. The response must be a bare JSON object.
const classificationInstruction = `You review one question/answer exchange from an operations assistant and decide whether it contains a reusable insight worth capturing.

Respond with nothing but a JSON object. If the exchange contains a reusable insight:
{"has_insight": true, "insight_type": "process_improvement|knowledge_gap|automation_opportunity|trend", "title": "...", "description": "...", "confidence_score": 0.0-1.0, "should_create_article": true|false, "should_suggest_workflow": true|false, "suggested_tags": ["..."]}

Otherwise:
{"has_insight": false}`

const maxArticleExcerpt = 500

// buildContextBlock renders the gathered tenant context as the free-text
// block appended to the system instruction.
func buildContextBlock(bundle *ContextBundle) string {
	var b strings.Builder

	if len(bundle.Articles) > 0 {
		b.WriteString("KNOWLEDGE ARTICLES:\n")
		for _, a := range bundle.Articles {
			excerpt := a.Content
			if len(excerpt) > maxArticleExcerpt {
				excerpt = excerpt[:maxArticleExcerpt] + "..."
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", a.Title, a.ArticleType, excerpt)
		}
		b.WriteString("\n")
	}

	if len(bundle.Insights) > 0 {
		b.WriteString("RECENT INSIGHTS:\n")
		for _, i := range bundle.Insights {
			fmt.Fprintf(&b, "- %s (%s, confidence %.2f): %s\n",
				i.Title, i.InsightType, i.ConfidenceScore, i.Description)
		}
		b.WriteString("\n")
	}

	if len(bundle.Workflows) > 0 {
		b.WriteString("WORKFLOW ACTIVITY:\n")
		fmt.Fprintf(&b, "- %d recent executions, %d%% success rate\n",
			len(bundle.Workflows), workflowSuccessRate(bundle.Workflows))
		for _, w := range recentFailures(bundle.Workflows, 3) {
			fmt.Fprintf(&b, "- failed run %s: %s\n", w.WorkflowID, *w.ErrorMessage)
		}
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return "No tenant context is available yet."
	}
	return strings.TrimRight(b.String(), "\n")
}

// workflowSuccessRate computes round(completed / total * 100).
func workflowSuccessRate(executions []*storage.WorkflowExecution) int {
	if len(executions) == 0 {
		return 0
	}
	completed := 0
	for _, e := range executions {
		if e.Status == storage.ExecutionStatusCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(executions)) * 100))
}

// recentFailures collects up to limit failed executions that carry an error
// message.
func recentFailures(executions []*storage.WorkflowExecution, limit int) []*storage.WorkflowExecution {
	var failures []*storage.WorkflowExecution
	for _, e := range executions {
		if e.Status == storage.ExecutionStatusFailed && e.ErrorMessage != nil && *e.ErrorMessage != "" {
			failures = append(failures, e)
			if len(failures) >= limit {
				break
			}
		}
	}
	return failures
}
