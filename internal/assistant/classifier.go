package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsloom/assistant-engine/internal/storage"
)

// InsightClassification is the structured verdict the model returns about one
// question/answer exchange.
type InsightClassification struct {
	HasInsight            bool     `json:"has_insight"`
	InsightType           string   `json:"insight_type"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	ConfidenceScore       float64  `json:"confidence_score"`
	ShouldCreateArticle   bool     `json:"should_create_article"`
	ShouldSuggestWorkflow bool     `json:"should_suggest_workflow"`
	SuggestedTags         []string `json:"suggested_tags"`
}

var validInsightTypes = map[string]storage.InsightType{
	"process_improvement":    storage.InsightTypeProcess,
	"knowledge_gap":          storage.InsightTypeKnowledgeGap,
	"automation_opportunity": storage.InsightTypeAutomation,
	"trend":                  storage.InsightTypeTrend,
}

// parseClassification extracts and validates the classification object from
// the model's raw response text. The model is asked to emit bare JSON, but
// narrative framing around the object is tolerated: the first balanced {...}
// block is taken. Any schema violation rejects the whole classification; the
// caller treats that as "no insight" rather than failing the request.
func parseClassification(raw string) (*InsightClassification, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in classification response")
	}

	var c InsightClassification
	if err := json.Unmarshal([]byte(obj), &c); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}

	if !c.HasInsight {
		return &c, nil
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid classification: %w", err)
	}
	return &c, nil
}

func (c *InsightClassification) validate() error {
	if _, ok := validInsightTypes[c.InsightType]; !ok {
		return fmt.Errorf("unknown insight_type %q", c.InsightType)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title is empty")
	}
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("description is empty")
	}
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score %v out of range", c.ConfidenceScore)
	}
	return nil
}

// StorageType maps the classified type onto the storage enum. Only valid for
// classifications that passed validate.
func (c *InsightClassification) StorageType() storage.InsightType {
	return validInsightTypes[c.InsightType]
}

// extractJSONObject returns the first balanced brace-delimited block in s.
// Braces inside JSON strings are accounted for, so narrative text containing
// an unbalanced "{" before the object does not derail extraction of it.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
