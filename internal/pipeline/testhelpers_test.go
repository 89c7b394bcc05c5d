package pipeline

import (
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/postcall-cli/internal/config"
	"github.com/sells-group/postcall-cli/pkg/anthropic"
)

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			Key:       "test-key",
			Model:     "claude-haiku-4-5-20251001",
			MaxTokens: 1024,
		},
		Sheets: config.SheetsConfig{
			SheetName: "Sales_CRM_Production",
		},
		Pipeline: config.PipelineConfig{
			MaxRetries:  2,
			TimeoutSecs: 5,
		},
	}
}

// textResponse builds a single-text-block completion response.
func textResponse(text string, inTokens, outTokens int64) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_test",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: inTokens, OutputTokens: outTokens},
	}
}

// systemContains matches a MessageRequest whose system prompt contains s,
// used to route mock responses to the right stage.
func systemContains(s string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.System, s)
	})
}

// promptContains matches a MessageRequest whose user prompt contains s.
func promptContains(s string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, s)
	})
}

const validInsightsJSON = `{
	"prospect_name": "Sarah Chen",
	"company_name": "DataFlow Systems",
	"summary": "Discovery call on ETL reliability pain; prospect wants a demo.",
	"pain_points": ["nightly ETL jobs fail silently", "2TB daily volume overwhelms current tooling"],
	"next_steps": ["demo Tuesday at 2 PM", "send SOC 2 documentation"],
	"sentiment_score": 8,
	"follow_up_email": "Hi Sarah, thank you for the conversation today..."
}`

const validQualityJSON = `{
	"quality_score": 4,
	"asked_for_meeting": true,
	"strengths": ["strong discovery questions", "booked concrete next step"],
	"improvements": ["quantify cost of failures earlier"]
}`

const validRecommendationJSON = `{
	"prioritized_actions": [
		"Send the SOC 2 documentation before the Tuesday demo",
		"Tailor the demo to the 2TB nightly ETL failure scenario",
		"Identify the economic buyer before proposing pricing"
	],
	"strategic_advice": "Anchor the demo on reliability at their data volume."
}`
