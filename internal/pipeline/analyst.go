package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/postcall-cli/internal/config"
	"github.com/sells-group/postcall-cli/internal/model"
	"github.com/sells-group/postcall-cli/internal/resilience"
	"github.com/sells-group/postcall-cli/pkg/anthropic"
)

const analystSystem = `You are a Senior Sales Data Analyst specializing in B2B sales call analysis. Extract real information from the conversation - don't make up details. Respond with valid JSON only.`

const analystPrompt = `Analyze the following sales call transcript and extract:
- The prospect's full name (empty string if not identifiable)
- The company or organization name (empty string if not identifiable)
- A concise executive summary (2-3 sentences)
- Key pain points and business challenges mentioned
- The prospect's interest level as a sentiment score from 1 (cold) to 10 (highly engaged)
- Concrete next steps or action items agreed on the call
- A professional, personalized follow-up email ready for review

Transcript:
%s

Return a valid JSON object:
{"prospect_name": "<string>", "company_name": "<string>", "summary": "<string>", "pain_points": ["<string>", ...], "next_steps": ["<string>", ...], "sentiment_score": <1-10>, "follow_up_email": "<string>"}`

// AnalystStage extracts SalesInsights from the raw transcript. Its failure is
// fatal to the run: without insights no downstream stage has useful input.
type AnalystStage struct {
	c completer
}

// NewAnalystStage builds the analyst stage with the injected completion client.
func NewAnalystStage(ai anthropic.Client, aiCfg config.AnthropicConfig, pipeCfg config.PipelineConfig) *AnalystStage {
	return &AnalystStage{c: completer{
		ai:        ai,
		model:     aiCfg.Model,
		maxTokens: aiCfg.MaxTokens,
		retry: resilience.RetryConfig{
			MaxAttempts: pipeCfg.MaxRetries,
			OnRetry:     resilience.RetryLogger("anthropic", "analyst"),
		},
		timeout: pipeCfg.Timeout(),
	}}
}

// Execute runs the extraction. On a schema-invalid response it retries exactly
// once with a reinforced format-compliance prompt before failing.
func (s *AnalystStage) Execute(ctx context.Context, transcript string) (*model.SalesInsights, anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf(analystPrompt, transcript)

	var total anthropic.TokenUsage
	var insights model.SalesInsights
	usage, err := s.c.completeJSON(ctx, "SalesInsights", analystSystem, prompt, &insights)
	total.InputTokens += usage.InputTokens
	total.OutputTokens += usage.OutputTokens
	if err == nil {
		return &insights, total, nil
	}
	if !resilience.IsValidation(err) {
		return nil, total, eris.Wrap(err, "analyst: extraction")
	}

	zap.L().Warn("analyst: schema validation failed, retrying with reinforced prompt", zap.Error(err))
	insights = model.SalesInsights{}
	usage, retryErr := s.c.completeJSON(ctx, "SalesInsights", analystSystem, reinforcePrompt(prompt, err), &insights)
	total.InputTokens += usage.InputTokens
	total.OutputTokens += usage.OutputTokens
	if retryErr != nil {
		return nil, total, eris.Wrap(retryErr, "analyst: extraction after reinforced retry")
	}
	return &insights, total, nil
}
