package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/postcall-cli/internal/config"
	"github.com/sells-group/postcall-cli/internal/model"
	"github.com/sells-group/postcall-cli/internal/resilience"
	"github.com/sells-group/postcall-cli/pkg/anthropic"
)

const qualitySystem = `You are a Sales Quality Assurance Specialist. Be constructive and specific. Respond with valid JSON only.`

const qualityPrompt = `Evaluate the sales rep's performance on the following call.

1. Overall call quality on a 1-5 scale:
   - 5: Exceptional - perfect discovery, clear value prop, strong close
   - 4: Strong - good flow, addressed needs, minor improvements
   - 3: Satisfactory - covered basics, some missed opportunities
   - 2: Needs improvement - weak structure, unclear next steps
   - 1: Poor - unprepared, no clear outcome
2. Did the rep explicitly ask for or schedule the next meeting? (true/false)
3. 2-3 key strengths of the call
4. 2-3 areas for improvement
%s
Transcript:
%s

Return a valid JSON object:
{"quality_score": <1-5>, "asked_for_meeting": <bool>, "strengths": ["<string>", ...], "improvements": ["<string>", ...]}`

// QualityStage assesses call quality from the raw transcript. Unlike the
// analyst, exhausted retries degrade the run instead of aborting it.
type QualityStage struct {
	c completer
}

// NewQualityStage builds the quality stage with the injected completion client.
func NewQualityStage(ai anthropic.Client, aiCfg config.AnthropicConfig, pipeCfg config.PipelineConfig) *QualityStage {
	return &QualityStage{c: completer{
		ai:        ai,
		model:     aiCfg.Model,
		maxTokens: aiCfg.MaxTokens,
		retry: resilience.RetryConfig{
			MaxAttempts: pipeCfg.MaxRetries,
			OnRetry:     resilience.RetryLogger("anthropic", "quality"),
		},
		timeout: pipeCfg.Timeout(),
	}}
}

// Execute assesses the call. Insights, when available, provide extra context
// but are not required. Same single-reinforced-retry contract as the analyst.
func (s *QualityStage) Execute(ctx context.Context, transcript string, insights *model.SalesInsights) (*model.QualityMetrics, anthropic.TokenUsage, error) {
	insightsCtx := ""
	if insights != nil {
		insightsCtx = fmt.Sprintf("\nAnalyst context: prospect %q at %q; pain points: %s.\n",
			insights.ProspectName, insights.CompanyName, strings.Join(insights.PainPoints, ", "))
	}
	prompt := fmt.Sprintf(qualityPrompt, insightsCtx, transcript)

	var total anthropic.TokenUsage
	var metrics model.QualityMetrics
	usage, err := s.c.completeJSON(ctx, "QualityMetrics", qualitySystem, prompt, &metrics)
	total.InputTokens += usage.InputTokens
	total.OutputTokens += usage.OutputTokens
	if err == nil {
		return &metrics, total, nil
	}
	if !resilience.IsValidation(err) {
		return nil, total, eris.Wrap(err, "quality: assessment")
	}

	zap.L().Warn("quality: schema validation failed, retrying with reinforced prompt", zap.Error(err))
	metrics = model.QualityMetrics{}
	usage, retryErr := s.c.completeJSON(ctx, "QualityMetrics", qualitySystem, reinforcePrompt(prompt, err), &metrics)
	total.InputTokens += usage.InputTokens
	total.OutputTokens += usage.OutputTokens
	if retryErr != nil {
		return nil, total, eris.Wrap(retryErr, "quality: assessment after reinforced retry")
	}
	return &metrics, total, nil
}
