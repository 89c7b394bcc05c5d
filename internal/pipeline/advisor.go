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

const advisorSystem = `You are a Strategic Sales Advisor with 15+ years of B2B sales experience. Be specific, actionable, and tied to the actual call data. Respond with valid JSON only.`

const advisorPrompt = `Review the sales call analysis below and provide exactly 3 next best actions for the sales rep, prioritized by impact, plus a short strategic narrative.

Focus on immediate follow-up tactics, relationship building, deal progression, and objection handling where relevant.

%s

Return a valid JSON object:
{"prioritized_actions": ["<highest impact action>", "<second action>", "<third action>"], "strategic_advice": "<string>"}`

// AdvisorStage produces the terminal Recommendation from everything upstream
// stages delivered. It never runs without validated SalesInsights; the
// orchestrator guarantees that precondition.
type AdvisorStage struct {
	c completer
}

// NewAdvisorStage builds the advisor stage with the injected completion client.
func NewAdvisorStage(ai anthropic.Client, aiCfg config.AnthropicConfig, pipeCfg config.PipelineConfig) *AdvisorStage {
	return &AdvisorStage{c: completer{
		ai:        ai,
		model:     aiCfg.Model,
		maxTokens: aiCfg.MaxTokens,
		retry: resilience.RetryConfig{
			MaxAttempts: pipeCfg.MaxRetries,
			OnRetry:     resilience.RetryLogger("anthropic", "advisor"),
		},
		timeout: pipeCfg.Timeout(),
	}}
}

// Execute generates the recommendation. Rank order returned by the model is
// preserved verbatim; the stage never re-sorts or filters actions.
func (s *AdvisorStage) Execute(ctx context.Context, insights *model.SalesInsights, metrics *model.QualityMetrics, crm model.CRMWriteStatus) (*model.Recommendation, anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf(advisorPrompt, buildAdvisorContext(insights, metrics, crm))

	var total anthropic.TokenUsage
	var rec model.Recommendation
	usage, err := s.c.completeJSON(ctx, "Recommendation", advisorSystem, prompt, &rec)
	total.InputTokens += usage.InputTokens
	total.OutputTokens += usage.OutputTokens
	if err == nil {
		return &rec, total, nil
	}
	if !resilience.IsValidation(err) {
		return nil, total, eris.Wrap(err, "advisor: recommendation")
	}

	zap.L().Warn("advisor: schema validation failed, retrying with reinforced prompt", zap.Error(err))
	rec = model.Recommendation{}
	usage, retryErr := s.c.completeJSON(ctx, "Recommendation", advisorSystem, reinforcePrompt(prompt, err), &rec)
	total.InputTokens += usage.InputTokens
	total.OutputTokens += usage.OutputTokens
	if retryErr != nil {
		return nil, total, eris.Wrap(retryErr, "advisor: recommendation after reinforced retry")
	}
	return &rec, total, nil
}

// buildAdvisorContext summarizes all available upstream outputs for the
// advisor prompt. Quality metrics may be absent on a degraded run; the CRM
// write status is informational only.
func buildAdvisorContext(insights *model.SalesInsights, metrics *model.QualityMetrics, crm model.CRMWriteStatus) string {
	var b strings.Builder

	b.WriteString("--- Call Analysis ---\n")
	fmt.Fprintf(&b, "Prospect: %s\n", insights.ProspectName)
	fmt.Fprintf(&b, "Company: %s\n", insights.CompanyName)
	fmt.Fprintf(&b, "Summary: %s\n", insights.Summary)
	fmt.Fprintf(&b, "Sentiment score (1-10): %d\n", insights.SentimentScore)
	fmt.Fprintf(&b, "Pain points: %s\n", strings.Join(insights.PainPoints, "; "))
	fmt.Fprintf(&b, "Next steps: %s\n", strings.Join(insights.NextSteps, "; "))

	if metrics != nil {
		b.WriteString("\n--- Quality Assessment ---\n")
		fmt.Fprintf(&b, "Call quality score (1-5): %d\n", metrics.QualityScore)
		fmt.Fprintf(&b, "Asked for meeting: %t\n", metrics.AskedForMeeting)
		fmt.Fprintf(&b, "Strengths: %s\n", strings.Join(metrics.Strengths, "; "))
		fmt.Fprintf(&b, "Improvements: %s\n", strings.Join(metrics.Improvements, "; "))
	} else {
		b.WriteString("\nQuality assessment unavailable for this call.\n")
	}

	if crm.Written {
		b.WriteString("\nCRM record saved.\n")
	} else if crm.Error != "" {
		b.WriteString("\nCRM record could not be saved; flag manual entry as a follow-up consideration.\n")
	}

	return b.String()
}
