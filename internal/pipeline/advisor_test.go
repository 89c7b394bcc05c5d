package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/postcall-cli/internal/model"
	"github.com/sells-group/postcall-cli/internal/resilience"
	anthropicmocks "github.com/sells-group/postcall-cli/pkg/anthropic/mocks"
)

func newTestAdvisor(t *testing.T) (*AdvisorStage, *anthropicmocks.MockClient) {
	cfg := testConfig()
	ai := anthropicmocks.NewMockClient(t)
	return NewAdvisorStage(ai, cfg.Anthropic, cfg.Pipeline), ai
}

func TestAdvisor_Execute_Success(t *testing.T) {
	stage, ai := newTestAdvisor(t)

	ai.On("CreateMessage", mock.Anything, promptContains("exactly 3 next best actions")).
		Return(textResponse(validRecommendationJSON, 600, 250), nil).Once()

	rec, usage, err := stage.Execute(context.Background(), crmInsights(),
		&model.QualityMetrics{QualityScore: 4}, model.CRMWriteStatus{Written: true})
	require.NoError(t, err)

	require.Len(t, rec.PrioritizedActions, 3)
	assert.Equal(t, "Send the SOC 2 documentation before the Tuesday demo", rec.PrioritizedActions[0])
	assert.NotEmpty(t, rec.StrategicAdvice)
	assert.Equal(t, int64(600), usage.InputTokens)
}

func TestAdvisor_Execute_WrongActionCountExhaustsRetry(t *testing.T) {
	stage, ai := newTestAdvisor(t)

	bad := `{"prioritized_actions": ["only one action"], "strategic_advice": "advice"}`
	ai.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse(bad, 100, 40), nil).Twice()

	rec, _, err := stage.Execute(context.Background(), crmInsights(), nil, model.CRMWriteStatus{})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.True(t, resilience.IsValidation(err))
}

func TestBuildAdvisorContext_AllInputs(t *testing.T) {
	t.Parallel()

	got := buildAdvisorContext(crmInsights(),
		&model.QualityMetrics{
			QualityScore:    4,
			AskedForMeeting: true,
			Strengths:       []string{"booked next step"},
			Improvements:    []string{"quantify pain"},
		},
		model.CRMWriteStatus{Written: true, RowID: "Sales_CRM_Production!A42:I42"},
	)

	assert.Contains(t, got, "--- Call Analysis ---")
	assert.Contains(t, got, "Prospect: Sarah Chen")
	assert.Contains(t, got, "Sentiment score (1-10): 8")
	assert.Contains(t, got, "--- Quality Assessment ---")
	assert.Contains(t, got, "Call quality score (1-5): 4")
	assert.Contains(t, got, "Asked for meeting: true")
	assert.Contains(t, got, "CRM record saved.")
}

func TestBuildAdvisorContext_DegradedUpstream(t *testing.T) {
	t.Parallel()

	got := buildAdvisorContext(crmInsights(), nil,
		model.CRMWriteStatus{Error: "sheets: append row: exhausted retries"})

	assert.Contains(t, got, "Quality assessment unavailable")
	assert.NotContains(t, got, "--- Quality Assessment ---")
	assert.Contains(t, got, "CRM record could not be saved")
	assert.Contains(t, got, "manual entry")
}
