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

func newTestQuality(t *testing.T) (*QualityStage, *anthropicmocks.MockClient) {
	cfg := testConfig()
	ai := anthropicmocks.NewMockClient(t)
	return NewQualityStage(ai, cfg.Anthropic, cfg.Pipeline), ai
}

func TestQuality_Execute_Success(t *testing.T) {
	stage, ai := newTestQuality(t)

	ai.On("CreateMessage", mock.Anything, promptContains(testTranscript)).
		Return(textResponse(validQualityJSON, 450, 120), nil).Once()

	metrics, usage, err := stage.Execute(context.Background(), testTranscript, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, metrics.QualityScore)
	assert.True(t, metrics.AskedForMeeting)
	assert.NotEmpty(t, metrics.Strengths)
	assert.Equal(t, int64(450), usage.InputTokens)
}

func TestQuality_Execute_InsightsEnrichThePrompt(t *testing.T) {
	stage, ai := newTestQuality(t)

	insights := &model.SalesInsights{
		ProspectName:   "Sarah Chen",
		CompanyName:    "DataFlow Systems",
		PainPoints:     []string{"nightly ETL failures"},
		SentimentScore: 8,
	}

	ai.On("CreateMessage", mock.Anything, promptContains(`prospect "Sarah Chen" at "DataFlow Systems"`)).
		Return(textResponse(validQualityJSON, 500, 130), nil).Once()

	metrics, _, err := stage.Execute(context.Background(), testTranscript, insights)
	require.NoError(t, err)
	assert.Equal(t, 4, metrics.QualityScore)
}

func TestQuality_Execute_ScoreOutOfRangeExhaustsReinforcedRetry(t *testing.T) {
	stage, ai := newTestQuality(t)

	bad := `{"quality_score": 9, "asked_for_meeting": false, "strengths": [], "improvements": []}`
	ai.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse(bad, 100, 40), nil).Twice()

	metrics, usage, err := stage.Execute(context.Background(), testTranscript, nil)
	require.Error(t, err)
	assert.Nil(t, metrics)
	assert.True(t, resilience.IsValidation(err))

	// Both attempts billed.
	assert.Equal(t, int64(200), usage.InputTokens)
}
