package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/postcall-cli/internal/model"
	"github.com/sells-group/postcall-cli/internal/resilience"
	"github.com/sells-group/postcall-cli/pkg/sheets"
	sheetsmocks "github.com/sells-group/postcall-cli/pkg/sheets/mocks"
)

func newTestCRM(t *testing.T) (*CRMStage, *sheetsmocks.MockClient) {
	cfg := testConfig()
	store := sheetsmocks.NewMockClient(t)
	stage := NewCRMStage(store, cfg.Sheets, cfg.Pipeline)
	stage.retry.InitialBackoff = time.Millisecond
	return stage, store
}

func crmInsights() *model.SalesInsights {
	return &model.SalesInsights{
		ProspectName:   "Sarah Chen",
		CompanyName:    "DataFlow Systems",
		Summary:        "Discovery call.",
		PainPoints:     []string{"nightly ETL failures"},
		NextSteps:      []string{"demo Tuesday at 2 PM"},
		SentimentScore: 8,
		FollowUpEmail:  "Hi Sarah...",
	}
}

func TestCRM_FormatRow_MonotonicTimestamps(t *testing.T) {
	stage, _ := newTestCRM(t)

	// Clock that jumps backwards between calls.
	times := []time.Time{
		time.Date(2026, 3, 10, 14, 30, 5, 0, time.UTC),
		time.Date(2026, 3, 10, 14, 30, 2, 0, time.UTC), // earlier
		time.Date(2026, 3, 10, 14, 30, 9, 0, time.UTC),
	}
	i := 0
	stage.now = func() time.Time {
		ts := times[i]
		i++
		return ts
	}

	r1 := stage.FormatRow(crmInsights(), nil)
	r2 := stage.FormatRow(crmInsights(), nil)
	r3 := stage.FormatRow(crmInsights(), nil)

	assert.False(t, r2.Timestamp.Before(r1.Timestamp), "timestamps must never move backwards")
	assert.Equal(t, r1.Timestamp, r2.Timestamp, "backwards clock clamps to the previous timestamp")
	assert.True(t, r3.Timestamp.After(r2.Timestamp))
}

func TestCRM_Execute_Success(t *testing.T) {
	stage, store := newTestCRM(t)

	handle := &sheets.SheetHandle{SpreadsheetID: "sheet-123", Title: "Sales_CRM_Production", SheetID: 7}
	store.On("EnsureSheet", mock.Anything, "Sales_CRM_Production", model.CRMHeader).
		Return(handle, nil).Once()
	store.On("AppendRow", mock.Anything, handle, mock.AnythingOfType("[]string")).
		Return(&sheets.AppendResult{RowRange: "Sales_CRM_Production!A42:I42"}, nil).Once()

	metrics := &model.QualityMetrics{QualityScore: 4}
	row, status := stage.Execute(context.Background(), crmInsights(), metrics)

	assert.True(t, status.Written)
	assert.Equal(t, "Sales_CRM_Production!A42:I42", status.RowID)
	require.Len(t, row.Values, len(model.CRMHeader))
	assert.Equal(t, "Sarah Chen", row.Values[1])
	assert.Equal(t, "4", row.Values[7])
}

func TestCRM_Execute_HandleResolvedOncePerSession(t *testing.T) {
	stage, store := newTestCRM(t)

	handle := &sheets.SheetHandle{SpreadsheetID: "sheet-123", Title: "Sales_CRM_Production"}
	store.On("EnsureSheet", mock.Anything, "Sales_CRM_Production", model.CRMHeader).
		Return(handle, nil).Once()
	store.On("AppendRow", mock.Anything, handle, mock.AnythingOfType("[]string")).
		Return(&sheets.AppendResult{RowRange: "r"}, nil).Twice()

	_, s1 := stage.Execute(context.Background(), crmInsights(), nil)
	_, s2 := stage.Execute(context.Background(), crmInsights(), nil)

	assert.True(t, s1.Written)
	assert.True(t, s2.Written)
}

func TestCRM_Execute_TransientAppendRetriedThenSucceeds(t *testing.T) {
	stage, store := newTestCRM(t)

	handle := &sheets.SheetHandle{SpreadsheetID: "sheet-123", Title: "Sales_CRM_Production"}
	store.On("EnsureSheet", mock.Anything, "Sales_CRM_Production", model.CRMHeader).
		Return(handle, nil).Once()
	store.On("AppendRow", mock.Anything, handle, mock.AnythingOfType("[]string")).
		Return(nil, resilience.NewTransientError(errors.New("503 backend error"), 503)).Once()
	store.On("AppendRow", mock.Anything, handle, mock.AnythingOfType("[]string")).
		Return(&sheets.AppendResult{RowRange: "Sales_CRM_Production!A43:I43"}, nil).Once()

	_, status := stage.Execute(context.Background(), crmInsights(), nil)

	assert.True(t, status.Written)
	assert.Equal(t, "Sales_CRM_Production!A43:I43", status.RowID)
}

func TestCRM_Execute_ExhaustedRetriesReportFailure(t *testing.T) {
	stage, store := newTestCRM(t)

	handle := &sheets.SheetHandle{SpreadsheetID: "sheet-123", Title: "Sales_CRM_Production"}
	store.On("EnsureSheet", mock.Anything, "Sales_CRM_Production", model.CRMHeader).
		Return(handle, nil).Once()
	store.On("AppendRow", mock.Anything, handle, mock.AnythingOfType("[]string")).
		Return(nil, resilience.NewTransientError(errors.New("503 backend error"), 503)).
		Times(crmAppendAttempts)

	row, status := stage.Execute(context.Background(), crmInsights(), nil)

	assert.False(t, status.Written)
	assert.Contains(t, status.Error, "append row")
	// The formatted row still comes back for the result record.
	assert.Len(t, row.Values, len(model.CRMHeader))
}

func TestCRM_Execute_AuthFailureStopsImmediately(t *testing.T) {
	stage, store := newTestCRM(t)

	handle := &sheets.SheetHandle{SpreadsheetID: "sheet-123", Title: "Sales_CRM_Production"}
	store.On("EnsureSheet", mock.Anything, "Sales_CRM_Production", model.CRMHeader).
		Return(handle, nil).Once()
	store.On("AppendRow", mock.Anything, handle, mock.AnythingOfType("[]string")).
		Return(nil, resilience.NewAuthError("sheets", errors.New("invalid_grant"))).Once()

	_, status := stage.Execute(context.Background(), crmInsights(), nil)

	assert.False(t, status.Written)
	assert.Contains(t, status.Error, "authentication failed")
}

func TestCRM_Execute_EnsureSheetFailureReported(t *testing.T) {
	stage, store := newTestCRM(t)

	store.On("EnsureSheet", mock.Anything, "Sales_CRM_Production", model.CRMHeader).
		Return(nil, &resilience.NotFoundError{Resource: "spreadsheet", Err: errors.New("404")}).Once()

	_, status := stage.Execute(context.Background(), crmInsights(), nil)

	assert.False(t, status.Written)
	assert.Contains(t, status.Error, "ensure sheet")
}
