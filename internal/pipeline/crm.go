package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/postcall-cli/internal/config"
	"github.com/sells-group/postcall-cli/internal/model"
	"github.com/sells-group/postcall-cli/internal/resilience"
	"github.com/sells-group/postcall-cli/pkg/sheets"
)

// crmAppendAttempts bounds retries of the store append. Auth failures stop
// immediately regardless.
const crmAppendAttempts = 3

// CRMStage deterministically formats a row and appends it to the tabular
// store. One writer serves all runs in the process; the monotonic timestamp
// guard and the lazily resolved sheet handle are shared session state.
type CRMStage struct {
	store     sheets.Client
	sheetName string
	retry     resilience.RetryConfig
	timeout   time.Duration
	now       func() time.Time

	mu     sync.Mutex
	handle *sheets.SheetHandle
	lastTS time.Time
}

// NewCRMStage builds the CRM formatter/writer with the injected store client.
func NewCRMStage(store sheets.Client, sheetsCfg config.SheetsConfig, pipeCfg config.PipelineConfig) *CRMStage {
	return &CRMStage{
		store:     store,
		sheetName: sheetsCfg.SheetName,
		retry: resilience.RetryConfig{
			MaxAttempts: crmAppendAttempts,
			OnRetry:     resilience.RetryLogger("sheets", "append_row"),
		},
		timeout: pipeCfg.Timeout(),
		now:     time.Now,
	}
}

// FormatRow maps insights (+ metrics when present) into a CRMRow with the
// fixed column order. Timestamps are clamped non-decreasing within the
// session so successive rows never move backwards.
func (s *CRMStage) FormatRow(insights *model.SalesInsights, metrics *model.QualityMetrics) model.CRMRow {
	s.mu.Lock()
	ts := s.now().UTC()
	if ts.Before(s.lastTS) {
		ts = s.lastTS
	}
	s.lastTS = ts
	s.mu.Unlock()

	return model.NewCRMRow(insights, metrics, ts)
}

// Execute formats and appends one row. Transient store failures are retried
// with exponential backoff up to crmAppendAttempts; auth failures stop
// immediately. The row is never mutated after the first write attempt, so a
// retry after an ambiguous failure may produce a duplicate row — a documented
// limitation of the non-idempotent append.
func (s *CRMStage) Execute(ctx context.Context, insights *model.SalesInsights, metrics *model.QualityMetrics) (model.CRMRow, model.CRMWriteStatus) {
	row := s.FormatRow(insights, metrics)

	handle, err := s.ensureHandle(ctx)
	if err != nil {
		return row, model.CRMWriteStatus{Error: err.Error()}
	}

	result, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*sheets.AppendResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.store.AppendRow(callCtx, handle, row.Values)
	})
	if err != nil {
		return row, model.CRMWriteStatus{Error: eris.Wrap(err, "crm: append row").Error()}
	}

	return row, model.CRMWriteStatus{Written: true, RowID: result.RowRange}
}

// ensureHandle resolves the sheet tab once per session.
func (s *CRMStage) ensureHandle(ctx context.Context) (*sheets.SheetHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return s.handle, nil
	}

	handle, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*sheets.SheetHandle, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.store.EnsureSheet(callCtx, s.sheetName, model.CRMHeader)
	})
	if err != nil {
		return nil, eris.Wrap(err, "crm: ensure sheet")
	}
	s.handle = handle
	return handle, nil
}
