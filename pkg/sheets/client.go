// Package sheets provides the tabular CRM store backed by the Google Sheets
// API. One append per successful pipeline run; concurrent appends are
// serialized server-side, never locked in-process.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/sells-group/postcall-cli/internal/resilience"
)

// Client defines the tabular store operations used by the CRM writer.
type Client interface {
	// EnsureSheet locates the tab with the given title, creating it and
	// seeding the header row when missing, and returns a handle for appends.
	EnsureSheet(ctx context.Context, title string, header []string) (*SheetHandle, error)

	// AppendRow appends one ordered row of values to the sheet. The append is
	// not idempotent: a retry after an ambiguous failure may duplicate a row.
	AppendRow(ctx context.Context, handle *SheetHandle, values []string) (*AppendResult, error)
}

// SheetHandle identifies a tab within the configured spreadsheet.
type SheetHandle struct {
	SpreadsheetID string
	Title         string
	SheetID       int64
}

// AppendResult reports where the row landed.
type AppendResult struct {
	// RowRange is the A1-notation range the store reported for the append,
	// e.g. "Sales_CRM_Production!A42:I42".
	RowRange string
}

// ClientOption configures the sheets client.
type ClientOption func(*apiClient)

// WithRateLimit sets a per-second rate limit for Sheets API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *apiClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// withService injects a pre-built service; used by tests against a fake HTTP
// backend.
func withService(svc *sheetsapi.Service) ClientOption {
	return func(c *apiClient) {
		c.svc = svc
	}
}

type apiClient struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	limiter       *rate.Limiter
}

// NewClient creates a Sheets client authenticated with a service-account
// credentials file, scoped to the one configured spreadsheet.
func NewClient(ctx context.Context, credentialsFile, spreadsheetID string, opts ...ClientOption) (Client, error) {
	c := &apiClient{spreadsheetID: spreadsheetID}
	for _, opt := range opts {
		opt(c)
	}

	if c.svc == nil {
		svc, err := sheetsapi.NewService(ctx,
			option.WithCredentialsFile(credentialsFile),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		)
		if err != nil {
			return nil, eris.Wrap(err, "sheets: build service")
		}
		c.svc = svc
	}

	return c, nil
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *apiClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *apiClient) EnsureSheet(ctx context.Context, title string, header []string) (*SheetHandle, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sheets: rate limit")
	}

	spreadsheet, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err, "sheets: get spreadsheet "+c.spreadsheetID)
	}

	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			handle := &SheetHandle{
				SpreadsheetID: c.spreadsheetID,
				Title:         title,
				SheetID:       s.Properties.SheetId,
			}
			if err := c.ensureHeader(ctx, handle, header); err != nil {
				return nil, err
			}
			return handle, nil
		}
	}

	// Tab missing: create it, then seed the header.
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err, "sheets: add sheet "+title)
	}

	handle := &SheetHandle{SpreadsheetID: c.spreadsheetID, Title: title}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		handle.SheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	if _, err := c.append(ctx, handle, header); err != nil {
		return nil, eris.Wrap(err, "sheets: seed header")
	}
	return handle, nil
}

// ensureHeader writes the header row if the first row of the tab is empty.
func (c *apiClient) ensureHeader(ctx context.Context, handle *SheetHandle, header []string) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sheets: rate limit")
	}

	rng := fmt.Sprintf("%s!1:1", handle.Title)
	resp, err := c.svc.Spreadsheets.Values.Get(handle.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return classifyError(err, "sheets: read header")
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = c.append(ctx, handle, header)
	if err != nil {
		return eris.Wrap(err, "sheets: seed header")
	}
	return nil
}

func (c *apiClient) AppendRow(ctx context.Context, handle *SheetHandle, values []string) (*AppendResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sheets: rate limit")
	}
	return c.append(ctx, handle, values)
}

func (c *apiClient) append(ctx context.Context, handle *SheetHandle, values []string) (*AppendResult, error) {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}

	resp, err := c.svc.Spreadsheets.Values.Append(handle.SpreadsheetID, handle.Title, &sheetsapi.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err, "sheets: append row")
	}

	result := &AppendResult{}
	if resp.Updates != nil {
		result.RowRange = resp.Updates.UpdatedRange
	}
	return result, nil
}

// classifyError maps googleapi failures onto the pipeline's error taxonomy.
func classifyError(err error, msg string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 401 || gerr.Code == 403:
			return resilience.NewAuthError("sheets", err)
		case gerr.Code == 404:
			return &resilience.NotFoundError{Resource: "spreadsheet", Err: err}
		case resilience.IsTransientHTTPStatus(gerr.Code):
			return resilience.NewTransientError(eris.Wrap(err, msg), gerr.Code)
		}
	}
	return eris.Wrap(err, msg)
}
