package model

import (
	"strconv"
	"strings"
	"time"
)

// CRMHeader is the fixed column order of the CRM sheet. AppendRow values must
// match this order exactly.
var CRMHeader = []string{
	"Timestamp",
	"Prospect Name",
	"Company",
	"Summary",
	"Pain Points",
	"Sentiment Score",
	"Next Steps",
	"Call Quality",
	"Follow-up Email",
}

// CRMRow is one formatted record destined for the external tabular store.
// Values are ordered to match CRMHeader; never mutated after a write attempt.
type CRMRow struct {
	Timestamp time.Time `json:"timestamp"`
	Values    []string  `json:"values"`
}

// NewCRMRow deterministically maps insights (and metrics, when the quality
// stage did not degrade) into a row. List fields are joined comma-separated;
// a degraded quality stage leaves the Call Quality column blank.
func NewCRMRow(insights *SalesInsights, metrics *QualityMetrics, ts time.Time) CRMRow {
	quality := ""
	if metrics != nil {
		quality = strconv.Itoa(metrics.QualityScore)
	}

	return CRMRow{
		Timestamp: ts,
		Values: []string{
			ts.UTC().Format("2006-01-02 15:04:05"),
			insights.ProspectName,
			insights.CompanyName,
			insights.Summary,
			strings.Join(insights.PainPoints, ", "),
			strconv.Itoa(insights.SentimentScore),
			strings.Join(insights.NextSteps, ", "),
			quality,
			insights.FollowUpEmail,
		},
	}
}

// CRMWriteStatus records the outcome of the append to the external store.
type CRMWriteStatus struct {
	Written bool   `json:"written"`
	RowID   string `json:"row_id,omitempty"`
	Error   string `json:"error,omitempty"`
}
