package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued           RunStatus = "queued"
	RunStatusAnalyzing        RunStatus = "analyzing"
	RunStatusQualityAssessing RunStatus = "quality_assessing"
	RunStatusCRMWriting       RunStatus = "crm_writing"
	RunStatusAdvising         RunStatus = "advising"
	RunStatusComplete         RunStatus = "complete"
	RunStatusFailed           RunStatus = "failed"
)

// StageStatus is the tagged outcome of one pipeline stage.
type StageStatus string

const (
	StageStatusSuccess  StageStatus = "success"
	StageStatusDegraded StageStatus = "degraded"
	StageStatusFatal    StageStatus = "fatal"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageOutcome records how a single stage terminated. The orchestrator's
// branching on Status is total: success and degraded continue, fatal aborts.
type StageOutcome struct {
	Stage    string      `json:"stage"`
	Status   StageStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
	Duration int64       `json:"duration_ms"`
}

// TokenUsage tracks completion token consumption across stages.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates usage from another stage.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// PipelineResult aggregates everything one run produced. Owned solely by the
// orchestrator for the lifetime of the run. Quality and Recommendation are nil
// when their stages degraded.
type PipelineResult struct {
	RunID          string          `json:"run_id"`
	Insights       *SalesInsights  `json:"insights,omitempty"`
	Quality        *QualityMetrics `json:"quality,omitempty"`
	CRM            CRMWriteStatus  `json:"crm"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Stages         []StageOutcome  `json:"stages"`
	TokenUsage     TokenUsage      `json:"token_usage"`
	EstimatedCost  float64         `json:"estimated_cost_usd"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// Degradations returns the stages that did not complete cleanly, both
// degraded stages and a fatal analyst stage.
func (r *PipelineResult) Degradations() []StageOutcome {
	var out []StageOutcome
	for _, s := range r.Stages {
		if s.Status == StageStatusDegraded || s.Status == StageStatusFatal {
			out = append(out, s)
		}
	}
	return out
}

// Run is a stored record of one pipeline execution. The transcript itself is
// never persisted; only its hash is kept for correlation.
type Run struct {
	ID             string          `json:"id"`
	TranscriptHash string          `json:"transcript_hash"`
	Status         RunStatus       `json:"status"`
	Result         *PipelineResult `json:"result,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RunStage is a stored record of a stage within a run.
type RunStage struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Name      string        `json:"name"`
	Outcome   *StageOutcome `json:"outcome,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}
