// Package pipeline implements the post-call analysis pipeline: a fixed
// Analyst → Quality → CRM → Advisor stage sequence over one transcript,
// coordinated by the Pipeline orchestrator.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/postcall-cli/internal/config"
	"github.com/sells-group/postcall-cli/internal/model"
	"github.com/sells-group/postcall-cli/internal/store"
	"github.com/sells-group/postcall-cli/pkg/anthropic"
	"github.com/sells-group/postcall-cli/pkg/sheets"
)

// Stage names as recorded in outcomes and the run-history store.
const (
	stageAnalyst = "analyst"
	stageQuality = "quality"
	stageCRM     = "crm"
	stageAdvisor = "advisor"
)

// Pipeline orchestrates one analysis run. All per-run state lives in Run's
// locals; the struct itself only holds injected dependencies, so one Pipeline
// serves concurrent runs over distinct transcripts.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	analyst *AnalystStage
	quality *QualityStage
	crm     *CRMStage // nil when CRM writing is disabled
	advisor *AdvisorStage
}

// New creates a Pipeline with all dependencies. sheetsClient may be nil to
// skip the CRM write (the stage is recorded as skipped).
func New(cfg *config.Config, st store.Store, ai anthropic.Client, sheetsClient sheets.Client) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		store:   st,
		analyst: NewAnalystStage(ai, cfg.Anthropic, cfg.Pipeline),
		quality: NewQualityStage(ai, cfg.Anthropic, cfg.Pipeline),
		advisor: NewAdvisorStage(ai, cfg.Anthropic, cfg.Pipeline),
	}
	if sheetsClient != nil {
		p.crm = NewCRMStage(sheetsClient, cfg.Sheets, cfg.Pipeline)
	}
	return p
}

// Run executes the full stage sequence for one transcript and returns the
// aggregated PipelineResult. Only an analyst failure (or cancellation) yields
// a non-nil error; quality and CRM failures degrade the result instead.
func (p *Pipeline) Run(ctx context.Context, transcript string) (*model.PipelineResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, eris.New("pipeline: transcript is empty")
	}

	log := zap.L().With(zap.String("transcript_hash", TranscriptHash(transcript)[:12]))
	log.Info("pipeline: starting analysis")

	result := &model.PipelineResult{}

	run, err := p.store.CreateRun(ctx, TranscriptHash(transcript))
	if err != nil {
		// Run history is best-effort; the pipeline still executes.
		log.Warn("pipeline: failed to create run record", zap.Error(err))
	} else if run != nil {
		result.RunID = run.ID
	}

	setStatus := func(status model.RunStatus) {
		if run == nil {
			return
		}
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackStage := func(name string, fn func() (model.StageStatus, error)) model.StageOutcome {
		var stageRec *model.RunStage
		if run != nil {
			var stageErr error
			stageRec, stageErr = p.store.CreateStage(ctx, run.ID, name)
			if stageErr != nil {
				log.Warn("pipeline: failed to create stage record", zap.String("stage", name), zap.Error(stageErr))
			}
		}

		start := time.Now()
		status, fnErr := fn()
		outcome := model.StageOutcome{
			Stage:    name,
			Status:   status,
			Duration: time.Since(start).Milliseconds(),
		}
		if fnErr != nil {
			outcome.Error = fnErr.Error()
		}

		switch status {
		case model.StageStatusSuccess, model.StageStatusSkipped:
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.String("status", string(status)),
				zap.Int64("duration_ms", outcome.Duration),
			)
		default:
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.String("status", string(status)),
				zap.Int64("duration_ms", outcome.Duration),
				zap.Error(fnErr),
			)
		}

		if stageRec != nil {
			if completeErr := p.store.CompleteStage(ctx, stageRec.ID, &outcome); completeErr != nil {
				log.Warn("pipeline: failed to complete stage record", zap.String("stage", name), zap.Error(completeErr))
			}
		}
		result.Stages = append(result.Stages, outcome)
		return outcome
	}

	finish := func(status model.RunStatus) {
		result.CompletedAt = time.Now().UTC()
		result.EstimatedCost = anthropic.TokenUsage{
			InputTokens:  int64(result.TokenUsage.InputTokens),
			OutputTokens: int64(result.TokenUsage.OutputTokens),
		}.EstimateCost(p.cfg.Anthropic.Model)
		setStatus(status)
		if run != nil {
			if saveErr := p.store.UpdateRunResult(ctx, run.ID, result); saveErr != nil {
				log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
			}
		}
	}

	addUsage := func(u anthropic.TokenUsage) {
		result.TokenUsage.Add(model.TokenUsage{
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
		})
	}

	// ===== Analyst: fatal on failure =====
	setStatus(model.RunStatusAnalyzing)
	var analystErr error
	trackStage(stageAnalyst, func() (model.StageStatus, error) {
		insights, usage, err := p.analyst.Execute(ctx, transcript)
		addUsage(usage)
		if err != nil {
			analystErr = err
			return model.StageStatusFatal, err
		}
		result.Insights = insights
		return model.StageStatusSuccess, nil
	})
	if analystErr != nil {
		finish(model.RunStatusFailed)
		return result, eris.Wrap(analystErr, "pipeline: analyst stage")
	}

	if err := ctx.Err(); err != nil {
		finish(model.RunStatusFailed)
		return result, eris.Wrap(err, "pipeline: canceled")
	}

	// ===== Quality: degrades on failure =====
	setStatus(model.RunStatusQualityAssessing)
	trackStage(stageQuality, func() (model.StageStatus, error) {
		metrics, usage, err := p.quality.Execute(ctx, transcript, result.Insights)
		addUsage(usage)
		if err != nil {
			return model.StageStatusDegraded, err
		}
		result.Quality = metrics
		return model.StageStatusSuccess, nil
	})

	if err := ctx.Err(); err != nil {
		finish(model.RunStatusFailed)
		return result, eris.Wrap(err, "pipeline: canceled")
	}

	// ===== CRM: degrades on failure, skipped when disabled =====
	setStatus(model.RunStatusCRMWriting)
	trackStage(stageCRM, func() (model.StageStatus, error) {
		if p.crm == nil {
			return model.StageStatusSkipped, nil
		}
		_, status := p.crm.Execute(ctx, result.Insights, result.Quality)
		result.CRM = status
		if !status.Written {
			return model.StageStatusDegraded, eris.New(status.Error)
		}
		return model.StageStatusSuccess, nil
	})

	if err := ctx.Err(); err != nil {
		finish(model.RunStatusFailed)
		return result, eris.Wrap(err, "pipeline: canceled")
	}

	// ===== Advisor: degrades on failure; insights are guaranteed present =====
	setStatus(model.RunStatusAdvising)
	trackStage(stageAdvisor, func() (model.StageStatus, error) {
		rec, usage, err := p.advisor.Execute(ctx, result.Insights, result.Quality, result.CRM)
		addUsage(usage)
		if err != nil {
			return model.StageStatusDegraded, err
		}
		result.Recommendation = rec
		return model.StageStatusSuccess, nil
	})

	finish(model.RunStatusComplete)

	log.Info("pipeline: analysis complete",
		zap.String("run_id", result.RunID),
		zap.Int("degraded_stages", len(result.Degradations())),
		zap.Bool("crm_written", result.CRM.Written),
		zap.Int("input_tokens", result.TokenUsage.InputTokens),
		zap.Int("output_tokens", result.TokenUsage.OutputTokens),
	)

	return result, nil
}
