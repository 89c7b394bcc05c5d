package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/postcall-cli/internal/resilience"
)

// validate is the shared validator instance. validator.Validate is safe for
// concurrent use and caches struct metadata, so one instance serves all runs.
var validate = validator.New()

// SalesInsights is the structured output of the analyst stage. Immutable once
// produced; consumed by the CRM formatter and the advisor stage.
type SalesInsights struct {
	ProspectName   string   `json:"prospect_name"` // may be empty if unidentifiable
	CompanyName    string   `json:"company_name"`  // may be empty if unidentifiable
	Summary        string   `json:"summary"`
	PainPoints     []string `json:"pain_points"`
	NextSteps      []string `json:"next_steps"`
	SentimentScore int      `json:"sentiment_score" validate:"min=1,max=10"`
	FollowUpEmail  string   `json:"follow_up_email"`
}

// Validate checks the structural invariants of the insights payload.
func (s *SalesInsights) Validate() error {
	return checkStruct("SalesInsights", s)
}

// QualityMetrics is the structured output of the quality stage.
type QualityMetrics struct {
	QualityScore    int      `json:"quality_score" validate:"min=1,max=5"`
	AskedForMeeting bool     `json:"asked_for_meeting"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
}

// Validate checks the structural invariants of the metrics payload.
func (q *QualityMetrics) Validate() error {
	return checkStruct("QualityMetrics", q)
}

// Recommendation is the terminal artifact of a run: exactly three prioritized
// actions (rank order preserved from generation) plus a strategic narrative.
type Recommendation struct {
	PrioritizedActions []string `json:"prioritized_actions" validate:"len=3,dive,required"`
	StrategicAdvice    string   `json:"strategic_advice" validate:"required"`
}

// Validate checks the structural invariants of the recommendation payload.
func (r *Recommendation) Validate() error {
	return checkStruct("Recommendation", r)
}

// checkStruct runs the validator and converts failures into the pipeline's
// ValidationError with per-field violations.
func checkStruct(schema string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &resilience.ValidationError{Schema: schema, Err: err}
	}

	violations := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return &resilience.ValidationError{Schema: schema, Violations: violations}
}
