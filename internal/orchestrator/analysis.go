package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/emotrack/internal/impact"
	"github.com/xaenox/emotrack/internal/incident"
	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/temporal"
)

type FailureKind string

const (
	ClassificationFailure FailureKind = "classification_failure"
	TemporalParseFailure  FailureKind = "temporal_parse_failure"
	PatternError          FailureKind = "pattern_error"
	ProfileLoadFailure    FailureKind = "profile_load_failure"
	SinkFailure           FailureKind = "sink_failure"
)

// StageFailure records a pipeline stage that fell back to its safe default.
type StageFailure struct {
	Stage  string      `json:"stage"`
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail"`
}

func (f StageFailure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Stage, f.Kind, f.Detail)
}

// IncidentAnalysis is the result of processing one message.
type IncidentAnalysis struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Text        string              `json:"original_message"`
	Emotions    models.Distribution `json:"emotions_detected"`
	Temporal    temporal.Resolution `json:"temporal_references"`
	AgeCategory models.AgeCategory  `json:"age_category"`
	DaysAgo     int                 `json:"days_ago"`
	Factors     impact.Factors      `json:"factors"`
	ImpactScore float64             `json:"impact_score"`

	// StateUpdates holds the per-label change of every active timescale;
	// Targets the per-label impact the EMA moved toward.
	StateUpdates map[models.Timescale]models.Distribution `json:"state_updates"`
	Targets      map[models.Timescale]models.Distribution `json:"targets"`

	Summary         string            `json:"analysis_summary"`
	RecurrenceCount int               `json:"recurrence_count"`
	Recurrence      incident.Result   `json:"recurrence"`
	Current         models.TopByScale `json:"current_state"`
	Profile         models.TopByScale `json:"profile_state"`
	ProcessedAt     time.Time         `json:"processed_at"`
	Failures        []StageFailure    `json:"failures,omitempty"`
}

// Failed reports whether any stage recorded a failure of the given kind.
func (a *IncidentAnalysis) Failed(kind FailureKind) bool {
	for _, f := range a.Failures {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

func (a *IncidentAnalysis) summarize() {
	if a.Failed(ClassificationFailure) {
		a.Summary = "No emotions detected; profile unchanged."
		return
	}

	var b strings.Builder
	top := a.Emotions.Top(3)
	labels := make([]string, len(top))
	for i, s := range top {
		labels[i] = fmt.Sprintf("%s (%.2f)", s.Label, s.Score)
	}
	fmt.Fprintf(&b, "Detected %s.", strings.Join(labels, ", "))

	switch a.AgeCategory {
	case models.AgeFuture:
		fmt.Fprintf(&b, " Refers to an upcoming event in %d days.", -a.DaysAgo)
	case models.AgeRecent:
		if a.DaysAgo == 0 {
			b.WriteString(" Refers to today.")
		} else {
			fmt.Fprintf(&b, " Refers to a recent event %d days ago.", a.DaysAgo)
		}
	default:
		fmt.Fprintf(&b, " Refers to a %s event %d days ago.", a.AgeCategory, a.DaysAgo)
	}

	if a.RecurrenceCount > 1 {
		fmt.Fprintf(&b, " Incident mentioned %d times.", a.RecurrenceCount)
	}
	fmt.Fprintf(&b, " Impact %.2f.", a.ImpactScore)
	a.Summary = b.String()
}

// record flattens the analysis into the row handed to sinks.
func (a *IncidentAnalysis) record(messageCount, ageDays int, active map[models.Timescale]bool) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		ID:             a.ID,
		UserID:         a.UserID,
		Message:        a.Text,
		ImpactScore:    a.ImpactScore,
		Current:        a.Current,
		Profile:        a.Profile,
		MidTermActive:  active[models.MidTerm],
		LongTermActive: active[models.LongTerm],
		ProfileAgeDays: ageDays,
		MessageCount:   messageCount,
		CreatedAt:      a.ProcessedAt,
	}
}
