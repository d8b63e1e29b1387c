package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/classifier"
	"github.com/xaenox/emotrack/internal/metrics"
	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/profile"
)

// Reference used when no temporal phrase can be dated.
const (
	fallbackAge        = models.AgeRecent
	fallbackConfidence = 0.5
	fallbackDaysAgo    = 0
)

// ProcessMessage analyses one message from userID and updates their profile.
// ref is the time the message was written; the zero time means now.
// writingSeconds is how long the message took to type, or 0 if unknown.
//
// Stage failures degrade to safe defaults and are reported in the analysis;
// an error is returned only for invalid input, cancellation or after Close.
func (o *Orchestrator) ProcessMessage(ctx context.Context, userID, text string, ref time.Time, writingSeconds float64) (*IncidentAnalysis, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if ref.IsZero() {
		ref = o.opts.Now()
	}

	u, loadFailure, err := o.user(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	defer u.mu.Unlock()
	p := u.profile

	a := &IncidentAnalysis{
		ID:           uuid.New().String(),
		UserID:       userID,
		Text:         text,
		Emotions:     models.Distribution{},
		AgeCategory:  fallbackAge,
		DaysAgo:      fallbackDaysAgo,
		StateUpdates: map[models.Timescale]models.Distribution{},
		Targets:      map[models.Timescale]models.Distribution{},
		ProcessedAt:  ref,
	}
	if loadFailure != nil {
		a.Failures = append(a.Failures, *loadFailure)
		metrics.StageFailures.WithLabelValues(string(ProfileLoadFailure)).Inc()
	}

	emotions, err := o.classify(ctx, text)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(emotions) == 0 {
		detail := "no emotions detected"
		if err != nil {
			detail = err.Error()
		}
		o.fail(a, "classification", ClassificationFailure, detail)
		a.Current = emptyTop()
		a.Profile = p.Top()
		a.summarize()
		metrics.MessagesProcessed.WithLabelValues("classification_failure").Inc()
		return a, nil
	}
	a.Emotions = emotions

	a.Temporal = o.resolver.Resolve(text, ref)
	for _, name := range a.Temporal.SkippedPatterns {
		o.fail(a, "temporal", PatternError, name)
	}
	for _, f := range a.Temporal.Failed() {
		o.fail(a, "temporal", TemporalParseFailure, f.Phrase)
	}
	confidence := fallbackConfidence
	primary, resolved := a.Temporal.Primary()
	if resolved {
		a.AgeCategory = primary.Age
		a.DaysAgo = *primary.DaysAgo
		confidence = primary.Confidence
	}

	entities := o.detector.ExtractEntities(text)
	a.Recurrence = o.detector.FindRepeatedEntities(entities, p.History().Candidates(), p.Scalars.SimilarityThreshold)
	a.RecurrenceCount = a.Recurrence.IncidentCount

	a.Factors = p.Factors(emotions, a.DaysAgo, confidence, a.RecurrenceCount)
	score, z, hasTyping := p.Score(a.Factors, utf8.RuneCountInString(text), writingSeconds)
	a.ImpactScore = score

	change := p.Apply(profile.Observation{
		Text:          text,
		Emotions:      emotions,
		Entities:      entities,
		Impact:        score,
		Factors:       a.Factors,
		Age:           a.AgeCategory,
		AgeConfidence: confidence,
		AgeResolved:   resolved,
		Recurrence:    a.Recurrence,
		TypingZ:       z,
		HasTyping:     hasTyping,
	}, ref)
	u.dirty = true

	a.StateUpdates = change.Deltas
	a.Targets = change.Targets
	a.Current = emptyTop()
	for t, targets := range change.Targets {
		if top := targets.Top(1); len(top) > 0 {
			a.Current.Set(t, top[0])
		}
	}
	a.Profile = p.Top()
	a.summarize()

	for _, t := range change.Activated {
		o.logger.Info("Timescale activated",
			zap.String("user_id", userID),
			zap.String("timescale", string(t)),
			zap.Int("message_count", p.MessageCount),
			zap.Int("profile_age_days", p.AgeDays))
	}

	if err := o.sink.Publish(ctx, a.record(p.MessageCount, p.AgeDays, p.Active)); err != nil {
		o.fail(a, "sink", SinkFailure, err.Error())
	}

	metrics.ImpactScore.Observe(score)
	metrics.MessagesProcessed.WithLabelValues("ok").Inc()
	return a, nil
}

func (o *Orchestrator) classify(ctx context.Context, text string) (models.Distribution, error) {
	start := time.Now()
	dist, err := o.classifier.Classify(ctx, text)
	metrics.ClassificationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	dist = dist.Filter(o.opts.MinProbability)
	if len(dist) == 0 {
		return nil, fmt.Errorf("filter: %w", classifier.ErrEmptyResult)
	}
	return dist, nil
}

func (o *Orchestrator) fail(a *IncidentAnalysis, stage string, kind FailureKind, detail string) {
	a.Failures = append(a.Failures, StageFailure{Stage: stage, Kind: kind, Detail: detail})
	metrics.StageFailures.WithLabelValues(string(kind)).Inc()
	o.logger.Warn("Pipeline stage degraded",
		zap.String("user_id", a.UserID),
		zap.String("stage", stage),
		zap.String("kind", string(kind)),
		zap.String("detail", detail))
}

func emptyTop() models.TopByScale {
	na := models.EmotionScore{Label: models.NotApplicable}
	return models.TopByScale{ShortTerm: na, MidTerm: na, LongTerm: na}
}
