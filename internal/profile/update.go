package profile

import (
	"math"
	"time"

	"github.com/xaenox/emotrack/internal/impact"
	"github.com/xaenox/emotrack/internal/incident"
	"github.com/xaenox/emotrack/internal/models"
)

const (
	defaultEntropyCoeff        = 0.3
	defaultRecurrenceStep      = 0.3
	defaultBehaviorAlpha       = 0.2
	defaultSimilarityThreshold = incident.DefaultSimilarityThreshold

	entropyRate    = 0.05
	recurrenceRate = 0.05
	behaviorRate   = 0.03
	similarityRate = 0.05
	multiplierRate = 0.02

	minSimilarityThreshold = 0.1
	maxSimilarityThreshold = 0.4
)

// Observation is everything the profile learns from one message.
type Observation struct {
	Text     string
	Emotions models.Distribution
	Entities []string
	Impact   float64
	Factors  impact.Factors

	Age           models.AgeCategory
	AgeConfidence float64
	AgeResolved   bool

	Recurrence incident.Result

	// TypingZ is the message's typing-speed z-score; HasTyping is false when
	// no writing time was given.
	TypingZ   float64
	HasTyping bool
}

// StateChange describes what Apply did to each active timescale.
type StateChange struct {
	Alpha     map[models.Timescale]float64             `json:"alpha"`
	Targets   map[models.Timescale]models.Distribution `json:"targets"`
	Deltas    map[models.Timescale]models.Distribution `json:"deltas"`
	Activated []models.Timescale                       `json:"activated,omitempty"`
	Weights   impact.Weights                           `json:"weights"`
}

// Factors computes the compound-impact inputs for a message using this
// profile's entropy tolerance and recurrence step.
func (p *Profile) Factors(emotions models.Distribution, daysAgo int, confidence float64, incidents int) impact.Factors {
	return impact.Factors{
		Intensity:  impact.EmotionIntensity(emotions, p.Scalars.EntropyCoeff),
		Recency:    impact.RecencyWeight(daysAgo, impact.DefaultRecencyHorizon),
		Confidence: clamp(confidence, 0, 1),
		Boost:      impact.RecurrenceBoost(incidents, p.Scalars.RecurrenceStep),
	}
}

// Score computes the compound impact of a message with this profile's
// weights, behaviour alpha and typing baseline. The baseline absorbs the
// message's typing speed when seconds > 0.
func (p *Profile) Score(f impact.Factors, length int, seconds float64) (score, z float64, hasTyping bool) {
	z, hasTyping = p.Typing.ZScore(length, seconds)
	score = impact.CompoundImpact(f, p.Weights, p.Scalars.BehaviorAlpha, &p.Typing, length, seconds)
	return score, z, hasTyping
}

// Apply folds one message into the profile.
func (p *Profile) Apply(obs Observation, now time.Time) StateChange {
	n := p.MessageCount
	p.MessageCount++
	p.LastUpdated = now

	change := StateChange{
		Alpha:     make(map[models.Timescale]float64),
		Targets:   make(map[models.Timescale]models.Distribution),
		Deltas:    make(map[models.Timescale]models.Distribution),
		Activated: p.refreshActivation(now),
	}

	mult := impact.MultipliersFor(obs.Age, p.Scalars.Multipliers)
	k := p.cfg.Learning.DecayConstant
	score := clamp(obs.Impact, 0, 1)

	for _, t := range models.Timescales {
		if !p.Active[t] {
			continue
		}
		alpha := LearningRate(p.cfg.BaseRate(t), n, k)
		change.Alpha[t] = alpha

		targets := make(models.Distribution)
		deltas := make(models.Distribution)
		state := p.States[t]
		for _, label := range models.Labels {
			target := obs.Emotions[label] * score * mult[t]
			if target > 0 {
				targets[label] = target
			}
			old := state[label]
			next := clamp(alpha*target+(1-alpha)*old, 0, 1)
			state[label] = next
			if d := next - old; d != 0 {
				deltas[label] = d
			}
		}
		change.Targets[t] = targets
		change.Deltas[t] = deltas
	}

	p.learnWeights(obs.Factors, n, k, now)
	p.nudgeScalars(obs)
	change.Weights = p.Weights

	p.history.Append(Entry{
		Text:      obs.Text,
		Timestamp: now,
		Emotions:  obs.Emotions.Clone(),
		Impact:    score,
		Age:       obs.Age,
		Entities:  obs.Entities,
	})
	return change
}

// learnWeights moves the weights toward the split of factors seen in this
// message and renormalises them.
func (p *Profile) learnWeights(f impact.Factors, n int, k float64, now time.Time) {
	observed, ok := impact.Observed(f)
	if !ok {
		return
	}
	old := p.Weights
	rates := p.cfg.Learning.WeightRates
	ema := func(old, target, base float64) float64 {
		r := LearningRate(base, n, k)
		return r*target + (1-r)*old
	}
	p.Weights = impact.Weights{
		EmotionIntensity:   ema(p.Weights.EmotionIntensity, observed.EmotionIntensity, rates.EmotionIntensity),
		Recency:            ema(p.Weights.Recency, observed.Recency, rates.Recency),
		Recurrence:         ema(p.Weights.Recurrence, observed.Recurrence, rates.Recurrence),
		TemporalConfidence: ema(p.Weights.TemporalConfidence, observed.TemporalConfidence, rates.TemporalConfidence),
	}.Normalize()
	p.recordAdjustment(WeightAdjustment{
		At:           now,
		MessageCount: p.MessageCount,
		Old:          old,
		New:          p.Weights,
		Reason:       adjustmentReason(old, p.Weights),
	})
}

func nudge(old, target, rate float64) float64 {
	return rate*target + (1-rate)*old
}

func (p *Profile) nudgeScalars(obs Observation) {
	s := &p.Scalars

	if len(obs.Emotions) > 0 {
		s.EntropyCoeff = clamp(nudge(s.EntropyCoeff, impact.NormalizedEntropy(obs.Emotions), entropyRate), 0.1, 0.9)
	}

	stepTarget := defaultRecurrenceStep
	if len(obs.Recurrence.SimilarMessages) > 0 {
		stepTarget = clamp(0.15+0.5*obs.Recurrence.AverageSimilarity, 0.1, 0.6)
	}
	s.RecurrenceStep = clamp(nudge(s.RecurrenceStep, stepTarget, recurrenceRate), 0.05, 1.0)

	alphaTarget := defaultBehaviorAlpha
	if obs.HasTyping {
		alphaTarget = clamp(defaultBehaviorAlpha*(1.5-math.Tanh(math.Abs(obs.TypingZ))), 0.05, 0.3)
	}
	s.BehaviorAlpha = clamp(nudge(s.BehaviorAlpha, alphaTarget, behaviorRate), 0, 0.5)

	thresholdTarget := defaultSimilarityThreshold
	if len(obs.Entities) > 0 && obs.Recurrence.Compared > 0 {
		thresholdTarget = clamp(obs.Recurrence.MaxSimilarity*0.8, minSimilarityThreshold, maxSimilarityThreshold)
	}
	s.SimilarityThreshold = clamp(nudge(s.SimilarityThreshold, thresholdTarget, similarityRate), minSimilarityThreshold, maxSimilarityThreshold)

	if obs.AgeResolved {
		p.nudgeMultipliers(obs.Age, clamp(obs.AgeConfidence, 0, 1))
	}
}

// nudgeMultipliers pulls the row for age toward its default, blended with the
// unknown row by how unsure the temporal resolution was.
func (p *Profile) nudgeMultipliers(age models.AgeCategory, conf float64) {
	defaults := impact.DefaultMultiplierTable()
	want, ok := defaults[age]
	if !ok {
		return
	}
	unknown := defaults[models.AgeUnknown]
	if p.Scalars.Multipliers == nil {
		p.Scalars.Multipliers = defaults.Clone()
	}
	row := impact.MultipliersFor(age, p.Scalars.Multipliers)
	for _, t := range models.Timescales {
		target := conf*want[t] + (1-conf)*unknown[t]
		if want[t] == 0 {
			target = 0
		}
		row[t] = clamp(nudge(row[t], target, multiplierRate), 0, 1)
	}
	p.Scalars.Multipliers[age] = row
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
