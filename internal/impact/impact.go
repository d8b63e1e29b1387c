// Package impact turns an emotion distribution and its context into a single
// bounded impact score.
package impact

import (
	"math"

	"github.com/xaenox/emotrack/internal/models"
)

const (
	// DefaultRecencyHorizon is the age in days at which recency decays to 0.05.
	DefaultRecencyHorizon = 730

	futureRecency  = 0.7
	maxBoost       = 2.5
	boostSpan      = maxBoost - 1
	minStd         = 0.1
	minBehavior    = 0.8
	maxBehavior    = 1.2
	baselineSmooth = 0.05
)

// Factors are the per-message inputs of the compound formula.
type Factors struct {
	Intensity  float64 `json:"intensity"`
	Recency    float64 `json:"recency"`
	Confidence float64 `json:"confidence"`
	Boost      float64 `json:"boost"`
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// RecencyWeight decays exponentially with age; future events get a fixed weight.
func RecencyWeight(daysAgo, maxDays int) float64 {
	if daysAgo < 0 {
		return futureRecency
	}
	if maxDays <= 0 {
		maxDays = DefaultRecencyHorizon
	}
	lambda := math.Log(0.05) / float64(maxDays)
	return clamp(math.Exp(lambda*float64(daysAgo)), 0, 1)
}

// NormalizedEntropy is the Shannon entropy of d divided by ln(n).
func NormalizedEntropy(d models.Distribution) float64 {
	n := len(d)
	if n <= 1 {
		return 0
	}
	var h float64
	for _, p := range d {
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return clamp(h/math.Log(float64(n)), 0, 1)
}

// EmotionIntensity discounts the top probability only once the distribution is
// more diffuse than the entropy tolerance.
func EmotionIntensity(d models.Distribution, entropyCoeff float64) float64 {
	if len(d) == 0 {
		return 0
	}
	penalty := math.Max(0, NormalizedEntropy(d)-entropyCoeff)
	return clamp(d.Max()*(1-penalty), 0, 1)
}

func RecurrenceBoost(count int, step float64) float64 {
	repeats := count - 1
	if repeats < 0 {
		repeats = 0
	}
	return math.Min(maxBoost, 1+float64(repeats)*step)
}

// NormalizeBoost maps a boost in [1, 2.5] onto [0, 1].
func NormalizeBoost(boost float64) float64 {
	return clamp((boost-1)/boostSpan, 0, 1)
}

// CompoundImpact combines the factors with the user's weights and scales the
// result by typing behaviour. When seconds > 0 the baseline absorbs the
// observed typing speed.
func CompoundImpact(f Factors, w Weights, behaviorAlpha float64, baseline *TypingBaseline, length int, seconds float64) float64 {
	base := w.EmotionIntensity*clamp(f.Intensity, 0, 1) +
		w.Recency*clamp(f.Recency, 0, 1) +
		w.Recurrence*NormalizeBoost(f.Boost) +
		w.TemporalConfidence*clamp(f.Confidence, 0, 1)
	base = clamp(base, 0, 1)

	if baseline == nil {
		return base
	}
	mult := baseline.BehaviorMultiplier(length, seconds, behaviorAlpha)
	if seconds > 0 {
		baseline.Update(float64(length) / seconds)
	}
	return clamp(base*mult, 0, 1)
}
