package impact

import "math"

// TypingBaseline tracks a user's typing speed in characters per second.
// Std is a mean-absolute-deviation estimate.
type TypingBaseline struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func DefaultTypingBaseline() TypingBaseline {
	return TypingBaseline{Mean: 5.0, Std: 1.0}
}

// ZScore reports how far a message's typing speed is from the baseline.
// ok is false when there is no timing information.
func (b *TypingBaseline) ZScore(length int, seconds float64) (z float64, ok bool) {
	if seconds <= 0 {
		return 0, false
	}
	speed := float64(length) / seconds
	return (speed - b.Mean) / math.Max(b.Std, minStd), true
}

func (b *TypingBaseline) BehaviorMultiplier(length int, seconds, alpha float64) float64 {
	z, ok := b.ZScore(length, seconds)
	if !ok {
		return 1.0
	}
	return clamp(1+alpha*math.Tanh(math.Abs(z)), minBehavior, maxBehavior)
}

// Update folds a new speed into the baseline. The deviation is measured
// against the mean the speed was judged by.
func (b *TypingBaseline) Update(speed float64) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return
	}
	deviation := math.Abs(speed - b.Mean)
	b.Mean = baselineSmooth*speed + (1-baselineSmooth)*b.Mean
	b.Std = baselineSmooth*deviation + (1-baselineSmooth)*b.Std
}
