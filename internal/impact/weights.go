package impact

// Weights split the compound impact across its four factors. They sum to 1.
type Weights struct {
	EmotionIntensity   float64 `json:"emotion_intensity" mapstructure:"emotion_intensity"`
	Recency            float64 `json:"recency_weight" mapstructure:"recency_weight"`
	Recurrence         float64 `json:"recurrence_boost" mapstructure:"recurrence_boost"`
	TemporalConfidence float64 `json:"temporal_confidence" mapstructure:"temporal_confidence"`
}

// DefaultWeights ranks emotion > recency > repetition > confidence.
func DefaultWeights() Weights {
	return Weights{
		EmotionIntensity:   0.45,
		Recency:            0.30,
		Recurrence:         0.15,
		TemporalConfidence: 0.10,
	}
}

func (w Weights) Sum() float64 {
	return w.EmotionIntensity + w.Recency + w.Recurrence + w.TemporalConfidence
}

// Normalize rescales the weights to sum to 1, falling back to the defaults
// when nothing positive is left.
func (w Weights) Normalize() Weights {
	w.EmotionIntensity = clamp(w.EmotionIntensity, 0, 1)
	w.Recency = clamp(w.Recency, 0, 1)
	w.Recurrence = clamp(w.Recurrence, 0, 1)
	w.TemporalConfidence = clamp(w.TemporalConfidence, 0, 1)

	total := w.Sum()
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{
		EmotionIntensity:   w.EmotionIntensity / total,
		Recency:            w.Recency / total,
		Recurrence:         w.Recurrence / total,
		TemporalConfidence: w.TemporalConfidence / total,
	}
}

// Observed returns the proportional split of the factors actually computed for
// a message. ok is false when every factor is zero.
func Observed(f Factors) (w Weights, ok bool) {
	w = Weights{
		EmotionIntensity:   clamp(f.Intensity, 0, 1),
		Recency:            clamp(f.Recency, 0, 1),
		Recurrence:         NormalizeBoost(f.Boost),
		TemporalConfidence: clamp(f.Confidence, 0, 1),
	}
	total := w.Sum()
	if total <= 0 {
		return Weights{}, false
	}
	return Weights{
		EmotionIntensity:   w.EmotionIntensity / total,
		Recency:            w.Recency / total,
		Recurrence:         w.Recurrence / total,
		TemporalConfidence: w.TemporalConfidence / total,
	}, true
}
