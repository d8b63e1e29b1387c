package models

import (
	"sort"
)

// NotApplicable is the label reported for a timescale that is not active yet.
const NotApplicable = "N/A"

// Labels is the emotion taxonomy produced by the classifier.
var Labels = []string{
	"admiration", "amusement", "anger", "annoyance", "approval",
	"caring", "confusion", "curiosity", "desire", "disappointment",
	"disapproval", "disgust", "embarrassment", "excitement", "fear",
	"gratitude", "grief", "joy", "love", "nervousness",
	"neutral", "optimism", "pride", "realization", "relief",
	"remorse", "sadness", "surprise",
}

var labelSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Labels))
	for _, l := range Labels {
		set[l] = struct{}{}
	}
	return set
}()

func IsLabel(label string) bool {
	_, ok := labelSet[label]
	return ok
}

// Timescale identifies one of the three emotional accumulators.
type Timescale string

const (
	ShortTerm Timescale = "short_term"
	MidTerm   Timescale = "mid_term"
	LongTerm  Timescale = "long_term"
)

var Timescales = []Timescale{ShortTerm, MidTerm, LongTerm}

// AgeCategory buckets a resolved date relative to the reference time.
type AgeCategory string

const (
	AgeRecent  AgeCategory = "recent"
	AgeMedium  AgeCategory = "medium"
	AgeDistant AgeCategory = "distant"
	AgeFuture  AgeCategory = "future"
	AgeUnknown AgeCategory = "unknown"
)

// EmotionScore is a single label with its score.
type EmotionScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Distribution maps emotion labels to probabilities in [0,1].
type Distribution map[string]float64

// Top returns the n highest scoring labels, ties broken alphabetically.
func (d Distribution) Top(n int) []EmotionScore {
	scores := make([]EmotionScore, 0, len(d))
	for label, score := range d {
		scores = append(scores, EmotionScore{Label: label, Score: score})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})
	if n >= 0 && len(scores) > n {
		scores = scores[:n]
	}
	return scores
}

// Max returns the highest probability, or 0 for an empty distribution.
func (d Distribution) Max() float64 {
	var max float64
	for _, p := range d {
		if p > max {
			max = p
		}
	}
	return max
}

// Filter keeps known labels whose probability is at least min, clamped to [0,1].
func (d Distribution) Filter(min float64) Distribution {
	out := make(Distribution, len(d))
	for label, p := range d {
		if !IsLabel(label) {
			continue
		}
		if p > 1 {
			p = 1
		}
		if p <= 0 || p < min {
			continue
		}
		out[label] = p
	}
	return out
}

func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// NewState returns a zeroed accumulator covering every label.
func NewState() Distribution {
	state := make(Distribution, len(Labels))
	for _, l := range Labels {
		state[l] = 0
	}
	return state
}
