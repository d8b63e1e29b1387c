package profile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xaenox/emotrack/internal/impact"
)

// maxWeightAdjustments bounds the weight adjustment log kept per profile.
const maxWeightAdjustments = 50

// WeightAdjustment records one step of weight learning.
type WeightAdjustment struct {
	At           time.Time      `json:"timestamp"`
	MessageCount int            `json:"message_count"`
	Old          impact.Weights `json:"old_weights"`
	New          impact.Weights `json:"new_weights"`
	Reason       string         `json:"reason"`
}

func (p *Profile) recordAdjustment(a WeightAdjustment) {
	p.Adjustments = append(p.Adjustments, a)
	if over := len(p.Adjustments) - maxWeightAdjustments; over > 0 {
		p.Adjustments = append([]WeightAdjustment(nil), p.Adjustments[over:]...)
	}
}

// adjustmentReason lists every weight that moved by more than 0.01.
func adjustmentReason(old, next impact.Weights) string {
	var reasons []string
	add := func(name string, before, after float64) {
		diff := after - before
		if math.Abs(diff) <= 0.01 {
			return
		}
		direction := "increased"
		if diff < 0 {
			direction = "decreased"
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s by %.3f", name, direction, math.Abs(diff)))
	}
	add("emotion_intensity", old.EmotionIntensity, next.EmotionIntensity)
	add("recency_weight", old.Recency, next.Recency)
	add("recurrence_boost", old.Recurrence, next.Recurrence)
	add("temporal_confidence", old.TemporalConfidence, next.TemporalConfidence)
	if len(reasons) == 0 {
		return "No significant changes"
	}
	return strings.Join(reasons, " | ")
}
