package profile

import (
	"github.com/xaenox/emotrack/internal/impact"
	"github.com/xaenox/emotrack/internal/models"
)

// Threshold activates a timescale once the profile is MinDays old OR has seen
// MinMessages messages.
type Threshold struct {
	MinDays     int `json:"min_days" mapstructure:"min_days"`
	MinMessages int `json:"min_messages" mapstructure:"min_messages"`
}

// Activation holds thresholds for the timescales that are not always on.
type Activation struct {
	MidTerm  Threshold `json:"mid_term" mapstructure:"mid_term"`
	LongTerm Threshold `json:"long_term" mapstructure:"long_term"`
}

type Learning struct {
	ShortTermRate float64 `json:"short_term_rate" mapstructure:"short_term_rate"`
	MidTermRate   float64 `json:"mid_term_rate" mapstructure:"mid_term_rate"`
	LongTermRate  float64 `json:"long_term_rate" mapstructure:"long_term_rate"`

	// DecayConstant is the message count at which every rate has halved.
	DecayConstant float64        `json:"decay_constant" mapstructure:"decay_constant"`
	WeightRates   impact.Weights `json:"weight_rates" mapstructure:"weight_rates"`
}

type Config struct {
	Activation  Activation `json:"activation" mapstructure:"activation"`
	Learning    Learning   `json:"learning" mapstructure:"learning"`
	HistorySize int        `json:"history_size" mapstructure:"history_size"`
}

func DefaultConfig() Config {
	return Config{
		Activation: Activation{
			MidTerm:  Threshold{MinDays: 14, MinMessages: 30},
			LongTerm: Threshold{MinDays: 90, MinMessages: 50},
		},
		Learning: Learning{
			ShortTermRate: 0.30,
			MidTermRate:   0.125,
			LongTermRate:  0.02,
			DecayConstant: 200,
			WeightRates: impact.Weights{
				EmotionIntensity:   0.12,
				Recency:            0.15,
				Recurrence:         0.25,
				TemporalConfidence: 0.20,
			},
		},
		HistorySize: 500,
	}
}

// withDefaults fills zero values so a partially configured deployment still
// gets a working profile.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Activation == (Activation{}) {
		c.Activation = d.Activation
	}
	if c.Learning.ShortTermRate <= 0 {
		c.Learning.ShortTermRate = d.Learning.ShortTermRate
	}
	if c.Learning.MidTermRate <= 0 {
		c.Learning.MidTermRate = d.Learning.MidTermRate
	}
	if c.Learning.LongTermRate <= 0 {
		c.Learning.LongTermRate = d.Learning.LongTermRate
	}
	if c.Learning.DecayConstant <= 0 {
		c.Learning.DecayConstant = d.Learning.DecayConstant
	}
	if c.Learning.WeightRates.Sum() <= 0 {
		c.Learning.WeightRates = d.Learning.WeightRates
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}

// Threshold returns the activation threshold for t. The short term has none.
func (c Config) Threshold(t models.Timescale) Threshold {
	switch t {
	case models.MidTerm:
		return c.Activation.MidTerm
	case models.LongTerm:
		return c.Activation.LongTerm
	default:
		return Threshold{}
	}
}

func (c Config) BaseRate(t models.Timescale) float64 {
	switch t {
	case models.ShortTerm:
		return c.Learning.ShortTermRate
	case models.MidTerm:
		return c.Learning.MidTermRate
	case models.LongTerm:
		return c.Learning.LongTermRate
	default:
		return 0
	}
}

// LearningRate is base/(1+n/k): it starts at base, halves at n=k and keeps
// shrinking as the profile matures.
func LearningRate(base float64, n int, k float64) float64 {
	if n < 0 {
		n = 0
	}
	if k <= 0 {
		return base
	}
	return base / (1 + float64(n)/k)
}
