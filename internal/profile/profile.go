// Package profile holds a user's short, mid and long term emotional state and
// the per-user parameters that tune how new messages move it.
package profile

import (
	"math"
	"time"

	"github.com/xaenox/emotrack/internal/impact"
	"github.com/xaenox/emotrack/internal/models"
)

// Activation triggers reported by ActivationReport.
const (
	ActivatedByBoth     = "both"
	ActivatedByDays     = "days"
	ActivatedByMessages = "messages"
	NotYetActivated     = "not_yet"
)

// Scalars are the per-user parameters nudged after every message.
type Scalars struct {
	EntropyCoeff        float64                `json:"entropy_penalty_coeff"`
	RecurrenceStep      float64                `json:"recurrence_step"`
	BehaviorAlpha       float64                `json:"behavior_alpha"`
	SimilarityThreshold float64                `json:"similarity_threshold"`
	Multipliers         impact.MultiplierTable `json:"state_multipliers"`
}

func DefaultScalars() Scalars {
	return Scalars{
		EntropyCoeff:        defaultEntropyCoeff,
		RecurrenceStep:      defaultRecurrenceStep,
		BehaviorAlpha:       defaultBehaviorAlpha,
		SimilarityThreshold: defaultSimilarityThreshold,
		Multipliers:         impact.DefaultMultiplierTable(),
	}
}

type Profile struct {
	UserID       string
	CreatedAt    time.Time
	LastUpdated  time.Time
	MessageCount int
	AgeDays      int

	States  map[models.Timescale]models.Distribution
	Active  map[models.Timescale]bool
	Weights impact.Weights
	Scalars Scalars
	Typing  impact.TypingBaseline

	// Adjustments is the most recent weight learning steps, oldest first.
	Adjustments []WeightAdjustment

	cfg     Config
	history *History
}

// New returns an empty profile. Only the short term is active.
func New(userID string, now time.Time, cfg Config) *Profile {
	cfg = cfg.withDefaults()
	p := &Profile{
		UserID:      userID,
		CreatedAt:   now,
		LastUpdated: now,
		States:      make(map[models.Timescale]models.Distribution, len(models.Timescales)),
		Active:      make(map[models.Timescale]bool, len(models.Timescales)),
		Weights:     impact.DefaultWeights(),
		Scalars:     DefaultScalars(),
		Typing:      impact.DefaultTypingBaseline(),
		cfg:         cfg,
		history:     NewHistory(cfg.HistorySize),
	}
	for _, t := range models.Timescales {
		p.States[t] = models.NewState()
		p.Active[t] = t == models.ShortTerm
	}
	return p
}

func (p *Profile) Config() Config    { return p.cfg }
func (p *Profile) History() *History { return p.history }

// ProfileAge is the number of whole days between creation and now.
func (p *Profile) ProfileAge(now time.Time) int {
	if now.Before(p.CreatedAt) {
		return 0
	}
	return int(now.Sub(p.CreatedAt) / (24 * time.Hour))
}

func (p *Profile) isActive(t models.Timescale, ageDays int) bool {
	if t == models.ShortTerm {
		return true
	}
	th := p.cfg.Threshold(t)
	return ageDays >= th.MinDays || p.MessageCount >= th.MinMessages
}

// refreshActivation recomputes age and activation. It returns the timescales
// that became active.
func (p *Profile) refreshActivation(now time.Time) []models.Timescale {
	p.AgeDays = p.ProfileAge(now)
	var activated []models.Timescale
	for _, t := range models.Timescales {
		active := p.isActive(t, p.AgeDays)
		if active && !p.Active[t] {
			activated = append(activated, t)
		}
		p.Active[t] = active
	}
	return activated
}

// ActivationInfo reports progress toward a timescale's threshold.
type ActivationInfo struct {
	Active            bool    `json:"is_active"`
	DaysProgress      float64 `json:"days_progress"`
	MessagesProgress  float64 `json:"messages_progress"`
	DaysRemaining     int     `json:"days_remaining"`
	MessagesRemaining int     `json:"messages_remaining"`
	ActivatedBy       string  `json:"activated_by"`
}

// ActivationReport computes activation progress as of now without changing
// the profile.
func (p *Profile) ActivationReport(now time.Time) map[models.Timescale]ActivationInfo {
	age := p.ProfileAge(now)
	report := make(map[models.Timescale]ActivationInfo, len(models.Timescales))
	for _, t := range models.Timescales {
		th := p.cfg.Threshold(t)
		daysMet := age >= th.MinDays
		msgsMet := p.MessageCount >= th.MinMessages

		info := ActivationInfo{
			Active:            daysMet || msgsMet,
			DaysProgress:      progress(age, th.MinDays),
			MessagesProgress:  progress(p.MessageCount, th.MinMessages),
			DaysRemaining:     max(0, th.MinDays-age),
			MessagesRemaining: max(0, th.MinMessages-p.MessageCount),
		}
		switch {
		case daysMet && msgsMet:
			info.ActivatedBy = ActivatedByBoth
		case daysMet:
			info.ActivatedBy = ActivatedByDays
		case msgsMet:
			info.ActivatedBy = ActivatedByMessages
		default:
			info.ActivatedBy = NotYetActivated
		}
		report[t] = info
	}
	return report
}

func progress(have, need int) float64 {
	if need <= 0 {
		return 100
	}
	return math.Min(100, float64(have)/float64(need)*100)
}

// TopEmotions returns the n strongest emotions of a timescale, or a single
// N/A entry when the timescale is inactive or still empty. A negative n
// returns every positive emotion and n == 0 returns an empty slice.
func (p *Profile) TopEmotions(t models.Timescale, n int) []models.EmotionScore {
	if n == 0 {
		return []models.EmotionScore{}
	}
	na := []models.EmotionScore{{Label: models.NotApplicable, Score: 0}}
	if !p.Active[t] {
		return na
	}
	var out []models.EmotionScore
	for _, s := range p.States[t].Top(-1) {
		if s.Score <= 0 || (n >= 0 && len(out) == n) {
			break
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return na
	}
	return out
}

// Top returns the strongest emotion of every timescale.
func (p *Profile) Top() models.TopByScale {
	var top models.TopByScale
	for _, t := range models.Timescales {
		top.Set(t, p.TopEmotions(t, 1)[0])
	}
	return top
}

func (p *Profile) TopByFrequency(n int) []FrequencyScore {
	return p.history.TopByFrequency(n)
}
