package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/emotrack/internal/impact"
	"github.com/xaenox/emotrack/internal/models"
)

const snapshotVersion = 1

// ErrInvalidSnapshot is returned by Load for data that cannot be resumed.
var ErrInvalidSnapshot = errors.New("invalid profile snapshot")

type snapshot struct {
	Version        int                       `json:"version"`
	UserID         string                    `json:"user_id"`
	CreatedAt      time.Time                 `json:"created_at"`
	LastUpdated    time.Time                 `json:"last_updated"`
	MessageCount   int                       `json:"message_count"`
	ProfileAgeDays int                       `json:"profile_age_days"`
	ShortTerm      models.Distribution       `json:"short_term_state"`
	MidTerm        models.Distribution       `json:"mid_term_state"`
	LongTerm       models.Distribution       `json:"long_term_state"`
	Active         map[models.Timescale]bool `json:"state_activation_status"`
	Activation     Activation                `json:"activation_config"`
	Weights        impact.Weights            `json:"adaptive_weights"`
	Scalars        Scalars                   `json:"adaptive_scalars"`
	Typing         impact.TypingBaseline     `json:"typing_baseline"`
	History        []Entry                   `json:"message_history"`
	Adjustments    []WeightAdjustment        `json:"weight_adjustment_history,omitempty"`
}

// Snapshot serialises the full profile, history included.
func (p *Profile) Snapshot() ([]byte, error) {
	s := snapshot{
		Version:        snapshotVersion,
		UserID:         p.UserID,
		CreatedAt:      p.CreatedAt,
		LastUpdated:    p.LastUpdated,
		MessageCount:   p.MessageCount,
		ProfileAgeDays: p.AgeDays,
		ShortTerm:      p.States[models.ShortTerm],
		MidTerm:        p.States[models.MidTerm],
		LongTerm:       p.States[models.LongTerm],
		Active:         p.Active,
		Activation:     p.cfg.Activation,
		Weights:        p.Weights,
		Scalars:        p.Scalars,
		Typing:         p.Typing,
		History:        p.history.Entries(),
		Adjustments:    p.Adjustments,
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal profile %s: %w", p.UserID, err)
	}
	return data, nil
}

// Load restores a profile written by Snapshot. Activation thresholds and
// learning rates come from cfg, not from the snapshot, so a deployment can
// change them without rewriting stored profiles.
func Load(data []byte, cfg Config) (*Profile, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidSnapshot)
	}
	if s.Version > snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, s.Version)
	}
	if s.MessageCount < 0 {
		return nil, fmt.Errorf("%w: negative message count", ErrInvalidSnapshot)
	}

	p := New(s.UserID, s.CreatedAt, cfg)
	p.LastUpdated = s.LastUpdated
	p.MessageCount = s.MessageCount
	p.AgeDays = s.ProfileAgeDays

	restore := func(t models.Timescale, d models.Distribution) {
		for label, v := range d {
			if models.IsLabel(label) {
				p.States[t][label] = clamp(v, 0, 1)
			}
		}
	}
	restore(models.ShortTerm, s.ShortTerm)
	restore(models.MidTerm, s.MidTerm)
	restore(models.LongTerm, s.LongTerm)

	p.refreshActivation(p.LastUpdated)

	p.Weights = s.Weights.Normalize()
	p.Scalars = sanitizeScalars(s.Scalars)
	if s.Typing.Mean > 0 && s.Typing.Std > 0 {
		p.Typing = s.Typing
	}
	for _, e := range s.History {
		p.history.Append(e)
	}
	for _, a := range s.Adjustments {
		p.recordAdjustment(a)
	}
	return p, nil
}

func sanitizeScalars(s Scalars) Scalars {
	d := DefaultScalars()
	orDefault := func(v, def, lo, hi float64) float64 {
		if v <= 0 {
			return def
		}
		return clamp(v, lo, hi)
	}
	out := Scalars{
		EntropyCoeff:        orDefault(s.EntropyCoeff, d.EntropyCoeff, 0.1, 0.9),
		RecurrenceStep:      orDefault(s.RecurrenceStep, d.RecurrenceStep, 0.05, 1.0),
		BehaviorAlpha:       orDefault(s.BehaviorAlpha, d.BehaviorAlpha, 0, 0.5),
		SimilarityThreshold: orDefault(s.SimilarityThreshold, d.SimilarityThreshold, minSimilarityThreshold, maxSimilarityThreshold),
		Multipliers:         d.Multipliers,
	}
	for age, row := range s.Multipliers {
		if _, ok := out.Multipliers[age]; !ok {
			continue
		}
		out.Multipliers[age] = impact.MultipliersFor(age, impact.MultiplierTable{age: row})
	}
	return out
}
