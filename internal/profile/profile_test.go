package profile

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/emotrack/internal/impact"
	"github.com/xaenox/emotrack/internal/incident"
	"github.com/xaenox/emotrack/internal/models"
)

var t0 = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

func observe(label string, prob float64) Observation {
	return Observation{
		Text:     "feeling " + label,
		Emotions: models.Distribution{label: prob},
		Entities: []string{label},
		Impact:   0.9,
		Factors:  impact.Factors{Intensity: prob, Recency: 1, Confidence: 0.5, Boost: 1},
		Age:      models.AgeRecent,
	}
}

func feed(p *Profile, o Observation, n int) {
	for i := 0; i < n; i++ {
		p.Apply(o, t0)
	}
}

func TestLearningRate(t *testing.T) {
	const base, k = 0.3, 200.0

	assert.InDelta(t, base, LearningRate(base, 0, k), 1e-12)
	assert.InDelta(t, base/2, LearningRate(base, 200, k), 1e-12)

	prev := LearningRate(base, 0, k)
	for n := 1; n < 5000; n += 13 {
		a := LearningRate(base, n, k)
		assert.Less(t, a, prev)
		assert.Greater(t, a, 0.0)
		prev = a
	}

	assert.Equal(t, base, LearningRate(base, 50, 0), "no decay without a constant")
}

func TestNewProfile(t *testing.T) {
	p := New("u1", t0, DefaultConfig())

	assert.Zero(t, p.MessageCount)
	for _, ts := range models.Timescales {
		require.Len(t, p.States[ts], len(models.Labels))
		for label, v := range p.States[ts] {
			assert.Zero(t, v, "%s/%s", ts, label)
		}
	}
	assert.True(t, p.Active[models.ShortTerm])
	assert.False(t, p.Active[models.MidTerm])
	assert.False(t, p.Active[models.LongTerm])

	assert.Equal(t, models.NotApplicable, p.TopEmotions(models.MidTerm, 3)[0].Label)
	assert.Equal(t, models.NotApplicable, p.TopEmotions(models.ShortTerm, 3)[0].Label, "nothing accumulated yet")
	assert.Equal(t, impact.DefaultWeights(), p.Weights)
}

func TestApplyUpdatesOnlyActiveTimescales(t *testing.T) {
	p := New("u1", t0, DefaultConfig())

	change := p.Apply(observe("joy", 0.8), t0)

	assert.Equal(t, 1, p.MessageCount)
	assert.InDelta(t, 0.3, change.Alpha[models.ShortTerm], 1e-12, "alpha uses the count before this message")
	assert.NotContains(t, change.Alpha, models.MidTerm)

	want := 0.3 * (0.8 * 0.9 * 1.0)
	assert.InDelta(t, want, p.States[models.ShortTerm]["joy"], 1e-12)
	assert.InDelta(t, want, change.Deltas[models.ShortTerm]["joy"], 1e-12)
	assert.Zero(t, p.States[models.MidTerm]["joy"])
	assert.Zero(t, p.States[models.LongTerm]["joy"])

	top := p.TopEmotions(models.ShortTerm, 5)
	require.Len(t, top, 1)
	assert.Equal(t, "joy", top[0].Label)
}

func TestHybridActivation(t *testing.T) {
	t.Run("by messages", func(t *testing.T) {
		p := New("u1", t0, DefaultConfig())
		feed(p, observe("joy", 0.5), 29)
		assert.False(t, p.Active[models.MidTerm])

		change := p.Apply(observe("joy", 0.5), t0)
		assert.Equal(t, []models.Timescale{models.MidTerm}, change.Activated)
		assert.True(t, p.Active[models.MidTerm])
		assert.False(t, p.Active[models.LongTerm])

		report := p.ActivationReport(t0)
		assert.Equal(t, ActivatedByMessages, report[models.MidTerm].ActivatedBy)
		assert.Equal(t, NotYetActivated, report[models.LongTerm].ActivatedBy)
		assert.Equal(t, 20, report[models.LongTerm].MessagesRemaining)
		assert.InDelta(t, 60.0, report[models.LongTerm].MessagesProgress, 1e-9)
	})

	t.Run("by days", func(t *testing.T) {
		p := New("u1", t0, DefaultConfig())
		later := t0.Add(15 * 24 * time.Hour)
		p.Apply(observe("joy", 0.5), later)

		assert.Equal(t, 15, p.AgeDays)
		assert.True(t, p.Active[models.MidTerm])
		assert.False(t, p.Active[models.LongTerm])
		assert.Equal(t, ActivatedByDays, p.ActivationReport(later)[models.MidTerm].ActivatedBy)
	})

	t.Run("fresh report", func(t *testing.T) {
		p := New("u1", t0, DefaultConfig())
		report := p.ActivationReport(t0)

		assert.True(t, report[models.ShortTerm].Active)
		assert.Equal(t, ActivatedByBoth, report[models.ShortTerm].ActivatedBy)
		assert.Equal(t, 100.0, report[models.ShortTerm].DaysProgress)

		mid := report[models.MidTerm]
		assert.False(t, mid.Active)
		assert.Equal(t, 14, mid.DaysRemaining)
		assert.Equal(t, 30, mid.MessagesRemaining)
		assert.Zero(t, mid.DaysProgress)
	})
}

func TestWeightsAlwaysSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := New("u1", t0, DefaultConfig())

	for i := 0; i < 300; i++ {
		o := observe(models.Labels[rng.Intn(len(models.Labels))], rng.Float64())
		o.Factors = impact.Factors{
			Intensity:  rng.Float64(),
			Recency:    rng.Float64(),
			Confidence: rng.Float64(),
			Boost:      1 + rng.Float64()*2,
		}
		if i%17 == 0 {
			o.Factors = impact.Factors{Boost: 1}
		}
		change := p.Apply(o, t0)
		require.InDelta(t, 1.0, p.Weights.Sum(), 1e-6, "message %d", i)
		require.InDelta(t, 1.0, change.Weights.Sum(), 1e-6)
	}
}

func TestWeightsMoveTowardObservedSplit(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	o := observe("joy", 0.9)
	o.Factors = impact.Factors{Intensity: 0, Recency: 0, Confidence: 1, Boost: 1}

	before := p.Weights.TemporalConfidence
	p.Apply(o, t0)
	assert.Greater(t, p.Weights.TemporalConfidence, before)
}

func TestWeightAdjustmentLog(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	o := observe("joy", 0.9)
	o.Factors = impact.Factors{Intensity: 0, Recency: 0, Confidence: 1, Boost: 1}

	p.Apply(o, t0)
	require.Len(t, p.Adjustments, 1)
	first := p.Adjustments[0]
	assert.Equal(t, 1, first.MessageCount)
	assert.True(t, first.At.Equal(t0))
	assert.Equal(t, impact.DefaultWeights(), first.Old)
	assert.Equal(t, p.Weights, first.New)
	assert.Contains(t, first.Reason, "temporal_confidence: increased by")

	feed(p, o, maxWeightAdjustments+10)
	require.Len(t, p.Adjustments, maxWeightAdjustments)
	assert.Equal(t, maxWeightAdjustments+11, p.Adjustments[len(p.Adjustments)-1].MessageCount)

	// nothing observed, nothing learned
	noFactors := observe("joy", 0.5)
	noFactors.Factors = impact.Factors{Boost: 1}
	before := len(p.Adjustments)
	p.Apply(noFactors, t0)
	assert.Len(t, p.Adjustments, before)
}

func TestAdjustmentReason(t *testing.T) {
	w := impact.DefaultWeights()
	assert.Equal(t, "No significant changes", adjustmentReason(w, w))

	next := w
	next.Recency -= 0.05
	next.Recurrence += 0.05
	assert.Equal(t, "recency_weight: decreased by 0.050 | recurrence_boost: increased by 0.050", adjustmentReason(w, next))
}

func TestTopEmotionsZero(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	p.Apply(observe("joy", 0.9), t0)
	assert.Empty(t, p.TopEmotions(models.ShortTerm, 0))
	assert.Equal(t, "joy", p.TopEmotions(models.ShortTerm, -1)[0].Label)
	assert.Equal(t, models.NotApplicable, p.TopEmotions(models.LongTerm, 3)[0].Label)
}

func TestShortTermDecaysFasterThanLongTerm(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	feed(p, observe("joy", 0.9), 100)

	require.True(t, p.Active[models.LongTerm])
	shortBefore := p.States[models.ShortTerm]["joy"]
	longBefore := p.States[models.LongTerm]["joy"]
	require.Greater(t, longBefore, 0.0)

	feed(p, observe("anger", 0.9), 5)

	shortRatio := p.States[models.ShortTerm]["joy"] / shortBefore
	longRatio := p.States[models.LongTerm]["joy"] / longBefore
	assert.Less(t, shortRatio, 1.0)
	assert.Greater(t, longRatio, 0.9)
	assert.Greater(t, longRatio, shortRatio)
	assert.Greater(t, p.States[models.ShortTerm]["anger"], 0.0)
}

func TestJoyDecaysUnderAnger(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	feed(p, observe("joy", 0.9), 10)
	before := p.States[models.ShortTerm]["joy"]

	feed(p, observe("anger", 0.9), 5)

	assert.Less(t, p.States[models.ShortTerm]["joy"], 0.5*before)
}

func TestFutureEventsNeverReachLongTerm(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	o := observe("nervousness", 0.9)
	o.Age = models.AgeFuture
	o.AgeConfidence = 1
	o.AgeResolved = true
	feed(p, o, 60)

	require.True(t, p.Active[models.LongTerm])
	assert.Zero(t, p.States[models.LongTerm]["nervousness"])
	assert.Zero(t, p.Scalars.Multipliers[models.AgeFuture][models.LongTerm])
}

func TestScalarsStayBounded(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	for i := 0; i < 500; i++ {
		o := observe("grief", 0.9)
		o.Recurrence = incident.Result{
			IncidentCount:     3,
			SimilarMessages:   make([]incident.Match, 2),
			AverageSimilarity: 1,
			MaxSimilarity:     1,
			Compared:          10,
		}
		o.HasTyping = true
		o.TypingZ = 0
		o.AgeResolved = true
		o.AgeConfidence = 0
		p.Apply(o, t0)
	}

	s := p.Scalars
	assert.GreaterOrEqual(t, s.SimilarityThreshold, 0.1)
	assert.LessOrEqual(t, s.SimilarityThreshold, 0.4)
	assert.InDelta(t, 0.4, s.SimilarityThreshold, 0.01)
	assert.InDelta(t, 0.6, s.RecurrenceStep, 0.01)
	assert.InDelta(t, 0.3, s.BehaviorAlpha, 0.01)
	assert.GreaterOrEqual(t, s.EntropyCoeff, 0.1)

	recent := s.Multipliers[models.AgeRecent]
	unknown := impact.DefaultMultiplierTable()[models.AgeUnknown]
	assert.InDelta(t, unknown[models.ShortTerm], recent[models.ShortTerm], 0.01)
}

func TestScoreUsesProfileBaseline(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	f := p.Factors(models.Distribution{"joy": 0.8}, 0, 0.5, 1)

	score, _, ok := p.Score(f, 20, 0)
	assert.False(t, ok)
	assert.InDelta(t, 0.45*0.8+0.30*1+0.10*0.5, score, 1e-9)
	assert.Equal(t, impact.DefaultTypingBaseline(), p.Typing)

	_, z, ok := p.Score(f, 50, 1)
	assert.True(t, ok)
	assert.InDelta(t, 45.0, z, 1e-9)
	assert.NotEqual(t, impact.DefaultTypingBaseline(), p.Typing)
}

func TestTopByFrequency(t *testing.T) {
	p := New("u1", t0, DefaultConfig())
	p.Apply(Observation{Emotions: models.Distribution{"joy": 0.9, "love": 0.4}}, t0)
	p.Apply(Observation{Emotions: models.Distribution{"joy": 0.5, "love": 0.8}}, t0)
	p.Apply(Observation{Emotions: models.Distribution{"fear": 0.3}}, t0)

	top := p.TopByFrequency(3)
	require.Len(t, top, 3)
	assert.Equal(t, "joy", top[0].Label, "equal counts fall back to the average score")
	assert.Equal(t, 2, top[0].Count)
	assert.InDelta(t, 0.7, top[0].AverageScore, 1e-9)
	assert.Equal(t, "love", top[1].Label)
	assert.Equal(t, "fear", top[2].Label)
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	p := New("u1", t0, cfg)
	for i, label := range []string{"joy", "sadness", "grief", "joy", "anger"} {
		o := observe(label, 0.7)
		o.HasTyping = true
		o.TypingZ = float64(i)
		p.Apply(o, t0.Add(time.Duration(i)*time.Hour))
	}
	p.Score(impact.Factors{Intensity: 0.5, Boost: 1}, 30, 2)

	data, err := p.Snapshot()
	require.NoError(t, err)

	got, err := Load(data, cfg)
	require.NoError(t, err)

	assert.Equal(t, p.UserID, got.UserID)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, p.MessageCount, got.MessageCount)
	assert.Equal(t, p.Active, got.Active)
	assert.InDelta(t, p.Weights.EmotionIntensity, got.Weights.EmotionIntensity, 1e-9)
	assert.InDelta(t, p.Weights.Recurrence, got.Weights.Recurrence, 1e-9)
	assert.InDelta(t, p.Scalars.BehaviorAlpha, got.Scalars.BehaviorAlpha, 1e-12)
	assert.InDelta(t, p.Typing.Mean, got.Typing.Mean, 1e-12)
	for _, ts := range models.Timescales {
		for _, label := range models.Labels {
			assert.InDelta(t, p.States[ts][label], got.States[ts][label], 1e-12)
		}
	}
	assert.Equal(t, p.History().Len(), got.History().Len())
	assert.Equal(t, p.TopByFrequency(5), got.TopByFrequency(5))

	require.Len(t, got.Adjustments, len(p.Adjustments))
	for i := range p.Adjustments {
		assert.Equal(t, p.Adjustments[i].Reason, got.Adjustments[i].Reason)
		assert.Equal(t, p.Adjustments[i].MessageCount, got.Adjustments[i].MessageCount)
	}
}

func TestLoadRejectsBadData(t *testing.T) {
	_, err := Load([]byte("{not json"), DefaultConfig())
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))

	_, err = Load([]byte(`{"version":1}`), DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = Load([]byte(`{"version":99,"user_id":"u"}`), DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestLoadSanitizes(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"user_id": "u2",
		"message_count": 3,
		"short_term_state": {"joy": 4, "bogus": 0.5},
		"adaptive_weights": {"emotion_intensity": 5, "recency_weight": 5},
		"adaptive_scalars": {"similarity_threshold": 0.9}
	}`)
	p, err := Load(data, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 1.0, p.States[models.ShortTerm]["joy"])
	assert.NotContains(t, p.States[models.ShortTerm], "bogus")
	assert.InDelta(t, 1.0, p.Weights.Sum(), 1e-9)
	assert.Equal(t, 0.4, p.Scalars.SimilarityThreshold)
	assert.Equal(t, 0.3, p.Scalars.EntropyCoeff)
	assert.NotNil(t, p.Scalars.Multipliers[models.AgeRecent])
}
