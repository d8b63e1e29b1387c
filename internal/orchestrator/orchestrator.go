// Package orchestrator runs each incoming message through classification,
// temporal resolution, recurrence detection and impact scoring, and folds the
// result into the sender's profile.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/classifier"
	"github.com/xaenox/emotrack/internal/incident"
	"github.com/xaenox/emotrack/internal/metrics"
	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/profile"
	"github.com/xaenox/emotrack/internal/sink"
	"github.com/xaenox/emotrack/internal/storage"
	"github.com/xaenox/emotrack/internal/temporal"
)

var ErrClosed = errors.New("orchestrator closed")

const DefaultMinProbability = 0.01

type Options struct {
	// MinProbability drops classifier labels below this probability. Zero
	// keeps every positive label; a negative value selects
	// DefaultMinProbability.
	MinProbability float64

	// Now supplies the reference time when a caller passes the zero time.
	Now func() time.Time
}

type Orchestrator struct {
	classifier classifier.EmotionClassifier
	resolver   *temporal.Resolver
	detector   *incident.Detector
	store      storage.Storage
	sink       sink.Sink
	cfg        profile.Config
	opts       Options
	logger     *zap.Logger

	mu     sync.Mutex
	users  map[string]*userState
	closed bool
}

// userState serialises all work on one user's profile.
type userState struct {
	mu      sync.Mutex
	profile *profile.Profile
	dirty   bool
}

func New(
	c classifier.EmotionClassifier,
	resolver *temporal.Resolver,
	detector *incident.Detector,
	store storage.Storage,
	s sink.Sink,
	cfg profile.Config,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if opts.MinProbability < 0 {
		opts.MinProbability = DefaultMinProbability
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if store == nil {
		store = storage.NewMemoryStorage()
	}
	if s == nil {
		s = sink.Discard{}
	}
	return &Orchestrator{
		classifier: c,
		resolver:   resolver,
		detector:   detector,
		store:      store,
		sink:       s,
		cfg:        cfg,
		opts:       opts,
		logger:     logger,
		users:      make(map[string]*userState),
	}
}

// user returns the locked state for userID, loading or creating the profile
// on first sight. The caller must unlock it.
func (o *Orchestrator) user(ctx context.Context, userID string, now time.Time) (*userState, *StageFailure, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, nil, ErrClosed
	}
	u, ok := o.users[userID]
	if !ok {
		u = &userState{}
		o.users[userID] = u
		metrics.ResidentProfiles.Set(float64(len(o.users)))
	}
	o.mu.Unlock()

	u.mu.Lock()
	if u.profile != nil {
		return u, nil, nil
	}

	p, failure := o.load(ctx, userID)
	if p == nil {
		p = profile.New(userID, now, o.cfg)
		u.dirty = true
	}
	u.profile = p
	return u, failure, nil
}

// load reads a stored profile. Missing or unreadable profiles yield nil so
// the caller starts fresh.
func (o *Orchestrator) load(ctx context.Context, userID string) (*profile.Profile, *StageFailure) {
	data, err := o.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err == nil {
		var p *profile.Profile
		if p, err = profile.Load(data, o.cfg); err == nil {
			return p, nil
		}
	}

	o.logger.Warn("Starting fresh profile",
		zap.String("user_id", userID),
		zap.String("kind", string(ProfileLoadFailure)),
		zap.Error(err))
	return nil, &StageFailure{Stage: "profile", Kind: ProfileLoadFailure, Detail: err.Error()}
}

// withProfile runs fn with exclusive access to the user's profile.
func (o *Orchestrator) withProfile(ctx context.Context, userID string, fn func(p *profile.Profile)) error {
	u, _, err := o.user(ctx, userID, o.opts.Now())
	if err != nil {
		return err
	}
	defer u.mu.Unlock()
	fn(u.profile)
	return nil
}

func (o *Orchestrator) TopEmotions(ctx context.Context, userID string, t models.Timescale, n int) ([]models.EmotionScore, error) {
	var out []models.EmotionScore
	err := o.withProfile(ctx, userID, func(p *profile.Profile) { out = p.TopEmotions(t, n) })
	return out, err
}

func (o *Orchestrator) TopByFrequency(ctx context.Context, userID string, n int) ([]profile.FrequencyScore, error) {
	var out []profile.FrequencyScore
	err := o.withProfile(ctx, userID, func(p *profile.Profile) { out = p.TopByFrequency(n) })
	return out, err
}

func (o *Orchestrator) ActivationReport(ctx context.Context, userID string) (map[models.Timescale]profile.ActivationInfo, int, error) {
	var (
		out   map[models.Timescale]profile.ActivationInfo
		count int
	)
	err := o.withProfile(ctx, userID, func(p *profile.Profile) {
		out = p.ActivationReport(o.opts.Now())
		count = p.MessageCount
	})
	return out, count, err
}

// Snapshot serialises the user's profile.
func (o *Orchestrator) Snapshot(ctx context.Context, userID string) ([]byte, error) {
	var (
		data []byte
		serr error
	)
	if err := o.withProfile(ctx, userID, func(p *profile.Profile) { data, serr = p.Snapshot() }); err != nil {
		return nil, err
	}
	return data, serr
}

// RecentRecords returns the user's latest analysis records from storage.
func (o *Orchestrator) RecentRecords(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	return o.store.RecentRecords(ctx, userID, limit)
}

// Checkpoint persists every profile changed since the last checkpoint.
func (o *Orchestrator) Checkpoint(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.CheckpointDuration.Observe(time.Since(start).Seconds()) }()

	o.mu.Lock()
	ids := make([]string, 0, len(o.users))
	for id := range o.users {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	saved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := o.save(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			saved++
		}
	}

	o.logger.Debug("Checkpointed profiles",
		zap.Int("saved", saved),
		zap.Int("resident", len(ids)),
		zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}

func (o *Orchestrator) save(ctx context.Context, userID string) (bool, error) {
	o.mu.Lock()
	u := o.users[userID]
	o.mu.Unlock()
	if u == nil {
		return false, nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.profile == nil || !u.dirty {
		return false, nil
	}
	data, err := u.profile.Snapshot()
	if err != nil {
		return false, err
	}
	if err := o.store.SaveProfile(ctx, userID, data); err != nil {
		return false, fmt.Errorf("save profile %s: %w", userID, err)
	}
	u.dirty = false
	return true, nil
}

// Close persists all profiles and rejects further messages.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return o.Checkpoint(ctx)
}
