// Package sink delivers analysis records to telemetry and storage
// destinations.
package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/storage"
)

type Sink interface {
	Publish(ctx context.Context, record *models.AnalysisRecord) error
}

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, r *models.AnalysisRecord) error {
	s.logger.Info("Message analysed",
		zap.String("id", r.ID),
		zap.String("user_id", r.UserID),
		zap.Float64("impact_score", r.ImpactScore),
		zap.String("short_term_current", r.Current.ShortTerm.Label),
		zap.String("mid_term_current", r.Current.MidTerm.Label),
		zap.String("long_term_current", r.Current.LongTerm.Label),
		zap.String("short_term_profile", r.Profile.ShortTerm.Label),
		zap.String("mid_term_profile", r.Profile.MidTerm.Label),
		zap.String("long_term_profile", r.Profile.LongTerm.Label),
		zap.Bool("mid_term_active", r.MidTermActive),
		zap.Bool("long_term_active", r.LongTermActive),
		zap.Int("profile_age_days", r.ProfileAgeDays),
		zap.Int("message_count", r.MessageCount))
	return nil
}

// StorageSink appends records to persistent storage.
type StorageSink struct {
	store storage.Storage
}

func NewStorageSink(store storage.Storage) *StorageSink {
	return &StorageSink{store: store}
}

func (s *StorageSink) Publish(ctx context.Context, r *models.AnalysisRecord) error {
	if err := s.store.AppendRecord(ctx, r); err != nil {
		return fmt.Errorf("append record %s: %w", r.ID, err)
	}
	return nil
}

// Multi publishes to every sink concurrently. A failing sink does not stop
// the others; all errors are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, r *models.AnalysisRecord) error {
	errs := make([]error, len(m))
	var g errgroup.Group
	for i, s := range m {
		i, s := i, s
		g.Go(func() error {
			errs[i] = s.Publish(ctx, r)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

type Discard struct{}

func (Discard) Publish(context.Context, *models.AnalysisRecord) error { return nil }
