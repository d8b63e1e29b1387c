package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xaenox/emotrack/internal/models"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends every record to a Redis stream, trimming it to roughly
// MaxLen entries.
type RedisSink struct {
	rdb    streamAdder
	closer func() error
	stream string
	maxLen int64
}

func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := newRedisSink(rdb, cfg.Stream, cfg.MaxLen)
	s.closer = rdb.Close
	return s, nil
}

func newRedisSink(rdb streamAdder, stream string, maxLen int64) *RedisSink {
	if stream == "" {
		stream = "emotrack:analyses"
	}
	return &RedisSink{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *RedisSink) Publish(ctx context.Context, r *models.AnalysisRecord) error {
	current, err := json.Marshal(r.Current)
	if err != nil {
		return fmt.Errorf("marshal current emotions: %w", err)
	}
	profile, err := json.Marshal(r.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile emotions: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":               r.ID,
			"user_id":          r.UserID,
			"message":          r.Message,
			"impact_score":     r.ImpactScore,
			"current":          string(current),
			"profile":          string(profile),
			"mid_term_active":  r.MidTermActive,
			"long_term_active": r.LongTermActive,
			"profile_age_days": r.ProfileAgeDays,
			"message_count":    r.MessageCount,
			"created_at":       r.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
