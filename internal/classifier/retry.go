package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/models"
)

type RetryOptions struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Retrying bounds every attempt with a timeout and retries failures with
// exponential backoff.
type Retrying struct {
	next   EmotionClassifier
	opts   RetryOptions
	logger *zap.Logger
}

func NewRetrying(next EmotionClassifier, opts RetryOptions, logger *zap.Logger) *Retrying {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Retrying{next: next, opts: opts, logger: logger}
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.opts.Backoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = r.opts.Backoff << 10
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.opts.MaxRetries)), ctx)
}

func (r *Retrying) Classify(ctx context.Context, text string) (models.Distribution, error) {
	var (
		dist    models.Distribution
		attempt int
	)
	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		var err error
		dist, err = r.next.Classify(attemptCtx, text)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("Classification attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.opts.MaxRetries+1),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, r.policy(ctx), notify); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return dist, nil
}
