package classifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/models"
)

// Fallback answers with a second classifier whenever the primary one fails.
// Wrap the primary in Retrying first so the fallback only runs once retries
// are exhausted.
type Fallback struct {
	primary  EmotionClassifier
	fallback EmotionClassifier
	logger   *zap.Logger
}

func NewFallback(primary, fallback EmotionClassifier, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, fallback: fallback, logger: logger}
}

func (c *Fallback) Classify(ctx context.Context, text string) (models.Distribution, error) {
	dist, err := c.primary.Classify(ctx, text)
	if err == nil {
		return dist, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	c.logger.Warn("Falling back to keyword classification", zap.Error(err))
	return c.fallback.Classify(ctx, text)
}
