package storage

import (
	"context"
	"errors"

	"github.com/xaenox/emotrack/internal/models"
)

var ErrNotFound = errors.New("not found")

// Storage persists profile snapshots and the analysis records produced for
// every processed message. Snapshots are opaque to storage.
type Storage interface {
	GetProfile(ctx context.Context, userID string) ([]byte, error)
	SaveProfile(ctx context.Context, userID string, data []byte) error
	AppendRecord(ctx context.Context, record *models.AnalysisRecord) error
	RecentRecords(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error)
	Close() error
}
