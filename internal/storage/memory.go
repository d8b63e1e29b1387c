package storage

import (
	"context"
	"sync"

	"github.com/xaenox/emotrack/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	profiles map[string][]byte
	records  map[string][]*models.AnalysisRecord
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		profiles: make(map[string][]byte),
		records:  make(map[string][]*models.AnalysisRecord),
	}
}

func (s *MemoryStorage) GetProfile(ctx context.Context, userID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.profiles[userID]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) SaveProfile(ctx context.Context, userID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[userID] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStorage) AppendRecord(ctx context.Context, record *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *record
	s.records[record.UserID] = append(s.records[record.UserID], &r)
	return nil
}

// RecentRecords returns up to limit records for the user, newest first.
func (s *MemoryStorage) RecentRecords(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[userID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]*models.AnalysisRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		r := *all[i]
		out = append(out, &r)
	}
	return out, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
