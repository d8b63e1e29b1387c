package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/emotrack/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	db, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "emotrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func backends(t *testing.T) map[string]Storage {
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": newTestSQLite(t),
	}
}

func TestProfileRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetProfile(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.SaveProfile(ctx, "u1", []byte(`{"user_id":"u1","message_count":1}`)))
			require.NoError(t, s.SaveProfile(ctx, "u1", []byte(`{"user_id":"u1","message_count":2}`)))

			data, err := s.GetProfile(ctx, "u1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"user_id":"u1","message_count":2}`, string(data))

			_, err = s.GetProfile(ctx, "u2")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRecentRecords(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				r := &models.AnalysisRecord{
					ID:             fmt.Sprintf("r%d", i),
					UserID:         "u1",
					Message:        fmt.Sprintf("message %d", i),
					ImpactScore:    0.1 * float64(i),
					MidTermActive:  i > 2,
					ProfileAgeDays: i,
					MessageCount:   i + 1,
					CreatedAt:      base.Add(time.Duration(i) * time.Minute),
				}
				r.Current.Set(models.ShortTerm, models.EmotionScore{Label: "joy", Score: 0.4})
				r.Profile.Set(models.MidTerm, models.EmotionScore{Label: models.NotApplicable})
				require.NoError(t, s.AppendRecord(ctx, r))
			}
			require.NoError(t, s.AppendRecord(ctx, &models.AnalysisRecord{ID: "other", UserID: "u2", CreatedAt: base}))

			records, err := s.RecentRecords(ctx, "u1", 3)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, "r4", records[0].ID)
			assert.Equal(t, "r2", records[2].ID)
			assert.True(t, records[0].MidTermActive)
			assert.Equal(t, 5, records[0].MessageCount)
			assert.Equal(t, "joy", records[0].Current.ShortTerm.Label)
			assert.Equal(t, models.NotApplicable, records[0].Profile.MidTerm.Label)
			assert.True(t, records[0].CreatedAt.Equal(base.Add(4*time.Minute)))

			records, err = s.RecentRecords(ctx, "nobody", 10)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestMemoryStorageCopiesData(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	data := []byte(`{"a":1}`)
	require.NoError(t, s.SaveProfile(ctx, "u1", data))
	data[0] = 'x'

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}
