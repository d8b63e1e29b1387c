package sink

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/storage"
)

func testRecord() *models.AnalysisRecord {
	r := &models.AnalysisRecord{
		ID:             "a1",
		UserID:         "u1",
		Message:        "Aaj bahut accha din tha",
		ImpactScore:    0.42,
		ProfileAgeDays: 3,
		MessageCount:   7,
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	r.Current.Set(models.ShortTerm, models.EmotionScore{Label: "joy", Score: 0.3})
	r.Current.Set(models.MidTerm, models.EmotionScore{Label: models.NotApplicable})
	r.Current.Set(models.LongTerm, models.EmotionScore{Label: models.NotApplicable})
	r.Profile = r.Current
	return r
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.Publish(context.Background(), testRecord()))

	entries := logs.FilterMessage("Message analysed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, 0.42, fields["impact_score"])
	assert.Equal(t, "joy", fields["short_term_current"])
	assert.Equal(t, models.NotApplicable, fields["long_term_profile"])
}

func TestStorageSink(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := NewStorageSink(store)

	require.NoError(t, s.Publish(context.Background(), testRecord()))

	records, err := store.RecentRecords(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].ID)
}

type countingSink struct {
	calls atomic.Int32
	err   error
}

func (c *countingSink) Publish(context.Context, *models.AnalysisRecord) error {
	c.calls.Add(1)
	return c.err
}

func TestMultiPublishesToAll(t *testing.T) {
	ok1, ok2 := &countingSink{}, &countingSink{}
	bad := &countingSink{err: errors.New("sink down")}

	err := Multi{ok1, bad, ok2}.Publish(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.EqualValues(t, 1, ok1.calls.Load())
	assert.EqualValues(t, 1, ok2.calls.Load())

	assert.NoError(t, Multi{ok1, ok2}.Publish(context.Background(), testRecord()))
	assert.NoError(t, Multi{}.Publish(context.Background(), testRecord()))
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func TestRedisSink(t *testing.T) {
	f := &fakeStream{}
	s := newRedisSink(f, "", 1000)

	require.NoError(t, s.Publish(context.Background(), testRecord()))
	require.Len(t, f.args, 1)
	args := f.args[0]
	assert.Equal(t, "emotrack:analyses", args.Stream)
	assert.EqualValues(t, 1000, args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]interface{})
	assert.Equal(t, "u1", values["user_id"])
	assert.JSONEq(t, `{"short_term":{"label":"joy","score":0.3},"mid_term":{"label":"N/A","score":0},"long_term":{"label":"N/A","score":0}}`, values["current"].(string))
	assert.Equal(t, "2024-05-01T12:00:00Z", values["created_at"])

	f.err = errors.New("connection refused")
	err := s.Publish(context.Background(), testRecord())
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, s.Close())
}
