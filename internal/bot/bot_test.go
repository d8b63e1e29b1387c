package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xaenox/emotrack/internal/classifier"
	"github.com/xaenox/emotrack/internal/incident"
	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/orchestrator"
	"github.com/xaenox/emotrack/internal/profile"
	"github.com/xaenox/emotrack/internal/sink"
	"github.com/xaenox/emotrack/internal/storage"
	"github.com/xaenox/emotrack/internal/temporal"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func newTestBot(t *testing.T) (*Bot, *fakeSender) {
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStorage()
	o := orchestrator.New(
		classifier.NewKeywordClassifier(),
		temporal.NewResolver(logger, temporal.Options{DisableDateParser: true}),
		incident.NewDetector(),
		store,
		sink.NewStorageSink(store),
		profile.DefaultConfig(),
		logger,
		orchestrator.Options{},
	)
	f := &fakeSender{}
	return newBot(f, o, logger), f
}

type call struct {
	userID  string
	text    string
	seconds float64
}

// recordingEngine notes every ProcessMessage call before delegating.
type recordingEngine struct {
	Engine

	mu    sync.Mutex
	calls []call
}

func (r *recordingEngine) ProcessMessage(ctx context.Context, userID, text string, ref time.Time, writingSeconds float64) (*orchestrator.IncidentAnalysis, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{userID: userID, text: text, seconds: writingSeconds})
	r.mu.Unlock()
	return r.Engine.ProcessMessage(ctx, userID, text, ref, writingSeconds)
}

func (r *recordingEngine) textsFor(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if c.userID == userID {
			out = append(out, c.text)
		}
	}
	return out
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		Text:      text,
		Date:      int(time.Now().Unix()),
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: 7},
	}
}

func userMessage(userID int64, text string) *tgbotapi.Message {
	m := textMessage(text)
	m.From = &tgbotapi.User{ID: userID}
	m.Chat = &tgbotapi.Chat{ID: userID}
	return m
}

func commandMessage(cmd string) *tgbotapi.Message {
	m := textMessage("/" + cmd)
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}}
	return m
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\#joy 0\.50 \(ok\)\!`, escapeMarkdown("#joy 0.50 (ok)!"))
	assert.Equal(t, `a\\b`, escapeMarkdown(`a\b`))
	assert.Equal(t, "plain text", escapeMarkdown("plain text"))
}

func TestMessageIsAnalysed(t *testing.T) {
	b, f := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, textMessage("Aaj bahut accha din tha!"))

	msg := f.last(t)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Equal(t, 10, msg.ReplyToMessageID)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, msg.ParseMode)
	assert.Contains(t, msg.Text, `\#joy`)
	assert.Contains(t, msg.Text, "*Impact:*")

	b.handleMessage(ctx, commandMessage("history"))
	msg = f.last(t)
	assert.Contains(t, msg.Text, "Your recent messages")
	assert.Contains(t, msg.Text, `Aaj bahut accha din tha\!`)

	b.handleMessage(ctx, commandMessage("frequent"))
	assert.Contains(t, f.last(t).Text, `\#joy × 1`)

	b.handleMessage(ctx, commandMessage("profile"))
	msg = f.last(t)
	assert.Contains(t, msg.Text, "*Short term:* \\#joy")
	assert.Contains(t, msg.Text, "*Long term:* not active yet")

	b.handleMessage(ctx, commandMessage("status"))
	msg = f.last(t)
	assert.Contains(t, msg.Text, "*Messages analysed:* 1")
	assert.Contains(t, msg.Text, "*Mid term:* 14 days or 29 messages to go")
}

func TestCommandsForNewUser(t *testing.T) {
	b, f := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, commandMessage("frequent"))
	assert.Equal(t, "You don't have any analysed messages yet.", f.last(t).Text)

	b.handleMessage(ctx, commandMessage("history"))
	assert.Equal(t, "You don't have any messages yet.", f.last(t).Text)

	b.handleMessage(ctx, commandMessage("help"))
	assert.Contains(t, f.last(t).Text, "/status")

	b.handleMessage(ctx, commandMessage("bogus"))
	assert.True(t, strings.HasPrefix(f.last(t).Text, "Unknown command"))
}

func TestFormatAnalysisClassificationFailure(t *testing.T) {
	a := &orchestrator.IncidentAnalysis{
		Failures: []orchestrator.StageFailure{{Stage: "classification", Kind: orchestrator.ClassificationFailure}},
	}
	assert.Contains(t, formatAnalysis(a), "profile is unchanged")
}

func TestFormatStatusActive(t *testing.T) {
	report := map[models.Timescale]profile.ActivationInfo{
		models.MidTerm:  {Active: true, ActivatedBy: profile.ActivatedByMessages},
		models.LongTerm: {DaysRemaining: 80, MessagesRemaining: 10},
	}
	text := formatStatus(report, 40)
	assert.Contains(t, text, "*Mid term:* active \\(by messages\\)")
	assert.Contains(t, text, "*Long term:* 80 days or 10 messages to go")
}

func TestMessagesFromOneUserKeepArrivalOrder(t *testing.T) {
	b, _ := newTestBot(t)
	rec := &recordingEngine{Engine: b.engine}
	b.engine = rec
	ctx := context.Background()

	q := newUserQueue(func(m *tgbotapi.Message) { b.handleMessage(ctx, m) })
	var want []string
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("message %d, I am happy", i)
		want = append(want, text)
		q.push(userMessage(42, text))
		q.push(userMessage(43, "other user is sad"))
	}
	q.wait()

	assert.Equal(t, want, rec.textsFor("42"))
	assert.Len(t, rec.textsFor("43"), 20)

	_, count, err := b.engine.ActivationReport(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestWritingSecondsFromLastReply(t *testing.T) {
	b, _ := newTestBot(t)
	rec := &recordingEngine{Engine: b.engine}
	b.engine = rec
	ctx := context.Background()

	t0 := time.Now().Truncate(time.Second)
	b.now = func() time.Time { return t0 }

	first := userMessage(42, "I am happy")
	first.Date = int(t0.Unix())
	b.handleMessage(ctx, first)

	second := userMessage(42, "I am still happy")
	second.Date = int(t0.Add(20 * time.Second).Unix())
	b.handleMessage(ctx, second)

	late := userMessage(42, "back after lunch, happy")
	late.Date = int(t0.Add(time.Hour).Unix())
	b.handleMessage(ctx, late)

	require.Len(t, rec.calls, 3)
	assert.Zero(t, rec.calls[0].seconds)
	assert.Equal(t, 20.0, rec.calls[1].seconds)
	assert.Zero(t, rec.calls[2].seconds)
}
