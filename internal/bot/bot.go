package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/orchestrator"
	"github.com/xaenox/emotrack/internal/profile"
)

// Engine is the part of the orchestrator the bot talks to.
type Engine interface {
	ProcessMessage(ctx context.Context, userID, text string, ref time.Time, writingSeconds float64) (*orchestrator.IncidentAnalysis, error)
	TopEmotions(ctx context.Context, userID string, t models.Timescale, n int) ([]models.EmotionScore, error)
	TopByFrequency(ctx context.Context, userID string, n int) ([]profile.FrequencyScore, error)
	ActivationReport(ctx context.Context, userID string) (map[models.Timescale]profile.ActivationInfo, int, error)
	RecentRecords(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// maxWritingWindow bounds the gap between a reply and the user's next
// message that still counts as time spent writing it.
const maxWritingWindow = 5 * time.Minute

type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	engine Engine
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	lastReply map[int64]time.Time
}

func New(token string, engine Engine, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, engine, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, engine Engine, logger *zap.Logger) *Bot {
	return &Bot{
		sender:    s,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
		lastReply: make(map[int64]time.Time),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	queue := newUserQueue(func(message *tgbotapi.Message) {
		b.handleMessage(ctx, message)
	})
	defer queue.wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			queue.push(update.Message)
		}
	}
}

func userID(message *tgbotapi.Message) string {
	return strconv.FormatInt(message.From.ID, 10)
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if content == "" {
		return
	}

	analysis, err := b.engine.ProcessMessage(ctx, userID(message), content, message.Time(), b.writingSeconds(message))
	if err != nil {
		b.logger.Error("Failed to process message",
			zap.Error(err),
			zap.String("user_id", userID(message)))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't process your message. Please try again.")
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatAnalysis(analysis))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = message.MessageID
	b.send(msg, "analysis")
	b.markReplied(message.From.ID)
}

// writingSeconds estimates how long the user spent writing message as the
// time since the bot last replied to them. Telegram dates have one second
// resolution, so very quick replies and long pauses count as unknown.
func (b *Bot) writingSeconds(message *tgbotapi.Message) float64 {
	b.mu.Lock()
	last, ok := b.lastReply[message.From.ID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	gap := message.Time().Sub(last)
	if gap < time.Second || gap > maxWritingWindow {
		return 0
	}
	return gap.Seconds()
}

func (b *Bot) markReplied(id int64) {
	b.mu.Lock()
	b.lastReply[id] = b.now()
	b.mu.Unlock()
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "profile":
		b.handleProfile(ctx, message)
	case "status":
		b.handleStatus(ctx, message)
	case "frequent":
		b.handleFrequent(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to emotrack!
Talk to me in English, Hindi or Hinglish and I'll keep track of how you've been feeling, today, over the past weeks and over the long run.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/profile - Show your top emotions per timescale
/status - Show mid and long term activation progress
/frequent - Show your most frequent emotions
/history - Show your recent analysed messages

Any other message is analysed and added to your profile.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleProfile(ctx context.Context, message *tgbotapi.Message) {
	tops := make(map[models.Timescale][]models.EmotionScore, len(models.Timescales))
	for _, t := range models.Timescales {
		top, err := b.engine.TopEmotions(ctx, userID(message), t, 3)
		if err != nil {
			b.logger.Error("Failed to get top emotions",
				zap.Error(err),
				zap.String("user_id", userID(message)))
			b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve your profile. Please try again later.")
			return
		}
		tops[t] = top
	}
	b.sendMarkdown(message.Chat.ID, formatProfile(tops), "profile")
}

func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	report, count, err := b.engine.ActivationReport(ctx, userID(message))
	if err != nil {
		b.logger.Error("Failed to get activation report",
			zap.Error(err),
			zap.String("user_id", userID(message)))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve your status. Please try again later.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatStatus(report, count), "status")
}

func (b *Bot) handleFrequent(ctx context.Context, message *tgbotapi.Message) {
	freq, err := b.engine.TopByFrequency(ctx, userID(message), 5)
	if err != nil {
		b.logger.Error("Failed to get frequent emotions",
			zap.Error(err),
			zap.String("user_id", userID(message)))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve your emotions. Please try again later.")
		return
	}
	if len(freq) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any analysed messages yet.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatFrequent(freq), "frequent")
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	records, err := b.engine.RecentRecords(ctx, userID(message), 5)
	if err != nil {
		b.logger.Error("Failed to get analysis records",
			zap.Error(err),
			zap.String("user_id", userID(message)))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your message history.")
		return
	}
	if len(records) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any messages yet.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatHistory(records), "history")
}

func (b *Bot) sendMarkdown(chatID int64, text, kind string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	b.send(msg, kind)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text), "text")
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, "⚠️ "+text), "error")
}

func (b *Bot) send(msg tgbotapi.MessageConfig, kind string) {
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.String("kind", kind),
			zap.Int64("chat_id", msg.ChatID))
	}
}
