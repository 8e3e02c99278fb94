package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sender is the slice of the bot API the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alert batches to one chat with linear-backoff retries.
type Telegram struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// NewTelegram authenticates the bot and parses the chat ID.
func NewTelegram(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegram(bot, chatID, maxRetries, retryDelayBase, logger)
}

func newTelegram(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration, logger *zap.Logger) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{
		bot:            bot,
		chatID:         id,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		now:            time.Now,
		logger:         logger,
	}, nil
}

// Send delivers alerts as one message. An empty batch sends nothing.
func (t *Telegram) Send(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, formatMessage(alerts, t.now()))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			t.logger.Info("alerts sent", zap.Int("alerts", len(alerts)), zap.Int("attempt", i+1))
			return nil
		}
		lastErr = err
		t.logger.Warn("telegram send failed", zap.Int("attempt", i+1), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("send alerts after %d retries: %w", t.maxRetries, lastErr)
}
