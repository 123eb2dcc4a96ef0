package dispatch

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

// TelegramPusher delivers broadcasts to a Telegram chat. The broadcast topic
// is the chat id or @channel name.
type TelegramPusher struct {
	bot     *bot.Bot
	limiter *rate.Limiter
}

// NewTelegramPusher builds a bot client without contacting Telegram.
// Messages are paced at ratePerSecond.
func NewTelegramPusher(token string, ratePerSecond int, opts ...bot.Option) (*TelegramPusher, error) {
	if ratePerSecond < 1 {
		ratePerSecond = 1
	}
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return &TelegramPusher{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
	}, nil
}

func (p *TelegramPusher) Push(ctx context.Context, topic string, entry models.AlertLogEntry) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	params := &bot.SendMessageParams{
		ChatID: topic,
		Text:   Title(entry.Event) + "\n\n" + entry.Message,
	}
	if _, err := p.bot.SendMessage(ctx, params); err != nil {
		return &PushError{Detail: err.Error()}
	}
	return nil
}
