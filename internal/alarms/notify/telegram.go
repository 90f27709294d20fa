package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
)

// TelegramChannel sends notifications to a Telegram chat.
type TelegramChannel struct {
	bot    *bot.Bot
	chatID string
}

// TelegramOption configures the Telegram channel.
type TelegramOption func(*telegramConfig)

type telegramConfig struct {
	serverURL string
}

// WithTelegramServerURL points the bot at another Bot API server.
func WithTelegramServerURL(url string) TelegramOption {
	return func(c *telegramConfig) {
		c.serverURL = url
	}
}

// NewTelegramChannel constructs a Telegram channel. The token is not
// verified against the API until the first message is sent.
func NewTelegramChannel(token, chatID string, opts ...TelegramOption) (*TelegramChannel, error) {
	if token == "" {
		return nil, errors.New("telegram channel: empty token")
	}
	if chatID == "" {
		return nil, errors.New("telegram channel: empty chat id")
	}
	cfg := telegramConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	botOpts := []bot.Option{bot.WithSkipGetMe()}
	if cfg.serverURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(cfg.serverURL))
	}
	b, err := bot.New(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("telegram channel: %w", err)
	}
	return &TelegramChannel{bot: b, chatID: chatID}, nil
}

// Name implements Channel.
func (t *TelegramChannel) Name() string { return "telegram" }

// Send posts content to the configured chat.
func (t *TelegramChannel) Send(ctx context.Context, content string) error {
	if t == nil || t.bot == nil {
		return errors.New("telegram channel: not configured")
	}
	if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   content,
	}); err != nil {
		return fmt.Errorf("telegram channel: send to %s: %w", t.chatID, err)
	}
	return nil
}
