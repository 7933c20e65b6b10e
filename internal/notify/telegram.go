package notify

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stellarlinkco/myalex/internal/config"
)

// Notifier pushes short alert texts to the user's configured channel.
type Notifier interface {
	Notify(text string) error
}

// Nop discards every notification. Used when no channel is configured.
type Nop struct{}

func (Nop) Notify(string) error { return nil }

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// Telegram delivers notifications to a single chat.
type Telegram struct {
	chatID int64
	bot    TelegramBot
}

func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	return NewTelegramWithFactory(cfg, defaultBotFactory)
}

// NewTelegramWithFactory creates a Telegram notifier with a custom bot
// factory (for testing).
func NewTelegramWithFactory(cfg config.TelegramConfig, factory BotFactory) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	bot, err := factory(cfg.Token, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Printf("[notify] telegram authorized as @%s", bot.GetSelf().UserName)
	return &Telegram{chatID: cfg.ChatID, bot: bot}, nil
}

func (t *Telegram) Notify(text string) error {
	// Telegram has a 4096 char limit per message
	const maxLen = 4000
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			idx := strings.LastIndex(chunk[:maxLen], "\n")
			if idx > 0 {
				chunk = chunk[:idx]
			} else {
				chunk = chunk[:maxLen]
			}
		}
		text = text[len(chunk):]

		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}
