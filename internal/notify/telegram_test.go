package notify

import (
	"net/http"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stellarlinkco/myalex/internal/config"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "myalex_bot"}
}

func newFakeNotifier(t *testing.T) (*Telegram, *fakeBot) {
	t.Helper()
	bot := &fakeBot{}
	factory := func(token string, client *http.Client) (TelegramBot, error) {
		return bot, nil
	}
	tg, err := NewTelegramWithFactory(config.TelegramConfig{Token: "tok", ChatID: 42}, factory)
	if err != nil {
		t.Fatalf("NewTelegramWithFactory error: %v", err)
	}
	return tg, bot
}

func TestNotifySendsToConfiguredChat(t *testing.T) {
	tg, bot := newFakeNotifier(t)

	if err := tg.Notify("Safety alert level is now elevated."); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(bot.sent))
	}
	if bot.sent[0].ChatID != 42 {
		t.Fatalf("wrong chat id: %d", bot.sent[0].ChatID)
	}
	if bot.sent[0].Text != "Safety alert level is now elevated." {
		t.Fatalf("wrong text: %q", bot.sent[0].Text)
	}
}

func TestNotifyChunksLongMessages(t *testing.T) {
	tg, bot := newFakeNotifier(t)

	long := strings.Repeat("tip line\n", 1000) // well past the telegram limit
	if err := tg.Notify(long); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if len(bot.sent) < 2 {
		t.Fatalf("expected chunked delivery, got %d messages", len(bot.sent))
	}
	var total int
	for _, msg := range bot.sent {
		if len(msg.Text) > 4000 {
			t.Fatalf("chunk exceeds limit: %d", len(msg.Text))
		}
		total += len(msg.Text)
	}
	if total != len(long) {
		t.Fatalf("content lost in chunking: sent %d of %d bytes", total, len(long))
	}
}

func TestNewTelegramRequiresConfig(t *testing.T) {
	factory := func(token string, client *http.Client) (TelegramBot, error) {
		return &fakeBot{}, nil
	}
	if _, err := NewTelegramWithFactory(config.TelegramConfig{ChatID: 42}, factory); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := NewTelegramWithFactory(config.TelegramConfig{Token: "tok"}, factory); err == nil {
		t.Fatal("expected error without chat id")
	}
}
