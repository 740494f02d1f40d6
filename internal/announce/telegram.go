package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "shipsbell/pkg/logx"
)

type TelegramConfig struct {
	Enabled    bool
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec int
}

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram posts the watch name to a chat (optionally a forum topic).
type Telegram struct {
	bot     sender
	chat    *tele.Chat
	thread  int
	limiter *rate.Limiter
	log     logx.Logger
}

// NewTelegram builds a send-only bot; it never polls for updates.
func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return newTelegram(cfg, b, log), nil
}

func newTelegram(cfg TelegramConfig, bot sender, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Telegram{
		bot:     bot,
		chat:    &tele.Chat{ID: cfg.ChatID},
		thread:  cfg.ThreadID,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

func (t *Telegram) Announce(ctx context.Context, watch string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	opt := &tele.SendOptions{ThreadID: t.thread}
	if _, err := t.bot.Send(t.chat, fmt.Sprintf("🔔 %s", watch), opt); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug("telegram announced", logx.Int64("chat_id", t.chat.ID), logx.String("watch", watch))
	return nil
}
