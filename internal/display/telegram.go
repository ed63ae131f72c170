package display

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/nhle/hitwatch/internal/source"
	"github.com/nhle/hitwatch/internal/sync"
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

// sendTimeout bounds a single Telegram API call.
const sendTimeout = 10 * time.Second

// Sender is the part of *bot.Bot the Telegram display needs.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram mirrors new assignments and sign-in challenges to a chat.
// Send only queues the text; Run delivers it so a slow API never holds up
// the scheduler.
type Telegram struct {
	sender Sender
	chatID int64
	logger *slog.Logger
	queue  chan string

	// blocked suppresses repeated challenge alerts until a pass succeeds.
	blocked bool
}

// NewTelegram creates a Telegram display backed by a bot token.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return NewTelegramWithSender(b, chatID, logger), nil
}

// NewTelegramWithSender creates a Telegram display over any Sender.
func NewTelegramWithSender(s Sender, chatID int64, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		sender: s,
		chatID: chatID,
		logger: logger.With("component", "telegram"),
		queue:  make(chan string, 64),
	}
}

// Run delivers queued messages until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-t.queue:
			t.deliver(ctx, text)
		}
	}
}

func (t *Telegram) deliver(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		t.logger.Error("failed to send telegram message", "error", err)
	}
}

// Send implements Target. It is called from the scheduler goroutine only.
func (t *Telegram) Send(msg tea.Msg) {
	var text string

	switch msg := msg.(type) {
	case sync.RecordObservedMsg:
		text = FormatRecord(msg)
	case sync.PassCompletedMsg:
		switch msg.Report.Status {
		case source.StatusBlocked:
			if !t.blocked {
				t.blocked = true
				text = "hitwatch: the task queue is asking for sign-in or a captcha. " +
					"Open it in a browser to continue."
			}
		case source.StatusOK:
			t.blocked = false
		}
	}

	if text == "" {
		return
	}
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen-20]) + "\n\n... (truncated)"
	}

	select {
	case t.queue <- text:
	default:
		t.logger.Warn("telegram queue full, message dropped")
	}
}

// FormatRecord renders a new-assignment event as plain text.
func FormatRecord(msg sync.RecordObservedMsg) string {
	r := msg.Record
	var b strings.Builder

	fmt.Fprintf(&b, "New HIT: %s\n", r.Title)
	if r.RequesterName != "" {
		fmt.Fprintf(&b, "Requester: %s\n", r.RequesterName)
	}
	if r.Reward.Valid {
		fmt.Fprintf(&b, "Reward: $%s\n", r.Reward.Decimal.StringFixed(2))
	}
	if r.TimeRemainingSeconds != nil {
		fmt.Fprintf(&b, "Time left: %s\n", time.Duration(*r.TimeRemainingSeconds)*time.Second)
	}
	fmt.Fprintf(&b, "Assignment: %s", r.Identifier)
	if !msg.Result.OK() {
		b.WriteString("\n(webhook delivery failed)")
	}
	return b.String()
}
