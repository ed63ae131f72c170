package display

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/source"
	"github.com/nhle/hitwatch/internal/sync"
)

type fakeSender struct {
	sent chan *bot.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.sent <- p
	return &models.Message{}, nil
}

func observed(ok bool) sync.RecordObservedMsg {
	secs := int64(90)
	res := model.DeliveryResult{StatusCode: 200}
	if !ok {
		res = model.DeliveryResult{StatusCode: 500, Err: errors.New("boom")}
	}
	return sync.RecordObservedMsg{
		Record: model.TaskRecord{
			Identifier:           "A1",
			Title:                "Tag images",
			RequesterName:        "Acme",
			Reward:               decimal.NewNullDecimal(decimal.RequireFromString("0.5")),
			TimeRemainingSeconds: &secs,
		},
		Result: res,
	}
}

func TestTelegram_SendsNewRecords(t *testing.T) {
	fake := &fakeSender{sent: make(chan *bot.SendMessageParams, 4)}
	tg := NewTelegramWithSender(fake, 42, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tg.Run(ctx)

	tg.Send(sync.PassStartedMsg{})
	tg.Send(observed(true))

	select {
	case p := <-fake.sent:
		if p.ChatID != int64(42) {
			t.Errorf("ChatID = %v", p.ChatID)
		}
		for _, want := range []string{"Tag images", "Acme", "$0.50", "1m30s", "A1"} {
			if !strings.Contains(p.Text, want) {
				t.Errorf("message %q missing %q", p.Text, want)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no telegram message sent")
	}
}

func TestTelegram_ChallengeAlertOncePerOutage(t *testing.T) {
	fake := &fakeSender{sent: make(chan *bot.SendMessageParams, 8)}
	tg := NewTelegramWithSender(fake, 1, nil)

	blocked := sync.PassCompletedMsg{Report: sync.PassReport{Status: source.StatusBlocked}}
	ok := sync.PassCompletedMsg{Report: sync.PassReport{Status: source.StatusOK}}

	tg.Send(blocked)
	tg.Send(blocked)
	tg.Send(ok)
	tg.Send(blocked)

	if got := len(tg.queue); got != 2 {
		t.Errorf("queued %d alerts, want 2", got)
	}
}

func TestFormatRecord_FailedDelivery(t *testing.T) {
	text := FormatRecord(observed(false))
	if !strings.Contains(text, "webhook delivery failed") {
		t.Errorf("expected failure note in %q", text)
	}
}

func TestLog_WritesEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Send(observed(true))
	l.Send(sync.PassCompletedMsg{Report: sync.PassReport{Status: source.StatusBlocked, Source: "page"}})
	l.Send(sync.StateChangedMsg{State: sync.Paused})

	out := buf.String()
	for _, want := range []string{`"assignment_id":"A1"`, "captcha", `"state":"paused"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

type collector struct {
	mu   gosync.Mutex
	msgs []tea.Msg
}

func (c *collector) Send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func TestFanout(t *testing.T) {
	a, b := &collector{}, &collector{}
	f := NewFanout(a, nil)
	f.Send(sync.PassStartedMsg{})
	f.Add(b)
	f.Send(sync.StateChangedMsg{State: sync.Running})

	if len(a.msgs) != 2 || len(b.msgs) != 1 {
		t.Errorf("a got %d, b got %d; want 2 and 1", len(a.msgs), len(b.msgs))
	}
}
