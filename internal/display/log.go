package display

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/hitwatch/internal/source"
	"github.com/nhle/hitwatch/internal/sync"
)

// Log writes pipeline events as structured log lines. It is the display
// used in headless mode.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log display.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "display")}
}

// Send implements Target.
func (l *Log) Send(msg tea.Msg) {
	switch msg := msg.(type) {
	case sync.RecordObservedMsg:
		attrs := []any{
			"assignment_id", msg.Record.Identifier,
			"title", msg.Record.Title,
			"requester", msg.Record.RequesterName,
			"status", msg.Result.StatusCode,
		}
		if msg.Result.OK() {
			l.logger.Info("new assignment notified", attrs...)
		} else {
			l.logger.Warn("new assignment, webhook failed", append(attrs, "error", msg.Result.Err)...)
		}

	case sync.PassCompletedMsg:
		r := msg.Report
		if r.Status == source.StatusBlocked {
			l.logger.Warn("sign-in or captcha required; open the queue in a browser",
				"source", r.Source, "error", r.Err)
			return
		}
		l.logger.Debug("pass finished",
			"status", r.Status.String(),
			"extracted", r.Extracted,
			"new", r.New,
			"seen", r.SeenCount,
			"took", r.Finished.Sub(r.Started),
		)

	case sync.StateChangedMsg:
		l.logger.Info("scheduler state", "state", msg.State.String())

	case sync.SeenClearedMsg:
		if msg.Err != nil {
			l.logger.Error("clearing seen set failed", "error", msg.Err)
			return
		}
		l.logger.Info("seen set cleared")

	case sync.TestSentMsg:
		if msg.Result.OK() {
			l.logger.Info("test notification delivered", "status", msg.Result.StatusCode)
		} else {
			l.logger.Warn("test notification failed",
				"status", msg.Result.StatusCode, "error", msg.Result.Err)
		}
	}
}
