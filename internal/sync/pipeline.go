package sync

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/source"
	"github.com/nhle/hitwatch/internal/store"
)

// extractTimeout is the maximum time allowed for a single extraction.
const extractTimeout = 30 * time.Second

// Notifier delivers one notification per new record.
type Notifier interface {
	Notify(ctx context.Context, rec model.TaskRecord) model.DeliveryResult
	SendTest(ctx context.Context) model.DeliveryResult
}

// Recorder keeps a log of delivery attempts.
type Recorder interface {
	RecordDelivery(ctx context.Context, d model.Delivery) error
}

// Display receives pipeline events. *tea.Program satisfies it.
type Display interface {
	Send(msg tea.Msg)
}

type discard struct{}

func (discard) Send(tea.Msg) {}

// PassReport summarises a single pass.
type PassReport struct {
	Started   time.Time
	Finished  time.Time
	Source    string
	Status    source.Status
	Extracted int
	// Candidates is the count left after the state filter.
	Candidates int
	New        int
	Delivered  int
	Failed     int
	SeenCount  int
	Err        error
}

// Config wires the pipeline's collaborators. Recorder, Display and Logger
// are optional.
type Config struct {
	Extractor      source.Extractor
	Seen           *store.SeenSet
	Notifier       Notifier
	Recorder       Recorder
	Display        Display
	AcceptedStates []string
	Logger         *slog.Logger
}

// Pipeline runs extract, filter, dedup and notify as one pass. It is not
// safe for concurrent use; the Scheduler calls it from a single goroutine.
type Pipeline struct {
	extractor source.Extractor
	seen      *store.SeenSet
	notifier  Notifier
	recorder  Recorder
	display   Display
	states    []string
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline creates a Pipeline from cfg.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		extractor: cfg.Extractor,
		seen:      cfg.Seen,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		display:   cfg.Display,
		states:    cfg.AcceptedStates,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	if p.display == nil {
		p.display = discard{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// SeenCount returns the size of the seen-set.
func (p *Pipeline) SeenCount() int { return p.seen.Len() }

// Pass performs one extraction and notifies every new accepted record.
func (p *Pipeline) Pass(ctx context.Context) (report PassReport) {
	report.Started = p.now()
	report.Source = p.extractor.Name()
	p.display.Send(PassStartedMsg{At: report.Started})

	defer func() {
		report.Finished = p.now()
		report.SeenCount = p.seen.Len()
		p.display.Send(PassCompletedMsg{Report: report})
	}()

	extractCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	records, err := p.extractor.Extract(extractCtx)
	cancel()

	report.Status = source.Classify(err)
	switch report.Status {
	case source.StatusBlocked:
		report.Err = err
		p.logger.Warn("source requires sign-in, pass aborted", "error", err)
		return report
	case source.StatusUnavailable:
		report.Err = err
		p.logger.Debug("queue unavailable", "error", err)
		return report
	}
	report.Extracted = len(records)

	candidates := source.AcceptedOnly(records, p.states)
	report.Candidates = len(candidates)

	fresh, err := Dedup(ctx, p.seen, candidates)
	if err != nil {
		report.Err = err
		p.logger.Error("persisting seen set", "error", err)
	}
	report.New = len(fresh)

	for _, rec := range fresh {
		res := p.notifier.Notify(ctx, rec)
		if res.OK() {
			report.Delivered++
		} else {
			report.Failed++
		}
		p.record(ctx, res)
		p.display.Send(RecordObservedMsg{Record: rec, Result: res})
	}

	if report.New > 0 {
		p.logger.Info("pass complete",
			"extracted", report.Extracted,
			"new", report.New,
			"delivered", report.Delivered,
			"failed", report.Failed,
		)
	}
	return report
}

// ClearSeen empties the seen-set so every current record notifies again.
func (p *Pipeline) ClearSeen(ctx context.Context) error {
	err := p.seen.Clear(ctx)
	if err != nil {
		p.logger.Error("clearing seen set", "key", p.seen.Key(), "error", err)
	} else {
		p.logger.Info("seen set cleared", "key", p.seen.Key())
	}
	p.display.Send(SeenClearedMsg{Err: err})
	return err
}

// SendTest delivers a synthetic notification.
func (p *Pipeline) SendTest(ctx context.Context) model.DeliveryResult {
	res := p.notifier.SendTest(ctx)
	p.record(ctx, res)
	p.display.Send(TestSentMsg{Result: res})
	return res
}

func (p *Pipeline) record(ctx context.Context, res model.DeliveryResult) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordDelivery(ctx, model.DeliveryFromResult(res, p.now())); err != nil {
		p.logger.Warn("recording delivery", "assignment_id", res.Payload.AssignmentID, "error", err)
	}
}
