package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/notify"
	"github.com/nhle/hitwatch/internal/source"
	"github.com/nhle/hitwatch/internal/store"
	"github.com/nhle/hitwatch/tests/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var acceptedStates = []string{model.StateAssigned, model.StateAccepted}

// hook is a webhook endpoint that counts deliveries by assignment id.
type hook struct {
	mu    gosync.Mutex
	calls int
}

func (h *hook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func newHook(t *testing.T) (*hook, *notify.Notifier) {
	t.Helper()
	h := &hook{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.calls++
		h.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return h, notify.New(srv.URL, time.Second, notify.WithLogger(quiet))
}

func rec(id, state string) model.TaskRecord {
	return model.TaskRecord{Identifier: id, ExternalID: "T-" + id, Title: "task " + id, State: state}
}

func loadSeen(t *testing.T, s store.Store) *store.SeenSet {
	t.Helper()
	seen, err := store.LoadSeenSet(context.Background(), s, "seen")
	if err != nil {
		t.Fatalf("LoadSeenSet: %v", err)
	}
	return seen
}

// failingStore accepts reads and refuses writes.
type failingStore struct{ store.Store }

func (failingStore) PutValue(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestDedup_DuplicateInBatchCountedOnce(t *testing.T) {
	seen := loadSeen(t, testutil.NewTestStore(t))

	fresh, err := Dedup(context.Background(), seen, []model.TaskRecord{
		rec("A1", model.StateAssigned),
		rec("A1", model.StateAssigned),
		rec("A2", model.StateAssigned),
	})
	if err != nil {
		t.Fatalf("Dedup: %v", err)
	}
	if len(fresh) != 2 || fresh[0].Identifier != "A1" || fresh[1].Identifier != "A2" {
		t.Errorf("fresh = %v, want [A1 A2] in order", fresh)
	}
}

func TestDedup_PersistFailureKeepsRecords(t *testing.T) {
	seen := loadSeen(t, failingStore{testutil.NewTestStore(t)})

	fresh, err := Dedup(context.Background(), seen, []model.TaskRecord{rec("A1", model.StateAssigned)})
	if err == nil {
		t.Error("expected persistence error")
	}
	if len(fresh) != 1 {
		t.Errorf("record should still be returned, got %d", len(fresh))
	}
	if !seen.Contains("A1") {
		t.Error("record should be marked seen in memory")
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	db := testutil.NewTestStore(t)
	ctx := context.Background()
	h, n := newHook(t)
	ext := source.NewStatic(rec("A1", model.StateAssigned))
	seen := loadSeen(t, db)

	p := NewPipeline(Config{
		Extractor:      ext,
		Seen:           seen,
		Notifier:       n,
		Recorder:       db,
		AcceptedStates: acceptedStates,
		Logger:         quiet,
	})

	first := p.Pass(ctx)
	if h.count() != 1 || first.New != 1 || first.Delivered != 1 {
		t.Fatalf("first pass: calls %d report %+v", h.count(), first)
	}
	if reloaded := loadSeen(t, db); !reloaded.Contains("A1") {
		t.Fatal("A1 should be persisted after the first pass")
	}

	second := p.Pass(ctx)
	if h.count() != 1 || second.New != 0 {
		t.Fatalf("second pass must not re-notify: calls %d report %+v", h.count(), second)
	}

	if err := p.ClearSeen(ctx); err != nil {
		t.Fatalf("ClearSeen: %v", err)
	}
	third := p.Pass(ctx)
	if h.count() != 2 || third.New != 1 {
		t.Fatalf("pass after clear should notify again: calls %d report %+v", h.count(), third)
	}

	deliveries, err := db.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 2 {
		t.Errorf("delivery log has %d rows, want 2", len(deliveries))
	}
}

func TestPipeline_RestartDoesNotRenotify(t *testing.T) {
	db := testutil.NewTestStore(t)
	ctx := context.Background()
	h, n := newHook(t)
	ext := source.NewStatic(rec("A1", model.StateAssigned))

	cfg := Config{Extractor: ext, Notifier: n, AcceptedStates: acceptedStates, Logger: quiet}

	cfg.Seen = loadSeen(t, db)
	NewPipeline(cfg).Pass(ctx)

	cfg.Seen = loadSeen(t, db)
	NewPipeline(cfg).Pass(ctx)

	if h.count() != 1 {
		t.Errorf("webhook called %d times across restart, want 1", h.count())
	}
}

func TestPipeline_ChallengeShortCircuits(t *testing.T) {
	db := testutil.NewTestStore(t)
	h, n := newHook(t)
	ext := source.NewStatic()
	ext.Set(nil, &source.AuthChallengeError{Source: "network", Marker: "/ap/signin"})
	seen := loadSeen(t, db)

	p := NewPipeline(Config{Extractor: ext, Seen: seen, Notifier: n, AcceptedStates: acceptedStates, Logger: quiet})
	report := p.Pass(context.Background())

	if report.Status != source.StatusBlocked {
		t.Errorf("Status = %v, want blocked", report.Status)
	}
	if report.Extracted != 0 || h.count() != 0 || seen.Len() != 0 {
		t.Errorf("blocked pass must not touch records: %+v calls %d", report, h.count())
	}
}

func TestPipeline_UnavailableIsZeroRecords(t *testing.T) {
	h, n := newHook(t)
	ext := source.NewStatic()
	ext.Set(nil, source.Unavailable("queue element missing"))

	p := NewPipeline(Config{Extractor: ext, Seen: loadSeen(t, testutil.NewTestStore(t)), Notifier: n, Logger: quiet})
	report := p.Pass(context.Background())

	if report.Status != source.StatusUnavailable || !errors.Is(report.Err, source.ErrUnavailable) {
		t.Errorf("unexpected report %+v", report)
	}
	if h.count() != 0 {
		t.Errorf("no webhook expected, got %d", h.count())
	}
}

func TestPipeline_StateFilter(t *testing.T) {
	h, n := newHook(t)
	ext := source.NewStatic(
		rec("A1", model.StateSubmitted),
		rec("A2", ""),
		rec("A3", "accepted"),
	)
	seen := loadSeen(t, testutil.NewTestStore(t))

	p := NewPipeline(Config{Extractor: ext, Seen: seen, Notifier: n, AcceptedStates: acceptedStates, Logger: quiet})
	report := p.Pass(context.Background())

	if report.Extracted != 3 || report.Candidates != 1 || report.New != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if seen.Contains("A1") || seen.Contains("A2") {
		t.Error("filtered records must never reach the seen set")
	}
	if h.count() != 1 {
		t.Errorf("calls = %d, want 1", h.count())
	}
}

func TestPipeline_FailedDeliveryStaysSeen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	seen := loadSeen(t, testutil.NewTestStore(t))
	p := NewPipeline(Config{
		Extractor:      source.NewStatic(rec("A1", model.StateAssigned)),
		Seen:           seen,
		Notifier:       notify.New(srv.URL, time.Second, notify.WithLogger(quiet)),
		AcceptedStates: acceptedStates,
		Logger:         quiet,
	})

	report := p.Pass(context.Background())
	if report.Failed != 1 || report.Delivered != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	if !seen.Contains("A1") {
		t.Error("a failed delivery is not retried, so the id stays seen")
	}
}

// recorder is a Display that forwards every message to a channel.
type recorder chan tea.Msg

func (r recorder) Send(msg tea.Msg) { r <- msg }

func waitFor[T tea.Msg](t *testing.T, ch recorder, match func(T) bool) T {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-ch:
			if m, ok := msg.(T); ok && (match == nil || match(m)) {
				return m
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestScheduler_PauseResume(t *testing.T) {
	_, n := newHook(t)
	ext := source.NewStatic(rec("A1", model.StateAssigned))
	display := make(recorder, 64)

	p := NewPipeline(Config{
		Extractor:      ext,
		Seen:           loadSeen(t, testutil.NewTestStore(t)),
		Notifier:       n,
		Display:        display,
		AcceptedStates: acceptedStates,
		Logger:         quiet,
	})
	s := NewScheduler(p, time.Hour, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	first := waitFor[PassCompletedMsg](t, display, nil)
	if first.Report.New != 1 {
		t.Fatalf("initial pass should notify A1: %+v", first.Report)
	}

	if err := s.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}

	s.Pause()
	waitFor(t, display, func(m StateChangedMsg) bool { return m.State == Paused })

	s.Refresh()
	s.Resume()
	waitFor(t, display, func(m StateChangedMsg) bool { return m.State == Running })
	waitFor[PassCompletedMsg](t, display, nil)

	if calls := ext.Calls(); calls != 2 {
		t.Errorf("extract calls = %d, want 2 (refresh while paused is ignored)", calls)
	}

	s.Refresh()
	waitFor[PassCompletedMsg](t, display, nil)
	if calls := ext.Calls(); calls != 3 {
		t.Errorf("extract calls = %d, want 3", calls)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if s.State() != Stopped {
		t.Errorf("State = %v, want stopped", s.State())
	}
}

func TestScheduler_ClearAndTestCommands(t *testing.T) {
	h, n := newHook(t)
	display := make(recorder, 64)
	seen := loadSeen(t, testutil.NewTestStore(t))

	p := NewPipeline(Config{
		Extractor:      source.NewStatic(rec("A1", model.StateAssigned)),
		Seen:           seen,
		Notifier:       n,
		Display:        display,
		AcceptedStates: acceptedStates,
		Logger:         quiet,
	})
	s := NewScheduler(p, time.Hour, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor[PassCompletedMsg](t, display, nil)

	s.ClearSeen()
	cleared := waitFor[SeenClearedMsg](t, display, nil)
	if cleared.Err != nil {
		t.Fatalf("clear: %v", cleared.Err)
	}

	s.Refresh()
	report := waitFor[PassCompletedMsg](t, display, nil).Report
	if report.New != 1 {
		t.Errorf("pass after clear should find A1 new again: %+v", report)
	}

	s.SendTest()
	sent := waitFor[TestSentMsg](t, display, nil)
	if !sent.Result.OK() || sent.Result.Payload.Event != model.EventTest {
		t.Errorf("unexpected test result %+v", sent.Result)
	}
	if h.count() != 3 {
		t.Errorf("webhook calls = %d, want 3", h.count())
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{Stopped: "stopped", Running: "running", Paused: "paused"} {
		if state.String() != want {
			t.Errorf("%d.String() = %q, want %q", state, state.String(), want)
		}
	}
}
