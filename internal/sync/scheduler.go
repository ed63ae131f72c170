package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"
)

// ErrAlreadyRunning is returned by Run when the scheduler is already active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// State is the scheduler lifecycle state.
type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

type command int

const (
	cmdPause command = iota
	cmdResume
	cmdToggle
	cmdRefresh
	cmdClear
	cmdTest
)

// Scheduler drives the pipeline on a fixed interval. All passes and
// seen-set mutations happen on the goroutine running Run; the public
// control methods only enqueue commands and never block.
type Scheduler struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *slog.Logger
	display  Display
	cmdCh    chan command

	mu      gosync.Mutex
	state   State
	running bool
}

// NewScheduler creates a Scheduler for p. A non-positive interval falls
// back to three seconds.
func NewScheduler(p *Pipeline, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pipeline: p,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		display:  p.display,
		cmdCh:    make(chan command, 16),
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes an immediate pass, then one pass per interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.setState(Stopped)
	}()

	s.setState(Running)
	s.logger.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Do an initial pass immediately
	s.pipeline.Pass(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if s.State() == Running {
				s.pipeline.Pass(ctx)
			}
		case cmd := <-s.cmdCh:
			s.handle(ctx, cmd, ticker)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, cmd command, ticker *time.Ticker) {
	if cmd == cmdToggle {
		cmd = cmdPause
		if s.State() == Paused {
			cmd = cmdResume
		}
	}

	switch cmd {
	case cmdPause:
		if s.State() != Running {
			return
		}
		ticker.Stop()
		s.setState(Paused)
		s.logger.Info("scheduler paused")
	case cmdResume:
		if s.State() != Paused {
			return
		}
		s.setState(Running)
		s.logger.Info("scheduler resumed")
		s.pipeline.Pass(ctx)
		ticker.Reset(s.interval)
	case cmdRefresh:
		if s.State() == Running {
			s.pipeline.Pass(ctx)
		}
	case cmdClear:
		s.pipeline.ClearSeen(ctx)
	case cmdTest:
		s.pipeline.SendTest(ctx)
	}
}

// Pause stops scheduled passes until Resume.
func (s *Scheduler) Pause() { s.enqueue(cmdPause) }

// Resume runs a pass immediately and re-arms the interval.
func (s *Scheduler) Resume() { s.enqueue(cmdResume) }

// TogglePause pauses a running scheduler or resumes a paused one.
func (s *Scheduler) TogglePause() { s.enqueue(cmdToggle) }

// Refresh runs a pass now. It is ignored while paused.
func (s *Scheduler) Refresh() { s.enqueue(cmdRefresh) }

// ClearSeen empties the seen-set.
func (s *Scheduler) ClearSeen() { s.enqueue(cmdClear) }

// SendTest delivers a test notification.
func (s *Scheduler) SendTest() { s.enqueue(cmdTest) }

func (s *Scheduler) enqueue(cmd command) {
	select {
	case s.cmdCh <- cmd:
	default:
		// Channel full; skip to avoid blocking the caller
		s.logger.Warn("scheduler command dropped", "command", int(cmd))
	}
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed {
		s.display.Send(StateChangedMsg{State: state})
	}
}
