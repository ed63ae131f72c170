package display

import (
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Target receives pipeline events. It matches sync.Display, and
// *tea.Program satisfies it.
type Target interface {
	Send(msg tea.Msg)
}

// Fanout forwards every event to each registered target in order. Targets
// may be added after the pipeline has started.
type Fanout struct {
	mu      gosync.RWMutex
	targets []Target
}

// NewFanout creates a Fanout over targets. Nil targets are skipped.
func NewFanout(targets ...Target) *Fanout {
	f := &Fanout{}
	for _, t := range targets {
		f.Add(t)
	}
	return f
}

// Add registers another target.
func (f *Fanout) Add(t Target) {
	if t == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, t)
}

// Send implements Target.
func (f *Fanout) Send(msg tea.Msg) {
	f.mu.RLock()
	targets := make([]Target, len(f.targets))
	copy(targets, f.targets)
	f.mu.RUnlock()

	for _, t := range targets {
		t.Send(msg)
	}
}
