package source

import (
	"context"
	gosync "sync"

	"github.com/nhle/hitwatch/internal/model"
)

// Static is an Extractor that returns canned records. It is safe for
// concurrent use so tests can swap its contents while a scheduler runs.
type Static struct {
	mu      gosync.Mutex
	records []model.TaskRecord
	err     error
	calls   int
}

// NewStatic creates a Static extractor returning records.
func NewStatic(records ...model.TaskRecord) *Static {
	return &Static{records: records}
}

// Name returns "static".
func (s *Static) Name() string { return "static" }

// Set replaces the canned records and error.
func (s *Static) Set(records []model.TaskRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.err = err
}

// Calls returns how many times Extract ran.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Extract returns a copy of the canned records, or the canned error.
func (s *Static) Extract(_ context.Context) ([]model.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.TaskRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
