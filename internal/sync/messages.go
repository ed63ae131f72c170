package sync

import (
	"time"

	"github.com/nhle/hitwatch/internal/model"
)

// PassStartedMsg is a tea.Msg sent when a pass begins.
type PassStartedMsg struct {
	At time.Time
}

// RecordObservedMsg is a tea.Msg sent once per new record, after its
// webhook delivery was attempted.
type RecordObservedMsg struct {
	Record model.TaskRecord
	Result model.DeliveryResult
}

// PassCompletedMsg is a tea.Msg sent when a pass ends, whatever its outcome.
type PassCompletedMsg struct {
	Report PassReport
}

// StateChangedMsg is a tea.Msg sent on every scheduler state transition.
type StateChangedMsg struct {
	State State
}

// SeenClearedMsg is a tea.Msg sent after the seen-set was cleared.
type SeenClearedMsg struct {
	Err error
}

// TestSentMsg is a tea.Msg carrying the outcome of a test notification.
type TestSentMsg struct {
	Result model.DeliveryResult
}
