package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known assignment states reported by the queue page.
const (
	StateAssigned  = "Assigned"
	StateAccepted  = "Accepted"
	StateSubmitted = "Submitted"
	StateReturned  = "Returned"
)

// Raw attribute keys carried through to the notification payload.
const (
	AttrTaskURL = "task_url"
)

// TaskRecord is one observed work item (an accepted assignment).
type TaskRecord struct {
	// Identifier is the assignment ID. It is unique per assignment, stable
	// across polls, and the only key used for deduplication.
	Identifier string `json:"identifier"`

	// ExternalID is the task (HIT) ID. Several assignments may share it.
	ExternalID string `json:"external_id"`

	// Title is the project title shown to the worker.
	Title string `json:"title"`

	// RequesterName is the display name of the requester.
	RequesterName string `json:"requester_name"`

	// Reward is the monetary reward in dollars, if the source reported one.
	Reward decimal.NullDecimal `json:"reward"`

	// TimeRemainingSeconds is the time left before the assignment expires.
	// Nil means the source did not report it.
	TimeRemainingSeconds *int64 `json:"time_remaining_seconds,omitempty"`

	// State is the source-reported status (e.g. "Assigned").
	State string `json:"state"`

	// RawAttributes holds passthrough fields needed to build the payload.
	RawAttributes map[string]string `json:"raw_attributes,omitempty"`
}

// Attr returns a raw attribute or the empty string.
func (r TaskRecord) Attr(key string) string {
	if r.RawAttributes == nil {
		return ""
	}
	return r.RawAttributes[key]
}

// HasState reports whether the record's state case-insensitively matches
// any of the given states.
func (r TaskRecord) HasState(states []string) bool {
	st := strings.TrimSpace(r.State)
	if st == "" {
		return false
	}
	for _, s := range states {
		if strings.EqualFold(st, strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}
