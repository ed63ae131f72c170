package model

import (
	"encoding/json"
	"time"
)

// Event tags carried in NotificationPayload.Event.
const (
	EventHitInQueue = "hit_in_queue"
	EventTest       = "test"
)

// UnknownWorker is the actor identifier used when none can be resolved.
const UnknownWorker = "unknown"

// PayloadTimeLayout matches the ISO-8601 form browsers emit for toISOString.
const PayloadTimeLayout = "2006-01-02T15:04:05.000Z"

// NotificationPayload is the JSON body POSTed to the webhook. It is built
// once per new record and never mutated afterwards.
type NotificationPayload struct {
	Event                string      `json:"event"`
	AssignmentID         string      `json:"assignmentId"`
	HitID                string      `json:"hitId,omitempty"`
	Requester            string      `json:"requester,omitempty"`
	Title                string      `json:"title,omitempty"`
	Reward               json.Number `json:"reward,omitempty"`
	TimeRemainingSeconds *int64      `json:"timeRemainingSeconds,omitempty"`
	TaskURL              string      `json:"taskUrl,omitempty"`
	WorkerID             string      `json:"workerId"`
	Time                 string      `json:"time"`
}

// DeliveryResult reports the outcome of a single webhook POST.
type DeliveryResult struct {
	Payload    NotificationPayload
	StatusCode int
	// Body is the (possibly truncated) response body, kept for logging.
	Body     string
	Err      error
	Duration time.Duration
}

// OK reports whether the webhook accepted the payload.
func (r DeliveryResult) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Delivery is a persisted record of one delivery attempt.
type Delivery struct {
	// ID is the unique identifier for this delivery row.
	ID string `json:"id" db:"id"`

	// Event is the payload event tag.
	Event string `json:"event" db:"event"`

	// AssignmentID links the delivery to the notified record.
	AssignmentID string `json:"assignment_id" db:"assignment_id"`

	// Title is copied from the payload for display.
	Title string `json:"title" db:"title"`

	// StatusCode is the HTTP status returned by the webhook (0 on
	// transport failure).
	StatusCode int `json:"status_code" db:"status_code"`

	// OK indicates whether the webhook accepted the payload.
	OK bool `json:"ok" db:"ok"`

	// Error is the failure text, empty on success.
	Error string `json:"error" db:"error"`

	// CreatedAt is when the attempt finished.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeliveryFromResult converts a DeliveryResult into a log row. The ID is
// assigned by the store.
func DeliveryFromResult(res DeliveryResult, at time.Time) Delivery {
	d := Delivery{
		Event:        res.Payload.Event,
		AssignmentID: res.Payload.AssignmentID,
		Title:        res.Payload.Title,
		StatusCode:   res.StatusCode,
		OK:           res.OK(),
		CreatedAt:    at,
	}
	if res.Err != nil {
		d.Error = res.Err.Error()
	}
	return d
}
