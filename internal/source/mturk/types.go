package mturk

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"github.com/nhle/hitwatch/internal/model"
)

// QueueEntry is one row of the worker's task queue as embedded in the queue
// page ("bodyData") or returned by the JSON endpoint ("tasks").
type QueueEntry struct {
	AssignmentID            string   `json:"assignment_id"`
	TaskID                  string   `json:"task_id"`
	State                   string   `json:"state"`
	TimeToDeadlineInSeconds *float64 `json:"time_to_deadline_in_seconds"`
	TaskURL                 string   `json:"task_url"`
	Project                 Project  `json:"project"`
}

// Project describes the HIT group an assignment belongs to.
type Project struct {
	RequesterName  string          `json:"requester_name"`
	RequesterID    string          `json:"requester_id"`
	Title          string          `json:"title"`
	MonetaryReward *MonetaryReward `json:"monetary_reward"`
}

// MonetaryReward holds the reward amount. The site reports dollars as a
// JSON number; decimal keeps cents exact.
type MonetaryReward struct {
	AmountInDollars decimal.NullDecimal `json:"amount_in_dollars"`
	CurrencyCode    string              `json:"currency_code"`
}

// QueueResponse is the body of the JSON queue endpoint. Tasks is a pointer
// so a missing field can be told apart from an empty queue.
type QueueResponse struct {
	Tasks *[]json.RawMessage `json:"tasks"`
}

// CopyTextProps is the embedded props blob of the worker ID widget.
type CopyTextProps struct {
	TextToCopy string `json:"textToCopy"`
}

// decodeEntries converts raw queue rows into task records, in order.
// Rows that are not objects or carry no assignment ID are skipped and
// counted.
func decodeEntries(raws []json.RawMessage, absolute func(string) string) ([]model.TaskRecord, int) {
	records := make([]model.TaskRecord, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		var entry QueueEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.AssignmentID == "" {
			skipped++
			continue
		}
		records = append(records, entry.toRecord(absolute))
	}
	return records, skipped
}

// toRecord maps a queue row onto the source-neutral record type.
func (e QueueEntry) toRecord(absolute func(string) string) model.TaskRecord {
	rec := model.TaskRecord{
		Identifier:    e.AssignmentID,
		ExternalID:    e.TaskID,
		Title:         e.Project.Title,
		RequesterName: e.Project.RequesterName,
		State:         e.State,
	}

	if e.Project.MonetaryReward != nil {
		rec.Reward = e.Project.MonetaryReward.AmountInDollars
	}

	if e.TimeToDeadlineInSeconds != nil {
		secs := deadlineSeconds(*e.TimeToDeadlineInSeconds)
		rec.TimeRemainingSeconds = &secs
	}

	if e.TaskURL != "" {
		rec.RawAttributes = map[string]string{
			model.AttrTaskURL: absolute(e.TaskURL),
		}
	}

	return rec
}

// deadlineSeconds floors d to whole seconds, clamped to [0, MaxInt64].
func deadlineSeconds(d float64) int64 {
	switch {
	case math.IsNaN(d) || d <= 0:
		return 0
	case d >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(math.Floor(d))
}
