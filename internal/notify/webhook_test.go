package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/hitwatch/internal/model"
)

type capture struct {
	mu          gosync.Mutex
	bodies      [][]byte
	contentType string
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func webhook(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.contentType = r.Header.Get("Content-Type")
		c.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte("ack"))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

type fixedResolver string

func (f fixedResolver) WorkerID() string { return string(f) }

var fixedTime = time.Date(2026, 5, 4, 10, 30, 0, 123_000_000, time.UTC)

func sampleRecord() model.TaskRecord {
	secs := int64(3599)
	return model.TaskRecord{
		Identifier:           "A1",
		ExternalID:           "T1",
		Title:                "Tag images",
		RequesterName:        "Acme",
		Reward:               decimal.NewNullDecimal(decimal.RequireFromString("0.50")),
		TimeRemainingSeconds: &secs,
		State:                model.StateAssigned,
		RawAttributes:        map[string]string{model.AttrTaskURL: "https://worker.mturk.com/projects/P1/tasks/T1"},
	}
}

func TestNotify_PostsPayload(t *testing.T) {
	srv, c := webhook(t, http.StatusOK)
	n := New(srv.URL, time.Second,
		WithResolver(fixedResolver("W1")),
		WithClock(func() time.Time { return fixedTime }),
	)

	res := n.Notify(context.Background(), sampleRecord())
	if !res.OK() {
		t.Fatalf("expected OK, got status %d err %v", res.StatusCode, res.Err)
	}
	if res.Body != "ack" {
		t.Errorf("Body = %q", res.Body)
	}
	if c.count() != 1 {
		t.Fatalf("webhook called %d times, want 1", c.count())
	}
	if c.contentType != "application/json" {
		t.Errorf("Content-Type = %q", c.contentType)
	}

	var got map[string]any
	if err := json.Unmarshal(c.bodies[0], &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	want := map[string]any{
		"event":                "hit_in_queue",
		"assignmentId":         "A1",
		"hitId":                "T1",
		"requester":            "Acme",
		"title":                "Tag images",
		"reward":               0.5,
		"timeRemainingSeconds": float64(3599),
		"taskUrl":              "https://worker.mturk.com/projects/P1/tasks/T1",
		"workerId":             "W1",
		"time":                 "2026-05-04T10:30:00.123Z",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v (%T), want %v", k, got[k], got[k], v)
		}
	}
}

func TestNotify_Non2xxIsFailure(t *testing.T) {
	srv, c := webhook(t, http.StatusBadGateway)
	n := New(srv.URL, time.Second)

	res := n.Notify(context.Background(), sampleRecord())
	if res.OK() {
		t.Fatal("502 should not be OK")
	}
	if !errors.Is(res.Err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", res.Err)
	}
	if res.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if c.count() != 1 {
		t.Errorf("no retry expected, got %d calls", c.count())
	}
}

func TestNotify_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := New(url, time.Second).Notify(context.Background(), sampleRecord())
	if !errors.Is(res.Err, ErrDeliveryFailed) || res.StatusCode != 0 {
		t.Errorf("expected transport failure, got %d %v", res.StatusCode, res.Err)
	}
}

func TestWorkerIDResolution(t *testing.T) {
	tests := []struct {
		name     string
		resolver ActorResolver
		fallback string
		want     string
	}{
		{"resolver wins", fixedResolver("W1"), "CFG", "W1"},
		{"blank resolver uses fallback", fixedResolver("  "), "CFG", "CFG"},
		{"nothing known", nil, "", model.UnknownWorker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.resolver != nil {
				opts = append(opts, WithResolver(tt.resolver))
			}
			opts = append(opts, WithFallbackWorkerID(tt.fallback))
			if got := New("http://example.invalid", 0, opts...).WorkerID(); got != tt.want {
				t.Errorf("WorkerID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildPayload_OmitsUnknownFields(t *testing.T) {
	p := BuildPayload(model.TaskRecord{Identifier: "A9"}, "W", fixedTime)
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	json.Unmarshal(data, &got)
	for _, k := range []string{"reward", "timeRemainingSeconds", "taskUrl", "hitId"} {
		if _, ok := got[k]; ok {
			t.Errorf("%s should be omitted when unknown", k)
		}
	}
	if got["assignmentId"] != "A9" || got["workerId"] != "W" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSendTest(t *testing.T) {
	srv, c := webhook(t, http.StatusNoContent)
	res := New(srv.URL, time.Second).SendTest(context.Background())
	if !res.OK() {
		t.Fatalf("SendTest: %v", res.Err)
	}
	if res.Payload.Event != model.EventTest {
		t.Errorf("Event = %q", res.Payload.Event)
	}
	if c.count() != 1 {
		t.Errorf("calls = %d", c.count())
	}
}
