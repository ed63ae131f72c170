package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/hitwatch/internal/model"
)

// ErrDeliveryFailed wraps every webhook failure: transport errors and
// non-2xx responses alike.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// maxLoggedBody caps how much of a webhook response is kept.
const maxLoggedBody = 512

// ActorResolver supplies the worker identifier at send time. The mturk
// session client implements it once the queue page has been read.
type ActorResolver interface {
	WorkerID() string
}

// Notifier POSTs one JSON payload per call to a webhook. It never retries.
type Notifier struct {
	url        string
	httpClient *http.Client
	resolver   ActorResolver
	fallbackID string
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises a Notifier.
type Option func(*Notifier)

// WithResolver sets the source of the worker identifier.
func WithResolver(r ActorResolver) Option {
	return func(n *Notifier) { n.resolver = r }
}

// WithFallbackWorkerID sets the identifier used when the resolver has none.
func WithFallbackWorkerID(id string) Option {
	return func(n *Notifier) { n.fallbackID = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithClock overrides the time source used for the payload timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// New creates a Notifier for the given webhook URL.
func New(url string, timeout time.Duration, opts ...Option) *Notifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	n := &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "notifier")
	return n
}

// WorkerID resolves the actor identifier: the resolver first, then the
// configured fallback, then model.UnknownWorker.
func (n *Notifier) WorkerID() string {
	if n.resolver != nil {
		if id := strings.TrimSpace(n.resolver.WorkerID()); id != "" {
			return id
		}
	}
	if n.fallbackID != "" {
		return n.fallbackID
	}
	return model.UnknownWorker
}

// BuildPayload maps a record onto the webhook payload.
func BuildPayload(rec model.TaskRecord, workerID string, at time.Time) model.NotificationPayload {
	p := model.NotificationPayload{
		Event:                model.EventHitInQueue,
		AssignmentID:         rec.Identifier,
		HitID:                rec.ExternalID,
		Requester:            rec.RequesterName,
		Title:                rec.Title,
		TimeRemainingSeconds: rec.TimeRemainingSeconds,
		TaskURL:              rec.Attr(model.AttrTaskURL),
		WorkerID:             workerID,
		Time:                 at.UTC().Format(model.PayloadTimeLayout),
	}
	if rec.Reward.Valid {
		p.Reward = json.Number(rec.Reward.Decimal.String())
	}
	return p
}

// Notify sends the notification for one new record.
func (n *Notifier) Notify(ctx context.Context, rec model.TaskRecord) model.DeliveryResult {
	return n.send(ctx, BuildPayload(rec, n.WorkerID(), n.now()))
}

// SendTest sends a synthetic payload so the webhook wiring can be checked
// without a real assignment.
func (n *Notifier) SendTest(ctx context.Context) model.DeliveryResult {
	p := model.NotificationPayload{
		Event:        model.EventTest,
		AssignmentID: "TEST-" + uuid.NewString(),
		Title:        "hitwatch test notification",
		WorkerID:     n.WorkerID(),
		Time:         n.now().UTC().Format(model.PayloadTimeLayout),
	}
	return n.send(ctx, p)
}

func (n *Notifier) send(ctx context.Context, p model.NotificationPayload) (res model.DeliveryResult) {
	res.Payload = p
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	data, err := json.Marshal(p)
	if err != nil {
		res.Err = fmt.Errorf("%w: marshaling payload: %v", ErrDeliveryFailed, err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		res.Err = fmt.Errorf("%w: creating request: %v", ErrDeliveryFailed, err)
		return res
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		n.logger.Warn("webhook request failed",
			"assignment_id", p.AssignmentID, "error", err)
		return res
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	res.StatusCode = resp.StatusCode
	res.Body = string(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Err = fmt.Errorf("%w: webhook returned %d", ErrDeliveryFailed, resp.StatusCode)
		n.logger.Warn("webhook rejected notification",
			"assignment_id", p.AssignmentID, "status", resp.StatusCode, "body", res.Body)
		return res
	}

	n.logger.Info("webhook notified",
		"event", p.Event, "assignment_id", p.AssignmentID, "status", resp.StatusCode)
	return res
}
