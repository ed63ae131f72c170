package mturk

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/source"
)

// PageOptions locates the embedded queue state inside the queue page.
type PageOptions struct {
	Path           string
	QueueSelector  string
	PropsAttribute string
	RecordsField   string
	WorkerSelector string
}

// PageExtractor implements source.Extractor by loading the queue page and
// parsing the JSON props embedded in the queue table element.
type PageExtractor struct {
	client *Client
	opts   PageOptions
	logger *slog.Logger
}

// NewPageExtractor creates a page extractor. A nil logger uses slog.Default.
func NewPageExtractor(c *Client, opts PageOptions, logger *slog.Logger) *PageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageExtractor{
		client: c,
		opts:   opts,
		logger: logger.With("component", "extractor", "mode", model.SourceModePage),
	}
}

// Name returns the extractor mode.
func (e *PageExtractor) Name() string { return model.SourceModePage }

// Extract fetches the queue page and returns the embedded queue rows.
func (e *PageExtractor) Extract(ctx context.Context) ([]model.TaskRecord, error) {
	body, _, err := e.client.Fetch(ctx, e.Name(), e.opts.Path, "text/html")
	if err != nil {
		return nil, err
	}
	return e.Parse(body)
}

// Parse extracts queue rows from a queue page body. The worker ID widget,
// when present, updates the client's remembered worker ID. Challenge
// markers are only checked when the queue element is missing.
func (e *PageExtractor) Parse(body []byte) ([]model.TaskRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, source.Unavailable("parsing queue page: %v", err)
	}

	if id := e.findWorkerID(doc); id != "" {
		e.client.setWorkerID(id)
	}

	sel := doc.Find(e.opts.QueueSelector).First()
	if sel.Length() == 0 {
		if err := challenge(e.Name(), body); err != nil {
			return nil, err
		}
		return nil, source.Unavailable("queue element %q not found", e.opts.QueueSelector)
	}

	rawProps, ok := sel.Attr(e.opts.PropsAttribute)
	if !ok {
		return nil, source.Unavailable("queue element has no %s attribute", e.opts.PropsAttribute)
	}

	var props map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rawProps), &props); err != nil {
		return nil, source.Unavailable("decoding %s: %v", e.opts.PropsAttribute, err)
	}

	field, ok := props[e.opts.RecordsField]
	if !ok {
		return nil, source.Unavailable("props have no %s field", e.opts.RecordsField)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(field, &raws); err != nil {
		return nil, source.Unavailable("decoding %s: %v", e.opts.RecordsField, err)
	}

	records, skipped := decodeEntries(raws, e.client.AbsoluteURL)
	if skipped > 0 {
		e.logger.Warn("skipped malformed queue rows", "skipped", skipped)
	}
	return records, nil
}

// findWorkerID reads the worker ID from the copy-to-clipboard widget,
// preferring its props over its visible text.
func (e *PageExtractor) findWorkerID(doc *goquery.Document) string {
	if e.opts.WorkerSelector == "" {
		return ""
	}

	var id string
	doc.Find(e.opts.WorkerSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if raw, ok := sel.Attr(e.opts.PropsAttribute); ok {
			var props CopyTextProps
			if json.Unmarshal([]byte(raw), &props) == nil && props.TextToCopy != "" {
				id = strings.TrimSpace(props.TextToCopy)
				return false
			}
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			id = text
			return false
		}
		return true
	})
	return id
}
