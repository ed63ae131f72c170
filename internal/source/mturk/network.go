package mturk

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/source"
)

// NetworkExtractor implements source.Extractor by reading the JSON queue
// endpoint with the session cookie.
type NetworkExtractor struct {
	client   *Client
	endpoint string
	logger   *slog.Logger
}

// NewNetworkExtractor creates a network extractor for endpoint
// (e.g. /tasks.json). A nil logger uses slog.Default.
func NewNetworkExtractor(c *Client, endpoint string, logger *slog.Logger) *NetworkExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkExtractor{
		client:   c,
		endpoint: endpoint,
		logger:   logger.With("component", "extractor", "mode", model.SourceModeNetwork),
	}
}

// Name returns the extractor mode.
func (e *NetworkExtractor) Name() string { return model.SourceModeNetwork }

// Extract fetches the endpoint and decodes its tasks array. A body that is
// not JSON is screened for challenge markers instead of being decoded.
func (e *NetworkExtractor) Extract(ctx context.Context) ([]model.TaskRecord, error) {
	body, mediaType, err := e.client.Fetch(ctx, e.Name(), e.endpoint, "application/json")
	if err != nil {
		return nil, err
	}

	if !isJSON(mediaType) || !json.Valid(body) {
		if err := challenge(e.Name(), body); err != nil {
			return nil, err
		}
		return nil, source.Unavailable("response from %s is not JSON (%s)", e.endpoint, mediaType)
	}

	var resp QueueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, source.Unavailable("decoding %s: %v", e.endpoint, err)
	}
	if resp.Tasks == nil {
		return nil, source.Unavailable("response from %s has no tasks field", e.endpoint)
	}

	records, skipped := decodeEntries(*resp.Tasks, e.client.AbsoluteURL)
	if skipped > 0 {
		e.logger.Warn("skipped malformed queue rows", "skipped", skipped)
	}
	return records, nil
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
