package mturk

import (
	"fmt"
	"log/slog"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/source"
)

// NewExtractor builds the extractor variant selected by cfg.Mode. The
// returned client doubles as the worker ID resolver for notifications.
func NewExtractor(cfg model.SourceConfig, cookie string, logger *slog.Logger) (source.Extractor, *Client, error) {
	client := NewClient(cfg.BaseURL, cookie, cfg.UserAgent)

	switch cfg.Mode {
	case model.SourceModePage:
		return NewPageExtractor(client, PageOptions{
			Path:           cfg.PagePath,
			QueueSelector:  cfg.QueueSelector,
			PropsAttribute: cfg.PropsAttribute,
			RecordsField:   cfg.RecordsField,
			WorkerSelector: cfg.WorkerSelector,
		}, logger), client, nil
	case model.SourceModeNetwork:
		return NewNetworkExtractor(client, cfg.Endpoint, logger), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown source mode %q", cfg.Mode)
	}
}
