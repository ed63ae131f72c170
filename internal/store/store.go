package store

import (
	"context"
	"fmt"

	"github.com/nhle/hitwatch/internal/model"
)

// Store defines the persistence interface: a durable key-value space for
// the seen-set and an append-only delivery log.
type Store interface {
	// === Key-value ===

	// GetValue returns the value for key; found is false when absent.
	GetValue(ctx context.Context, key string) (value string, found bool, err error)
	PutValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error

	// === Delivery log ===

	RecordDelivery(ctx context.Context, d model.Delivery) error
	RecentDeliveries(ctx context.Context, limit int) ([]model.Delivery, error)

	Close() error
}

// Open opens the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg model.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case model.StoreDriverSQLite:
		return NewSQLiteStore(cfg.Path)
	case model.StoreDriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
