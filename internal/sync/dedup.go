package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/store"
)

// Dedup returns the records whose identifiers were not yet in seen, in
// input order, and marks them seen. A duplicate inside the batch counts
// once. The set is persisted after every addition; persistence failures
// are returned joined but the records stay in the result, so a storage
// outage never suppresses a notification.
func Dedup(ctx context.Context, seen *store.SeenSet, records []model.TaskRecord) ([]model.TaskRecord, error) {
	var (
		fresh []model.TaskRecord
		errs  []error
	)
	for _, rec := range records {
		if !seen.Add(rec.Identifier) {
			continue
		}
		fresh = append(fresh, rec)
		if err := seen.Persist(ctx); err != nil {
			errs = append(errs, fmt.Errorf("marking %s seen: %w", rec.Identifier, err))
		}
	}
	return fresh, errors.Join(errs...)
}
