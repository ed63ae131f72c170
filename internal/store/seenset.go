package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSeenSetCorrupt is returned by LoadSeenSet when the persisted value
// could not be read or decoded. The returned set is empty and usable.
var ErrSeenSetCorrupt = errors.New("seen set corrupt")

// SeenSet is the durable set of record identifiers that have already been
// notified. It is persisted as a JSON array of strings under a single key.
// A SeenSet is not safe for concurrent use; the scheduler owns it.
type SeenSet struct {
	kv    Store
	key   string
	ids   []string
	index map[string]struct{}
}

// LoadSeenSet reads the set stored under key. A missing key yields an
// empty set. On a read or decode failure it still returns an empty set,
// together with an error wrapping ErrSeenSetCorrupt.
func LoadSeenSet(ctx context.Context, kv Store, key string) (*SeenSet, error) {
	s := &SeenSet{kv: kv, key: key, index: make(map[string]struct{})}

	raw, found, err := kv.GetValue(ctx, key)
	if err != nil {
		return s, fmt.Errorf("%w: reading %s: %v", ErrSeenSetCorrupt, key, err)
	}
	if !found || raw == "" {
		return s, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return s, fmt.Errorf("%w: decoding %s: %v", ErrSeenSetCorrupt, key, err)
	}
	for _, id := range ids {
		s.Add(id)
	}
	return s, nil
}

// Key returns the storage key the set persists under.
func (s *SeenSet) Key() string { return s.key }

// Contains reports whether id has been seen.
func (s *SeenSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add inserts id and reports whether it was newly added. Empty ids are
// ignored.
func (s *SeenSet) Add(id string) bool {
	if id == "" || s.Contains(id) {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Persist writes the whole set back to the store.
func (s *SeenSet) Persist(ctx context.Context) error {
	ids := s.ids
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding seen set: %w", err)
	}
	if err := s.kv.PutValue(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("persisting seen set: %w", err)
	}
	return nil
}

// Clear removes the persisted value and then empties the set. On failure
// the set is left as it was.
func (s *SeenSet) Clear(ctx context.Context) error {
	if err := s.kv.DeleteValue(ctx, s.key); err != nil {
		return fmt.Errorf("clearing seen set: %w", err)
	}
	s.ids = nil
	s.index = make(map[string]struct{})
	return nil
}

// IDs returns a copy of the identifiers in insertion order.
func (s *SeenSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of identifiers in the set.
func (s *SeenSet) Len() int { return len(s.ids) }
