package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/store"
)

func newPostgresStore(t *testing.T) *store.PostgresStore {
	t.Helper()

	dsn := os.Getenv("HITWATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HITWATCH_TEST_POSTGRES_DSN not set")
	}

	s, err := store.NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore_SeenSet(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	key := "test-seen-" + uuid.NewString()
	t.Cleanup(func() { s.DeleteValue(ctx, key) })

	seen, err := store.LoadSeenSet(ctx, s, key)
	if err != nil {
		t.Fatalf("LoadSeenSet: %v", err)
	}
	seen.Add("A")
	seen.Add("B")
	if err := seen.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	again, err := store.LoadSeenSet(ctx, s, key)
	if err != nil || again.Len() != 2 {
		t.Fatalf("reload = %v, %v", again.IDs(), err)
	}

	if err := again.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, found, _ := s.GetValue(ctx, key); found {
		t.Error("value should be removed")
	}
}

func TestPostgresStore_Deliveries(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	id := "pg-" + uuid.NewString()

	err := s.RecordDelivery(ctx, model.Delivery{
		Event:        model.EventTest,
		AssignmentID: id,
		StatusCode:   200,
		OK:           true,
		CreatedAt:    time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}

	got, err := s.RecentDeliveries(ctx, 1)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 1 || got[0].AssignmentID != id || !got[0].OK {
		t.Errorf("unexpected deliveries: %+v", got)
	}
}
