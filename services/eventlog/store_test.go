package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"hgigs/core/types"
)

type testEvent struct {
	kind  string
	attrs map[string]string
}

func (e testEvent) EventType() string { return e.kind }

func (e testEvent) Event() *types.Event {
	return &types.Event{Type: e.kind, Attributes: e.attrs}
}

type untypedEvent struct{}

func (untypedEvent) EventType() string { return "marketplace.untyped" }

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "events.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	store, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store
}

func TestStoreEmitAndList(t *testing.T) {
	store := setupStore(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	store.Emit(testEvent{kind: "marketplace.gig.created", attrs: map[string]string{"gigId": "1", "price": "1000"}})
	store.Emit(testEvent{kind: "marketplace.order.created", attrs: map[string]string{"orderId": "1"}})
	store.Emit(untypedEvent{})

	entries, err := store.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Type != "marketplace.gig.created" || entries[0].Attributes["price"] != "1000" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Fatalf("expected distinct event ids")
	}
	if !entries[0].CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected timestamp %v", entries[0].CreatedAt)
	}
	if len(entries[2].Attributes) != 0 {
		t.Fatalf("expected empty attributes for untyped event")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Fatalf("sequence not increasing: %d then %d", entries[i-1].Seq, entries[i].Seq)
		}
	}

	page, err := store.List(context.Background(), entries[0].Seq, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].Seq != entries[1].Seq {
		t.Fatalf("unexpected page: %+v", page)
	}

	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != entries[2].Seq {
		t.Fatalf("expected latest %d, got %d", entries[2].Seq, latest)
	}
}

func TestStoreLatestEmpty(t *testing.T) {
	store := setupStore(t)
	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != 0 {
		t.Fatalf("expected 0, got %d", latest)
	}
}

func TestStoreIdempotency(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.LookupIdempotency(ctx, "hgig1caller", "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	first := IdempotencyKey{Key: "k1", Caller: "hgig1caller", Fingerprint: "abc", Method: "POST", Path: "/v1/gigs", Status: 201, Response: `{"id":"1"}`}
	if err := store.SaveIdempotency(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := first
	second.Response = `{"id":"2"}`
	if err := store.SaveIdempotency(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := store.LookupIdempotency(ctx, "hgig1caller", "k1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Response != `{"id":"1"}` || got.Status != 201 {
		t.Fatalf("expected first response to win, got %+v", got)
	}
	if _, err := store.LookupIdempotency(ctx, "hgig1other", "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("keys must be scoped per caller, got %v", err)
	}
}

func TestMemoryIdempotency(t *testing.T) {
	mem := NewMemoryIdempotency()
	ctx := context.Background()
	if err := mem.SaveIdempotency(ctx, IdempotencyKey{Key: "k", Caller: "a", Status: 200, Response: "one"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = mem.SaveIdempotency(ctx, IdempotencyKey{Key: "k", Caller: "a", Status: 200, Response: "two"})
	got, err := mem.LookupIdempotency(ctx, "a", "k")
	if err != nil || got.Response != "one" {
		t.Fatalf("unexpected record %+v err=%v", got, err)
	}
	if _, err := mem.LookupIdempotency(ctx, "b", "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
