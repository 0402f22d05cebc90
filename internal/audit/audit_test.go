package audit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hausmatch/leadflow/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewStore(d)
}

func TestLogAndQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Log(ctx, Entry{
		FlowID: "flow-1",
		Action: ActionPublish,
		Meta:   map[string]any{"version": 3},
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := store.Query(ctx, QueryFilter{FlowID: "flow-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Action != ActionPublish {
		t.Errorf("action = %q, want %q", entries[0].Action, ActionPublish)
	}
	if v, ok := entries[0].Meta["version"].(float64); !ok || v != 3 {
		t.Errorf("meta version = %v, want 3", entries[0].Meta["version"])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	store.Log(ctx, Entry{FlowID: "flow-1", Action: ActionPublish})
	store.Log(ctx, Entry{FlowID: "flow-1", Action: ActionMigrate})
	store.Log(ctx, Entry{FlowID: "flow-2", Action: ActionPublish})

	byFlow, err := store.Query(ctx, QueryFilter{FlowID: "flow-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byFlow) != 2 {
		t.Errorf("flow-1 entries = %d, want 2", len(byFlow))
	}

	byAction, err := store.Query(ctx, QueryFilter{Action: ActionPublish})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byAction) != 2 {
		t.Errorf("publish entries = %d, want 2", len(byAction))
	}

	future := time.Now().UTC().Add(time.Hour)
	none, err := store.Query(ctx, QueryFilter{Since: &future})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("future entries = %d, want 0", len(none))
	}
}

func TestQueryLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.Log(ctx, Entry{FlowID: "flow-1", Action: ActionImport})
	}

	entries, err := store.Query(ctx, QueryFilter{Limit: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestAuditRoute(t *testing.T) {
	store := setupTestStore(t)
	store.Log(context.Background(), Entry{FlowID: "flow-1", Action: ActionPublish})

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest("GET", "/api/audit?flow_id=flow-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
