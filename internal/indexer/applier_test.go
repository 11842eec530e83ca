package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"kiwi/internal/database"
)

func testRunContext() *RunContext {
	return newRunContext("test", time.Now(), nil, nil)
}

func row(id string, folders, tags []string) database.Item {
	return database.Item{ID: id, Name: id, ContentHash: "h-" + id, Folders: folders, Tags: tags}
}

func TestApplierDeleteItems(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	for _, id := range []string{"A", "B", "C", "D"} {
		store.items[id] = row(id, nil, nil)
	}
	store.failDelete["C"] = true

	a := NewApplier(store, 2)
	deleted, errs, err := a.DeleteItems(ctx, testRunContext(), []string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatalf("DeleteItems: %v", err)
	}

	// The batch holding C fails as a whole; the other batch is applied.
	if len(deleted) != 2 || deleted[0] != "A" || deleted[1] != "B" {
		t.Errorf("deleted = %v, want [A B]", deleted)
	}
	if len(errs) != 2 {
		t.Fatalf("errs = %v, want 2", errs)
	}
	for _, e := range errs {
		if e.Phase != StateDeleting || !errors.Is(e, errInjected) {
			t.Errorf("unexpected error %v", e)
		}
	}
	if _, ok := store.items["C"]; !ok {
		t.Error("C should survive its failed batch")
	}
}

func TestApplierUpsertItems(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failUpsert["B"] = true

	a := NewApplier(store, 2)
	rows := []database.Item{row("A", nil, nil), row("B", nil, nil), row("C", nil, nil)}
	written, errs, err := a.UpsertItems(ctx, testRunContext(), rows)
	if err != nil {
		t.Fatalf("UpsertItems: %v", err)
	}
	if store.upsertBatches != 2 {
		t.Errorf("upsert batches = %d, want 2", store.upsertBatches)
	}
	if len(written) != 2 || written[0].ID != "A" || written[1].ID != "C" {
		t.Errorf("written = %v, want A and C", written)
	}
	if len(errs) != 1 || errs[0].ID != "B" {
		t.Errorf("errs = %v, want one for B", errs)
	}
}

func TestApplierRebuildRelationships(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.items["A"] = row("A", nil, nil)
	store.items["B"] = row("B", nil, nil)
	store.folders["A"] = map[string]bool{"OLD": true}
	store.failRelate["B"] = true

	a := NewApplier(store, 10)
	errs, err := a.RebuildRelationships(ctx, testRunContext(), []database.Item{
		row("A", []string{"F1", "F2"}, []string{"cat"}),
		row("B", []string{"F1"}, nil),
	})
	if err != nil {
		t.Fatalf("RebuildRelationships: %v", err)
	}

	if got := keys(store.folders["A"]); len(got) != 2 || got[0] != "F1" || got[1] != "F2" {
		t.Errorf("A folders = %v, want [F1 F2]", got)
	}
	if got := keys(store.tags["A"]); len(got) != 1 || got[0] != "cat" {
		t.Errorf("A tags = %v, want [cat]", got)
	}

	if len(errs) != 1 || errs[0].ID != "B" || errs[0].Phase != StateRelating {
		t.Fatalf("errs = %v, want one relating error for B", errs)
	}
	if store.items["B"].ContentHash != "" {
		t.Error("B's hash should be cleared so the next run retries it")
	}
	if store.items["A"].ContentHash == "" {
		t.Error("A's hash should be untouched")
	}
}

func TestApplierStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewApplier(newFakeStore(), 1)
	if _, _, err := a.UpsertItems(ctx, testRunContext(), []database.Item{row("A", nil, nil)}); !errors.Is(err, context.Canceled) {
		t.Errorf("UpsertItems err = %v, want context.Canceled", err)
	}
	if _, _, err := a.DeleteItems(ctx, testRunContext(), []string{"A"}); !errors.Is(err, context.Canceled) {
		t.Errorf("DeleteItems err = %v, want context.Canceled", err)
	}
	if _, err := a.RebuildRelationships(ctx, testRunContext(), []database.Item{row("A", nil, nil)}); !errors.Is(err, context.Canceled) {
		t.Errorf("RebuildRelationships err = %v, want context.Canceled", err)
	}
}

func TestApplierFinalize(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.items["A"] = row("A", nil, nil)
	cursor := time.Now()

	n, err := NewApplier(store, 0).Finalize(ctx, cursor)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if n != 1 || store.count != 1 || !store.cursor.Equal(cursor) {
		t.Errorf("Finalize recorded count=%d cursor=%v, want 1 and %v", store.count, store.cursor, cursor)
	}

	store.setStateErr = errInjected
	if _, err := NewApplier(store, 0).Finalize(ctx, cursor); !errors.Is(err, errInjected) {
		t.Errorf("Finalize err = %v, want injected failure", err)
	}
}
