package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/store"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

func setupQueue(t *testing.T) (*Queue, *sql.DB) {
	t.Helper()
	db, err := store.Open(t.TempDir() + "/budget.db")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	q := New(db.RawDB(), log.New(io.Discard, "", 0))
	if err := q.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return q, db.RawDB()
}

const familyID = "family-1700000000000-abc123xyz"

func enqueue(t *testing.T, q *Queue, kind types.Kind, action types.Action, entityID string) *Item {
	t.Helper()
	item := &Item{FamilyID: familyID, Kind: kind, Action: action, EntityID: entityID,
		Data: json.RawMessage(`{"title":"Luz"}`)}
	if err := q.Enqueue(context.Background(), item); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return item
}

func TestPendingPreservesArrivalOrder(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	ids := []string{
		"exp-1700000000001-aaaaaaaaa",
		"exp-1700000000002-bbbbbbbbb",
		"exp-1700000000003-ccccccccc",
	}
	for _, id := range ids {
		enqueue(t, q, types.KindExpense, types.ActionInsert, id)
	}

	items, err := q.Pending(ctx, familyID)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(items) != len(ids) {
		t.Fatalf("expected %d items, got %d", len(ids), len(items))
	}
	for i, item := range items {
		if item.EntityID != ids[i] {
			t.Errorf("item %d out of order: got %s, want %s", i, item.EntityID, ids[i])
		}
	}
}

func TestPendingOrdersByCreatedAtNotInsertion(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	// Enqueued newest-timestamp first; the drain order must still be
	// oldest created_at first.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{
		"exp-1700000000003-ccccccccc",
		"exp-1700000000002-bbbbbbbbb",
		"exp-1700000000001-aaaaaaaaa",
	}
	for i, id := range ids {
		item := &Item{FamilyID: familyID, Kind: types.KindExpense,
			Action: types.ActionInsert, EntityID: id,
			CreatedAt: base.Add(time.Duration(len(ids)-i) * time.Second)}
		if err := q.Enqueue(ctx, item); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	items, err := q.Pending(ctx, familyID)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(items) != len(ids) {
		t.Fatalf("expected %d items, got %d", len(ids), len(items))
	}
	want := []string{
		"exp-1700000000001-aaaaaaaaa",
		"exp-1700000000002-bbbbbbbbb",
		"exp-1700000000003-ccccccccc",
	}
	for i, item := range items {
		if item.EntityID != want[i] {
			t.Errorf("position %d: got %s (createdAt %s), want %s",
				i, item.EntityID, item.CreatedAt, want[i])
		}
	}
}

func TestEnqueueRejectsBadEnvelopes(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	tests := []struct {
		name string
		item Item
	}{
		{"unknown kind", Item{FamilyID: familyID, Kind: "wallet", Action: types.ActionInsert, EntityID: "exp-1700000000001-aaaaaaaaa"}},
		{"unknown action", Item{FamilyID: familyID, Kind: types.KindExpense, Action: "upsert", EntityID: "exp-1700000000001-aaaaaaaaa"}},
		{"reserved family id", Item{FamilyID: "__proto__", Kind: types.KindExpense, Action: types.ActionInsert, EntityID: "exp-1700000000001-aaaaaaaaa"}},
		{"markup entity id", Item{FamilyID: familyID, Kind: types.KindExpense, Action: types.ActionInsert, EntityID: "<script>alert(1)</script>"}},
		{"empty entity id", Item{FamilyID: familyID, Kind: types.KindExpense, Action: types.ActionInsert, EntityID: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := tt.item
			if err := q.Enqueue(ctx, &item); !errors.Is(err, ErrInvalidItem) {
				t.Errorf("expected ErrInvalidItem, got %v", err)
			}
		})
	}

	items, err := q.Pending(ctx, familyID)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("rejected envelopes reached the queue: %d", len(items))
	}
}

func TestMarkFailedParksAtRetryCeiling(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	item := enqueue(t, q, types.KindExpense, types.ActionInsert, "exp-1700000000001-aaaaaaaaa")

	cause := errors.New("remote unavailable")
	for i := 0; i < MaxAttempts; i++ {
		if err := q.MarkFailed(ctx, item.ID, cause); err != nil {
			t.Fatalf("MarkFailed %d failed: %v", i, err)
		}
	}

	pending, err := q.Pending(ctx, familyID)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("dead letter still pending")
	}

	dead, err := q.DeadLetters(ctx, familyID)
	if err != nil {
		t.Fatalf("DeadLetters failed: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	if dead[0].Attempts != MaxAttempts {
		t.Errorf("attempts = %d, want %d", dead[0].Attempts, MaxAttempts)
	}
	if dead[0].LastError != cause.Error() {
		t.Errorf("last error = %q, want %q", dead[0].LastError, cause.Error())
	}
}

func TestRetryRequeuesDeadLetter(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	item := enqueue(t, q, types.KindExpense, types.ActionInsert, "exp-1700000000001-aaaaaaaaa")

	for i := 0; i < MaxAttempts; i++ {
		if err := q.MarkFailed(ctx, item.ID, errors.New("boom")); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}
	}
	if err := q.Retry(ctx, item.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	pending, err := q.Pending(ctx, familyID)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending item after retry, got %d", len(pending))
	}
	if pending[0].Attempts != 0 {
		t.Errorf("attempts not reset: %d", pending[0].Attempts)
	}

	// Retrying a live item is an error.
	if err := q.Retry(ctx, item.ID); err == nil {
		t.Error("Retry on a pending item should fail")
	}
}

func TestDepthCountsByStatus(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	a := enqueue(t, q, types.KindExpense, types.ActionInsert, "exp-1700000000001-aaaaaaaaa")
	enqueue(t, q, types.KindMonth, types.ActionUpdate, "month-1700000000002-bbbbbbbbb")
	for i := 0; i < MaxAttempts; i++ {
		if err := q.MarkFailed(ctx, a.ID, errors.New("boom")); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}
	}

	pending, dead, err := q.Depth(ctx, familyID)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if pending != 1 || dead != 1 {
		t.Errorf("Depth = (%d, %d), want (1, 1)", pending, dead)
	}
}

func TestRemoveDeletesItem(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	item := enqueue(t, q, types.KindExpense, types.ActionDelete, "exp-1700000000001-aaaaaaaaa")

	if err := q.Remove(ctx, item.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	pending, dead, err := q.Depth(ctx, familyID)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if pending != 0 || dead != 0 {
		t.Errorf("queue not empty after Remove: (%d, %d)", pending, dead)
	}
}
