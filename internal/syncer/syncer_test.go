package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/queue"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/remote"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/store"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

type fixture struct {
	db     *store.DB
	queue  *queue.Queue
	fake   *remote.Fake
	engine *Engine

	family  *types.Family
	month   *types.Month
	subcat  *types.Subcategory
	expense *types.Expense
	goal    *types.Goal
	entry   *types.GoalEntry
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(t.TempDir() + "/budget.db")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	q := queue.New(db.RawDB(), logger)
	if err := q.Init(ctx); err != nil {
		t.Fatalf("queue.Init failed: %v", err)
	}
	fake := remote.NewFake()

	f := &fixture{
		db:     db,
		queue:  q,
		fake:   fake,
		engine: New(db, q, fake, logger),
	}

	f.family = &types.Family{Name: "Silva", IsOffline: true}
	must(t, db.InsertFamily(ctx, f.family))

	f.subcat = &types.Subcategory{FamilyID: f.family.ID, CategoryKey: "essenciais", Name: "Mercado"}
	must(t, db.InsertSubcategory(ctx, f.subcat))

	f.month = &types.Month{FamilyID: f.family.ID, Name: "Janeiro", Year: 2026, Month: 1,
		Income: decimal.RequireFromString("5000")}
	must(t, db.InsertMonth(ctx, f.month))

	must(t, db.InsertIncomeSource(ctx, &types.IncomeSource{
		FamilyID: f.family.ID, MonthID: f.month.ID, Name: "Salário",
		Value: decimal.RequireFromString("5000")}))

	f.expense = &types.Expense{FamilyID: f.family.ID, MonthID: f.month.ID,
		Title: "Feira", CategoryKey: "essenciais",
		Value: decimal.RequireFromString("312.40"), SubcategoryID: f.subcat.ID}
	must(t, db.InsertExpense(ctx, f.expense))

	f.goal = &types.Goal{FamilyID: f.family.ID, Name: "Reserva",
		TargetValue: decimal.RequireFromString("10000")}
	must(t, db.InsertGoal(ctx, f.goal))

	f.entry = &types.GoalEntry{FamilyID: f.family.ID, GoalID: f.goal.ID,
		Value: decimal.RequireFromString("500")}
	must(t, db.InsertGoalEntry(ctx, f.entry))

	return f
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture setup failed: %v", err)
	}
}

func TestSyncFamilyMigratesReferentialClosure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var stages []string
	blankDetails := 0
	res, err := f.engine.SyncFamily(ctx, f.family.ID, func(p Progress) {
		if len(stages) == 0 || stages[len(stages)-1] != p.Stage {
			stages = append(stages, p.Stage)
		}
		if p.Details == "" {
			blankDetails++
		}
	})
	if err != nil {
		t.Fatalf("SyncFamily failed: %v", err)
	}
	if res.OldFamilyID != f.family.ID {
		t.Errorf("OldFamilyID = %q", res.OldFamilyID)
	}
	if ident.IsOffline(res.NewFamilyID) {
		t.Errorf("new family id %q still looks locally minted", res.NewFamilyID)
	}
	if res.Migrated != 6 {
		t.Errorf("Migrated = %d, want 6", res.Migrated)
	}

	// The remote expense must reference the remote month and subcategory,
	// never the local ids.
	rows := f.fake.Rows(res.NewFamilyID, types.KindExpense)
	if len(rows) != 1 {
		t.Fatalf("expected 1 remote expense, got %d", len(rows))
	}
	monthID, _ := rows[0].Data["month_id"].(string)
	subID, _ := rows[0].Data["subcategory_id"].(string)
	if ident.IsOffline(monthID) || ident.IsOffline(subID) {
		t.Errorf("remote expense carries local references: month=%q subcategory=%q", monthID, subID)
	}
	if f.fake.Row(monthID) == nil {
		t.Errorf("expense month_id %q does not resolve remotely", monthID)
	}

	entries := f.fake.Rows(res.NewFamilyID, types.KindGoalEntry)
	if len(entries) != 1 {
		t.Fatalf("expected 1 remote goal entry, got %d", len(entries))
	}
	goalID, _ := entries[0].Data["goal_id"].(string)
	if f.fake.Row(goalID) == nil {
		t.Errorf("goal entry goal_id %q does not resolve remotely", goalID)
	}

	// Local store repointed at the remote identity and marked online.
	migrated, err := f.db.GetFamily(ctx, res.NewFamilyID)
	if err != nil {
		t.Fatalf("GetFamily after sync failed: %v", err)
	}
	if migrated.IsOffline {
		t.Error("family still offline after sync")
	}
	if _, err := f.db.GetFamily(ctx, res.OldFamilyID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old family id still resolves locally: %v", err)
	}

	// Progress covered every stage in dependency order.
	wantOrder := []string{"family", "members", "category_limits", "subcategories",
		"recurring_expenses", "months", "income_sources", "expenses",
		"goals", "goal_entries", "queue", "finalize"}
	if len(stages) != len(wantOrder) {
		t.Fatalf("stages = %v", stages)
	}
	for i, stage := range wantOrder {
		if stages[i] != stage {
			t.Errorf("stage %d = %q, want %q", i, stages[i], stage)
		}
	}

	// Every callback names what it is shipping.
	if blankDetails != 0 {
		t.Errorf("%d progress callbacks had empty details", blankDetails)
	}
}

func TestSyncFamilyFailurePreservesLocalData(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.fake.FailOn[f.expense.ID] = errors.New("backend rejected expense")

	if _, err := f.engine.SyncFamily(ctx, f.family.ID, nil); err == nil {
		t.Fatal("SyncFamily should have failed")
	}

	// Nothing was finalized: the family keeps its offline identity and
	// every row is intact under it.
	got, err := f.db.GetFamily(ctx, f.family.ID)
	if err != nil {
		t.Fatalf("family lost after failed sync: %v", err)
	}
	if !got.IsOffline {
		t.Error("family flipped online despite failed sync")
	}
	if _, err := f.db.GetExpense(ctx, f.family.ID, f.expense.ID); err != nil {
		t.Errorf("expense lost after failed sync: %v", err)
	}
}

func TestSyncFamilyRetryAfterFailureDoesNotDuplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.fake.FailOn[f.goal.ID] = errors.New("transient")
	if _, err := f.engine.SyncFamily(ctx, f.family.ID, nil); err == nil {
		t.Fatal("first SyncFamily should have failed")
	}

	delete(f.fake.FailOn, f.goal.ID)
	res, err := f.engine.SyncFamily(ctx, f.family.ID, nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	// Rows shipped before the failure were re-sent with the same
	// idempotency keys, so the backend holds exactly one of each.
	for _, kind := range []types.Kind{types.KindMonth, types.KindExpense,
		types.KindSubcategory, types.KindGoal} {
		if n := len(f.fake.Rows(res.NewFamilyID, kind)); n != 1 {
			t.Errorf("remote has %d rows of %s, want 1", n, kind)
		}
	}
}

func TestSyncFamilyRejectsBrokenReference(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// An expense pointing at a subcategory that doesn't exist locally.
	bad := &types.Expense{FamilyID: f.family.ID, MonthID: f.month.ID,
		Title: "Fantasma", CategoryKey: "lazer",
		Value:         decimal.RequireFromString("10"),
		SubcategoryID: "sub-1700000000099-zzzzzzzzz"}
	must(t, f.db.InsertExpense(ctx, bad))

	_, err := f.engine.SyncFamily(ctx, f.family.ID, nil)
	if !errors.Is(err, ErrUnmappedReference) {
		t.Fatalf("expected ErrUnmappedReference, got %v", err)
	}

	got, err := f.db.GetFamily(ctx, f.family.ID)
	if err != nil || !got.IsOffline {
		t.Errorf("failed sync must leave the family offline: %v", err)
	}
}

func TestSyncFamilyGuardsReentry(t *testing.T) {
	f := setup(t)

	f.engine.inflight[f.family.ID] = true
	_, err := f.engine.SyncFamily(context.Background(), f.family.ID, nil)
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}
}

func TestSyncFamilyRejectsOnlineFamily(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	online := &types.Family{ID: "b6f7d9f0-1111-4a5d-9a1e-000000000001", Name: "Souza"}
	must(t, f.db.InsertFamily(ctx, online))

	_, err := f.engine.SyncFamily(ctx, online.ID, nil)
	if !errors.Is(err, ErrNotOffline) {
		t.Errorf("expected ErrNotOffline, got %v", err)
	}
}

func TestDrainDeliversQueuedMutationsWithSanitizedPayload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A queued update smuggling a foreign family id in its payload. The
	// envelope decides the family; the smuggled value must be dropped.
	payload, _ := json.Marshal(map[string]any{
		"title":     "Feira grande",
		"family_id": "b6f7d9f0-6666-4a5d-9a1e-000000000066",
		"month_id":  f.month.ID,
	})
	item := &queue.Item{FamilyID: f.family.ID, Kind: types.KindExpense,
		Action: types.ActionUpdate, EntityID: f.expense.ID, Data: payload}
	if err := f.queue.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	res, err := f.engine.SyncFamily(ctx, f.family.ID, nil)
	if err != nil {
		t.Fatalf("SyncFamily failed: %v", err)
	}
	if res.Drained != 1 {
		t.Errorf("Drained = %d, want 1", res.Drained)
	}

	rows := f.fake.Rows(res.NewFamilyID, types.KindExpense)
	if len(rows) != 1 {
		t.Fatalf("expected 1 remote expense, got %d", len(rows))
	}
	if rows[0].Data["title"] != "Feira grande" {
		t.Errorf("queued update not applied: %v", rows[0].Data)
	}
	if _, ok := rows[0].Data["family_id"]; ok {
		t.Error("smuggled family_id reached the backend")
	}
	monthID, _ := rows[0].Data["month_id"].(string)
	if ident.IsOffline(monthID) {
		t.Errorf("queued payload month_id not translated: %q", monthID)
	}

	pending, dead, err := f.queue.Depth(ctx, f.family.ID)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if pending != 0 || dead != 0 {
		t.Errorf("queue not empty after sync: (%d, %d)", pending, dead)
	}
}

func TestStandaloneDrainParksRepeatFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.engine.SyncFamily(ctx, f.family.ID, nil)
	if err != nil {
		t.Fatalf("SyncFamily failed: %v", err)
	}

	// Two queued deletes against the online family; the first target is
	// rigged to fail.
	rows := f.fake.Rows(res.NewFamilyID, types.KindExpense)
	if len(rows) != 1 {
		t.Fatalf("expected 1 remote expense, got %d", len(rows))
	}
	badID := rows[0].ID
	f.fake.FailOn[badID] = errors.New("remote unavailable")

	goals := f.fake.Rows(res.NewFamilyID, types.KindGoal)
	if len(goals) != 1 {
		t.Fatalf("expected 1 remote goal, got %d", len(goals))
	}

	for _, target := range []struct {
		kind types.Kind
		id   string
	}{{types.KindExpense, badID}, {types.KindGoal, goals[0].ID}} {
		item := &queue.Item{FamilyID: res.NewFamilyID, Kind: target.kind,
			Action: types.ActionDelete, EntityID: target.id}
		if err := f.queue.Enqueue(ctx, item); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	for i := 0; i < queue.MaxAttempts; i++ {
		if _, err := f.engine.DrainQueue(ctx, res.NewFamilyID); err != nil {
			t.Fatalf("DrainQueue failed: %v", err)
		}
	}

	// The rigged delete is parked; the good one went through.
	pending, dead, err := f.queue.Depth(ctx, res.NewFamilyID)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if pending != 0 || dead != 1 {
		t.Errorf("queue depth = (%d, %d), want (0, 1)", pending, dead)
	}
	if len(f.fake.Rows(res.NewFamilyID, types.KindGoal)) != 0 {
		t.Error("good delete was not delivered")
	}
}
