// Package syncer migrates offline families to the remote backend and
// drains their queued mutations.
//
// A migration copies the family's rows to the backend in dependency order
// (parents before children), building a local→remote identifier mapping as
// it goes. Every foreign key is rewritten through that mapping before the
// row leaves the machine; a reference the mapping can't resolve aborts the
// migration rather than shipping a dangling pointer. Only after the whole
// closure is accepted remotely does the local store get rewritten to the
// remote identity, so a failed migration leaves the offline family exactly
// as it was.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/queue"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/remote"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/store"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

var (
	// ErrSyncInProgress means another migration for the same family is
	// already running.
	ErrSyncInProgress = errors.New("sync already in progress for family")

	// ErrNotOffline means the family is already backed by the remote.
	ErrNotOffline = errors.New("family is not offline")

	// ErrUnmappedReference means a row points at a local id the migration
	// never saw. The referential closure is broken; nothing ships.
	ErrUnmappedReference = errors.New("unmapped local reference")
)

// Progress reports one migration step to the caller's UI. Details names
// what is being shipped right now, human-readable.
type Progress struct {
	Stage   string
	Done    int
	Total   int
	Details string
}

// ProgressFunc receives migration progress. May be nil.
type ProgressFunc func(Progress)

// Result summarizes a finished migration.
type Result struct {
	OldFamilyID string
	NewFamilyID string
	Migrated    int
	Drained     int
}

// Engine runs migrations and queue drains. One Engine serves the whole
// process; per-family re-entrancy is guarded internally.
type Engine struct {
	store   *store.DB
	queue   *queue.Queue
	backend remote.Backend
	logger  *log.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// New builds a sync engine.
func New(db *store.DB, q *queue.Queue, backend remote.Backend, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:    db,
		queue:    q,
		backend:  backend,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

func (e *Engine) acquire(familyID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[familyID] {
		return false
	}
	e.inflight[familyID] = true
	return true
}

func (e *Engine) release(familyID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, familyID)
}

// SyncFamily migrates one offline family to the remote backend.
//
// On success the local rows carry remote identifiers, the family is marked
// online, and the queued mutations have been delivered. On failure the
// local store is untouched; retrying is safe because every remote insert
// carries the local id as its idempotency key, so the backend returns the
// previously minted id instead of duplicating the row.
func (e *Engine) SyncFamily(ctx context.Context, familyID string, onProgress ProgressFunc) (*Result, error) {
	if !e.acquire(familyID) {
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, familyID)
	}
	defer e.release(familyID)

	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	family, err := e.store.GetFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load family: %w", err)
	}
	if !family.IsOffline && !ident.IsOffline(family.ID) {
		return nil, fmt.Errorf("%w: %s", ErrNotOffline, familyID)
	}

	e.logger.Printf("[sync] migrating family %s (%s)", family.ID, family.Name)

	m := &migration{
		engine:     e,
		family:     family,
		mapping:    make(map[string]string),
		onProgress: onProgress,
	}
	if err := m.run(ctx); err != nil {
		e.logger.Printf("[sync] migration of %s failed: %v", family.ID, err)
		return nil, err
	}

	drained, err := m.drainQueue(ctx)
	if err != nil {
		e.logger.Printf("[sync] queue drain for %s incomplete: %v", family.ID, err)
		return nil, err
	}

	onProgress(Progress{Stage: "finalize", Done: 0, Total: 1,
		Details: "rewriting local identifiers"})
	if err := e.store.RemapFamily(ctx, family.ID, m.remoteFamilyID, m.mapping); err != nil {
		return nil, fmt.Errorf("failed to rewrite local identifiers: %w", err)
	}
	onProgress(Progress{Stage: "finalize", Done: 1, Total: 1,
		Details: "local identifiers rewritten"})

	e.logger.Printf("[sync] family %s migrated to %s (%d rows, %d queued mutations)",
		family.ID, m.remoteFamilyID, len(m.mapping), drained)

	return &Result{
		OldFamilyID: family.ID,
		NewFamilyID: m.remoteFamilyID,
		Migrated:    len(m.mapping),
		Drained:     drained,
	}, nil
}

// DrainQueue delivers a family's pending mutations without migrating.
// Used for online families whose writes were queued during an outage.
// Items that keep failing are parked as dead letters; the drain continues
// past them.
func (e *Engine) DrainQueue(ctx context.Context, familyID string) (int, error) {
	if !e.acquire(familyID) {
		return 0, fmt.Errorf("%w: %s", ErrSyncInProgress, familyID)
	}
	defer e.release(familyID)

	m := &migration{
		engine:         e,
		mapping:        make(map[string]string),
		remoteFamilyID: familyID,
		onProgress:     func(Progress) {},
	}
	return m.drainQueue(ctx)
}

// migration holds the state of one SyncFamily run.
type migration struct {
	engine         *Engine
	family         *types.Family
	mapping        map[string]string
	remoteFamilyID string
	onProgress     ProgressFunc
}

// translate resolves an identifier through the mapping. Remote-shaped ids
// pass through untouched; a local id the mapping doesn't know is a broken
// reference.
func (m *migration) translate(id string) (string, error) {
	if id == "" {
		return "", nil
	}
	if !ident.IsOffline(id) {
		return id, nil
	}
	mapped, ok := m.mapping[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnmappedReference, id)
	}
	return mapped, nil
}

func (m *migration) run(ctx context.Context) error {
	backend := m.engine.backend
	db := m.engine.store
	familyID := m.family.ID

	m.onProgress(Progress{Stage: "family", Done: 0, Total: 1,
		Details: "creating remote family " + m.family.Name})
	remoteFamilyID, err := backend.CreateFamily(ctx, m.family.Name, familyID)
	if err != nil {
		return fmt.Errorf("failed to create remote family: %w", err)
	}
	m.remoteFamilyID = remoteFamilyID
	m.onProgress(Progress{Stage: "family", Done: 1, Total: 1,
		Details: "remote family is " + remoteFamilyID})

	// Parents before children: everything a foreign key can point at is
	// mapped before the row carrying that key ships.
	members, err := db.ListFamilyMembers(ctx, familyID)
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "members", types.KindFamilyMember, len(members),
		func(i int) (string, map[string]any, error) {
			return members[i].ID, map[string]any{
				"name": members[i].Name,
				"role": members[i].Role,
			}, nil
		}); err != nil {
		return err
	}

	limits, err := db.ListCategoryLimits(ctx, familyID)
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "category_limits", types.KindCategoryLimit, len(limits),
		func(i int) (string, map[string]any, error) {
			return limits[i].ID, map[string]any{
				"category_key": limits[i].CategoryKey,
				"percentage":   limits[i].Percentage.String(),
			}, nil
		}); err != nil {
		return err
	}

	subcats, err := db.ListSubcategories(ctx, familyID)
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "subcategories", types.KindSubcategory, len(subcats),
		func(i int) (string, map[string]any, error) {
			return subcats[i].ID, map[string]any{
				"category_key": subcats[i].CategoryKey,
				"name":         subcats[i].Name,
			}, nil
		}); err != nil {
		return err
	}

	recurring, err := db.ListRecurringExpenses(ctx, familyID)
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "recurring_expenses", types.KindRecurringExpense, len(recurring),
		func(i int) (string, map[string]any, error) {
			subID, err := m.translate(recurring[i].SubcategoryID)
			if err != nil {
				return "", nil, err
			}
			data := map[string]any{
				"title":        recurring[i].Title,
				"category_key": recurring[i].CategoryKey,
				"value":        recurring[i].Value.String(),
				"active":       recurring[i].Active,
			}
			if subID != "" {
				data["subcategory_id"] = subID
			}
			return recurring[i].ID, data, nil
		}); err != nil {
		return err
	}

	months, err := db.ListMonths(ctx, familyID)
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "months", types.KindMonth, len(months),
		func(i int) (string, map[string]any, error) {
			return months[i].ID, map[string]any{
				"name":   months[i].Name,
				"year":   months[i].Year,
				"month":  months[i].Month,
				"income": months[i].Income.String(),
			}, nil
		}); err != nil {
		return err
	}

	incomes, err := db.ListIncomeSources(ctx, familyID, "")
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "income_sources", types.KindIncomeSource, len(incomes),
		func(i int) (string, map[string]any, error) {
			monthID, err := m.translate(incomes[i].MonthID)
			if err != nil {
				return "", nil, err
			}
			return incomes[i].ID, map[string]any{
				"month_id": monthID,
				"name":     incomes[i].Name,
				"value":    incomes[i].Value.String(),
			}, nil
		}); err != nil {
		return err
	}

	expenses, err := db.ListExpenses(ctx, familyID, "")
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "expenses", types.KindExpense, len(expenses),
		func(i int) (string, map[string]any, error) {
			data, err := m.expensePayload(expenses[i])
			if err != nil {
				return "", nil, err
			}
			return expenses[i].ID, data, nil
		}); err != nil {
		return err
	}

	goals, err := db.ListGoals(ctx, familyID)
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "goals", types.KindGoal, len(goals),
		func(i int) (string, map[string]any, error) {
			data := map[string]any{
				"name":         goals[i].Name,
				"target_value": goals[i].TargetValue.String(),
			}
			if goals[i].Deadline != nil {
				data["deadline"] = goals[i].Deadline.Format(time.RFC3339)
			}
			return goals[i].ID, data, nil
		}); err != nil {
		return err
	}

	entries, err := db.ListGoalEntries(ctx, familyID, "")
	if err != nil {
		return err
	}
	if err := m.copyAll(ctx, "goal_entries", types.KindGoalEntry, len(entries),
		func(i int) (string, map[string]any, error) {
			goalID, err := m.translate(entries[i].GoalID)
			if err != nil {
				return "", nil, err
			}
			data := map[string]any{
				"goal_id": goalID,
				"value":   entries[i].Value.String(),
				"date":    entries[i].Date.Format(time.RFC3339),
			}
			if entries[i].Note != "" {
				data["note"] = entries[i].Note
			}
			return entries[i].ID, data, nil
		}); err != nil {
		return err
	}

	return nil
}

// copyAll inserts n rows of one kind remotely, recording each minted id in
// the mapping. payload returns the local id and the wire payload for row i
// with its foreign keys already translated.
func (m *migration) copyAll(ctx context.Context, stage string, kind types.Kind, n int,
	payload func(i int) (string, map[string]any, error)) error {

	m.onProgress(Progress{Stage: stage, Done: 0, Total: n,
		Details: fmt.Sprintf("migrating %d %s rows", n, kind)})
	for i := 0; i < n; i++ {
		localID, data, err := payload(i)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", kind, err)
		}
		remoteID, err := m.engine.backend.Insert(ctx, m.remoteFamilyID, kind, localID, data)
		if err != nil {
			return fmt.Errorf("failed to migrate %s %s: %w", kind, localID, err)
		}
		m.mapping[localID] = remoteID
		m.onProgress(Progress{Stage: stage, Done: i + 1, Total: n,
			Details: fmt.Sprintf("%s %s", kind, localID)})
	}
	return nil
}

func (m *migration) expensePayload(e *types.Expense) (map[string]any, error) {
	monthID, err := m.translate(e.MonthID)
	if err != nil {
		return nil, err
	}
	subID, err := m.translate(e.SubcategoryID)
	if err != nil {
		return nil, err
	}
	recurringID, err := m.translate(e.RecurringExpenseID)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"month_id":     monthID,
		"title":        e.Title,
		"category_key": e.CategoryKey,
		"value":        e.Value.String(),
		"paid":         e.Paid,
	}
	if subID != "" {
		data["subcategory_id"] = subID
	}
	if recurringID != "" {
		data["recurring_expense_id"] = recurringID
	}
	if e.InstallmentTotal > 0 {
		data["installment_number"] = e.InstallmentNumber
		data["installment_total"] = e.InstallmentTotal
	}
	return data, nil
}
