package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// FakeRow is one entity the fake backend accepted.
type FakeRow struct {
	FamilyID string
	Kind     types.Kind
	ID       string
	Data     map[string]any
}

// Fake is an in-memory Backend for tests. It mints UUID identifiers the
// way the real backend does, honors idempotency keys, and can be told to
// fail specific calls.
type Fake struct {
	mu       sync.Mutex
	families map[string]string // id -> name
	rows     map[string]*FakeRow
	byKey    map[string]string // idempotency key -> minted id
	deleted  []string

	// FailOn makes calls whose idempotency key (or entity id, for
	// Update/Delete) matches return the given error.
	FailOn map[string]error
}

// NewFake returns an empty fake backend.
func NewFake() *Fake {
	return &Fake{
		families: make(map[string]string),
		rows:     make(map[string]*FakeRow),
		byKey:    make(map[string]string),
		FailOn:   make(map[string]error),
	}
}

func (f *Fake) CreateFamily(ctx context.Context, name, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailOn[idempotencyKey]; err != nil {
		return "", err
	}
	if id, ok := f.byKey[idempotencyKey]; ok && idempotencyKey != "" {
		return id, nil
	}
	id := uuid.NewString()
	f.families[id] = name
	if idempotencyKey != "" {
		f.byKey[idempotencyKey] = id
	}
	return id, nil
}

func (f *Fake) Insert(ctx context.Context, familyID string, kind types.Kind, idempotencyKey string, data map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailOn[idempotencyKey]; err != nil {
		return "", err
	}
	if _, ok := f.families[familyID]; !ok {
		return "", &RequestError{Status: 404, Body: "unknown family"}
	}
	if id, ok := f.byKey[idempotencyKey]; ok && idempotencyKey != "" {
		return id, nil
	}
	id := uuid.NewString()
	f.rows[id] = &FakeRow{FamilyID: familyID, Kind: kind, ID: id, Data: data}
	if idempotencyKey != "" {
		f.byKey[idempotencyKey] = id
	}
	return id, nil
}

func (f *Fake) Update(ctx context.Context, familyID string, kind types.Kind, id string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailOn[id]; err != nil {
		return err
	}
	row, ok := f.rows[id]
	if !ok || row.FamilyID != familyID {
		return &RequestError{Status: 404, Body: fmt.Sprintf("no %s %s", kind, id)}
	}
	for k, v := range data {
		row.Data[k] = v
	}
	return nil
}

func (f *Fake) Delete(ctx context.Context, familyID string, kind types.Kind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailOn[id]; err != nil {
		return err
	}
	row, ok := f.rows[id]
	if !ok || row.FamilyID != familyID {
		return &RequestError{Status: 404, Body: fmt.Sprintf("no %s %s", kind, id)}
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// Row returns the stored row for id, or nil.
func (f *Fake) Row(id string) *FakeRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

// Rows returns every stored row for a family and kind.
func (f *Fake) Rows(familyID string, kind types.Kind) []*FakeRow {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*FakeRow
	for _, row := range f.rows {
		if row.FamilyID == familyID && row.Kind == kind {
			out = append(out, row)
		}
	}
	return out
}

// FamilyName returns the name of a created family, or "".
func (f *Fake) FamilyName(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.families[id]
}

// Deleted returns the ids removed via Delete, in order.
func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
