package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// ErrNotFound is returned when a row does not exist within the caller's
// family scope. A row that exists under another family is indistinguishable
// from one that doesn't exist at all.
var ErrNotFound = errors.New("not found")

// InsertFamily creates a family row. If f.ID is empty an offline identifier
// is minted and written back to f. The family starts offline unless the
// caller says otherwise.
func (db *DB) InsertFamily(ctx context.Context, f *types.Family) error {
	if f.ID == "" {
		id, err := db.mintID(ctx, "families", ident.PrefixFamily)
		if err != nil {
			return err
		}
		f.ID = id
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO families (id, name, is_offline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, boolToInt(f.IsOffline),
		f.CreatedAt.Format(time.RFC3339), f.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert family: %w", err)
	}
	return nil
}

// GetFamily retrieves a family by id.
func (db *DB) GetFamily(ctx context.Context, id string) (*types.Family, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, is_offline, created_at, updated_at
		FROM families WHERE id = ?`, id)

	var f types.Family
	var offline int
	var createdAt, updatedAt string
	if err := row.Scan(&f.ID, &f.Name, &offline, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get family %s: %w", id, err)
	}
	f.IsOffline = offline != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		f.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		f.UpdatedAt = t
	}
	return &f, nil
}

// ListFamilies returns every family known to the local store, oldest first.
func (db *DB) ListFamilies(ctx context.Context) ([]*types.Family, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, is_offline, created_at, updated_at
		FROM families ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()

	var families []*types.Family
	for rows.Next() {
		var f types.Family
		var offline int
		var createdAt, updatedAt string
		if err := rows.Scan(&f.ID, &f.Name, &offline, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		f.IsOffline = offline != 0
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			f.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			f.UpdatedAt = t
		}
		families = append(families, &f)
	}
	return families, rows.Err()
}

// UpdateFamilyName renames a family.
func (db *DB) UpdateFamilyName(ctx context.Context, id, name string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE families SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update family %s: %w", id, err)
	}
	return requireRow(res)
}

// DeleteFamily removes the family and every row it owns. This is the only
// cross-table cascade in the store and runs in a single transaction.
func (db *DB) DeleteFamily(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		"goal_entries", "goals", "expenses", "recurring_expenses",
		"subcategories", "income_sources", "months",
		"category_limits", "family_members",
	}
	for _, table := range tables {
		query := fmt.Sprintf("DELETE FROM %s WHERE family_id = ?", table)
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete %s for family %s: %w", table, id, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM families WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete family %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit family delete: %w", err)
	}
	return nil
}

// InsertFamilyMember adds a member row under the family.
func (db *DB) InsertFamilyMember(ctx context.Context, m *types.FamilyMember) error {
	if m.ID == "" {
		id, err := db.mintID(ctx, "family_members", ident.PrefixGeneric)
		if err != nil {
			return err
		}
		m.ID = id
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO family_members (id, family_id, name, role)
		VALUES (?, ?, ?, ?)`,
		m.ID, m.FamilyID, m.Name, m.Role)
	if err != nil {
		return fmt.Errorf("failed to insert family member: %w", err)
	}
	return nil
}

// ListFamilyMembers returns the members of a family.
func (db *DB) ListFamilyMembers(ctx context.Context, familyID string) ([]*types.FamilyMember, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, family_id, name, role
		FROM family_members WHERE family_id = ? ORDER BY id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	defer rows.Close()

	var members []*types.FamilyMember
	for rows.Next() {
		var m types.FamilyMember
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// UpsertCategoryLimit sets a family's percentage cap for one category key.
func (db *DB) UpsertCategoryLimit(ctx context.Context, l *types.CategoryLimit) error {
	if l.ID == "" {
		id, err := db.mintID(ctx, "category_limits", ident.PrefixGeneric)
		if err != nil {
			return err
		}
		l.ID = id
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO category_limits (id, family_id, category_key, percentage)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(family_id, category_key) DO UPDATE SET
			percentage = excluded.percentage`,
		l.ID, l.FamilyID, l.CategoryKey, l.Percentage.String())
	if err != nil {
		return fmt.Errorf("failed to upsert category limit: %w", err)
	}
	return nil
}

// ListCategoryLimits returns a family's category caps.
func (db *DB) ListCategoryLimits(ctx context.Context, familyID string) ([]*types.CategoryLimit, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, family_id, category_key, percentage
		FROM category_limits WHERE family_id = ? ORDER BY category_key ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list category limits: %w", err)
	}
	defer rows.Close()

	var limits []*types.CategoryLimit
	for rows.Next() {
		var l types.CategoryLimit
		var pct string
		if err := rows.Scan(&l.ID, &l.FamilyID, &l.CategoryKey, &pct); err != nil {
			return nil, fmt.Errorf("failed to scan category limit: %w", err)
		}
		l.Percentage = decFromText(pct)
		limits = append(limits, &l)
	}
	return limits, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
