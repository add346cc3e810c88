package store

import (
	"context"
	"fmt"
	"time"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// domainTables lists every table owning family-scoped rows, paired with the
// foreign-key columns that may reference another local row.
var domainTables = []struct {
	name   string
	fkCols []string
}{
	{"family_members", nil},
	{"category_limits", nil},
	{"months", nil},
	{"income_sources", []string{"month_id"}},
	{"subcategories", nil},
	{"recurring_expenses", []string{"subcategory_id"}},
	{"expenses", []string{"month_id", "subcategory_id", "recurring_expense_id"}},
	{"goals", nil},
	{"goal_entries", []string{"goal_id"}},
}

// kindTables maps a queue kind to the table owning its rows. KindFamily is
// absent on purpose: the family row only changes identity through
// RemapFamily.
var kindTables = map[types.Kind]string{
	types.KindFamilyMember:     "family_members",
	types.KindCategoryLimit:    "category_limits",
	types.KindMonth:            "months",
	types.KindIncomeSource:     "income_sources",
	types.KindSubcategory:      "subcategories",
	types.KindRecurringExpense: "recurring_expenses",
	types.KindExpense:          "expenses",
	types.KindGoal:             "goals",
	types.KindGoalEntry:        "goal_entries",
}

// RewriteEntityID moves one local row from localID to the backend-assigned
// remoteID, propagating the change through every foreign-key column that may
// reference it. Used after an online insert so the cached row carries the
// identifier the backend knows it by.
func (db *DB) RewriteEntityID(ctx context.Context, familyID string, kind types.Kind, localID, remoteID string) error {
	table, ok := kindTables[kind]
	if !ok {
		return fmt.Errorf("cannot rewrite id for kind %q", kind)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rewrite transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET id = ? WHERE id = ? AND family_id = ?", table),
		remoteID, localID, familyID)
	if err != nil {
		return fmt.Errorf("failed to rewrite id in %s: %w", table, err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("%s %s not found during rewrite: %w", kind, localID, err)
	}

	for _, t := range domainTables {
		for _, col := range t.fkCols {
			query := fmt.Sprintf(
				"UPDATE %s SET %s = ? WHERE %s = ? AND family_id = ?",
				t.name, col, col)
			if _, err := tx.ExecContext(ctx, query, remoteID, localID, familyID); err != nil {
				return fmt.Errorf("failed to rewrite %s.%s: %w", t.name, col, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rewrite: %w", err)
	}
	return nil
}

// RemapFamily rewrites every identifier in a migrated family's local rows
// from the offline identity space to the remote one, in a single
// transaction. mapping holds localID→remoteID for every row the sync
// engine inserted remotely; newFamilyID is the remote family identifier.
//
// After this the local copy mirrors the remote dataset and is no longer
// authoritative: the family row is flipped to online.
func (db *DB) RemapFamily(ctx context.Context, oldFamilyID, newFamilyID string, mapping map[string]string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin remap transaction: %w", err)
	}
	defer tx.Rollback()

	// Row ids and intra-family foreign keys first, while rows are still
	// findable under the old family id.
	for localID, remoteID := range mapping {
		for _, table := range domainTables {
			query := fmt.Sprintf(
				"UPDATE %s SET id = ? WHERE id = ? AND family_id = ?", table.name)
			if _, err := tx.ExecContext(ctx, query, remoteID, localID, oldFamilyID); err != nil {
				return fmt.Errorf("failed to remap id in %s: %w", table.name, err)
			}
			for _, col := range table.fkCols {
				query := fmt.Sprintf(
					"UPDATE %s SET %s = ? WHERE %s = ? AND family_id = ?",
					table.name, col, col)
				if _, err := tx.ExecContext(ctx, query, remoteID, localID, oldFamilyID); err != nil {
					return fmt.Errorf("failed to remap %s.%s: %w", table.name, col, err)
				}
			}
		}
	}

	// Then the owning-family column everywhere.
	for _, table := range domainTables {
		query := fmt.Sprintf(
			"UPDATE %s SET family_id = ? WHERE family_id = ?", table.name)
		if _, err := tx.ExecContext(ctx, query, newFamilyID, oldFamilyID); err != nil {
			return fmt.Errorf("failed to remap family_id in %s: %w", table.name, err)
		}
	}

	// Finally the family row itself: new identity, no longer offline.
	res, err := tx.ExecContext(ctx, `
		UPDATE families SET id = ?, is_offline = 0, updated_at = ?
		WHERE id = ?`,
		newFamilyID, time.Now().UTC().Format(time.RFC3339), oldFamilyID)
	if err != nil {
		return fmt.Errorf("failed to remap family row: %w", err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("family %s not found during remap: %w", oldFamilyID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit remap: %w", err)
	}
	return nil
}
