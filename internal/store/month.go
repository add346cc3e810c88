package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// InsertMonth creates a month row for the family. Mints an offline id when
// m.ID is empty.
func (db *DB) InsertMonth(ctx context.Context, m *types.Month) error {
	if m.ID == "" {
		id, err := db.mintID(ctx, "months", ident.PrefixMonth)
		if err != nil {
			return err
		}
		m.ID = id
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO months (id, family_id, name, year, month, income)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.FamilyID, m.Name, m.Year, m.Month, m.Income.String())
	if err != nil {
		return fmt.Errorf("failed to insert month: %w", err)
	}
	return nil
}

// GetMonth retrieves one month within the family scope.
func (db *DB) GetMonth(ctx context.Context, familyID, id string) (*types.Month, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, family_id, name, year, month, income
		FROM months WHERE id = ? AND family_id = ?`, id, familyID)

	m, err := scanMonth(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get month %s: %w", id, err)
	}
	return m, nil
}

// ListMonths returns a family's months, newest period first.
func (db *DB) ListMonths(ctx context.Context, familyID string) ([]*types.Month, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, family_id, name, year, month, income
		FROM months WHERE family_id = ?
		ORDER BY year DESC, month DESC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list months: %w", err)
	}
	defer rows.Close()

	var months []*types.Month
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// UpdateMonth replaces the mutable fields of a month row.
func (db *DB) UpdateMonth(ctx context.Context, m *types.Month) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE months SET name = ?, year = ?, month = ?, income = ?
		WHERE id = ? AND family_id = ?`,
		m.Name, m.Year, m.Month, m.Income.String(), m.ID, m.FamilyID)
	if err != nil {
		return fmt.Errorf("failed to update month %s: %w", m.ID, err)
	}
	return requireRow(res)
}

// DeleteMonth removes a month and its dependent expenses and income
// sources, scoped to the family.
func (db *DB) DeleteMonth(ctx context.Context, familyID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM expenses WHERE month_id = ? AND family_id = ?", id, familyID); err != nil {
		return fmt.Errorf("failed to delete month expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM income_sources WHERE month_id = ? AND family_id = ?", id, familyID); err != nil {
		return fmt.Errorf("failed to delete month income sources: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM months WHERE id = ? AND family_id = ?", id, familyID); err != nil {
		return fmt.Errorf("failed to delete month %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit month delete: %w", err)
	}
	return nil
}

// InsertIncomeSource adds one income contribution to a month.
func (db *DB) InsertIncomeSource(ctx context.Context, s *types.IncomeSource) error {
	if s.ID == "" {
		id, err := db.mintID(ctx, "income_sources", ident.PrefixGeneric)
		if err != nil {
			return err
		}
		s.ID = id
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO income_sources (id, family_id, month_id, name, value)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.FamilyID, s.MonthID, s.Name, s.Value.String())
	if err != nil {
		return fmt.Errorf("failed to insert income source: %w", err)
	}
	return nil
}

// ListIncomeSources returns a family's income sources, optionally filtered
// by month (empty monthID means all).
func (db *DB) ListIncomeSources(ctx context.Context, familyID, monthID string) ([]*types.IncomeSource, error) {
	query := `SELECT id, family_id, month_id, name, value
		FROM income_sources WHERE family_id = ?`
	args := []any{familyID}
	if monthID != "" {
		query += " AND month_id = ?"
		args = append(args, monthID)
	}
	query += " ORDER BY id ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list income sources: %w", err)
	}
	defer rows.Close()

	var sources []*types.IncomeSource
	for rows.Next() {
		var s types.IncomeSource
		var value string
		if err := rows.Scan(&s.ID, &s.FamilyID, &s.MonthID, &s.Name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan income source: %w", err)
		}
		s.Value = decFromText(value)
		sources = append(sources, &s)
	}
	return sources, rows.Err()
}

// DeleteIncomeSource removes one income source within the family scope.
func (db *DB) DeleteIncomeSource(ctx context.Context, familyID, id string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM income_sources WHERE id = ? AND family_id = ?", id, familyID)
	if err != nil {
		return fmt.Errorf("failed to delete income source %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonth(row rowScanner) (*types.Month, error) {
	var m types.Month
	var income string
	if err := row.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Year, &m.Month, &income); err != nil {
		return nil, err
	}
	m.Income = decFromText(income)
	return &m, nil
}
