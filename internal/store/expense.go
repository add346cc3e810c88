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

// InsertExpense creates an expense row. Mints an offline id when e.ID is
// empty.
func (db *DB) InsertExpense(ctx context.Context, e *types.Expense) error {
	if e.ID == "" {
		id, err := db.mintID(ctx, "expenses", ident.PrefixExpense)
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO expenses (
			id, family_id, month_id, title, category_key, value, paid,
			subcategory_id, recurring_expense_id,
			installment_number, installment_total, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FamilyID, e.MonthID, e.Title, e.CategoryKey, e.Value.String(),
		boolToInt(e.Paid), nullable(e.SubcategoryID), nullable(e.RecurringExpenseID),
		e.InstallmentNumber, e.InstallmentTotal,
		e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// GetExpense retrieves one expense within the family scope.
func (db *DB) GetExpense(ctx context.Context, familyID, id string) (*types.Expense, error) {
	row := db.conn.QueryRowContext(ctx, expenseSelect+
		" WHERE id = ? AND family_id = ?", id, familyID)

	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get expense %s: %w", id, err)
	}
	return e, nil
}

// ListExpenses returns a family's expenses, optionally filtered by month
// (empty monthID means all). Ordered by creation time.
func (db *DB) ListExpenses(ctx context.Context, familyID, monthID string) ([]*types.Expense, error) {
	query := expenseSelect + " WHERE family_id = ?"
	args := []any{familyID}
	if monthID != "" {
		query += " AND month_id = ?"
		args = append(args, monthID)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*types.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// UpdateExpense replaces the mutable fields of an expense row.
func (db *DB) UpdateExpense(ctx context.Context, e *types.Expense) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE expenses SET
			title = ?, category_key = ?, value = ?, paid = ?,
			subcategory_id = ?, recurring_expense_id = ?,
			installment_number = ?, installment_total = ?
		WHERE id = ? AND family_id = ?`,
		e.Title, e.CategoryKey, e.Value.String(), boolToInt(e.Paid),
		nullable(e.SubcategoryID), nullable(e.RecurringExpenseID),
		e.InstallmentNumber, e.InstallmentTotal,
		e.ID, e.FamilyID)
	if err != nil {
		return fmt.Errorf("failed to update expense %s: %w", e.ID, err)
	}
	return requireRow(res)
}

// DeleteExpense removes one expense within the family scope.
func (db *DB) DeleteExpense(ctx context.Context, familyID, id string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND family_id = ?", id, familyID)
	if err != nil {
		return fmt.Errorf("failed to delete expense %s: %w", id, err)
	}
	return nil
}

// InsertRecurringExpense creates a recurring expense template.
func (db *DB) InsertRecurringExpense(ctx context.Context, r *types.RecurringExpense) error {
	if r.ID == "" {
		id, err := db.mintID(ctx, "recurring_expenses", ident.PrefixRecurring)
		if err != nil {
			return err
		}
		r.ID = id
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO recurring_expenses (id, family_id, title, category_key, value, subcategory_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FamilyID, r.Title, r.CategoryKey, r.Value.String(),
		nullable(r.SubcategoryID), boolToInt(r.Active))
	if err != nil {
		return fmt.Errorf("failed to insert recurring expense: %w", err)
	}
	return nil
}

// ListRecurringExpenses returns a family's recurring expense templates.
func (db *DB) ListRecurringExpenses(ctx context.Context, familyID string) ([]*types.RecurringExpense, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, family_id, title, category_key, value, subcategory_id, active
		FROM recurring_expenses WHERE family_id = ? ORDER BY id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring expenses: %w", err)
	}
	defer rows.Close()

	var recurring []*types.RecurringExpense
	for rows.Next() {
		var r types.RecurringExpense
		var value string
		var subcat sql.NullString
		var active int
		if err := rows.Scan(&r.ID, &r.FamilyID, &r.Title, &r.CategoryKey, &value, &subcat, &active); err != nil {
			return nil, fmt.Errorf("failed to scan recurring expense: %w", err)
		}
		r.Value = decFromText(value)
		r.SubcategoryID = subcat.String
		r.Active = active != 0
		recurring = append(recurring, &r)
	}
	return recurring, rows.Err()
}

// DeleteRecurringExpense removes one recurring template within the family
// scope.
func (db *DB) DeleteRecurringExpense(ctx context.Context, familyID, id string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM recurring_expenses WHERE id = ? AND family_id = ?", id, familyID)
	if err != nil {
		return fmt.Errorf("failed to delete recurring expense %s: %w", id, err)
	}
	return nil
}

// InsertSubcategory creates a subcategory row.
func (db *DB) InsertSubcategory(ctx context.Context, s *types.Subcategory) error {
	if s.ID == "" {
		id, err := db.mintID(ctx, "subcategories", ident.PrefixSubcategory)
		if err != nil {
			return err
		}
		s.ID = id
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO subcategories (id, family_id, category_key, name)
		VALUES (?, ?, ?, ?)`,
		s.ID, s.FamilyID, s.CategoryKey, s.Name)
	if err != nil {
		return fmt.Errorf("failed to insert subcategory: %w", err)
	}
	return nil
}

// ListSubcategories returns a family's subcategories.
func (db *DB) ListSubcategories(ctx context.Context, familyID string) ([]*types.Subcategory, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, family_id, category_key, name
		FROM subcategories WHERE family_id = ? ORDER BY category_key ASC, name ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	defer rows.Close()

	var subcategories []*types.Subcategory
	for rows.Next() {
		var s types.Subcategory
		if err := rows.Scan(&s.ID, &s.FamilyID, &s.CategoryKey, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		subcategories = append(subcategories, &s)
	}
	return subcategories, rows.Err()
}

// DeleteSubcategory removes one subcategory within the family scope.
func (db *DB) DeleteSubcategory(ctx context.Context, familyID, id string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM subcategories WHERE id = ? AND family_id = ?", id, familyID)
	if err != nil {
		return fmt.Errorf("failed to delete subcategory %s: %w", id, err)
	}
	return nil
}

const expenseSelect = `
	SELECT id, family_id, month_id, title, category_key, value, paid,
	       subcategory_id, recurring_expense_id,
	       installment_number, installment_total, created_at
	FROM expenses`

func scanExpense(row rowScanner) (*types.Expense, error) {
	var e types.Expense
	var value, createdAt string
	var paid int
	var subcat, recurring sql.NullString
	if err := row.Scan(
		&e.ID, &e.FamilyID, &e.MonthID, &e.Title, &e.CategoryKey, &value, &paid,
		&subcat, &recurring, &e.InstallmentNumber, &e.InstallmentTotal, &createdAt,
	); err != nil {
		return nil, err
	}
	e.Value = decFromText(value)
	e.Paid = paid != 0
	e.SubcategoryID = subcat.String
	e.RecurringExpenseID = recurring.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

// nullable maps an empty optional foreign key to NULL.
func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
