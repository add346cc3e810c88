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

// InsertGoal creates a savings goal. Mints an offline id when g.ID is empty.
func (db *DB) InsertGoal(ctx context.Context, g *types.Goal) error {
	if g.ID == "" {
		id, err := db.mintID(ctx, "goals", ident.PrefixGoal)
		if err != nil {
			return err
		}
		g.ID = id
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO goals (id, family_id, name, target_value, deadline)
		VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.FamilyID, g.Name, g.TargetValue.String(), timeToNullString(g.Deadline))
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// GetGoal retrieves one goal within the family scope.
func (db *DB) GetGoal(ctx context.Context, familyID, id string) (*types.Goal, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, family_id, name, target_value, deadline
		FROM goals WHERE id = ? AND family_id = ?`, id, familyID)

	var g types.Goal
	var target string
	var deadline sql.NullString
	if err := row.Scan(&g.ID, &g.FamilyID, &g.Name, &target, &deadline); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get goal %s: %w", id, err)
	}
	g.TargetValue = decFromText(target)
	g.Deadline = nullStringToTime(deadline)
	return &g, nil
}

// ListGoals returns a family's goals.
func (db *DB) ListGoals(ctx context.Context, familyID string) ([]*types.Goal, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, family_id, name, target_value, deadline
		FROM goals WHERE family_id = ? ORDER BY id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*types.Goal
	for rows.Next() {
		var g types.Goal
		var target string
		var deadline sql.NullString
		if err := rows.Scan(&g.ID, &g.FamilyID, &g.Name, &target, &deadline); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.TargetValue = decFromText(target)
		g.Deadline = nullStringToTime(deadline)
		goals = append(goals, &g)
	}
	return goals, rows.Err()
}

// DeleteGoal removes a goal and its entries within the family scope.
func (db *DB) DeleteGoal(ctx context.Context, familyID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM goal_entries WHERE goal_id = ? AND family_id = ?", id, familyID); err != nil {
		return fmt.Errorf("failed to delete goal entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM goals WHERE id = ? AND family_id = ?", id, familyID); err != nil {
		return fmt.Errorf("failed to delete goal %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit goal delete: %w", err)
	}
	return nil
}

// InsertGoalEntry records a deposit against a goal.
func (db *DB) InsertGoalEntry(ctx context.Context, e *types.GoalEntry) error {
	if e.ID == "" {
		id, err := db.mintID(ctx, "goal_entries", ident.PrefixGoalEntry)
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO goal_entries (id, family_id, goal_id, value, date, note)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.FamilyID, e.GoalID, e.Value.String(),
		e.Date.Format(time.RFC3339), nullable(e.Note))
	if err != nil {
		return fmt.Errorf("failed to insert goal entry: %w", err)
	}
	return nil
}

// ListGoalEntries returns a family's goal entries, optionally filtered by
// goal (empty goalID means all). Ordered by date.
func (db *DB) ListGoalEntries(ctx context.Context, familyID, goalID string) ([]*types.GoalEntry, error) {
	query := `SELECT id, family_id, goal_id, value, date, note
		FROM goal_entries WHERE family_id = ?`
	args := []any{familyID}
	if goalID != "" {
		query += " AND goal_id = ?"
		args = append(args, goalID)
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.GoalEntry
	for rows.Next() {
		var e types.GoalEntry
		var value, date string
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.FamilyID, &e.GoalID, &value, &date, &note); err != nil {
			return nil, fmt.Errorf("failed to scan goal entry: %w", err)
		}
		e.Value = decFromText(value)
		e.Note = note.String
		if t, err := time.Parse(time.RFC3339, date); err == nil {
			e.Date = t
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// DeleteGoalEntry removes one goal entry within the family scope.
func (db *DB) DeleteGoalEntry(ctx context.Context, familyID, id string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM goal_entries WHERE id = ? AND family_id = ?", id, familyID)
	if err != nil {
		return fmt.Errorf("failed to delete goal entry %s: %w", id, err)
	}
	return nil
}
