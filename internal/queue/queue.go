// Package queue persists pending remote mutations for offline families.
//
// Every write that happens while a family is offline is recorded here as an
// envelope describing the mutation, in the same SQLite file as the data it
// mutates. The sync engine drains the queue in arrival order once the
// family migrates online.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// MaxAttempts is the retry ceiling. An item that fails this many times is
// parked as a dead letter instead of blocking the drain forever.
const MaxAttempts = 5

// Item statuses.
const (
	StatusPending = "pending"
	StatusDead    = "dead"
)

// ErrInvalidItem is returned by Enqueue when the envelope fails validation.
var ErrInvalidItem = errors.New("invalid queue item")

// Item is one queued mutation. FamilyID on the envelope is authoritative:
// the sync engine ignores any family id smuggled inside Data.
type Item struct {
	ID        int64           `json:"id"`
	FamilyID  string          `json:"family_id"`
	Kind      types.Kind      `json:"kind"`
	Action    types.Action    `json:"action"`
	EntityID  string          `json:"entity_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Attempts  int             `json:"attempts"`
	Status    string          `json:"status"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is the durable mutation log. It shares the store's SQLite
// connection so enqueues are durable alongside the local writes they
// describe.
type Queue struct {
	db     *sql.DB
	logger *log.Logger
}

// New wraps an open database connection. Call Init before use.
func New(db *sql.DB, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{db: db, logger: logger}
}

// Init creates the queue table if it doesn't exist. Idempotent.
func (q *Queue) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		family_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		data TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		last_error TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_queue_family ON sync_queue(family_id, status);
	`
	if _, err := q.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize queue schema: %w", err)
	}
	return nil
}

// Enqueue appends a mutation envelope. Kind and Action must be known enum
// values and both identifiers must be well formed; anything else is
// rejected before it can reach disk.
func (q *Queue) Enqueue(ctx context.Context, item *Item) error {
	if !types.ValidKind(item.Kind) {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, item.Kind)
	}
	if !types.ValidAction(item.Action) {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidItem, item.Action)
	}
	if !ident.IsSafe(item.FamilyID) {
		return fmt.Errorf("%w: unsafe family id", ErrInvalidItem)
	}
	if !ident.IsSafe(item.EntityID) {
		return fmt.Errorf("%w: unsafe entity id", ErrInvalidItem)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO sync_queue (family_id, kind, action, entity_id, data, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.FamilyID, string(item.Kind), string(item.Action), item.EntityID,
		dataToNullString(item.Data), StatusPending,
		item.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", item.Action, item.Kind, err)
	}
	item.ID, _ = res.LastInsertId()
	item.Status = StatusPending

	q.logger.Printf("[queue] enqueued %s %s %s for family %s (item %d)",
		item.Action, item.Kind, item.EntityID, item.FamilyID, item.ID)
	return nil
}

// Pending returns the family's live items oldest first by created_at,
// regardless of the order Enqueue was called in. Dead letters are
// excluded; they only come back through Retry.
func (q *Queue) Pending(ctx context.Context, familyID string) ([]*Item, error) {
	return q.list(ctx, familyID, StatusPending)
}

// DeadLetters returns the family's parked items in arrival order.
func (q *Queue) DeadLetters(ctx context.Context, familyID string) ([]*Item, error) {
	return q.list(ctx, familyID, StatusDead)
}

func (q *Queue) list(ctx context.Context, familyID, status string) ([]*Item, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, family_id, kind, action, entity_id, data, attempts, status, last_error, created_at
		FROM sync_queue WHERE family_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC`, familyID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes a completed item.
func (q *Queue) Remove(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove queue item %d: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt. At the retry ceiling the
// item is parked as a dead letter so the rest of the queue can drain.
func (q *Queue) MarkFailed(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET
			attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`,
		msg, MaxAttempts, StatusDead, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue item %d: %w", id, err)
	}

	var status string
	var attempts int
	if err := q.db.QueryRowContext(ctx,
		"SELECT status, attempts FROM sync_queue WHERE id = ?", id).
		Scan(&status, &attempts); err != nil {
		return fmt.Errorf("failed to read queue item %d: %w", id, err)
	}
	if status == StatusDead {
		q.logger.Printf("[queue] item %d dead after %d attempts: %s", id, attempts, msg)
	}
	return nil
}

// Retry moves a dead letter back to the live queue with a fresh attempt
// budget.
func (q *Queue) Retry(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, attempts = 0, last_error = NULL
		WHERE id = ? AND status = ?`,
		StatusPending, id, StatusDead)
	if err != nil {
		return fmt.Errorf("failed to retry queue item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("queue item %d is not a dead letter", id)
	}
	q.logger.Printf("[queue] item %d requeued", id)
	return nil
}

// Depth reports pending and dead counts for a family.
func (q *Queue) Depth(ctx context.Context, familyID string) (pending, dead int, err error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM sync_queue
		WHERE family_id = ? GROUP BY status`, familyID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return 0, 0, fmt.Errorf("failed to scan queue count: %w", err)
		}
		switch status {
		case StatusPending:
			pending = n
		case StatusDead:
			dead = n
		}
	}
	return pending, dead, rows.Err()
}

func scanItem(rows *sql.Rows) (*Item, error) {
	var item Item
	var kind, action, createdAt string
	var data, lastErr sql.NullString
	if err := rows.Scan(&item.ID, &item.FamilyID, &kind, &action, &item.EntityID,
		&data, &item.Attempts, &item.Status, &lastErr, &createdAt); err != nil {
		return nil, err
	}
	item.Kind = types.Kind(kind)
	item.Action = types.Action(action)
	item.LastError = lastErr.String
	if data.Valid {
		item.Data = json.RawMessage(data.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = t
	}
	return &item, nil
}

func dataToNullString(data json.RawMessage) sql.NullString {
	if len(data) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
