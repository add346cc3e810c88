// Package remote talks to the hosted budget backend.
//
// The sync engine only sees the Backend interface; the HTTP client here is
// the production implementation and Fake is the in-memory one used by
// tests. Remote identifiers are opaque strings owned by the backend, never
// locally minted ones.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// Backend is the remote write surface the sync engine drives.
//
// Insert takes an idempotency key derived from the local identifier so a
// retried migration doesn't duplicate rows the backend already accepted.
type Backend interface {
	CreateFamily(ctx context.Context, name, idempotencyKey string) (string, error)
	Insert(ctx context.Context, familyID string, kind types.Kind, idempotencyKey string, data map[string]any) (string, error)
	Update(ctx context.Context, familyID string, kind types.Kind, id string, data map[string]any) error
	Delete(ctx context.Context, familyID string, kind types.Kind, id string) error
}

// RequestError is a non-2xx response from the backend.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Status, e.Body)
}

// Config holds the HTTP client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for the hosted backend.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.monthly-family-budget.app",
		Timeout: 30 * time.Second,
	}
}

// Client is the HTTP implementation of Backend.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

// NewClient builds an HTTP backend client.
func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// kindPaths maps entity kinds to their collection path segments.
var kindPaths = map[types.Kind]string{
	types.KindMonth:            "months",
	types.KindExpense:          "expenses",
	types.KindRecurringExpense: "recurring-expenses",
	types.KindSubcategory:      "subcategories",
	types.KindCategoryLimit:    "category-limits",
	types.KindFamilyMember:     "members",
	types.KindIncomeSource:     "income-sources",
	types.KindGoal:             "goals",
	types.KindGoalEntry:        "goal-entries",
}

func (c *Client) CreateFamily(ctx context.Context, name, idempotencyKey string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/families", idempotencyKey,
		map[string]any{"name": name}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to create remote family: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) Insert(ctx context.Context, familyID string, kind types.Kind, idempotencyKey string, data map[string]any) (string, error) {
	path, err := c.collectionPath(familyID, kind)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, path, idempotencyKey, data, &resp); err != nil {
		return "", fmt.Errorf("failed to insert remote %s: %w", kind, err)
	}
	return resp.ID, nil
}

func (c *Client) Update(ctx context.Context, familyID string, kind types.Kind, id string, data map[string]any) error {
	path, err := c.entityPath(familyID, kind, id)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPatch, path, "", data, nil); err != nil {
		return fmt.Errorf("failed to update remote %s %s: %w", kind, id, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, familyID string, kind types.Kind, id string) error {
	path, err := c.entityPath(familyID, kind, id)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodDelete, path, "", nil, nil); err != nil {
		return fmt.Errorf("failed to delete remote %s %s: %w", kind, id, err)
	}
	return nil
}

func (c *Client) collectionPath(familyID string, kind types.Kind) (string, error) {
	segment, ok := kindPaths[kind]
	if !ok {
		return "", fmt.Errorf("kind %q has no remote collection", kind)
	}
	return "/v1/families/" + url.PathEscape(familyID) + "/" + segment, nil
}

func (c *Client) entityPath(familyID string, kind types.Kind, id string) (string, error) {
	base, err := c.collectionPath(familyID, kind)
	if err != nil {
		return "", err
	}
	return base + "/" + url.PathEscape(id), nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RequestError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
