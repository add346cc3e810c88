package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "tok"}, log.New(io.Discard, "", 0))
}

func TestClientInsertSendsIdempotencyKey(t *testing.T) {
	var gotPath, gotKey, gotAuth string
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "remote-uuid-1"})
	})

	id, err := client.Insert(context.Background(), "fam-1", types.KindExpense,
		"exp-1700000000001-aaaaaaaaa", map[string]any{"title": "Luz"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id != "remote-uuid-1" {
		t.Errorf("id = %q", id)
	}
	if gotPath != "/v1/families/fam-1/expenses" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "exp-1700000000001-aaaaaaaaa" {
		t.Errorf("idempotency key = %q", gotKey)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["title"] != "Luz" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestClientSurfacesRequestError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "family quota exceeded", http.StatusForbidden)
	})

	_, err := client.CreateFamily(context.Background(), "Silva", "family-1700000000000-aaaaaaaaa")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusForbidden {
		t.Errorf("status = %d", reqErr.Status)
	}
}

func TestClientRejectsUnknownKind(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	_, err := client.Insert(context.Background(), "fam-1", types.Kind("wallet"), "k", nil)
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestFakeIdempotentInsert(t *testing.T) {
	fake := NewFake()
	ctx := context.Background()

	famID, err := fake.CreateFamily(ctx, "Silva", "family-1700000000000-aaaaaaaaa")
	if err != nil {
		t.Fatalf("CreateFamily failed: %v", err)
	}

	key := "exp-1700000000001-aaaaaaaaa"
	first, err := fake.Insert(ctx, famID, types.KindExpense, key, map[string]any{"title": "Luz"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	second, err := fake.Insert(ctx, famID, types.KindExpense, key, map[string]any{"title": "Luz"})
	if err != nil {
		t.Fatalf("second Insert failed: %v", err)
	}
	if first != second {
		t.Errorf("idempotent insert minted two ids: %q, %q", first, second)
	}
	if len(fake.Rows(famID, types.KindExpense)) != 1 {
		t.Errorf("duplicate row stored")
	}
}
