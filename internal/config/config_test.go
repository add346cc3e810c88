package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := Open(path, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return store
}

func TestSetGetRoundTrip(t *testing.T) {
	store := setupStore(t)

	if !store.Set(KeyCurrentFamily, "family-1717171717171-abc123xyz") {
		t.Fatal("Set of valid family id failed")
	}
	got, found := store.Get(KeyCurrentFamily)
	if !found || got != "family-1717171717171-abc123xyz" {
		t.Errorf("Get = (%q, %v), want stored id", got, found)
	}
}

func TestMixedCaseKeySurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	logger := log.New(io.Discard, "", 0)

	store, err := Open(path, logger)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	// A backend-assigned id can carry uppercase. Viper folds keys to
	// lowercase on disk, so the store must fold too or the key changes
	// spelling across a reload.
	key := SortKeyPrefix + "Month-ABC123"
	payload := `{"sortType":"value","sortDirection":"desc"}`
	if !store.Set(key, payload) {
		t.Fatal("Set of mixed-case sort key failed")
	}

	reopened, err := Open(path, logger)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	got, found := reopened.Get(key)
	if !found || got != payload {
		t.Errorf("Get after reload = (%q, %v), want stored payload", got, found)
	}

	if !reopened.Remove(key) {
		t.Fatal("Remove of mixed-case key failed")
	}
	if _, found := reopened.Get(key); found {
		t.Error("key still present after Remove")
	}
}

func TestSetRejectsReservedWords(t *testing.T) {
	store := setupStore(t)

	bad := []string{
		"__proto__",
		"constructor",
		"prototype",
		"__defineGetter__",
		"PROTOTYPE",
		"fam-__proto__-01",
	}
	for _, w := range bad {
		if store.Set(KeyCurrentFamily, w) {
			t.Errorf("Set(%q) = true, want false", w)
		}
	}
	if _, found := store.Get(KeyCurrentFamily); found {
		t.Error("rejected value must not be stored")
	}
}

func TestSetRejectsHostileStrings(t *testing.T) {
	store := setupStore(t)

	bad := []string{
		"<script>alert(1)</script>",
		"../../etc/passwd",
		"id with spaces",
		"a\x00b",
		"\x1b[31mred\x1b[0m",
		strings.Repeat("a", 256),
		"",
	}
	for _, w := range bad {
		if store.Set(KeyCurrentFamily, w) {
			t.Errorf("Set(%q) = true, want false", w)
		}
	}
}

func TestSetUnknownKey(t *testing.T) {
	store := setupStore(t)
	if store.Set("totally-unknown", "value") {
		t.Error("Set of unknown key must fail")
	}
}

func TestEnumeratedKeys(t *testing.T) {
	store := setupStore(t)

	if !store.Set(KeyTheme, "dark") {
		t.Error("valid theme rejected")
	}
	if store.Set(KeyTheme, "solarized") {
		t.Error("unknown theme accepted")
	}
	if !store.Set(KeyLanguage, "en") {
		t.Error("valid language rejected")
	}
	if store.Set(KeyLanguage, "fr") {
		t.Error("unknown language accepted")
	}
	if !store.Set(KeyCurrency, "USD") {
		t.Error("valid currency rejected")
	}
	if store.Set(KeyCurrency, "EUR") {
		t.Error("unknown currency accepted")
	}
}

func TestDefaults(t *testing.T) {
	store := setupStore(t)

	if got, found := store.Get(KeyTheme); !found || got != "system" {
		t.Errorf("theme default = (%q, %v), want (system, true)", got, found)
	}
	if got, found := store.Get(KeyLanguage); !found || got != "pt" {
		t.Errorf("language default = (%q, %v), want (pt, true)", got, found)
	}
	if _, found := store.Get(KeyCurrentFamily); found {
		t.Error("family pointer has no default")
	}
}

func TestDynamicSortKeys(t *testing.T) {
	store := setupStore(t)
	key := SortKeyPrefix + "month-1717171717171-abc123xyz"

	if !store.Set(key, `{"sortType":"value","sortDirection":"desc"}`) {
		t.Error("valid sort payload rejected")
	}
	if store.Set(key, `{"sortType":"price","sortDirection":"desc"}`) {
		t.Error("unknown sortType accepted")
	}
	if store.Set(key, `{"sortType":"value","sortDirection":"sideways"}`) {
		t.Error("unknown sortDirection accepted")
	}
	if store.Set(key, `{"sortType":"value","sortDirection":"desc","extra":1}`) {
		t.Error("extra payload field accepted")
	}
	if store.Set(key, `not json`) {
		t.Error("non-JSON payload accepted")
	}
	if store.Set(SortKeyPrefix+"__proto__", `{"sortType":"value","sortDirection":"desc"}`) {
		t.Error("reserved month id in dynamic key accepted")
	}
}

func TestGetSelfHeals(t *testing.T) {
	store := setupStore(t)

	// Corrupt the store behind the validated API.
	store.mu.Lock()
	store.values[KeyTheme] = "<script>"
	store.mu.Unlock()

	got, found := store.Get(KeyTheme)
	if !found || got != "system" {
		t.Errorf("Get after corruption = (%q, %v), want default", got, found)
	}

	store.mu.Lock()
	_, still := store.values[KeyTheme]
	store.mu.Unlock()
	if still {
		t.Error("invalid stored value must be pruned on read")
	}
}

func TestValidateAllPrunes(t *testing.T) {
	store := setupStore(t)

	store.mu.Lock()
	store.values[KeyCurrentFamily] = "__proto__"
	store.values["rogue-key"] = "whatever"
	store.values[KeyCurrency] = "USD"
	store.mu.Unlock()

	store.ValidateAll()

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, bad := store.values[KeyCurrentFamily]; bad {
		t.Error("reserved family pointer survived ValidateAll")
	}
	if _, bad := store.values["rogue-key"]; bad {
		t.Error("unknown key survived ValidateAll")
	}
	if store.values[KeyCurrency] != "USD" {
		t.Error("valid value must survive ValidateAll")
	}
}

func TestPersistenceAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	logger := log.New(io.Discard, "", 0)

	store, err := Open(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store.Set(KeyCurrency, "USD")
	store.Set(KeyCurrentFamily, "family-1717171717171-abc123xyz")

	reopened, err := Open(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, _ := reopened.Get(KeyCurrency); got != "USD" {
		t.Errorf("currency after reopen = %q, want USD", got)
	}
	if got, _ := reopened.Get(KeyCurrentFamily); got != "family-1717171717171-abc123xyz" {
		t.Errorf("family pointer after reopen = %q", got)
	}
}

func TestOpenPrunesTamperedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"current-family-id":"<script>alert(1)</script>","budget-app-currency":"BRL"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store, err := Open(path, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, found := store.Get(KeyCurrentFamily); found {
		t.Error("tampered family pointer must be pruned at open")
	}
	if got, _ := store.Get(KeyCurrency); got != "BRL" {
		t.Errorf("currency = %q, want BRL", got)
	}
}

func TestRemoveAndClear(t *testing.T) {
	store := setupStore(t)
	store.Set(KeyCurrency, "USD")

	if !store.Remove(KeyCurrency) {
		t.Error("Remove failed")
	}
	if got, _ := store.Get(KeyCurrency); got != "BRL" {
		t.Errorf("after Remove, Get = %q, want default BRL", got)
	}
	if !store.Remove(KeyCurrency) {
		t.Error("Remove of absent key must succeed")
	}

	store.Set(KeyTheme, "dark")
	store.Set(KeyLanguage, "en")
	if !store.Clear() {
		t.Error("Clear failed")
	}
	if len(store.Keys()) != 0 {
		t.Errorf("after Clear, %d keys remain", len(store.Keys()))
	}
}
