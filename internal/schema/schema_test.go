package schema

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func validExpensePayload() map[string]any {
	return map[string]any{
		"month_id":     "month-1717171717171-abc123xyz",
		"title":        "Coffee",
		"category_key": "essenciais",
		"value":        100.0,
	}
}

// resultKeys marshals a parsed value and returns its JSON object keys,
// sorted. This is how the mass-assignment invariant is asserted: whatever
// went in, only the legitimate field set comes out.
func resultKeys(t *testing.T, v any) []string {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal parsed value: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal parsed value: %v", err)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestParseCreateExpenseValid(t *testing.T) {
	res := ParseCreateExpense(validExpensePayload())
	if !res.OK {
		t.Fatalf("expected success, got issues: %v", res.Issues)
	}
	if res.Value.Title != "Coffee" {
		t.Errorf("title = %q, want Coffee", res.Value.Title)
	}
	if res.Value.Value.String() != "100" {
		t.Errorf("value = %s, want 100", res.Value.Value)
	}
}

func TestParseCreateExpenseStripsInjectedFields(t *testing.T) {
	payload := validExpensePayload()
	payload["is_admin"] = true
	payload["role"] = "admin"
	payload["family_id"] = "family-9999999999999-hijacked1"
	payload["created_at"] = "2020-01-01T00:00:00Z"

	res := ParseCreateExpense(payload)
	if !res.OK {
		t.Fatalf("expected success, got issues: %v", res.Issues)
	}

	keys := resultKeys(t, res.Value)
	want := []string{"category_key", "month_id", "title", "value"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("parsed keys = %v, want %v", keys, want)
	}
}

func TestParseIdempotent(t *testing.T) {
	payload := validExpensePayload()

	first := ParseCreateExpense(payload)
	for i := 0; i < 5; i++ {
		again := ParseCreateExpense(payload)
		if !again.OK {
			t.Fatalf("run %d: expected success, got issues: %v", i, again.Issues)
		}
		if !reflect.DeepEqual(first.Value, again.Value) {
			t.Fatalf("run %d: parse not idempotent: %+v vs %+v", i, first.Value, again.Value)
		}
	}
}

func TestParseCreateExpenseRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"missing month_id", func(m map[string]any) { delete(m, "month_id") }, "month_id"},
		{"empty title", func(m map[string]any) { m["title"] = "" }, "title"},
		{"long title", func(m map[string]any) { m["title"] = strings.Repeat("a", 256) }, "title"},
		{"unknown category", func(m map[string]any) { m["category_key"] = "gadgets" }, "category_key"},
		{"reserved category", func(m map[string]any) { m["category_key"] = "__proto__" }, "category_key"},
		{"NaN value", func(m map[string]any) { m["value"] = math.NaN() }, "value"},
		{"positive inf value", func(m map[string]any) { m["value"] = math.Inf(1) }, "value"},
		{"negative inf value", func(m map[string]any) { m["value"] = math.Inf(-1) }, "value"},
		{"negative value", func(m map[string]any) { m["value"] = -10.0 }, "value"},
		{"non-numeric value", func(m map[string]any) { m["value"] = "ten" }, "value"},
		{"reserved month_id", func(m map[string]any) { m["month_id"] = "__proto__" }, "month_id"},
		{"markup month_id", func(m map[string]any) { m["month_id"] = "<script>alert(1)</script>" }, "month_id"},
		{"installments too high", func(m map[string]any) {
			m["installment_total"] = 121
			m["installment_number"] = 1
		}, "installment_total"},
		{"installments zero", func(m map[string]any) {
			m["installment_total"] = 0
			m["installment_number"] = 1
		}, "installment_total"},
		{"fractional installments", func(m map[string]any) {
			m["installment_total"] = 2.5
			m["installment_number"] = 1
		}, "installment_total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validExpensePayload()
			tt.mutate(payload)

			res := ParseCreateExpense(payload)
			if res.OK {
				t.Fatalf("expected rejection, got success: %+v", res.Value)
			}
			found := false
			for _, issue := range res.Issues {
				if issue.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an issue on %q, got %v", tt.field, res.Issues)
			}
		})
	}
}

func TestParseCategoryLimitBounds(t *testing.T) {
	res := ParseCategoryLimit(map[string]any{"category_key": "lazer", "percentage": 30.0})
	if !res.OK {
		t.Fatalf("expected success, got issues: %v", res.Issues)
	}

	res = ParseCategoryLimit(map[string]any{"category_key": "lazer", "percentage": 101.0})
	if res.OK {
		t.Fatal("expected rejection of percentage above 100")
	}
	res = ParseCategoryLimit(map[string]any{"category_key": "lazer", "percentage": -1.0})
	if res.OK {
		t.Fatal("expected rejection of negative percentage")
	}
}

func TestParseFamilyMemberRole(t *testing.T) {
	res := ParseFamilyMember(map[string]any{"name": "Ana", "role": "owner"})
	if res.OK {
		t.Fatal("expected rejection of unknown role")
	}
	res = ParseFamilyMember(map[string]any{"name": "Ana", "role": "member"})
	if !res.OK {
		t.Fatalf("expected success, got issues: %v", res.Issues)
	}
}

func TestParseUpdateExpensePartial(t *testing.T) {
	res := ParseUpdateExpense(map[string]any{"paid": true})
	if !res.OK {
		t.Fatalf("expected success, got issues: %v", res.Issues)
	}
	if res.Value.Paid == nil || !*res.Value.Paid {
		t.Error("paid not captured")
	}
	if res.Value.Title != nil || res.Value.Value != nil || res.Value.CategoryKey != nil {
		t.Error("absent fields must stay nil")
	}

	res = ParseUpdateExpense(map[string]any{"value": math.NaN()})
	if res.OK {
		t.Fatal("expected rejection of NaN on update")
	}
}

func TestParseCreateGoalEntryDate(t *testing.T) {
	res := ParseCreateGoalEntry(map[string]any{
		"goal_id": "goal-1717171717171-abc123xyz",
		"value":   50.0,
		"date":    "2026-08-01T00:00:00Z",
	})
	if !res.OK {
		t.Fatalf("expected success, got issues: %v", res.Issues)
	}

	res = ParseCreateGoalEntry(map[string]any{
		"goal_id": "goal-1717171717171-abc123xyz",
		"value":   50.0,
		"date":    "yesterday",
	})
	if res.OK {
		t.Fatal("expected rejection of malformed date")
	}
}

func TestParseCreateMonthBounds(t *testing.T) {
	res := ParseCreateMonth(map[string]any{"name": "June 2026", "year": 2026, "month": 6})
	if !res.OK {
		t.Fatalf("expected success, got issues: %v", res.Issues)
	}

	res = ParseCreateMonth(map[string]any{"name": "Bad", "year": 2026, "month": 13})
	if res.OK {
		t.Fatal("expected rejection of month 13")
	}
}

// Validation must stay linear on adversarial inputs: long repeated
// characters and absurdly wide payloads.
func BenchmarkParseCreateExpensePathologicalString(b *testing.B) {
	payload := validExpensePayload()
	payload["title"] = strings.Repeat("a", 100000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseCreateExpense(payload)
	}
}

func BenchmarkParseCreateExpenseWidePayload(b *testing.B) {
	payload := validExpensePayload()
	for i := 0; i < 5000; i++ {
		payload[strings.Repeat("k", 20)+string(rune('a'+i%26))] = i
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseCreateExpense(payload)
	}
}
