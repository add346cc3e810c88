package config

import (
	"encoding/json"
	"strings"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
)

// Known config keys.
const (
	KeyCurrentFamily = "current-family-id"
	KeyTheme         = "budget-app-theme"
	KeyLanguage      = "budget-app-language"
	KeyCurrency      = "budget-app-currency"

	// SortKeyPrefix heads the dynamic per-month sort preference keys:
	// "month-expenses-sort:<monthId>".
	SortKeyPrefix = "month-expenses-sort:"
)

// rule pairs a key predicate with a value validator. Rules are evaluated
// top-down; the first matching predicate wins, so exact-key rules come
// before the prefix rule.
type rule struct {
	name     string
	match    func(key string) bool
	validate func(value string) bool
	def      string
}

func exactKey(key string) func(string) bool {
	return func(k string) bool { return k == key }
}

func oneOf(allowed ...string) func(string) bool {
	return func(v string) bool {
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}
}

// sortPreference is the only shape accepted for dynamic sort keys.
type sortPreference struct {
	SortType      string `json:"sortType"`
	SortDirection string `json:"sortDirection"`
}

func validSortPayload(value string) bool {
	// Strict decode: unknown fields in the payload are a mismatch, not
	// something to carry along.
	dec := json.NewDecoder(strings.NewReader(value))
	dec.DisallowUnknownFields()

	var pref sortPreference
	if err := dec.Decode(&pref); err != nil {
		return false
	}
	if dec.More() {
		return false
	}

	switch pref.SortType {
	case "date", "value", "title", "category":
	default:
		return false
	}
	switch pref.SortDirection {
	case "asc", "desc":
	default:
		return false
	}
	return true
}

// rules is the ordered (predicate, validator) table. The active family
// pointer accepts any safe identifier — offline-shaped or server-assigned —
// and nothing containing a reserved token.
var rules = []rule{
	{
		name:     "current-family-id",
		match:    exactKey(KeyCurrentFamily),
		validate: ident.IsSafe,
	},
	{
		name:     "theme",
		match:    exactKey(KeyTheme),
		validate: oneOf("light", "dark", "system"),
		def:      "system",
	},
	{
		name:     "language",
		match:    exactKey(KeyLanguage),
		validate: oneOf("pt", "en"),
		def:      "pt",
	},
	{
		name:     "currency",
		match:    exactKey(KeyCurrency),
		validate: oneOf("BRL", "USD"),
		def:      "BRL",
	},
	{
		name: "month-expenses-sort",
		match: func(key string) bool {
			if !strings.HasPrefix(key, SortKeyPrefix) {
				return false
			}
			return ident.IsSafe(strings.TrimPrefix(key, SortKeyPrefix))
		},
		validate: validSortPayload,
	},
}

// ruleFor returns the first rule whose predicate matches key.
func ruleFor(key string) (rule, bool) {
	for _, r := range rules {
		if r.match(key) {
			return r, true
		}
	}
	return rule{}, false
}
