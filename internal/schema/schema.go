// Package schema validates mutation payloads before they are allowed to
// reach the local store or the sync queue.
//
// Parsing works on untyped maps (the shape mutations arrive in from the UI
// boundary and the queue) and rebuilds a typed input struct field by field.
// Unknown fields are stripped, never reflected: the output struct is the
// whole contract, so an injected "is_admin" or "family_id" on a payload
// simply has nowhere to go. This is the mass-assignment firewall.
//
// Validators enforce structural safety only. String content is opaque text
// here; escaping for display is the presentation layer's job.
package schema

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// Field bounds. MaxInstallments is ten years of monthly installments.
const (
	MaxStringLen    = 255
	MaxInstallments = 120
)

// Issue describes one validation failure.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Result is the outcome of parsing a mutation payload. Either OK is true and
// Value holds the stripped, validated input, or OK is false and Issues lists
// every failure found. Parsing never panics and never returns an error type;
// a rejection is an ordinary value.
type Result[T any] struct {
	OK     bool
	Value  T
	Issues []Issue
}

func ok[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

func fail[T any](issues []Issue) Result[T] {
	return Result[T]{OK: false, Issues: issues}
}

// parser accumulates issues while extracting fields from an untyped payload.
type parser struct {
	in     map[string]any
	issues []Issue
}

func (p *parser) addIssue(field, format string, args ...any) {
	p.issues = append(p.issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// str extracts a bounded, non-empty string field.
func (p *parser) str(field string, required bool) string {
	raw, present := p.in[field]
	if !present {
		if required {
			p.addIssue(field, "required")
		}
		return ""
	}
	s, isString := raw.(string)
	if !isString {
		p.addIssue(field, "must be a string")
		return ""
	}
	if s == "" {
		if required {
			p.addIssue(field, "must not be empty")
		}
		return ""
	}
	if len(s) > MaxStringLen {
		p.addIssue(field, "must be %d characters or less (got %d)", MaxStringLen, len(s))
		return ""
	}
	return s
}

// id extracts an identifier field. Identifiers must match the safe shape
// and must not contain reserved tokens, whether offline-minted or
// server-assigned.
func (p *parser) id(field string, required bool) string {
	s := p.str(field, required)
	if s == "" {
		return ""
	}
	if !ident.IsSafe(s) {
		p.addIssue(field, "not a valid identifier")
		return ""
	}
	return s
}

// money extracts a non-negative money value. NaN and infinities are rejected
// outright; they are representable in float payloads and must never reach
// arithmetic or storage.
func (p *parser) money(field string, required bool) decimal.Decimal {
	raw, present := p.in[field]
	if !present {
		if required {
			p.addIssue(field, "required")
		}
		return decimal.Zero
	}

	var d decimal.Decimal
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.addIssue(field, "must be a finite number")
			return decimal.Zero
		}
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			p.addIssue(field, "must be a number")
			return decimal.Zero
		}
		d = parsed
	case decimal.Decimal:
		d = v
	default:
		p.addIssue(field, "must be a number")
		return decimal.Zero
	}

	if d.IsNegative() {
		p.addIssue(field, "must not be negative")
		return decimal.Zero
	}
	return d
}

// percent extracts a percentage bounded to [0,100].
func (p *parser) percent(field string, required bool) decimal.Decimal {
	d := p.money(field, required)
	if d.GreaterThan(decimal.NewFromInt(100)) {
		p.addIssue(field, "must be between 0 and 100")
		return decimal.Zero
	}
	return d
}

// posInt extracts a positive integer bounded by max. Float payloads are
// accepted only when they carry an integral value.
func (p *parser) posInt(field string, max int, required bool) int {
	raw, present := p.in[field]
	if !present {
		if required {
			p.addIssue(field, "required")
		}
		return 0
	}

	var n int
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			p.addIssue(field, "must be an integer")
			return 0
		}
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	default:
		p.addIssue(field, "must be an integer")
		return 0
	}

	if n < 1 {
		p.addIssue(field, "must be positive")
		return 0
	}
	if n > max {
		p.addIssue(field, "must be %d or less (got %d)", max, n)
		return 0
	}
	return n
}

// intIn extracts an integer within [min,max].
func (p *parser) intIn(field string, min, max int, required bool) int {
	raw, present := p.in[field]
	if !present {
		if required {
			p.addIssue(field, "required")
		}
		return 0
	}

	var n int
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			p.addIssue(field, "must be an integer")
			return 0
		}
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	default:
		p.addIssue(field, "must be an integer")
		return 0
	}

	if n < min || n > max {
		p.addIssue(field, "must be between %d and %d (got %d)", min, max, n)
		return 0
	}
	return n
}

// boolean extracts an optional boolean, defaulting to def.
func (p *parser) boolean(field string, def bool) bool {
	raw, present := p.in[field]
	if !present {
		return def
	}
	b, isBool := raw.(bool)
	if !isBool {
		p.addIssue(field, "must be a boolean")
		return def
	}
	return b
}

// category extracts a category key against the closed allow-list. Reserved
// tokens fail here too, by construction: they are not in the list.
func (p *parser) category(field string) string {
	s := p.str(field, true)
	if s == "" {
		return ""
	}
	if !types.ValidCategory(s) {
		p.addIssue(field, "unknown category key %q", s)
		return ""
	}
	return s
}
