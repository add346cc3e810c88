// Package types defines the domain entities shared across the local store,
// the sync queue and the sync engine.
//
// Every entity carries a FamilyID: the family is the tenancy boundary and no
// component may read or write rows across it. Fields are flat and
// individually serializable so rows survive the offline→online migration
// with only their identifier columns rewritten.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the entity kinds that can appear on the sync queue.
// The set is closed: Enqueue rejects anything else.
type Kind string

const (
	KindFamily           Kind = "family"
	KindMonth            Kind = "month"
	KindExpense          Kind = "expense"
	KindRecurringExpense Kind = "recurring_expense"
	KindSubcategory      Kind = "subcategory"
	KindCategoryLimit    Kind = "category_limit"
	KindFamilyMember     Kind = "family_member"
	KindIncomeSource     Kind = "income_source"
	KindGoal             Kind = "goal"
	KindGoalEntry        Kind = "goal_entry"
)

// ValidKind reports whether k is a member of the closed kind set.
func ValidKind(k Kind) bool {
	switch k {
	case KindFamily, KindMonth, KindExpense, KindRecurringExpense,
		KindSubcategory, KindCategoryLimit, KindFamilyMember,
		KindIncomeSource, KindGoal, KindGoalEntry:
		return true
	}
	return false
}

// Action enumerates the mutations that can be queued for replay.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ValidAction reports whether a is a member of the closed action set.
func ValidAction(a Action) bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Category keys form a closed allow-list. The three buckets mirror the
// 50/30/20 budgeting split the app is built around.
const (
	CategoryEssentials  = "essenciais"
	CategoryLeisure     = "lazer"
	CategoryInvestments = "investimentos"
)

// ValidCategory reports whether key is one of the known category keys.
func ValidCategory(key string) bool {
	switch key {
	case CategoryEssentials, CategoryLeisure, CategoryInvestments:
		return true
	}
	return false
}

// Family is the tenancy boundary. IsOffline marks a family whose data lives
// only in the local store; it may flip to online exactly once, via the sync
// engine's migration.
type Family struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsOffline bool      `json:"is_offline"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FamilyMember is a user's membership in a family.
type FamilyMember struct {
	ID       string `json:"id"`
	FamilyID string `json:"family_id"`
	Name     string `json:"name"`
	Role     string `json:"role"` // admin, member
}

// CategoryLimit caps a category's share of a family's monthly income,
// expressed as a percentage in [0,100].
type CategoryLimit struct {
	ID          string          `json:"id"`
	FamilyID    string          `json:"family_id"`
	CategoryKey string          `json:"category_key"`
	Percentage  decimal.Decimal `json:"percentage"`
}

// Month is one budgeting period for a family.
type Month struct {
	ID       string          `json:"id"`
	FamilyID string          `json:"family_id"`
	Name     string          `json:"name"`
	Year     int             `json:"year"`
	Month    int             `json:"month"` // 1-12
	Income   decimal.Decimal `json:"income"`
}

// Expense is a single spend inside a month. SubcategoryID and
// RecurringExpenseID are optional foreign keys; InstallmentTotal above 1
// marks the expense as one slice of an installment purchase.
type Expense struct {
	ID                 string          `json:"id"`
	FamilyID           string          `json:"family_id"`
	MonthID            string          `json:"month_id"`
	Title              string          `json:"title"`
	CategoryKey        string          `json:"category_key"`
	Value              decimal.Decimal `json:"value"`
	Paid               bool            `json:"paid"`
	SubcategoryID      string          `json:"subcategory_id,omitempty"`
	RecurringExpenseID string          `json:"recurring_expense_id,omitempty"`
	InstallmentNumber  int             `json:"installment_number,omitempty"`
	InstallmentTotal   int             `json:"installment_total,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// RecurringExpense is a template stamped into each new month while active.
type RecurringExpense struct {
	ID            string          `json:"id"`
	FamilyID      string          `json:"family_id"`
	Title         string          `json:"title"`
	CategoryKey   string          `json:"category_key"`
	Value         decimal.Decimal `json:"value"`
	SubcategoryID string          `json:"subcategory_id,omitempty"`
	Active        bool            `json:"active"`
}

// Subcategory is a family-defined refinement of a category key.
type Subcategory struct {
	ID          string `json:"id"`
	FamilyID    string `json:"family_id"`
	CategoryKey string `json:"category_key"`
	Name        string `json:"name"`
}

// IncomeSource is one contribution to a month's income.
type IncomeSource struct {
	ID       string          `json:"id"`
	FamilyID string          `json:"family_id"`
	MonthID  string          `json:"month_id"`
	Name     string          `json:"name"`
	Value    decimal.Decimal `json:"value"`
}

// Goal is a savings target.
type Goal struct {
	ID          string          `json:"id"`
	FamilyID    string          `json:"family_id"`
	Name        string          `json:"name"`
	TargetValue decimal.Decimal `json:"target_value"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
}

// GoalEntry is a deposit recorded against a goal.
type GoalEntry struct {
	ID       string          `json:"id"`
	FamilyID string          `json:"family_id"`
	GoalID   string          `json:"goal_id"`
	Value    decimal.Decimal `json:"value"`
	Date     time.Time       `json:"date"`
	Note     string          `json:"note,omitempty"`
}
