package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Input structs below are the legitimate field set of each mutation kind.
// A parsed result contains exactly these fields and nothing else.

// CreateFamilyInput is the payload for creating a family.
type CreateFamilyInput struct {
	Name string `json:"name"`
}

// ParseCreateFamily validates a family-creation payload.
func ParseCreateFamily(in map[string]any) Result[CreateFamilyInput] {
	p := &parser{in: in}
	out := CreateFamilyInput{
		Name: p.str("name", true),
	}
	if len(p.issues) > 0 {
		return fail[CreateFamilyInput](p.issues)
	}
	return ok(out)
}

// FamilyMemberInput is the payload for adding a member to a family.
type FamilyMemberInput struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ParseFamilyMember validates a family-member payload. Role is a closed
// two-value set; in particular "admin" can only come through this list,
// never through a stray is_admin flag on some other payload.
func ParseFamilyMember(in map[string]any) Result[FamilyMemberInput] {
	p := &parser{in: in}
	out := FamilyMemberInput{
		Name: p.str("name", true),
		Role: p.str("role", true),
	}
	if out.Role != "" && out.Role != "admin" && out.Role != "member" {
		p.addIssue("role", "must be admin or member")
	}
	if len(p.issues) > 0 {
		return fail[FamilyMemberInput](p.issues)
	}
	return ok(out)
}

// CreateMonthInput is the payload for opening a budgeting month.
type CreateMonthInput struct {
	Name   string          `json:"name"`
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Income decimal.Decimal `json:"income"`
}

// ParseCreateMonth validates a month-creation payload.
func ParseCreateMonth(in map[string]any) Result[CreateMonthInput] {
	p := &parser{in: in}
	out := CreateMonthInput{
		Name:   p.str("name", true),
		Year:   p.intIn("year", 1970, 9999, true),
		Month:  p.intIn("month", 1, 12, true),
		Income: p.money("income", false),
	}
	if len(p.issues) > 0 {
		return fail[CreateMonthInput](p.issues)
	}
	return ok(out)
}

// CreateExpenseInput is the payload for adding an expense to a month.
type CreateExpenseInput struct {
	MonthID            string          `json:"month_id"`
	Title              string          `json:"title"`
	CategoryKey        string          `json:"category_key"`
	Value              decimal.Decimal `json:"value"`
	Paid               bool            `json:"paid,omitempty"`
	SubcategoryID      string          `json:"subcategory_id,omitempty"`
	RecurringExpenseID string          `json:"recurring_expense_id,omitempty"`
	InstallmentNumber  int             `json:"installment_number,omitempty"`
	InstallmentTotal   int             `json:"installment_total,omitempty"`
}

// ParseCreateExpense validates an expense-creation payload. Note that
// family_id is deliberately not part of the input: the owning family comes
// from the caller's context, never from the payload.
func ParseCreateExpense(in map[string]any) Result[CreateExpenseInput] {
	p := &parser{in: in}
	out := CreateExpenseInput{
		MonthID:            p.id("month_id", true),
		Title:              p.str("title", true),
		CategoryKey:        p.category("category_key"),
		Value:              p.money("value", true),
		Paid:               p.boolean("paid", false),
		SubcategoryID:      p.id("subcategory_id", false),
		RecurringExpenseID: p.id("recurring_expense_id", false),
	}
	if _, present := in["installment_total"]; present {
		out.InstallmentTotal = p.posInt("installment_total", MaxInstallments, false)
		out.InstallmentNumber = p.posInt("installment_number", MaxInstallments, true)
		if out.InstallmentNumber > out.InstallmentTotal && out.InstallmentTotal > 0 {
			p.addIssue("installment_number", "must not exceed installment_total")
		}
	}
	if len(p.issues) > 0 {
		return fail[CreateExpenseInput](p.issues)
	}
	return ok(out)
}

// UpdateExpenseInput is the payload for partially updating an expense.
// Nil pointers mean "leave unchanged".
type UpdateExpenseInput struct {
	Title       *string          `json:"title,omitempty"`
	CategoryKey *string          `json:"category_key,omitempty"`
	Value       *decimal.Decimal `json:"value,omitempty"`
	Paid        *bool            `json:"paid,omitempty"`
}

// ParseUpdateExpense validates a partial expense update.
func ParseUpdateExpense(in map[string]any) Result[UpdateExpenseInput] {
	p := &parser{in: in}
	var out UpdateExpenseInput
	if _, present := in["title"]; present {
		v := p.str("title", true)
		out.Title = &v
	}
	if _, present := in["category_key"]; present {
		v := p.category("category_key")
		out.CategoryKey = &v
	}
	if _, present := in["value"]; present {
		v := p.money("value", true)
		out.Value = &v
	}
	if _, present := in["paid"]; present {
		v := p.boolean("paid", false)
		out.Paid = &v
	}
	if len(p.issues) > 0 {
		return fail[UpdateExpenseInput](p.issues)
	}
	return ok(out)
}

// CreateRecurringExpenseInput is the payload for a recurring expense template.
type CreateRecurringExpenseInput struct {
	Title         string          `json:"title"`
	CategoryKey   string          `json:"category_key"`
	Value         decimal.Decimal `json:"value"`
	SubcategoryID string          `json:"subcategory_id,omitempty"`
	Active        bool            `json:"active"`
}

// ParseCreateRecurringExpense validates a recurring-expense payload.
func ParseCreateRecurringExpense(in map[string]any) Result[CreateRecurringExpenseInput] {
	p := &parser{in: in}
	out := CreateRecurringExpenseInput{
		Title:         p.str("title", true),
		CategoryKey:   p.category("category_key"),
		Value:         p.money("value", true),
		SubcategoryID: p.id("subcategory_id", false),
		Active:        p.boolean("active", true),
	}
	if len(p.issues) > 0 {
		return fail[CreateRecurringExpenseInput](p.issues)
	}
	return ok(out)
}

// CreateSubcategoryInput is the payload for a family-defined subcategory.
type CreateSubcategoryInput struct {
	CategoryKey string `json:"category_key"`
	Name        string `json:"name"`
}

// ParseCreateSubcategory validates a subcategory payload.
func ParseCreateSubcategory(in map[string]any) Result[CreateSubcategoryInput] {
	p := &parser{in: in}
	out := CreateSubcategoryInput{
		CategoryKey: p.category("category_key"),
		Name:        p.str("name", true),
	}
	if len(p.issues) > 0 {
		return fail[CreateSubcategoryInput](p.issues)
	}
	return ok(out)
}

// CategoryLimitInput is the payload for a category percentage cap.
type CategoryLimitInput struct {
	CategoryKey string          `json:"category_key"`
	Percentage  decimal.Decimal `json:"percentage"`
}

// ParseCategoryLimit validates a category-limit payload.
func ParseCategoryLimit(in map[string]any) Result[CategoryLimitInput] {
	p := &parser{in: in}
	out := CategoryLimitInput{
		CategoryKey: p.category("category_key"),
		Percentage:  p.percent("percentage", true),
	}
	if len(p.issues) > 0 {
		return fail[CategoryLimitInput](p.issues)
	}
	return ok(out)
}

// CreateIncomeSourceInput is the payload for one income contribution.
type CreateIncomeSourceInput struct {
	MonthID string          `json:"month_id"`
	Name    string          `json:"name"`
	Value   decimal.Decimal `json:"value"`
}

// ParseCreateIncomeSource validates an income-source payload.
func ParseCreateIncomeSource(in map[string]any) Result[CreateIncomeSourceInput] {
	p := &parser{in: in}
	out := CreateIncomeSourceInput{
		MonthID: p.id("month_id", true),
		Name:    p.str("name", true),
		Value:   p.money("value", true),
	}
	if len(p.issues) > 0 {
		return fail[CreateIncomeSourceInput](p.issues)
	}
	return ok(out)
}

// CreateGoalInput is the payload for a savings goal.
type CreateGoalInput struct {
	Name        string          `json:"name"`
	TargetValue decimal.Decimal `json:"target_value"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
}

// ParseCreateGoal validates a goal payload. Deadline, when present, must be
// an RFC 3339 timestamp.
func ParseCreateGoal(in map[string]any) Result[CreateGoalInput] {
	p := &parser{in: in}
	out := CreateGoalInput{
		Name:        p.str("name", true),
		TargetValue: p.money("target_value", true),
	}
	if raw, present := in["deadline"]; present {
		s, isString := raw.(string)
		if !isString {
			p.addIssue("deadline", "must be an RFC 3339 timestamp")
		} else if t, err := time.Parse(time.RFC3339, s); err != nil {
			p.addIssue("deadline", "must be an RFC 3339 timestamp")
		} else {
			out.Deadline = &t
		}
	}
	if len(p.issues) > 0 {
		return fail[CreateGoalInput](p.issues)
	}
	return ok(out)
}

// CreateGoalEntryInput is the payload for a deposit against a goal.
type CreateGoalEntryInput struct {
	GoalID string          `json:"goal_id"`
	Value  decimal.Decimal `json:"value"`
	Date   time.Time       `json:"date"`
	Note   string          `json:"note,omitempty"`
}

// ParseCreateGoalEntry validates a goal-entry payload.
func ParseCreateGoalEntry(in map[string]any) Result[CreateGoalEntryInput] {
	p := &parser{in: in}
	out := CreateGoalEntryInput{
		GoalID: p.id("goal_id", true),
		Value:  p.money("value", true),
		Note:   p.str("note", false),
	}
	raw, present := in["date"]
	if !present {
		p.addIssue("date", "required")
	} else if s, isString := raw.(string); !isString {
		p.addIssue("date", "must be an RFC 3339 timestamp")
	} else if t, err := time.Parse(time.RFC3339, s); err != nil {
		p.addIssue("date", "must be an RFC 3339 timestamp")
	} else {
		out.Date = t
	}
	if len(p.issues) > 0 {
		return fail[CreateGoalEntryInput](p.issues)
	}
	return ok(out)
}
