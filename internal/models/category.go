package models

import (
	"fmt"
	"strings"
)

// Category classifies a ledger entry. Legacy free-text values are mapped in
// through ParseCategory.
type Category string

const (
	CategoryIncome  Category = "income"
	CategoryExpense Category = "expense"
	CategorySalary  Category = "salary"
	CategoryBanks   Category = "banks"
	// CategoryOther only appears on rows read back from legacy data.
	CategoryOther Category = "other"
)

// ParseCategory maps user-supplied category strings (singular or plural,
// any case) onto the closed set of categories.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "income", "incomes":
		return CategoryIncome, nil
	case "expense", "expenses":
		return CategoryExpense, nil
	case "salary", "salaries":
		return CategorySalary, nil
	case "bank", "banks":
		return CategoryBanks, nil
	case "":
		return "", fmt.Errorf("category is required")
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// Spellings lists the lowercase stored forms that normalize to c, so
// filters also match rows written before categories were canonical.
func (c Category) Spellings() []string {
	switch c.Normalize() {
	case CategoryIncome:
		return []string{"income", "incomes"}
	case CategoryExpense:
		return []string{"expense", "expenses"}
	case CategorySalary:
		return []string{"salary", "salaries"}
	case CategoryBanks:
		return []string{"bank", "banks"}
	}
	return []string{strings.ToLower(string(c))}
}

// Normalize returns the canonical form of a stored category, folding
// anything unrecognised into CategoryOther.
func (c Category) Normalize() Category {
	parsed, err := ParseCategory(string(c))
	if err != nil {
		return CategoryOther
	}
	return parsed
}
