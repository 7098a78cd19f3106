package models

import "github.com/shopspring/decimal"

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Valid reports whether c is a known category type.
func (c CategoryType) Valid() bool {
	return c == CategoryTypeIncome || c == CategoryTypeExpense
}

// Category is an income or expense line of a monthly budget. Categories are
// owned by exactly one budget; cloning a budget gives every category a new id.
type Category struct {
	Base
	BudgetID     string          `gorm:"type:uuid;not null;index" json:"budget_id"`
	Name         string          `gorm:"not null" json:"name"`
	Description  string          `json:"description,omitempty"`
	Color        string          `json:"color"`
	Icon         string          `json:"icon"`
	BudgetAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"budget_amount"`
	Type         CategoryType    `gorm:"not null" json:"type"`
}
