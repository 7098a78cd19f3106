package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyBudget is a user's plan for one calendar month. A user has at most
// one budget per (month, year). The budget owns its categories and
// transactions.
type MonthlyBudget struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;uniqueIndex:idx_budget_user_period" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	Month       int             `gorm:"not null;uniqueIndex:idx_budget_user_period" json:"month"`
	Year        int             `gorm:"not null;uniqueIndex:idx_budget_user_period" json:"year"`
	TotalIncome decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_income"`
	IsTemplate  bool            `gorm:"default:false" json:"is_template"`

	// Relationships
	Categories   []Category    `gorm:"foreignKey:BudgetID" json:"categories"`
	Transactions []Transaction `gorm:"foreignKey:BudgetID" json:"transactions"`
}

// Period returns the budget's calendar month.
func (b *MonthlyBudget) Period() (time.Month, int) {
	return time.Month(b.Month), b.Year
}

// FindCategory returns the category with the given id, or nil.
func (b *MonthlyBudget) FindCategory(id string) *Category {
	for i := range b.Categories {
		if b.Categories[i].ID == id {
			return &b.Categories[i]
		}
	}
	return nil
}

// FindCategoryByName returns the first category matching name and type, or nil.
func (b *MonthlyBudget) FindCategoryByName(name string, categoryType CategoryType) *Category {
	for i := range b.Categories {
		if b.Categories[i].Name == name && b.Categories[i].Type == categoryType {
			return &b.Categories[i]
		}
	}
	return nil
}

// RecurrentTransaction returns the transaction materialized from the given
// recurring template, or nil.
func (b *MonthlyBudget) RecurrentTransaction(recurrenceID string) *Transaction {
	for i := range b.Transactions {
		t := &b.Transactions[i]
		if t.IsRecurrent && t.RecurrenceID != nil && *t.RecurrenceID == recurrenceID {
			return t
		}
	}
	return nil
}
