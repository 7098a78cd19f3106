package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction is a concrete income or expense recorded in a monthly budget.
// RecurrenceID points back at the recurring template that produced it; the
// (budget_id, recurrence_id) unique index allows one occurrence per budget.
type Transaction struct {
	Base
	UserID       string          `gorm:"type:uuid;not null;index" json:"user_id"`
	BudgetID     string          `gorm:"type:uuid;not null;uniqueIndex:idx_txn_budget_recurrence" json:"budget_id"`
	CategoryID   string          `gorm:"type:uuid;not null" json:"category_id"`
	Type         TransactionType `gorm:"not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description  string          `json:"description"`
	Date         time.Time       `gorm:"not null" json:"date"`
	IsRecurrent  bool            `gorm:"default:false" json:"is_recurrent"`
	RecurrenceID *string         `gorm:"type:uuid;uniqueIndex:idx_txn_budget_recurrence" json:"recurrence_id,omitempty"`
}
