package models

import (
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/recurrence"
)

// RecurrentTransaction is a template that the recurrence processor turns into
// concrete transactions. It never appears in a budget itself.
type RecurrentTransaction struct {
	Base
	UserID            string                  `gorm:"type:uuid;not null;index" json:"user_id"`
	Type              TransactionType         `gorm:"not null" json:"type"`
	Amount            decimal.Decimal         `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description       string                  `gorm:"not null" json:"description"`
	CategoryID        string                  `gorm:"type:uuid;not null" json:"category_id"`
	StartDate         time.Time               `gorm:"not null" json:"start_date"`
	EndDate           *time.Time              `json:"end_date,omitempty"`
	IsActive          bool                    `gorm:"not null;default:true;index" json:"is_active"`
	Interval          recurrence.IntervalKind `gorm:"not null" json:"interval"`
	IntervalValue     int                     `gorm:"not null" json:"interval_value"`
	IntervalLabel     string                  `json:"interval_label"`
	NextExecutionDate time.Time               `gorm:"not null" json:"next_execution_date"`
	LastExecutionDate *time.Time              `json:"last_execution_date,omitempty"`
}

// Schedule returns the recurrence schedule. A stored interval that no longer
// parses yields a zero interval, which is never due.
func (r RecurrentTransaction) Schedule() recurrence.Schedule {
	iv, err := recurrence.ParseInterval(string(r.Interval), r.IntervalValue, r.IntervalLabel)
	if err != nil {
		iv = recurrence.Interval{}
	}
	return recurrence.Schedule{
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Interval:  iv,
	}
}

// SetInterval stores iv on the template.
func (r *RecurrentTransaction) SetInterval(iv recurrence.Interval) {
	r.Interval = iv.Kind()
	r.IntervalValue = iv.Months()
	r.IntervalLabel = iv.Label()
}
