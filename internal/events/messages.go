// Package events publishes notifications about recurrence runs so other
// services (notifications, analytics) can react without polling.
package events

import (
	"encoding/json"
	"time"
)

// RecurrenceProcessed is emitted after a batch run for one user and month.
type RecurrenceProcessed struct {
	UserID              string    `json:"user_id"`
	Month               int       `json:"month"`
	Year                int       `json:"year"`
	TransactionsCreated int       `json:"transactions_created"`
	BudgetsCreated      int       `json:"budgets_created"`
	BudgetsUpdated      int       `json:"budgets_updated"`
	Warnings            []string  `json:"warnings,omitempty"`
	ProcessedAt         time.Time `json:"processed_at"`
}

// ToJSON encodes the message.
func (m *RecurrenceProcessed) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecurrenceProcessedFromJSON decodes a message body.
func RecurrenceProcessedFromJSON(data []byte) (*RecurrenceProcessed, error) {
	var msg RecurrenceProcessed
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
