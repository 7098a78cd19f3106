package models

// User represents the user model in the database
type User struct {
	Base
	Email     string          `gorm:"uniqueIndex;not null" json:"email"`
	Password  string          `gorm:"not null" json:"-"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	IsActive  bool            `gorm:"default:true" json:"is_active"`
	Budgets   []MonthlyBudget `gorm:"foreignKey:UserID" json:"budgets,omitempty"`
}
