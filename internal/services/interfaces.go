package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/models"
	"budgetwise/internal/pagination"
	"budgetwise/internal/recurrence"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	ListActiveUserIDs() ([]string, error)
}

// CategoryInput describes a category to create inside a budget.
type CategoryInput struct {
	Name         string
	Description  string
	Color        string
	Icon         string
	BudgetAmount decimal.Decimal
	Type         models.CategoryType
}

// CreateBudgetInput describes a new monthly budget.
type CreateBudgetInput struct {
	Name        string
	Month       int
	Year        int
	TotalIncome decimal.Decimal
	IsTemplate  bool
	Categories  []CategoryInput
}

// BudgetUpdate holds the optional fields of a budget update.
type BudgetUpdate struct {
	Name        *string
	TotalIncome *decimal.Decimal
	IsTemplate  *bool
}

// CategoryUpdate holds the optional fields of a category update.
type CategoryUpdate struct {
	Name         *string
	Description  *string
	Color        *string
	Icon         *string
	BudgetAmount *decimal.Decimal
}

// TransactionInput describes a transaction to add to a budget.
type TransactionInput struct {
	Type         models.TransactionType
	Amount       decimal.Decimal
	Description  string
	CategoryID   string
	Date         time.Time
	IsRecurrent  bool
	RecurrenceID *string
}

// TransactionUpdate holds the optional fields of a transaction update.
type TransactionUpdate struct {
	Amount      *decimal.Decimal
	Description *string
	CategoryID  *string
	Date        *time.Time
}

// CategorySummary is the budgeted/spent view of one category.
type CategorySummary struct {
	CategoryID string              `json:"category_id"`
	Name       string              `json:"name"`
	Type       models.CategoryType `json:"type"`
	Budgeted   decimal.Decimal     `json:"budgeted"`
	Spent      decimal.Decimal     `json:"spent"`
	Remaining  decimal.Decimal     `json:"remaining"`
}

// BudgetSummary aggregates a monthly budget. It is derived on read and only
// ever cached, never stored.
type BudgetSummary struct {
	BudgetID      string            `json:"budget_id"`
	Month         int               `json:"month"`
	Year          int               `json:"year"`
	TotalIncome   decimal.Decimal   `json:"total_income"`
	ActualIncome  decimal.Decimal   `json:"actual_income"`
	TotalExpenses decimal.Decimal   `json:"total_expenses"`
	Balance       decimal.Decimal   `json:"balance"`
	Categories    []CategorySummary `json:"categories"`
}

// BudgetServicer is the budget store: monthly budgets with their categories
// and transactions. Every method is scoped to one user; another user's
// budget is reported as not found.
type BudgetServicer interface {
	GetUserBudgets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.MonthlyBudget], error)
	ListUserBudgets(userID string) ([]models.MonthlyBudget, error)
	GetBudgetByID(userID, budgetID string) (*models.MonthlyBudget, error)
	GetBudgetByMonth(userID string, month, year int) (*models.MonthlyBudget, error)
	CreateMonthlyBudget(userID string, input CreateBudgetInput) (*models.MonthlyBudget, error)
	UpdateMonthlyBudget(userID, budgetID string, updates BudgetUpdate) (*models.MonthlyBudget, error)
	DeleteBudget(userID, budgetID string) error

	AddCategory(userID, budgetID string, input CategoryInput) (*models.Category, error)
	UpdateCategory(userID, budgetID, categoryID string, updates CategoryUpdate) (*models.Category, error)
	DeleteCategory(userID, budgetID, categoryID string) error

	AddTransaction(userID, budgetID string, input TransactionInput) (*models.Transaction, error)
	UpdateTransaction(userID, budgetID, transactionID string, updates TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(userID, budgetID, transactionID string) error

	GetBudgetSummary(userID, budgetID string) (*BudgetSummary, error)
}

// CreateRecurrentInput describes a new recurring transaction template.
type CreateRecurrentInput struct {
	Type        models.TransactionType
	Amount      decimal.Decimal
	Description string
	CategoryID  string
	StartDate   time.Time
	EndDate     *time.Time
	Interval    recurrence.Interval
}

// RecurrentUpdate holds the optional fields of a template update. The
// execution cursor fields are set by the recurrence processor.
type RecurrentUpdate struct {
	Type              *models.TransactionType
	Amount            *decimal.Decimal
	Description       *string
	CategoryID        *string
	StartDate         *time.Time
	EndDate           *time.Time
	ClearEndDate      bool
	Interval          *recurrence.Interval
	IsActive          *bool
	NextExecutionDate *time.Time
	LastExecutionDate *time.Time
}

// RecurrentTransactionServicer stores recurring transaction templates.
type RecurrentTransactionServicer interface {
	CreateRecurrentTransaction(userID string, input CreateRecurrentInput) (*models.RecurrentTransaction, error)
	GetRecurrentTransactions(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.RecurrentTransaction], error)
	GetActiveRecurrentTransactions(userID string) ([]models.RecurrentTransaction, error)
	GetRecurrentTransactionByID(userID, id string) (*models.RecurrentTransaction, error)
	UpdateRecurrentTransaction(userID, id string, updates RecurrentUpdate) (*models.RecurrentTransaction, error)
	SetActive(userID, id string, active bool) (*models.RecurrentTransaction, error)
	DeleteRecurrentTransaction(userID, id string, cascade bool) (int64, error)
}

// TemplateResolver finds a prior month's budget to copy and instantiates new
// budgets from it.
type TemplateResolver interface {
	ResolveTemplateBudget(userID string, month, year int) (*models.MonthlyBudget, error)
	CreateFromTemplate(userID string, source *models.MonthlyBudget, month, year int) (*models.MonthlyBudget, error)
	CreateFromPreviousMonth(userID string, month, year int) (*models.MonthlyBudget, error)
}

// MaterializeResult reports what one materialization did. Problems are
// reported as warnings; materialization itself never fails.
type MaterializeResult struct {
	TransactionsCreated int      `json:"transactions_created"`
	BudgetsCreated      int      `json:"budgets_created"`
	BudgetsUpdated      int      `json:"budgets_updated"`
	Warnings            []string `json:"warnings"`
}

// Materializer turns one template occurrence into a transaction.
type Materializer interface {
	Materialize(userID string, template *models.RecurrentTransaction, targetDate time.Time) MaterializeResult
}

// ProcessTarget selects the month of a batch run. Month and Year together
// take priority over Date; with neither the current month is used.
type ProcessTarget struct {
	Date  *time.Time
	Month *int
	Year  *int
}

// ProcessResult aggregates a batch run across templates.
type ProcessResult struct {
	TransactionsCreated int      `json:"transactions_created"`
	BudgetsCreated      int      `json:"budgets_created"`
	BudgetsUpdated      int      `json:"budgets_updated"`
	Warnings            []string `json:"warnings"`
	Success             bool     `json:"success"`
}

// ExecutionStatus tells whether a template produced a transaction in a month.
type ExecutionStatus struct {
	Executed      bool   `json:"executed"`
	TransactionID string `json:"transaction_id,omitempty"`
	BudgetID      string `json:"budget_id,omitempty"`
}

// RecurrenceProcessor runs templates for a month and offers single-template
// corrections.
type RecurrenceProcessor interface {
	Process(ctx context.Context, userID string, target ProcessTarget) (*ProcessResult, error)
	RegenerateDeletedTransaction(ctx context.Context, userID, recurrenceID string, month, year int) (*MaterializeResult, error)
	IsExecutedInMonth(userID, recurrenceID string, month, year int) (*ExecutionStatus, error)
	Unexecute(ctx context.Context, userID, recurrenceID string, month, year int) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
