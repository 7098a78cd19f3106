package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgetwise/internal/cache"
	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/logger"
	"budgetwise/internal/models"
	"budgetwise/internal/pagination"
)

// budgetService handles monthly budgets and everything they own.
type budgetService struct {
	db    *gorm.DB
	cache cache.Store
}

// NewBudgetService creates a new BudgetServicer. Summaries are cached in store;
// a nil store disables caching.
func NewBudgetService(db *gorm.DB, store cache.Store) BudgetServicer {
	if store == nil {
		store = cache.Nop{}
	}
	return &budgetService{db: db, cache: store}
}

func summaryKey(budgetID string) string {
	return "summary:" + budgetID
}

func (s *budgetService) invalidateSummary(budgetID string) {
	s.cache.Delete(context.Background(), summaryKey(budgetID))
}

// GetUserBudgets returns a paginated list of the user's budgets, newest first.
func (s *budgetService) GetUserBudgets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.MonthlyBudget], error) {
	base := s.db.Model(&models.MonthlyBudget{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.MonthlyBudget](base, page, func(db *gorm.DB) *gorm.DB {
		return db.Preload("Categories").Order("year DESC, month DESC")
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// ListUserBudgets returns all of the user's budgets with their categories.
func (s *budgetService) ListUserBudgets(userID string) ([]models.MonthlyBudget, error) {
	var budgets []models.MonthlyBudget
	if err := s.db.Preload("Categories").
		Where("user_id = ?", userID).
		Order("year DESC, month DESC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budgets, nil
}

// GetBudgetByID returns a budget with its categories and transactions if it
// belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.MonthlyBudget, error) {
	return s.findBudget(s.db.Where("id = ? AND user_id = ?", budgetID, userID))
}

// GetBudgetByMonth returns the user's budget for the given month.
func (s *budgetService) GetBudgetByMonth(userID string, month, year int) (*models.MonthlyBudget, error) {
	return s.findBudget(s.db.Where("user_id = ? AND month = ? AND year = ?", userID, month, year))
}

func (s *budgetService) findBudget(query *gorm.DB) (*models.MonthlyBudget, error) {
	var budget models.MonthlyBudget
	err := query.
		Preload("Categories").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// CreateMonthlyBudget creates a budget together with its categories.
func (s *budgetService) CreateMonthlyBudget(userID string, input CreateBudgetInput) (*models.MonthlyBudget, error) {
	if err := validatePeriod(input.Month, input.Year); err != nil {
		return nil, err
	}
	if input.TotalIncome.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "total income cannot be negative")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = defaultBudgetName(input.Month, input.Year)
	}

	budget := &models.MonthlyBudget{
		UserID:      userID,
		Name:        name,
		Month:       input.Month,
		Year:        input.Year,
		TotalIncome: input.TotalIncome,
		IsTemplate:  input.IsTemplate,
	}
	for _, c := range input.Categories {
		category, err := newCategory(c)
		if err != nil {
			return nil, err
		}
		budget.Categories = append(budget.Categories, *category)
	}

	if err := insertBudget(s.db, budget); err != nil {
		return nil, err
	}

	logger.Get().Infow("monthly budget created", "user_id", userID, "budget_id", budget.ID, "month", budget.Month, "year", budget.Year)
	budget.Transactions = []models.Transaction{}
	return budget, nil
}

// insertBudget stores budget and its categories, mapping the per-month unique
// index to ErrDuplicateBudget.
func insertBudget(db *gorm.DB, budget *models.MonthlyBudget) error {
	var count int64
	if err := db.Model(&models.MonthlyBudget{}).
		Where("user_id = ? AND month = ? AND year = ?", budget.UserID, budget.Month, budget.Year).
		Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateBudget
	}

	if err := db.Create(budget).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateBudget
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// UpdateMonthlyBudget updates a budget's name, planned income, or template flag.
func (s *budgetService) UpdateMonthlyBudget(userID, budgetID string, updates BudgetUpdate) (*models.MonthlyBudget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if updates.Name != nil {
		name := strings.TrimSpace(*updates.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name cannot be empty")
		}
		fields["name"] = name
	}
	if updates.TotalIncome != nil {
		if updates.TotalIncome.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "total income cannot be negative")
		}
		fields["total_income"] = *updates.TotalIncome
	}
	if updates.IsTemplate != nil {
		fields["is_template"] = *updates.IsTemplate
	}

	if len(fields) > 0 {
		if err := s.db.Model(budget).Updates(fields).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		s.invalidateSummary(budget.ID)
	}

	return s.GetBudgetByID(userID, budgetID)
}

// DeleteBudget permanently removes a budget with its categories and
// transactions.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("budget_id = ?", budget.ID).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("budget_id = ?", budget.ID).Delete(&models.Category{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(budget).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.invalidateSummary(budget.ID)
	logger.Get().Infow("monthly budget deleted", "user_id", userID, "budget_id", budget.ID)
	return nil
}

// AddCategory adds a category to one of the user's budgets.
func (s *budgetService) AddCategory(userID, budgetID string, input CategoryInput) (*models.Category, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	category, err := newCategory(input)
	if err != nil {
		return nil, err
	}
	category.BudgetID = budget.ID

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s.invalidateSummary(budget.ID)
	return category, nil
}

// UpdateCategory updates a category's descriptive fields or planned amount.
func (s *budgetService) UpdateCategory(userID, budgetID, categoryID string, updates CategoryUpdate) (*models.Category, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	category := budget.FindCategory(categoryID)
	if category == nil {
		return nil, apperrors.ErrCategoryNotFound
	}

	fields := make(map[string]interface{})
	if updates.Name != nil {
		name := strings.TrimSpace(*updates.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		fields["name"] = name
	}
	if updates.Description != nil {
		fields["description"] = *updates.Description
	}
	if updates.Color != nil {
		fields["color"] = *updates.Color
	}
	if updates.Icon != nil {
		fields["icon"] = *updates.Icon
	}
	if updates.BudgetAmount != nil {
		if updates.BudgetAmount.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount cannot be negative")
		}
		fields["budget_amount"] = *updates.BudgetAmount
	}

	if len(fields) > 0 {
		if err := s.db.Model(category).Updates(fields).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		s.invalidateSummary(budget.ID)
	}
	return category, nil
}

// DeleteCategory removes a category that no transaction references.
func (s *budgetService) DeleteCategory(userID, budgetID, categoryID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}
	category := budget.FindCategory(categoryID)
	if category == nil {
		return apperrors.ErrCategoryNotFound
	}

	for _, t := range budget.Transactions {
		if t.CategoryID == category.ID {
			return apperrors.ErrCategoryInUse
		}
	}

	if err := s.db.Unscoped().Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s.invalidateSummary(budget.ID)
	return nil
}

// AddTransaction records a transaction in one of the user's budgets. A second
// transaction from the same recurring template in the same budget is
// rejected with ErrDuplicateOccurrence.
func (s *budgetService) AddTransaction(userID, budgetID string, input TransactionInput) (*models.Transaction, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	if !input.Type.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "type must be income or expense")
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be positive")
	}
	if budget.FindCategory(input.CategoryID) == nil {
		return nil, apperrors.ErrCategoryNotFound
	}
	if input.RecurrenceID != nil && budget.RecurrentTransaction(*input.RecurrenceID) != nil {
		return nil, apperrors.ErrDuplicateOccurrence
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	txn := &models.Transaction{
		UserID:       userID,
		BudgetID:     budget.ID,
		CategoryID:   input.CategoryID,
		Type:         input.Type,
		Amount:       input.Amount,
		Description:  strings.TrimSpace(input.Description),
		Date:         date,
		IsRecurrent:  input.IsRecurrent || input.RecurrenceID != nil,
		RecurrenceID: input.RecurrenceID,
	}

	if err := s.db.Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateOccurrence
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.invalidateSummary(budget.ID)
	return txn, nil
}

// UpdateTransaction edits a transaction's amount, description, category, or date.
func (s *budgetService) UpdateTransaction(userID, budgetID, transactionID string, updates TransactionUpdate) (*models.Transaction, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	txn := findTransaction(budget, transactionID)
	if txn == nil {
		return nil, apperrors.ErrTransactionNotFound
	}

	fields := make(map[string]interface{})
	if updates.Amount != nil {
		if !updates.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be positive")
		}
		fields["amount"] = *updates.Amount
	}
	if updates.Description != nil {
		fields["description"] = strings.TrimSpace(*updates.Description)
	}
	if updates.CategoryID != nil {
		if budget.FindCategory(*updates.CategoryID) == nil {
			return nil, apperrors.ErrCategoryNotFound
		}
		fields["category_id"] = *updates.CategoryID
	}
	if updates.Date != nil {
		fields["date"] = *updates.Date
	}

	if len(fields) > 0 {
		if err := s.db.Model(txn).Updates(fields).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		s.invalidateSummary(budget.ID)
	}
	return txn, nil
}

// DeleteTransaction permanently removes a transaction from a budget.
func (s *budgetService) DeleteTransaction(userID, budgetID, transactionID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}
	txn := findTransaction(budget, transactionID)
	if txn == nil {
		return apperrors.ErrTransactionNotFound
	}

	if err := s.db.Unscoped().Delete(txn).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s.invalidateSummary(budget.ID)
	return nil
}

// GetBudgetSummary totals a budget's transactions per category. Results are
// served from the cache until the budget changes.
func (s *budgetService) GetBudgetSummary(userID, budgetID string) (*BudgetSummary, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if raw, ok := s.cache.Get(ctx, summaryKey(budget.ID)); ok {
		var cached BudgetSummary
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		logger.Get().Warnw("discarding unreadable cached summary", "budget_id", budget.ID)
	}

	summary := summarize(budget)
	if raw, err := json.Marshal(summary); err == nil {
		s.cache.Set(ctx, summaryKey(budget.ID), raw)
	}
	return summary, nil
}

func summarize(budget *models.MonthlyBudget) *BudgetSummary {
	spent := make(map[string]decimal.Decimal, len(budget.Categories))
	actualIncome := decimal.Zero
	expenses := decimal.Zero

	for _, t := range budget.Transactions {
		spent[t.CategoryID] = spent[t.CategoryID].Add(t.Amount)
		switch t.Type {
		case models.TransactionTypeIncome:
			actualIncome = actualIncome.Add(t.Amount)
		case models.TransactionTypeExpense:
			expenses = expenses.Add(t.Amount)
		}
	}

	categories := make([]CategorySummary, 0, len(budget.Categories))
	for _, c := range budget.Categories {
		total := spent[c.ID]
		categories = append(categories, CategorySummary{
			CategoryID: c.ID,
			Name:       c.Name,
			Type:       c.Type,
			Budgeted:   c.BudgetAmount,
			Spent:      total,
			Remaining:  c.BudgetAmount.Sub(total),
		})
	}

	return &BudgetSummary{
		BudgetID:      budget.ID,
		Month:         budget.Month,
		Year:          budget.Year,
		TotalIncome:   budget.TotalIncome,
		ActualIncome:  actualIncome,
		TotalExpenses: expenses,
		Balance:       budget.TotalIncome.Sub(expenses),
		Categories:    categories,
	}
}

func findTransaction(budget *models.MonthlyBudget, id string) *models.Transaction {
	for i := range budget.Transactions {
		if budget.Transactions[i].ID == id {
			return &budget.Transactions[i]
		}
	}
	return nil
}

func newCategory(input CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !input.Type.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be income or expense")
	}
	if input.BudgetAmount.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount cannot be negative")
	}
	return &models.Category{
		Name:         name,
		Description:  input.Description,
		Color:        input.Color,
		Icon:         input.Icon,
		BudgetAmount: input.BudgetAmount,
		Type:         input.Type,
	}, nil
}

func validatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "year is out of range")
	}
	return nil
}

func defaultBudgetName(month, year int) string {
	return fmt.Sprintf("%s %d", time.Month(month), year)
}
