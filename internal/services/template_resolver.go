package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/logger"
	"budgetwise/internal/models"
	"budgetwise/internal/recurrence"
)

// DefaultTemplateSearchMonths is how far back ResolveTemplateBudget looks
// when no other bound is configured.
const DefaultTemplateSearchMonths = 6

type templateResolver struct {
	db           *gorm.DB
	searchMonths int
}

// NewTemplateResolver creates a TemplateResolver that searches up to
// searchMonths months back for a budget to copy.
func NewTemplateResolver(db *gorm.DB, searchMonths int) TemplateResolver {
	if searchMonths < 1 {
		searchMonths = DefaultTemplateSearchMonths
	}
	return &templateResolver{db: db, searchMonths: searchMonths}
}

// ResolveTemplateBudget returns the closest budget in the months before
// (month, year), or nil when none exists within the search window.
func (r *templateResolver) ResolveTemplateBudget(userID string, month, year int) (*models.MonthlyBudget, error) {
	if err := validatePeriod(month, year); err != nil {
		return nil, err
	}

	// Months are compared as year*12+month so the window can span a year boundary.
	target := year*12 + month
	var budget models.MonthlyBudget
	err := r.db.Preload("Categories").
		Where("user_id = ?", userID).
		Where("year * 12 + month < ? AND year * 12 + month >= ?", target, target-r.searchMonths).
		Order("year DESC, month DESC").
		First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// CreateFromTemplate creates the budget for (month, year) as a copy of source.
// Categories get new ids; transactions are not copied.
func (r *templateResolver) CreateFromTemplate(userID string, source *models.MonthlyBudget, month, year int) (*models.MonthlyBudget, error) {
	if source == nil || source.UserID != userID {
		return nil, apperrors.ErrBudgetNotFound
	}
	if err := validatePeriod(month, year); err != nil {
		return nil, err
	}

	budget := &models.MonthlyBudget{
		UserID:      userID,
		Name:        defaultBudgetName(month, year),
		Month:       month,
		Year:        year,
		TotalIncome: source.TotalIncome,
		Categories:  make([]models.Category, 0, len(source.Categories)),
	}
	for _, c := range source.Categories {
		budget.Categories = append(budget.Categories, models.Category{
			Name:         c.Name,
			Description:  c.Description,
			Color:        c.Color,
			Icon:         c.Icon,
			BudgetAmount: c.BudgetAmount,
			Type:         c.Type,
		})
	}

	if err := insertBudget(r.db, budget); err != nil {
		return nil, err
	}

	logger.Get().Infow("budget created from template",
		"user_id", userID,
		"budget_id", budget.ID,
		"source_budget_id", source.ID,
		"month", month,
		"year", year,
	)
	budget.Transactions = []models.Transaction{}
	return budget, nil
}

// CreateFromPreviousMonth copies the closest earlier budget into (month, year).
func (r *templateResolver) CreateFromPreviousMonth(userID string, month, year int) (*models.MonthlyBudget, error) {
	if err := validatePeriod(month, year); err != nil {
		return nil, err
	}

	var count int64
	if err := r.db.Model(&models.MonthlyBudget{}).
		Where("user_id = ? AND month = ? AND year = ?", userID, month, year).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateBudget
	}

	source, err := r.ResolveTemplateBudget(userID, month, year)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apperrors.ErrNoTemplateBudget
	}
	return r.CreateFromTemplate(userID, source, month, year)
}

// monthsBetween counts calendar months from budget's period to (month, year).
func monthsBetween(budget *models.MonthlyBudget, month, year int) int {
	return (year*12 + month) - (budget.Year*12 + budget.Month)
}

// gapMonths lists the months strictly between budget's period and (month, year).
func gapMonths(budget *models.MonthlyBudget, month, year int) [][2]int {
	n := monthsBetween(budget, month, year)
	if n <= 1 {
		return nil
	}
	gaps := make([][2]int, 0, n-1)
	for i := 1; i < n; i++ {
		m, y := recurrence.ShiftMonth(time.Month(budget.Month), budget.Year, i)
		gaps = append(gaps, [2]int{int(m), y})
	}
	return gaps
}
