package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/logger"
	"budgetwise/internal/models"
)

type materializer struct {
	budgets  BudgetServicer
	resolver TemplateResolver
}

// NewMaterializer creates a Materializer on top of the budget store.
func NewMaterializer(budgets BudgetServicer, resolver TemplateResolver) Materializer {
	return &materializer{budgets: budgets, resolver: resolver}
}

func (r *MaterializeResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Materialize records template's occurrence for the month of targetDate,
// creating the month's budget from an earlier one when needed. Running it
// twice for the same template and month creates one transaction.
func (m *materializer) Materialize(userID string, template *models.RecurrentTransaction, targetDate time.Time) MaterializeResult {
	result := MaterializeResult{Warnings: []string{}}
	month, year := int(targetDate.Month()), targetDate.Year()
	period := fmt.Sprintf("%04d-%02d", year, month)
	log := logger.Get().With("user_id", userID, "recurrence_id", template.ID, "period", period)

	budget := m.targetBudget(userID, template, month, year, &result, log)
	if budget == nil {
		return result
	}

	category := m.resolveCategory(userID, budget, template.CategoryID, log)
	if category == nil {
		result.warnf("%q: category not found in budget %s", template.Description, period)
		return result
	}

	if budget.RecurrentTransaction(template.ID) != nil {
		result.warnf("%q: already recorded in %s", template.Description, period)
		return result
	}

	recurrenceID := template.ID
	txn, err := m.budgets.AddTransaction(userID, budget.ID, TransactionInput{
		Type:         template.Type,
		Amount:       template.Amount,
		Description:  template.Description,
		CategoryID:   category.ID,
		Date:         targetDate,
		IsRecurrent:  true,
		RecurrenceID: &recurrenceID,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrDuplicateOccurrence) {
			result.warnf("%q: already recorded in %s", template.Description, period)
			return result
		}
		log.Errorw("failed to create recurring transaction", "error", err)
		result.warnf("%q: failed to create transaction for %s", template.Description, period)
		return result
	}

	result.TransactionsCreated++
	log.Debugw("recurring transaction materialized", "transaction_id", txn.ID, "budget_id", budget.ID)
	return result
}

// targetBudget returns the budget for (month, year). A missing budget is
// created from the closest earlier one, along with any empty months between.
func (m *materializer) targetBudget(userID string, template *models.RecurrentTransaction, month, year int, result *MaterializeResult, log *zap.SugaredLogger) *models.MonthlyBudget {
	period := fmt.Sprintf("%04d-%02d", year, month)

	budget, err := m.budgets.GetBudgetByMonth(userID, month, year)
	if err == nil {
		result.BudgetsUpdated++
		return budget
	}
	if !apperrors.HasCode(err, apperrors.ErrBudgetNotFound) {
		log.Errorw("failed to load target budget", "error", err)
		result.warnf("%q: failed to load budget for %s", template.Description, period)
		return nil
	}

	source, err := m.resolver.ResolveTemplateBudget(userID, month, year)
	if err != nil {
		log.Errorw("failed to resolve template budget", "error", err)
		result.warnf("%q: failed to look up a budget to copy for %s", template.Description, period)
		return nil
	}
	if source == nil {
		result.warnf("%q: no budget for %s and no earlier budget to copy", template.Description, period)
		return nil
	}

	for _, gap := range gapMonths(source, month, year) {
		if _, err := m.resolver.CreateFromTemplate(userID, source, gap[0], gap[1]); err != nil {
			if !apperrors.HasCode(err, apperrors.ErrDuplicateBudget) {
				log.Warnw("failed to create intermediate budget", "month", gap[0], "year", gap[1], "error", err)
				result.warnf("failed to create budget for %04d-%02d", gap[1], gap[0])
			}
			continue
		}
		result.BudgetsCreated++
	}

	budget, err = m.resolver.CreateFromTemplate(userID, source, month, year)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrDuplicateBudget) {
			if existing, getErr := m.budgets.GetBudgetByMonth(userID, month, year); getErr == nil {
				result.BudgetsUpdated++
				return existing
			}
		}
		log.Errorw("failed to create budget from template", "source_budget_id", source.ID, "error", err)
		result.warnf("%q: failed to create budget for %s", template.Description, period)
		return nil
	}

	result.BudgetsCreated++
	return budget
}

// resolveCategory finds the template's category in budget, by id or else by
// the name and type of the original category in any of the user's budgets.
func (m *materializer) resolveCategory(userID string, budget *models.MonthlyBudget, categoryID string, log *zap.SugaredLogger) *models.Category {
	if c := budget.FindCategory(categoryID); c != nil {
		return c
	}

	budgets, err := m.budgets.ListUserBudgets(userID)
	if err != nil {
		log.Errorw("failed to list budgets for category lookup", "error", err)
		return nil
	}
	for i := range budgets {
		if original := budgets[i].FindCategory(categoryID); original != nil {
			return budget.FindCategoryByName(original.Name, original.Type)
		}
	}
	return nil
}
