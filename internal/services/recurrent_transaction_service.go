package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"budgetwise/internal/cache"
	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/logger"
	"budgetwise/internal/models"
	"budgetwise/internal/pagination"
	"budgetwise/internal/recurrence"
)

// recurrentTransactionService stores recurring transaction templates.
type recurrentTransactionService struct {
	db    *gorm.DB
	cache cache.Store
	now   func() time.Time
}

// NewRecurrentTransactionService creates a new RecurrentTransactionServicer.
// store must be the summary cache used by the budget service, since a
// cascading delete changes budget totals; a nil store disables invalidation.
func NewRecurrentTransactionService(db *gorm.DB, store cache.Store) RecurrentTransactionServicer {
	if store == nil {
		store = cache.Nop{}
	}
	return &recurrentTransactionService{db: db, cache: store, now: time.Now}
}

// CreateRecurrentTransaction validates and stores a template. Its first
// execution is the start date, or the next due date when the start is past.
func (s *recurrentTransactionService) CreateRecurrentTransaction(userID string, input CreateRecurrentInput) (*models.RecurrentTransaction, error) {
	r := &models.RecurrentTransaction{
		UserID:      userID,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: strings.TrimSpace(input.Description),
		CategoryID:  input.CategoryID,
		StartDate:   recurrence.Midnight(input.StartDate),
		EndDate:     midnightPtr(input.EndDate),
		IsActive:    true,
	}
	r.SetInterval(input.Interval)

	if err := validateRecurrent(r); err != nil {
		return nil, err
	}
	r.NextExecutionDate = recurrence.FirstExecutionDate(r.Schedule(), s.now())

	if err := s.db.Create(r).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("recurring transaction created",
		"user_id", userID,
		"recurrence_id", r.ID,
		"interval", r.IntervalLabel,
		"next_execution_date", r.NextExecutionDate,
	)
	return r, nil
}

// GetRecurrentTransactions returns a paginated list of the user's templates.
func (s *recurrentTransactionService) GetRecurrentTransactions(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.RecurrentTransaction], error) {
	base := s.db.Model(&models.RecurrentTransaction{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.RecurrentTransaction](base, page, func(db *gorm.DB) *gorm.DB {
		return db.Order("next_execution_date ASC")
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetActiveRecurrentTransactions returns every active template of the user.
func (s *recurrentTransactionService) GetActiveRecurrentTransactions(userID string) ([]models.RecurrentTransaction, error) {
	var templates []models.RecurrentTransaction
	if err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return templates, nil
}

// GetRecurrentTransactionByID returns a template if it belongs to the user.
func (s *recurrentTransactionService) GetRecurrentTransactionByID(userID, id string) (*models.RecurrentTransaction, error) {
	var r models.RecurrentTransaction
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurrentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &r, nil
}

// UpdateRecurrentTransaction applies updates and re-validates the template.
// Changing the start date or interval reseeds the next execution date.
func (s *recurrentTransactionService) UpdateRecurrentTransaction(userID, id string, updates RecurrentUpdate) (*models.RecurrentTransaction, error) {
	r, err := s.GetRecurrentTransactionByID(userID, id)
	if err != nil {
		return nil, err
	}

	reseed := false
	if updates.Type != nil {
		r.Type = *updates.Type
	}
	if updates.Amount != nil {
		r.Amount = *updates.Amount
	}
	if updates.Description != nil {
		r.Description = strings.TrimSpace(*updates.Description)
	}
	if updates.CategoryID != nil {
		r.CategoryID = *updates.CategoryID
	}
	if updates.StartDate != nil {
		r.StartDate = recurrence.Midnight(*updates.StartDate)
		reseed = true
	}
	if updates.ClearEndDate {
		r.EndDate = nil
	} else if updates.EndDate != nil {
		r.EndDate = midnightPtr(updates.EndDate)
	}
	if updates.Interval != nil {
		r.SetInterval(*updates.Interval)
		reseed = true
	}
	if updates.IsActive != nil {
		r.IsActive = *updates.IsActive
	}
	if updates.LastExecutionDate != nil {
		last := *updates.LastExecutionDate
		r.LastExecutionDate = &last
	}

	if err := validateRecurrent(r); err != nil {
		return nil, err
	}

	switch {
	case updates.NextExecutionDate != nil:
		r.NextExecutionDate = *updates.NextExecutionDate
	case reseed:
		r.NextExecutionDate = recurrence.FirstExecutionDate(r.Schedule(), s.now())
	}

	// Save writes every column so end_date and last_execution_date can be cleared.
	if err := s.db.Save(r).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return r, nil
}

// SetActive pauses or resumes a template. Resuming moves a stale cursor
// forward to the next due date.
func (s *recurrentTransactionService) SetActive(userID, id string, active bool) (*models.RecurrentTransaction, error) {
	r, err := s.GetRecurrentTransactionByID(userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"is_active": active}
	if active {
		today := recurrence.Midnight(s.now())
		if r.NextExecutionDate.Before(today) {
			fields["next_execution_date"] = recurrence.FirstExecutionDate(r.Schedule(), today)
		}
	}

	if err := s.db.Model(r).Updates(fields).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("recurring transaction state changed", "user_id", userID, "recurrence_id", id, "is_active", active)
	return r, nil
}

// DeleteRecurrentTransaction removes a template. With cascade, every
// transaction it produced is removed too; otherwise they are kept. It returns
// the number of transactions removed.
func (s *recurrentTransactionService) DeleteRecurrentTransaction(userID, id string, cascade bool) (int64, error) {
	r, err := s.GetRecurrentTransactionByID(userID, id)
	if err != nil {
		return 0, err
	}

	var (
		removed   int64
		budgetIDs []string
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if cascade {
			if err := tx.Model(&models.Transaction{}).
				Where("user_id = ? AND recurrence_id = ?", userID, r.ID).
				Distinct().
				Pluck("budget_id", &budgetIDs).Error; err != nil {
				return err
			}
			res := tx.Unscoped().
				Where("user_id = ? AND recurrence_id = ?", userID, r.ID).
				Delete(&models.Transaction{})
			if res.Error != nil {
				return res.Error
			}
			removed = res.RowsAffected
		}
		return tx.Unscoped().Delete(r).Error
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if len(budgetIDs) > 0 {
		keys := make([]string, len(budgetIDs))
		for i, id := range budgetIDs {
			keys[i] = summaryKey(id)
		}
		s.cache.Delete(context.Background(), keys...)
	}

	logger.Get().Infow("recurring transaction deleted", "user_id", userID, "recurrence_id", id, "cascade", cascade, "transactions_removed", removed)
	return removed, nil
}

func validateRecurrent(r *models.RecurrentTransaction) error {
	switch {
	case !r.Type.Valid():
		return apperrors.WithMessage(apperrors.ErrInvalidRecurrence, "type must be income or expense")
	case !r.Amount.IsPositive():
		return apperrors.WithMessage(apperrors.ErrInvalidRecurrence, "amount must be positive")
	case r.Description == "":
		return apperrors.WithMessage(apperrors.ErrInvalidRecurrence, "description is required")
	case r.CategoryID == "":
		return apperrors.WithMessage(apperrors.ErrInvalidRecurrence, "category is required")
	case r.StartDate.IsZero():
		return apperrors.WithMessage(apperrors.ErrInvalidRecurrence, "start date is required")
	case r.IntervalValue <= 0:
		return apperrors.WithMessage(apperrors.ErrInvalidRecurrence, "interval must be at least one month")
	case r.EndDate != nil && !r.EndDate.After(r.StartDate):
		return apperrors.WithMessage(apperrors.ErrInvalidRecurrence, "end date must be after start date")
	}
	if _, err := recurrence.ParseInterval(string(r.Interval), r.IntervalValue, r.IntervalLabel); err != nil {
		return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidRecurrence, err.Error()), err)
	}
	return nil
}

func midnightPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	m := recurrence.Midnight(*t)
	return &m
}
