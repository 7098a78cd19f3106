package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/models"
	"budgetwise/internal/pagination"
	"budgetwise/internal/recurrence"
	"budgetwise/internal/services"
	"budgetwise/internal/worker"
)

const (
	defaultUpcomingCount = 6
	maxUpcomingCount     = 24
)

// BatchRunner runs the recurring batch for every active user.
type BatchRunner interface {
	RunAll(ctx context.Context, target services.ProcessTarget) (*worker.RunSummary, error)
}

// RecurringHandler handles recurring transaction templates and their
// materialization.
type RecurringHandler struct {
	recurrentService services.RecurrentTransactionServicer
	processor        services.RecurrenceProcessor
	runner           BatchRunner
	auditService     services.AuditServicer
	now              func() time.Time
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(
	recurrentService services.RecurrentTransactionServicer,
	processor services.RecurrenceProcessor,
	runner BatchRunner,
	auditService services.AuditServicer,
) *RecurringHandler {
	return &RecurringHandler{
		recurrentService: recurrentService,
		processor:        processor,
		runner:           runner,
		auditService:     auditService,
		now:              time.Now,
	}
}

// CreateRecurringRequest represents the request payload for creating a template.
type CreateRecurringRequest struct {
	Type          models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount        decimal.Decimal        `json:"amount" binding:"required,gt=0,money"`
	Description   string                 `json:"description" binding:"required,min=1,max=255"`
	CategoryID    string                 `json:"category_id" binding:"required,uuid"`
	StartDate     time.Time              `json:"start_date" binding:"required"`
	EndDate       *time.Time             `json:"end_date"`
	Interval      string                 `json:"interval" binding:"required,recurrence_interval"`
	IntervalValue int                    `json:"interval_value" binding:"omitempty,min=1,max=120"`
	IntervalLabel string                 `json:"interval_label" binding:"max=50"`
}

// UpdateRecurringRequest represents the request payload for updating a template.
type UpdateRecurringRequest struct {
	Type          *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
	Amount        *decimal.Decimal        `json:"amount" binding:"omitempty,gt=0,money"`
	Description   *string                 `json:"description" binding:"omitempty,min=1,max=255"`
	CategoryID    *string                 `json:"category_id" binding:"omitempty,uuid"`
	StartDate     *time.Time              `json:"start_date"`
	EndDate       *time.Time              `json:"end_date"`
	ClearEndDate  bool                    `json:"clear_end_date"`
	Interval      *string                 `json:"interval" binding:"omitempty,recurrence_interval"`
	IntervalValue int                     `json:"interval_value" binding:"omitempty,min=1,max=120"`
	IntervalLabel string                  `json:"interval_label" binding:"max=50"`
}

// ProcessRequest selects the month of a batch run. Month and year override
// date; an empty body processes the current month.
type ProcessRequest struct {
	Date  string `json:"date"`
	Month *int   `json:"month" binding:"omitempty,min=1,max=12"`
	Year  *int   `json:"year" binding:"omitempty,min=1970,max=9999"`
}

func (r ProcessRequest) target() (services.ProcessTarget, error) {
	target := services.ProcessTarget{Month: r.Month, Year: r.Year}
	if r.Date != "" {
		d, err := parseDate(r.Date)
		if err != nil {
			return target, err
		}
		target.Date = &d
	}
	return target, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(raw string) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "date must be YYYY-MM-DD or RFC 3339")
	}
	return d, nil
}

// UpcomingResponse lists the next months a template is due in.
type UpcomingResponse struct {
	Success     bool        `json:"success"`
	RecurringID string      `json:"recurring_id"`
	Occurrences []time.Time `json:"occurrences"`
}

// CreateRecurring creates a recurring transaction template.
// @Summary     Create a recurring transaction
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRecurringRequest true "Template details"
// @Success     201 {object} models.RecurrentTransaction "Template created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /recurring [post]
func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	iv, err := recurrence.ParseInterval(req.Interval, req.IntervalValue, req.IntervalLabel)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidRecurrence, err.Error()))
		return
	}

	template, err := h.recurrentService.CreateRecurrentTransaction(userID, services.CreateRecurrentInput{
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Interval:    iv,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "recurring": template})
}

// GetRecurring lists the user's templates ordered by next execution.
// @Summary     List recurring transactions
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.RecurrentTransaction] "Paginated templates"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /recurring [get]
func (h *RecurringHandler) GetRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.recurrentService.GetRecurrentTransactions(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecurringByID returns one template.
// @Summary     Get a recurring transaction
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurrentTransaction "Template"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring/{id} [get]
func (h *RecurringHandler) GetRecurringByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	template, err := h.recurrentService.GetRecurrentTransactionByID(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "recurring": template})
}

// UpdateRecurring updates a template. Changing its start date or interval
// moves the next execution date.
// @Summary     Update a recurring transaction
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Recurring transaction ID"
// @Param       request body UpdateRecurringRequest true "Fields to update"
// @Success     200 {object} models.RecurrentTransaction "Template updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring/{id} [put]
func (h *RecurringHandler) UpdateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	updates := services.RecurrentUpdate{
		Type:         req.Type,
		Amount:       req.Amount,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		ClearEndDate: req.ClearEndDate,
	}
	if req.Interval != nil {
		iv, err := recurrence.ParseInterval(*req.Interval, req.IntervalValue, req.IntervalLabel)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidRecurrence, err.Error()))
			return
		}
		updates.Interval = &iv
	}

	template, err := h.recurrentService.UpdateRecurrentTransaction(userID, id, updates)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "recurring": template})
}

// DeleteRecurring deletes a template. With cascade=true the transactions it
// produced are deleted too.
// @Summary     Delete a recurring transaction
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id      path  string true  "Recurring transaction ID"
// @Param       cascade query bool   false "Also delete materialized transactions"
// @Success     200 {object} map[string]interface{} "Template deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring/{id} [delete]
func (h *RecurringHandler) DeleteRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	cascade := false
	if v := c.Query("cascade"); v != "" {
		cascade, err = strconv.ParseBool(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "cascade must be 'true' or 'false'"))
			return
		}
	}

	removed, err := h.recurrentService.DeleteRecurrentTransaction(userID, id, cascade)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditRecurrentDeleted, "recurrent_transaction", id, c.ClientIP(),
		map[string]interface{}{"cascade": cascade, "transactions_removed": removed})

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              "Recurring transaction deleted successfully",
		"transactions_removed": removed,
	})
}

// PauseRecurring stops a template from being processed.
// @Summary     Pause a recurring transaction
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurrentTransaction "Template paused"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring/{id}/pause [post]
func (h *RecurringHandler) PauseRecurring(c *gin.Context) {
	h.setActive(c, false)
}

// ResumeRecurring makes a paused template due again.
// @Summary     Resume a recurring transaction
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurrentTransaction "Template resumed"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring/{id}/resume [post]
func (h *RecurringHandler) ResumeRecurring(c *gin.Context) {
	h.setActive(c, true)
}

func (h *RecurringHandler) setActive(c *gin.Context, active bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	template, err := h.recurrentService.SetActive(userID, id, active)
	if err != nil {
		respondWithError(c, err)
		return
	}

	action := services.AuditRecurrentPaused
	if active {
		action = services.AuditRecurrentResumed
	}
	h.auditService.Log(userID, action, "recurrent_transaction", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"success": true, "recurring": template})
}

// GetUpcoming previews the next months a template is due in.
// @Summary     Preview upcoming occurrences
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Recurring transaction ID"
// @Param       count query int    false "Number of occurrences (default 6, max 24)"
// @Success     200 {object} UpcomingResponse "Upcoming occurrences"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recurring/{id}/upcoming [get]
func (h *RecurringHandler) GetUpcoming(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	count := defaultUpcomingCount
	if v := c.Query("count"); v != "" {
		count, err = strconv.Atoi(v)
		if err != nil || count < 1 || count > maxUpcomingCount {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "count must be between 1 and 24"))
			return
		}
	}

	template, err := h.recurrentService.GetRecurrentTransactionByID(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	occurrences := recurrence.UpcomingOccurrences(template.Schedule(), h.now(), count)
	if occurrences == nil {
		occurrences = []time.Time{}
	}
	c.JSON(http.StatusOK, UpcomingResponse{Success: true, RecurringID: id, Occurrences: occurrences})
}

// GetExecution reports whether a template produced a transaction in a month.
// @Summary     Check execution in a month
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true "Recurring transaction ID"
// @Param       month query int    true "Month (1-12)"
// @Param       year  query int    true "Year"
// @Success     200 {object} services.ExecutionStatus "Execution status"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /recurring/{id}/executions [get]
func (h *RecurringHandler) GetExecution(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, year, err := parseMonthQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.processor.IsExecutedInMonth(userID, id, month, year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "execution": status})
}

// Unexecute deletes the transaction a template produced in a month.
// @Summary     Undo an execution
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true "Recurring transaction ID"
// @Param       month query int    true "Month (1-12)"
// @Param       year  query int    true "Year"
// @Success     200 {object} map[string]interface{} "Execution removed"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not executed in the month"
// @Router      /recurring/{id}/executions [delete]
func (h *RecurringHandler) Unexecute(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, year, err := parseMonthQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.processor.Unexecute(c.Request.Context(), userID, id, month, year); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditRecurrentUnexecuted, "recurrent_transaction", id, c.ClientIP(),
		map[string]interface{}{"month": month, "year": year})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Recurring transaction removed from the month"})
}

// Regenerate recreates a template's transaction for a month.
// @Summary     Regenerate a deleted occurrence
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Recurring transaction ID"
// @Param       request body PeriodRequest true "Month to regenerate"
// @Success     200 {object} services.MaterializeResult "Materialization result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Failure     422 {object} ErrorResponse "Not due in the month"
// @Router      /recurring/{id}/regenerate [post]
func (h *RecurringHandler) Regenerate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.processor.RegenerateDeletedTransaction(c.Request.Context(), userID, id, req.Month, req.Year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// Process materializes the user's templates due in a month.
// @Summary     Process recurring transactions
// @Description Create the month's transactions for every due template, creating budgets as needed
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ProcessRequest false "Target month"
// @Success     200 {object} services.ProcessResult "Batch result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /recurring/process [post]
func (h *RecurringHandler) Process(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	target, err := bindProcessTarget(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.processor.Process(c.Request.Context(), userID, target)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.TransactionsCreated > 0 || result.BudgetsCreated > 0 {
		h.auditService.Log(userID, services.AuditRecurringProcessed, "recurring_batch", "", c.ClientIP(),
			map[string]interface{}{
				"transactions_created": result.TransactionsCreated,
				"budgets_created":      result.BudgetsCreated,
			})
	}

	c.JSON(http.StatusOK, result)
}

// ProcessAll runs the batch for every active user. It is meant for an
// external scheduler and sits behind the scheduler key.
// @Summary     Process recurring transactions for all users
// @Tags        internal
// @Accept      json
// @Produce     json
// @Security    SchedulerKey
// @Param       request body ProcessRequest false "Target month"
// @Success     200 {object} worker.RunSummary "Batch summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid scheduler key"
// @Router      /internal/recurring/process [post]
func (h *RecurringHandler) ProcessAll(c *gin.Context) {
	target, err := bindProcessTarget(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.runner.RunAll(c.Request.Context(), target)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

// bindProcessTarget reads an optional ProcessRequest body.
func bindProcessTarget(c *gin.Context) (services.ProcessTarget, error) {
	var req ProcessRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return services.ProcessTarget{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
	}
	return req.target()
}
