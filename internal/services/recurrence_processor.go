package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/events"
	"budgetwise/internal/logger"
	"budgetwise/internal/models"
	"budgetwise/internal/recurrence"
)

var (
	processorTracer        = otel.Tracer("budgetwise/recurrence")
	processorMeter         = otel.Meter("budgetwise/recurrence")
	templatesProcessed, _  = processorMeter.Int64Counter("recurrence.templates.processed", metric.WithDescription("Templates run by the batch processor, by status"))
	transactionsCreated, _ = processorMeter.Int64Counter("recurrence.transactions.created", metric.WithDescription("Transactions materialized from templates"))
)

type recurrenceProcessor struct {
	recurrents   RecurrentTransactionServicer
	budgets      BudgetServicer
	materializer Materializer
	publisher    events.Publisher
	now          func() time.Time
	locks        *userLocks
}

// ProcessorOption configures a RecurrenceProcessor.
type ProcessorOption func(*recurrenceProcessor)

// WithClock sets the clock used when a run names no target month.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *recurrenceProcessor) { p.now = now }
}

// WithPublisher sets where completed batch runs are announced.
func WithPublisher(pub events.Publisher) ProcessorOption {
	return func(p *recurrenceProcessor) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// NewRecurrenceProcessor creates a RecurrenceProcessor. Runs for the same
// user are serialized; different users run independently.
func NewRecurrenceProcessor(recurrents RecurrentTransactionServicer, budgets BudgetServicer, materializer Materializer, opts ...ProcessorOption) RecurrenceProcessor {
	p := &recurrenceProcessor{
		recurrents:   recurrents,
		budgets:      budgets,
		materializer: materializer,
		publisher:    events.NopPublisher{},
		now:          time.Now,
		locks:        newUserLocks(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process materializes every active template due in the target month. One
// template failing never stops the others; its problem is reported as a
// warning. An error is returned only when the run cannot start.
func (p *recurrenceProcessor) Process(ctx context.Context, userID string, target ProcessTarget) (*ProcessResult, error) {
	if userID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required")
	}
	targetDate, err := p.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	month, year := targetDate.Month(), targetDate.Year()
	period := fmt.Sprintf("%04d-%02d", year, int(month))

	ctx, span := processorTracer.Start(ctx, "recurrence.process",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("period", period),
		),
	)
	defer span.End()

	unlock := p.locks.lock(userID)
	defer unlock()

	templates, err := p.recurrents.GetActiveRecurrentTransactions(userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &ProcessResult{Warnings: []string{}, Success: true}
	due := recurrence.FilterDueForMonth(templates, month, year, targetDate)
	span.SetAttributes(attribute.Int("templates.active", len(templates)), attribute.Int("templates.due", len(due)))

	if len(due) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("no recurring transactions due in %s", period))
		return result, nil
	}

	log := logger.Get().With("user_id", userID, "period", period)
	for i := range due {
		res := p.runTemplate(ctx, userID, &due[i], targetDate)
		result.TransactionsCreated += res.TransactionsCreated
		result.BudgetsCreated += res.BudgetsCreated
		result.BudgetsUpdated += res.BudgetsUpdated
		result.Warnings = append(result.Warnings, res.Warnings...)
	}

	log.Infow("recurring transactions processed",
		"due", len(due),
		"transactions_created", result.TransactionsCreated,
		"budgets_created", result.BudgetsCreated,
		"budgets_updated", result.BudgetsUpdated,
		"warnings", len(result.Warnings),
	)

	msg := &events.RecurrenceProcessed{
		UserID:              userID,
		Month:               int(month),
		Year:                year,
		TransactionsCreated: result.TransactionsCreated,
		BudgetsCreated:      result.BudgetsCreated,
		BudgetsUpdated:      result.BudgetsUpdated,
		Warnings:            result.Warnings,
		ProcessedAt:         p.now().UTC(),
	}
	if err := p.publisher.PublishRecurrenceProcessed(ctx, msg); err != nil {
		log.Warnw("failed to publish recurrence event", "error", err)
	}

	return result, nil
}

// runTemplate materializes one template and moves its cursor past targetDate.
func (p *recurrenceProcessor) runTemplate(ctx context.Context, userID string, t *models.RecurrentTransaction, targetDate time.Time) MaterializeResult {
	_, span := processorTracer.Start(ctx, "recurrence.template",
		trace.WithAttributes(attribute.String("recurrence_id", t.ID)),
	)
	defer span.End()

	res := p.materializer.Materialize(userID, t, targetDate)
	transactionsCreated.Add(ctx, int64(res.TransactionsCreated))

	next := recurrence.NextExecutionDate(targetDate, t.IntervalValue)
	last := targetDate
	update := RecurrentUpdate{NextExecutionDate: &next, LastExecutionDate: &last}
	if t.EndDate != nil && next.After(*t.EndDate) {
		inactive := false
		update.IsActive = &inactive
	}

	status := "success"
	if _, err := p.recurrents.UpdateRecurrentTransaction(userID, t.ID, update); err != nil {
		logger.Get().Errorw("failed to advance recurring transaction", "user_id", userID, "recurrence_id", t.ID, "error", err)
		res.warnf("%q: failed to schedule next execution", t.Description)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		status = "error"
	} else if update.IsActive != nil {
		logger.Get().Infow("recurring transaction reached its end date", "user_id", userID, "recurrence_id", t.ID)
	}
	if status == "success" && res.TransactionsCreated == 0 {
		status = "skipped"
	}
	templatesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	return res
}

// resolveTarget picks the first day of the month to process: explicit
// month and year override the date, which overrides today.
func (p *recurrenceProcessor) resolveTarget(target ProcessTarget) (time.Time, error) {
	base := p.now()
	if target.Date != nil {
		base = *target.Date
	}
	month, year := int(base.Month()), base.Year()
	if target.Month != nil {
		month = *target.Month
	}
	if target.Year != nil {
		year = *target.Year
	}
	if err := validatePeriod(month, year); err != nil {
		return time.Time{}, err
	}
	return recurrence.MonthStart(time.Month(month), year), nil
}

// RegenerateDeletedTransaction recreates a template's occurrence for one
// month, typically after the user deleted it by hand.
func (p *recurrenceProcessor) RegenerateDeletedTransaction(ctx context.Context, userID, recurrenceID string, month, year int) (*MaterializeResult, error) {
	if err := validatePeriod(month, year); err != nil {
		return nil, err
	}
	t, err := p.recurrents.GetRecurrentTransactionByID(userID, recurrenceID)
	if err != nil {
		return nil, err
	}

	targetDate := recurrence.MonthStart(time.Month(month), year)
	if len(recurrence.FilterDueForMonth([]models.RecurrentTransaction{*t}, time.Month(month), year, targetDate)) == 0 {
		return nil, apperrors.ErrNotDueInMonth
	}

	_, span := processorTracer.Start(ctx, "recurrence.regenerate",
		trace.WithAttributes(attribute.String("recurrence_id", recurrenceID)),
	)
	defer span.End()

	unlock := p.locks.lock(userID)
	defer unlock()

	res := p.materializer.Materialize(userID, t, targetDate)
	return &res, nil
}

// IsExecutedInMonth reports whether the month's budget holds a transaction
// produced by the template.
func (p *recurrenceProcessor) IsExecutedInMonth(userID, recurrenceID string, month, year int) (*ExecutionStatus, error) {
	if err := validatePeriod(month, year); err != nil {
		return nil, err
	}

	budget, err := p.budgets.GetBudgetByMonth(userID, month, year)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrBudgetNotFound) {
			return &ExecutionStatus{}, nil
		}
		return nil, err
	}

	txn := budget.RecurrentTransaction(recurrenceID)
	if txn == nil {
		return &ExecutionStatus{BudgetID: budget.ID}, nil
	}
	return &ExecutionStatus{Executed: true, TransactionID: txn.ID, BudgetID: budget.ID}, nil
}

// Unexecute deletes the transaction a template produced in a month.
func (p *recurrenceProcessor) Unexecute(ctx context.Context, userID, recurrenceID string, month, year int) error {
	_, span := processorTracer.Start(ctx, "recurrence.unexecute",
		trace.WithAttributes(attribute.String("recurrence_id", recurrenceID)),
	)
	defer span.End()

	unlock := p.locks.lock(userID)
	defer unlock()

	status, err := p.IsExecutedInMonth(userID, recurrenceID, month, year)
	if err != nil {
		return err
	}
	if !status.Executed {
		return apperrors.ErrNotExecuted
	}

	if err := p.budgets.DeleteTransaction(userID, status.BudgetID, status.TransactionID); err != nil {
		span.RecordError(err)
		return err
	}

	logger.Get().Infow("recurring transaction unexecuted",
		"user_id", userID,
		"recurrence_id", recurrenceID,
		"transaction_id", status.TransactionID,
		"month", month,
		"year", year,
	)
	return nil
}

// userLocks hands out one mutex per user, dropping it once nobody holds or
// waits on it.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
