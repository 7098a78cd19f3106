// Package worker runs the recurring transaction batch for every active user.
package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetwise/internal/logger"
	"budgetwise/internal/services"
)

// RunSummary aggregates one batch across users.
type RunSummary struct {
	Users               int `json:"users"`
	Failed              int `json:"failed"`
	TransactionsCreated int `json:"transactions_created"`
	BudgetsCreated      int `json:"budgets_created"`
	BudgetsUpdated      int `json:"budgets_updated"`
	Warnings            int `json:"warnings"`
}

func (s *RunSummary) add(res *services.ProcessResult) {
	s.TransactionsCreated += res.TransactionsCreated
	s.BudgetsCreated += res.BudgetsCreated
	s.BudgetsUpdated += res.BudgetsUpdated
	s.Warnings += len(res.Warnings)
}

// Runner fans the processor out over users, at most workers at a time.
type Runner struct {
	users     services.UserServicer
	processor services.RecurrenceProcessor
	workers   int
}

// NewRunner creates a Runner. workers below one is treated as one.
func NewRunner(users services.UserServicer, processor services.RecurrenceProcessor, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{users: users, processor: processor, workers: workers}
}

// RunAll processes target for every active user. A failing user is counted
// and logged; the others still run. The error is non-nil only when users
// cannot be listed or ctx is cancelled.
func (r *Runner) RunAll(ctx context.Context, target services.ProcessTarget) (*RunSummary, error) {
	ids, err := r.users.ListActiveUserIDs()
	if err != nil {
		return nil, err
	}

	log := logger.Named("worker")
	summary := &RunSummary{Users: len(ids)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.processor.Process(ctx, id, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				log.Errorw("recurring batch failed for user", "user_id", id, "error", err)
				return nil
			}
			summary.add(res)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	log.Infow("recurring batch complete",
		"users", summary.Users,
		"failed", summary.Failed,
		"transactions_created", summary.TransactionsCreated,
		"budgets_created", summary.BudgetsCreated,
		"budgets_updated", summary.BudgetsUpdated,
	)
	return summary, nil
}

// Start runs the batch for the current month once and then on every tick of
// interval, until ctx is done.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	log := logger.Named("worker")
	log.Infow("recurring worker started", "interval", interval, "workers", r.workers)

	r.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("recurring worker stopped")
			return
		case now := <-ticker.C:
			r.runOnce(ctx)
			log.Debugw("next recurring run scheduled", "at", now.Add(interval).Format(time.RFC3339))
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	if _, err := r.RunAll(ctx, services.ProcessTarget{}); err != nil {
		logger.Named("worker").Errorw("recurring batch aborted", "error", err)
	}
}
