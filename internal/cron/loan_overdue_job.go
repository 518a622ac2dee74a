package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
)

type overdueSweeper interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// LoanOverdueJobParams configure the overdue loan sweep.
type LoanOverdueJobParams struct {
	Logger *logger.Logger
	Loans  overdueSweeper
}

// NewLoanOverdueJob builds the cron job that flags checked-out loans
// whose due date has passed.
func NewLoanOverdueJob(params LoanOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loans service required")
	}
	return &loanOverdueJob{
		logg:  params.Logger,
		loans: params.Loans,
		now:   time.Now,
	}, nil
}

type loanOverdueJob struct {
	logg  *logger.Logger
	loans overdueSweeper
	now   func() time.Time
}

func (j *loanOverdueJob) Name() string { return "loan-overdue" }

func (j *loanOverdueJob) Run(ctx context.Context) error {
	marked, err := j.loans.MarkOverdue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("mark overdue loans: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"marked": marked})
	j.logg.Info(logCtx, "loan overdue sweep complete")
	return nil
}
