package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/backoffice-backend/internal/income"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

const IncomeSweepJobName = "income_sweep"

type incomeSweeper interface {
	Sweep(ctx context.Context, now time.Time) (income.SweepResult, error)
}

type IncomeSweepJobParams struct {
	Logger *logger.Logger
	Income incomeSweeper
	Clock  func() time.Time
}

// NewIncomeSweepJob builds the job that regenerates today's income record and
// backfills missing days.
func NewIncomeSweepJob(params IncomeSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Income == nil {
		return nil, fmt.Errorf("income service required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &incomeSweepJob{logg: params.Logger, income: params.Income, now: clock}, nil
}

type incomeSweepJob struct {
	logg   *logger.Logger
	income incomeSweeper
	now    func() time.Time
}

func (j *incomeSweepJob) Name() string { return IncomeSweepJobName }

func (j *incomeSweepJob) Run(ctx context.Context) (int, error) {
	result, err := j.income.Sweep(ctx, j.now().UTC())
	if err != nil {
		return len(result.Upserted), fmt.Errorf("income sweep: %w", err)
	}
	return len(result.Upserted), nil
}
