package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/backoffice-backend/internal/income"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

type fakeSweeper struct {
	at     time.Time
	result income.SweepResult
	err    error
}

func (f *fakeSweeper) Sweep(_ context.Context, now time.Time) (income.SweepResult, error) {
	f.at = now
	return f.result, f.err
}

func TestIncomeSweepJobReportsUpsertedDays(t *testing.T) {
	now := time.Date(2026, 6, 3, 23, 0, 0, 0, time.FixedZone("CST", -6*3600))
	sweeper := &fakeSweeper{result: income.SweepResult{Upserted: make([]models.IncomeRecord, 3)}}
	job, err := NewIncomeSweepJob(IncomeSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Income: sweeper,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewIncomeSweepJob: %v", err)
	}

	processed, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 3 {
		t.Fatalf("expected 3 upserted days, got %d", processed)
	}
	if sweeper.at.Location() != time.UTC || sweeper.at.Day() != 4 {
		t.Fatalf("expected sweep in UTC, got %s", sweeper.at)
	}
	if job.Name() != IncomeSweepJobName {
		t.Fatalf("unexpected name %q", job.Name())
	}
}

func TestIncomeSweepJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{
		result: income.SweepResult{Upserted: make([]models.IncomeRecord, 1)},
		err:    errors.New("export failed"),
	}
	job, err := NewIncomeSweepJob(IncomeSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Income: sweeper,
	})
	if err != nil {
		t.Fatalf("NewIncomeSweepJob: %v", err)
	}
	processed, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if processed != 1 {
		t.Fatalf("partial progress is still reported, got %d", processed)
	}
}
