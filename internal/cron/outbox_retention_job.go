package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

const (
	OutboxRetentionJobName = "outbox_retention"

	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultOutboxAttempts  = 10
	defaultPurgeBatch      = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, maxAttempts, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPurger
	// Retention is how long relayed rows are kept.
	Retention time.Duration
	// MaxAttempts must match the publisher's dead-letter threshold.
	MaxAttempts int
	// BatchSize bounds the rows removed per transaction.
	BatchSize int
	Clock     func() time.Time
}

// NewOutboxRetentionJob builds the job that trims relayed and dead-lettered
// rows from the outbox table.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   orDefault(params.Retention, defaultOutboxRetention),
		maxAttempts: orDefault(params.MaxAttempts, defaultOutboxAttempts),
		batch:       orDefault(params.BatchSize, defaultPurgeBatch),
		now:         params.Clock,
	}
	if job.now == nil {
		job.now = time.Now
	}
	return job, nil
}

func orDefault[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxPurger
	retention   time.Duration
	maxAttempts int
	batch       int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return OutboxRetentionJobName }

// Run purges batch by batch until a pass removes less than a full batch or
// ctx ends. Batches already committed stay purged when a later one fails.
func (j *outboxRetentionJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var purged, batches int64
	for ctx.Err() == nil {
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
			n, err = j.repo.PurgeBefore(ctx, tx, cutoff, j.maxAttempts, j.batch)
			return err
		})
		if err != nil {
			return int(purged), fmt.Errorf("purge outbox batch %d: %w", batches+1, err)
		}
		purged += n
		batches++
		if n < int64(j.batch) {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"max_attempts": j.maxAttempts,
		"batches":      batches,
		"rows_deleted": purged,
	}), "outbox retention cleanup complete")
	return int(purged), ctx.Err()
}
