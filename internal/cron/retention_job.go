package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
)

const (
	NotificationCleanupJobName = "notification-cleanup"
	OutboxRetentionJobName     = "outbox-retention"

	defaultNotificationRetention = 30 * 24 * time.Hour
	defaultOutboxRetention       = 7 * 24 * time.Hour
	defaultPurgeBatch            = 500
	maxPurgeBatches              = 20
)

// PurgeFunc deletes up to limit rows older than cutoff and reports how many
// went.
type PurgeFunc func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

type RetentionJobParams struct {
	Name      string
	Logger    *logger.Logger
	Metrics   *metrics.CronJobMetrics
	Purge     PurgeFunc
	Retention time.Duration
	BatchSize int
}

// NewRetentionJob deletes rows past Retention in batches, stopping after a
// short batch or maxPurgeBatches so one run never holds the lock for long.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Name == "":
		return nil, errors.New("retention job name required")
	case params.Logger == nil:
		return nil, fmt.Errorf("%s: logger required", params.Name)
	case params.Purge == nil:
		return nil, fmt.Errorf("%s: purge func required", params.Name)
	case params.Retention <= 0:
		return nil, fmt.Errorf("%s: retention must be positive", params.Name)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPurgeBatch
	}
	return &retentionJob{
		name:      params.Name,
		logg:      params.Logger,
		metrics:   params.Metrics,
		purge:     params.Purge,
		retention: params.Retention,
		batch:     batch,
		now:       time.Now,
	}, nil
}

// NewNotificationCleanupJob drops notifications older than retention, read
// or not. A zero retention keeps 30 days.
func NewNotificationCleanupJob(logg *logger.Logger, m *metrics.CronJobMetrics, purge PurgeFunc, retention time.Duration) (Job, error) {
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	return NewRetentionJob(RetentionJobParams{
		Name:      NotificationCleanupJobName,
		Logger:    logg,
		Metrics:   m,
		Purge:     purge,
		Retention: retention,
	})
}

// NewOutboxRetentionJob drops published outbox rows. Unpublished and
// dead-lettered rows are never passed to purge. A zero retention keeps 7
// days.
func NewOutboxRetentionJob(logg *logger.Logger, m *metrics.CronJobMetrics, purge PurgeFunc, retention time.Duration) (Job, error) {
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return NewRetentionJob(RetentionJobParams{
		Name:      OutboxRetentionJobName,
		Logger:    logg,
		Metrics:   m,
		Purge:     purge,
		Retention: retention,
	})
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	metrics   *metrics.CronJobMetrics
	purge     PurgeFunc
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	var batches int
	var err error
	for batches < maxPurgeBatches {
		if err = ctx.Err(); err != nil {
			break
		}
		var n int64
		n, err = j.purge(ctx, cutoff, j.batch)
		deleted += n
		batches++
		if err != nil || n < int64(j.batch) {
			break
		}
	}
	j.metrics.AddAffected(j.name, deleted)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"job":          j.name,
		"cutoff":       cutoff.Format(time.RFC3339),
		"rows_deleted": deleted,
		"batches":      batches,
	})
	if err != nil {
		return fmt.Errorf("%s after %d rows: %w", j.name, deleted, err)
	}
	if batches == maxPurgeBatches {
		j.logg.Warn(logCtx, "retention backlog remains, resuming next cycle")
		return nil
	}
	j.logg.Info(logCtx, "retention purge complete")
	return nil
}
