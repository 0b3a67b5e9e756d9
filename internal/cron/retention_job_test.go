package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/logger"
)

type purgeRecorder struct {
	results []int64
	err     error
	cutoffs []time.Time
	limits  []int
}

func (p *purgeRecorder) purge(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	p.limits = append(p.limits, limit)
	call := len(p.cutoffs) - 1
	if call < len(p.results) {
		return p.results[call], nil
	}
	return 0, p.err
}

func newRetention(t *testing.T, params RetentionJobParams, now time.Time) *retentionJob {
	t.Helper()
	if params.Logger == nil {
		params.Logger = logger.NewNop()
	}
	job, err := NewRetentionJob(params)
	require.NoError(t, err)
	rj := job.(*retentionJob)
	rj.now = func() time.Time { return now }
	return rj
}

func TestRetentionJobUsesCutoffAndBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	rec := &purgeRecorder{results: []int64{7}}
	job := newRetention(t, RetentionJobParams{Name: "test-purge", Purge: rec.purge, Retention: 48 * time.Hour}, now)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, rec.cutoffs, 1)
	assert.True(t, rec.cutoffs[0].Equal(now.Add(-48*time.Hour)))
	assert.Equal(t, []int{defaultPurgeBatch}, rec.limits)
}

func TestRetentionJobDrainsFullBatches(t *testing.T) {
	rec := &purgeRecorder{results: []int64{10, 10, 3}}
	job := newRetention(t, RetentionJobParams{Name: "test-purge", Purge: rec.purge, Retention: time.Hour, BatchSize: 10}, time.Now())

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, rec.cutoffs, 3)
	for _, c := range rec.cutoffs {
		assert.True(t, c.Equal(rec.cutoffs[0]), "cutoff must stay fixed across batches")
	}
}

func TestRetentionJobStopsAtBatchCap(t *testing.T) {
	full := make([]int64, maxPurgeBatches+5)
	for i := range full {
		full[i] = 10
	}
	rec := &purgeRecorder{results: full}
	job := newRetention(t, RetentionJobParams{Name: "test-purge", Purge: rec.purge, Retention: time.Hour, BatchSize: 10}, time.Now())

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, rec.cutoffs, maxPurgeBatches)
}

func TestRetentionJobReportsPartialProgress(t *testing.T) {
	rec := &purgeRecorder{results: []int64{10}, err: errors.New("statement timeout")}
	job := newRetention(t, RetentionJobParams{Name: "test-purge", Purge: rec.purge, Retention: time.Hour, BatchSize: 10}, time.Now())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 10 rows")
	assert.Contains(t, err.Error(), "statement timeout")
}

func TestRetentionJobHonorsCancellation(t *testing.T) {
	rec := &purgeRecorder{}
	job := newRetention(t, RetentionJobParams{Name: "test-purge", Purge: rec.purge, Retention: time.Hour}, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Empty(t, rec.cutoffs)
}

func TestRetentionJobDefaults(t *testing.T) {
	rec := &purgeRecorder{}
	logg := logger.NewNop()

	notif, err := NewNotificationCleanupJob(logg, nil, rec.purge, 0)
	require.NoError(t, err)
	assert.Equal(t, NotificationCleanupJobName, notif.Name())
	assert.Equal(t, defaultNotificationRetention, notif.(*retentionJob).retention)

	outbox, err := NewOutboxRetentionJob(logg, nil, rec.purge, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutboxRetentionJobName, outbox.Name())
	assert.Equal(t, 72*time.Hour, outbox.(*retentionJob).retention)

	invalid := []RetentionJobParams{
		{Logger: logg, Purge: rec.purge, Retention: time.Hour},
		{Name: "x", Purge: rec.purge, Retention: time.Hour},
		{Name: "x", Logger: logg, Retention: time.Hour},
		{Name: "x", Logger: logg, Purge: rec.purge},
	}
	for _, params := range invalid {
		_, err := NewRetentionJob(params)
		assert.Error(t, err)
	}
}
