package cron

import (
	"context"
	"fmt"

	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
)

const (
	defaultSweepBatchSize = 500
	maxSweepBatches       = 20
)

type negotiationSweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
	SendExpiryWarnings(ctx context.Context, limit int) (int, error)
}

type NegotiationJobParams struct {
	Logger    *logger.Logger
	Service   negotiationSweeper
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

func (p NegotiationJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.Service == nil {
		return fmt.Errorf("negotiation service required")
	}
	return nil
}

func (p NegotiationJobParams) batchSize() int {
	if p.BatchSize <= 0 {
		return defaultSweepBatchSize
	}
	return p.BatchSize
}

// NewNegotiationExpiryJob persists the expired status on negotiations past
// their deadline, draining in batches.
func NewNegotiationExpiryJob(params NegotiationJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &negotiationExpiryJob{
		logg:      params.Logger,
		svc:       params.Service,
		metrics:   params.Metrics,
		batchSize: params.batchSize(),
	}, nil
}

type negotiationExpiryJob struct {
	logg      *logger.Logger
	svc       negotiationSweeper
	metrics   *metrics.CronJobMetrics
	batchSize int
}

func (j *negotiationExpiryJob) Name() string { return "negotiation-expiry" }

func (j *negotiationExpiryJob) Run(ctx context.Context) error {
	total, err := drain(ctx, j.batchSize, j.svc.Sweep)
	j.metrics.AddAffected(j.Name(), int64(total))
	if err != nil {
		return fmt.Errorf("negotiation expiry: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "negotiation expiry sweep complete")
	return nil
}

// NewNegotiationExpiryWarningJob queues one warning per active negotiation
// entering the warning window.
func NewNegotiationExpiryWarningJob(params NegotiationJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &negotiationExpiryWarningJob{
		logg:      params.Logger,
		svc:       params.Service,
		metrics:   params.Metrics,
		batchSize: params.batchSize(),
	}, nil
}

type negotiationExpiryWarningJob struct {
	logg      *logger.Logger
	svc       negotiationSweeper
	metrics   *metrics.CronJobMetrics
	batchSize int
}

func (j *negotiationExpiryWarningJob) Name() string { return "negotiation-expiry-warning" }

func (j *negotiationExpiryWarningJob) Run(ctx context.Context) error {
	total, err := drain(ctx, j.batchSize, j.svc.SendExpiryWarnings)
	j.metrics.AddAffected(j.Name(), int64(total))
	if err != nil {
		return fmt.Errorf("negotiation expiry warnings: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "warned", total), "negotiation expiry warnings queued")
	return nil
}

// drain calls batch until it returns fewer than limit rows, the context ends
// or maxSweepBatches is reached. Rows already committed are counted on error.
func drain(ctx context.Context, limit int, batch func(context.Context, int) (int, error)) (int, error) {
	total := 0
	for i := 0; i < maxSweepBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := batch(ctx, limit)
		if err != nil {
			return total, err
		}
		total += n
		if n < limit {
			break
		}
	}
	return total, nil
}
