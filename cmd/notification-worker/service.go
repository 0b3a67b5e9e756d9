package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/logger"
)

const (
	defaultHealthInterval = time.Minute
	defaultDrainTimeout   = 20 * time.Second
)

type pinger interface {
	Ping(context.Context) error
}

type runner interface {
	Run(context.Context) error
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer runner

	HealthInterval time.Duration
	DrainTimeout   time.Duration
}

// Service runs the notification consumer and keeps probing the stores it
// writes through, so an outage shows up in logs before messages pile up.
type Service struct {
	logg     *logger.Logger
	deps     map[string]pinger
	consumer runner
	interval time.Duration
	drain    time.Duration
	degraded map[string]bool
}

func NewService(params ServiceParams) (*Service, error) {
	missing := map[string]bool{
		"config":                params.Config == nil,
		"logger":                params.Logger == nil,
		"database client":       params.DB == nil,
		"redis client":          params.Redis == nil,
		"pubsub client":         params.PubSub == nil,
		"notification consumer": params.Consumer == nil,
	}
	for _, name := range slices.Sorted(maps.Keys(missing)) {
		if missing[name] {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	interval := params.HealthInterval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	drain := params.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}
	return &Service{
		logg:     params.Logger,
		deps:     map[string]pinger{"database": params.DB, "redis": params.Redis, "pubsub": params.PubSub},
		consumer: params.Consumer,
		interval: interval,
		drain:    drain,
		degraded: map[string]bool{},
	}, nil
}

// Run blocks until the consumer stops or ctx is canceled. On cancel the
// consumer gets DrainTimeout to ack in-flight messages.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	s.logg.Info(ctx, "notification worker dependencies ready")

	done := make(chan error, 1)
	go func() { done <- s.consumer.Run(ctx) }()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return fmt.Errorf("consumer stopped: %w", err)
			}
			return nil
		case <-ticker.C:
			s.probe(ctx)
		case <-ctx.Done():
			return s.wait(ctx, done)
		}
	}
}

func (s *Service) ready(ctx context.Context) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(s.deps)) {
		if err := s.deps[name].Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s ping failed: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// probe logs a dependency once when it goes down and once when it returns.
func (s *Service) probe(ctx context.Context) {
	for _, name := range slices.Sorted(maps.Keys(s.deps)) {
		err := s.deps[name].Ping(ctx)
		logCtx := s.logg.WithField(ctx, "dependency", name)
		switch {
		case err != nil && !s.degraded[name]:
			s.degraded[name] = true
			s.logg.Warn(s.logg.WithField(logCtx, "error", err), "dependency degraded")
		case err == nil && s.degraded[name]:
			delete(s.degraded, name)
			s.logg.Info(logCtx, "dependency recovered")
		}
	}
}

func (s *Service) wait(ctx context.Context, done <-chan error) error {
	timer := time.NewTimer(s.drain)
	defer timer.Stop()
	select {
	case <-done:
		s.logg.Info(ctx, "notification consumer drained")
	case <-timer.C:
		s.logg.Warn(ctx, "notification consumer did not drain in time")
	}
	return ctx.Err()
}
