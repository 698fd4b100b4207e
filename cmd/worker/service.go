package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/porter-backend/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

// pinger is a dependency checked before consuming starts.
type pinger interface {
	Ping(ctx context.Context) error
}

// runner is a long-lived subscription loop.
type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	InstanceID   string
	Dependencies map[string]pinger
	Consumers    map[string]runner
}

// Service checks readiness and then runs every consumer until one fails or
// ctx is canceled.
type Service struct {
	logg       *logger.Logger
	instanceID string
	deps       map[string]pinger
	consumers  map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	return &Service{
		logg:       params.Logger,
		instanceID: params.InstanceID,
		deps:       params.Dependencies,
		consumers:  params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if dep == nil {
			return fmt.Errorf("%s client not initialized", name)
		}
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.logg.WithField(ctx, "instance", s.instanceID)

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.consumers))
	for name, c := range s.consumers {
		go func() {
			results <- result{name: name, err: c.Run(runCtx)}
		}()
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case res := <-results:
			logCtx := s.logg.WithField(ctx, "consumer", res.name)
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				s.logg.Error(logCtx, "consumer stopped unexpectedly", res.err)
				return res.err
			}
			s.logg.Warn(logCtx, "consumer returned")
			return res.err
		case <-ticker.C:
			s.logg.Debug(ctx, "worker.heartbeat")
		}
	}
}
