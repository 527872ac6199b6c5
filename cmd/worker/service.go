package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agromart/agromart-backend/pkg/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type ServiceParams struct {
	Logger    *logger.Logger
	Pingers   map[string]pinger
	Consumers map[string]runner
}

// Service runs the event consumers once every dependency answers a ping.
type Service struct {
	logg      *logger.Logger
	pingers   map[string]pinger
	consumers map[string]runner
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
		logg:      params.Logger,
		pingers:   params.Pingers,
		consumers: params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until the context is canceled or a consumer fails. A failing
// consumer cancels the others.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, c := range s.consumers {
		g.Go(func() error {
			s.logg.Info(s.logg.WithField(gctx, "consumer", name), "consumer started")
			if err := c.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s consumer: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		return err
	}
	return ctx.Err()
}
