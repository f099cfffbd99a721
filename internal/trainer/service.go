// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package trainer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Service runs the trainer on a fixed interval as a supervised service.
//
// It implements suture.Service: Serve blocks until the context is canceled
// and returns ctx.Err() so the supervisor treats shutdown as clean.
type Service struct {
	trainer   *Trainer
	interval  time.Duration
	onStartup bool
	logger    zerolog.Logger
}

// NewService wraps a trainer for supervision.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(trainer *Trainer, interval time.Duration, onStartup bool, logger zerolog.Logger) *Service {
	return &Service{
		trainer:   trainer,
		interval:  interval,
		onStartup: onStartup,
		logger:    logger.With().Str("component", "train_service").Logger(),
	}
}

// Serve implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	if s.onStartup {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// run executes one training pass. A failed run is logged and waits for the
// next tick; the service itself stays healthy so the supervisor does not
// restart it over data problems.
func (s *Service) run(ctx context.Context) {
	_, err := s.trainer.Train(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrTrainInProgress):
		s.logger.Warn().Msg("skipping scheduled run, previous still executing")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.logger.Error().Err(err).Msg("scheduled training run failed")
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Service) String() string {
	return "train-service"
}
