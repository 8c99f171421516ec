// Package scheduler runs the periodic sweeps: sent quotes past their
// validity date move to expired, reserved equipment windows past their end
// date move to expired.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/batipilot/batipilot/internal/clock"
	equipmentdomain "github.com/batipilot/batipilot/internal/equipment/domain"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
)

// Config controls sweep cadence and per-job timeout.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	QuoteSvc     quotedomain.Service
	EquipmentSvc equipmentdomain.Service
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	quoteSvc     quotedomain.Service
	equipmentSvc equipmentdomain.Service
}

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.QuoteSvc == nil || p.EquipmentSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler"),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		quoteSvc:     p.QuoteSvc,
		equipmentSvc: p.EquipmentSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	count, err := fn(ctx)
	if err != nil {
		s.log.Warn("sweep failed",
			zap.String("job", name),
			zap.Error(err))
		return err
	}
	if count > 0 {
		s.log.Info("sweep done",
			zap.String("job", name),
			zap.Int("affected", count),
			zap.Duration("elapsed", s.clock.Now().Sub(start)))
	}
	return nil
}

// RunOnce executes every sweep and joins their errors: one failing sweep
// never blocks the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return errors.Join(
		s.runJob(ctx, "expire_quotes", s.quoteSvc.ExpireOverdue),
		s.runJob(ctx, "expire_reservations", s.equipmentSvc.ExpireReservations),
	)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
