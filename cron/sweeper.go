package cron

import (
	"context"
	"time"

	"slotbook/config"
	"slotbook/services/reservation"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartSweeper schedules the periodic expiration sweep. Sweeps are safe to
// overlap, so a slow run does not need to block the next trigger.
func StartSweeper(svc reservation.Service, logger *zap.Logger) *cron.Cron {
	interval := config.SweepInterval()
	c := cron.New()

	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		start := time.Now()
		released, err := svc.Sweep(ctx)
		if err != nil {
			logger.Error("sweep run failed", zap.Error(err))
			return
		}
		logger.Info("sweep run complete",
			zap.Int("released", released),
			zap.Duration("took", time.Since(start)))
	}))

	c.Start()
	logger.Info("expiration sweeper started", zap.Duration("interval", interval))
	return c
}
