// Package jobs holds the worker's scheduled tasks.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/store"
)

const lowStockLockKey = "job:low-stock-sweep"

// StockReporter lists products at or below a threshold.
type StockReporter interface {
	LowStock(ctx context.Context, threshold int) ([]store.Product, error)
}

// SupplierAlerter sends one reorder alert.
type SupplierAlerter interface {
	LowStock(ctx context.Context, product store.Product)
}

// LowStockJob periodically alerts suppliers about every product at or below
// Threshold. Runs are serialised across workers through Locker.
type LowStockJob struct {
	Stock     StockReporter
	Alerts    SupplierAlerter
	Locker    lock.Locker
	LockTTL   time.Duration
	Threshold int
	Logger    zerolog.Logger

	cron *cron.Cron
}

// RunOnce performs one sweep and returns how many alerts were sent.
func (j *LowStockJob) RunOnce(ctx context.Context) (int, error) {
	if j.Stock == nil || j.Alerts == nil {
		return 0, errors.New("jobs: low-stock job not configured")
	}
	sent := 0
	sweep := func(ctx context.Context) error {
		products, err := j.Stock.LowStock(ctx, j.Threshold)
		if err != nil {
			return err
		}
		for _, p := range products {
			j.Alerts.LowStock(ctx, p)
			sent++
		}
		return nil
	}
	var err error
	if j.Locker != nil {
		err = j.Locker.WithLock(ctx, lowStockLockKey, j.LockTTL, sweep)
	} else {
		err = sweep(ctx)
	}
	return sent, err
}

// Start schedules the sweep with a standard cron spec or descriptor such as
// "@every 15m".
func (j *LowStockJob) Start(spec string) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(spec, func() {
		ctx := context.Background()
		sent, err := j.RunOnce(ctx)
		if err != nil {
			j.Logger.Error().Err(err).Msg("low_stock_sweep_failed")
			return
		}
		j.Logger.Info().Int("alerts", sent).Int("threshold", j.Threshold).Msg("low_stock_sweep")
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.Logger.Info().Str("schedule", spec).Msg("low_stock_job_started")
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *LowStockJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.Logger.Info().Msg("low_stock_job_stopped")
}
