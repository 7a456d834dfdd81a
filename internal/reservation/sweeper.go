package reservation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ms-booking/internal/logger"
)

const sweepBatchSize = 200

// Sweeper is the backstop that guarantees abandoned holds are eventually
// released even when no webhook or cancel ever touches them. It polls on a
// fixed interval over the (status, hold_expires_at) index; a run that
// overlaps a still-running previous sweep is skipped.
type Sweeper struct {
	Service  *Service
	Interval time.Duration
	Logger   *logger.Logger

	running atomic.Bool
}

func NewSweeper(service *Service, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{Service: service, Interval: interval, Logger: log}
}

// Start runs the sweep loop until ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	sw.Logger.LogSweeper(fmt.Sprintf("starting, interval %s", sw.Interval))
	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.LogSweeper("stopped")
			return
		case <-ticker.C:
			sw.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Safe to call concurrently; only one
// sweep is ever in flight.
func (sw *Sweeper) RunOnce(ctx context.Context) {
	if !sw.running.CompareAndSwap(false, true) {
		sw.Logger.LogSweeper("previous sweep still in progress, skipping run")
		return
	}
	defer sw.running.Store(false)

	now := time.Now()

	expired, err := sw.Service.Store.ListExpiredHolds(ctx, now, sweepBatchSize)
	if err != nil {
		sw.Logger.Error("SWEEPER", fmt.Sprintf("failed to list expired holds: %v", err))
		return
	}
	for _, booking := range expired {
		if _, err := sw.Service.Expire(ctx, booking.BookingID); err != nil {
			sw.Logger.Error("SWEEPER", fmt.Sprintf("failed to expire booking %s: %v", booking.BookingID, err))
		}
	}
	if len(expired) > 0 {
		sw.Logger.LogSweeper(fmt.Sprintf("swept %d lapsed holds", len(expired)))
	}

	ended, err := sw.Service.Store.ListEndedConfirmed(ctx, now, sweepBatchSize)
	if err != nil {
		sw.Logger.Error("SWEEPER", fmt.Sprintf("failed to list ended sailings: %v", err))
		return
	}
	for _, booking := range ended {
		if _, err := sw.Service.Complete(ctx, booking.BookingID); err != nil {
			sw.Logger.Error("SWEEPER", fmt.Sprintf("failed to complete booking %s: %v", booking.BookingID, err))
		}
	}
	if len(ended) > 0 {
		sw.Logger.LogSweeper(fmt.Sprintf("completed %d bookings on ended sailings", len(ended)))
	}
}
