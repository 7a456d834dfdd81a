package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

var (
	ErrCapacityExceeded    = errors.New("tier capacity exceeded")
	ErrSeatUnavailable     = errors.New("seat is unavailable")
	ErrScheduleNotBookable = errors.New("schedule is not bookable")
	ErrNotFound            = errors.New("not found")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetSchedule(ctx context.Context, scheduleID string) (*models.TripSchedule, error) {
	var schedule models.TripSchedule
	err := d.Bun.NewSelect().
		Model(&schedule).
		Where("schedule_id = ?", scheduleID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (d *DB) GetTier(ctx context.Context, tierID string) (*models.PriceTier, error) {
	var tier models.PriceTier
	err := d.Bun.NewSelect().
		Model(&tier).
		Where("tier_id = ?", tierID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

func (d *DB) GetTiersBySchedule(ctx context.Context, scheduleID string) ([]models.PriceTier, error) {
	var tiers []models.PriceTier
	err := d.Bun.NewSelect().
		Model(&tiers).
		Where("schedule_id = ?", scheduleID).
		Order("price_kobo ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// CheckBookable verifies a schedule can still take bookings: it exists, has
// not been cancelled, and has not departed.
func (d *DB) CheckBookable(ctx context.Context, scheduleID string, now time.Time) (*models.TripSchedule, error) {
	schedule, err := d.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.Status == models.ScheduleCancelled || !schedule.StartTime.After(now) {
		return nil, ErrScheduleNotBookable
	}
	return schedule, nil
}

// ReserveCapacity consumes count seats from a tier's capacity counter. The
// availability check and the consume are one guarded UPDATE so two
// concurrent bookings can never both take the last seat. Runs against
// whatever executor the caller passes, so it participates in the booking
// transaction.
func ReserveCapacity(ctx context.Context, idb bun.IDB, tierID string, count int) error {
	res, err := idb.NewUpdate().
		Model((*models.PriceTier)(nil)).
		Set("reserved = reserved + ?", count).
		Where("tier_id = ?", tierID).
		Where("reserved + ? <= capacity", count).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reserve capacity for tier %s: %w", tierID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCapacityExceeded
	}
	return nil
}

// ReleaseCapacity is the inverse of ReserveCapacity, used on cancellation
// and hold expiry. The counter never goes below zero.
func ReleaseCapacity(ctx context.Context, idb bun.IDB, tierID string, count int) error {
	_, err := idb.NewUpdate().
		Model((*models.PriceTier)(nil)).
		Set("reserved = CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", count, count).
		Where("tier_id = ?", tierID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release capacity for tier %s: %w", tierID, err)
	}
	return nil
}

// CheckSeatAvailable verifies a specific seat exists, is active, belongs to
// the requested tier, and is not already referenced by a live booking item.
func CheckSeatAvailable(ctx context.Context, idb bun.IDB, scheduleID, tierID, seatID string) error {
	var seat models.TripSeat
	err := idb.NewSelect().
		Model(&seat).
		Where("seat_id = ?", seatID).
		Where("schedule_id = ?", scheduleID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSeatUnavailable
	}
	if err != nil {
		return err
	}
	if !seat.Active || seat.TierID != tierID {
		return ErrSeatUnavailable
	}

	taken, err := idb.NewSelect().
		Model((*models.BookingItem)(nil)).
		Where("schedule_id = ?", scheduleID).
		Where("seat_id = ?", seatID).
		Where("status <> ?", models.ItemVoid).
		Exists(ctx)
	if err != nil {
		return err
	}
	if taken {
		return ErrSeatUnavailable
	}
	return nil
}
