package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/inventory"
	"ms-booking/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrBookingNotFound = errors.New("booking not found")

// Store persists bookings and runs every state transition inside a single
// transaction. Transitions are conditional updates keyed on
// (booking_id, status): when the from-state no longer matches, the losing
// caller gets the current state back and no side effects run. That makes the
// machine idempotent under a webhook racing the sweeper.
type Store struct {
	Bun *bun.DB
}

// CreateHeldBooking reserves capacity, checks seat uniqueness and persists
// the booking with its items atomically. Any failure rolls the whole order
// back; a partial reservation across passengers is never committed.
func (s *Store) CreateHeldBooking(ctx context.Context, booking *models.Booking, items []models.BookingItem) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		perTier := make(map[string]int)
		for _, item := range items {
			perTier[item.TierID]++
		}
		for tierID, count := range perTier {
			if err := inventory.ReserveCapacity(ctx, tx, tierID, count); err != nil {
				return err
			}
		}

		for _, item := range items {
			if item.SeatID == "" {
				continue
			}
			if err := inventory.CheckSeatAvailable(ctx, tx, item.ScheduleID, item.TierID, item.SeatID); err != nil {
				return err
			}
		}

		if _, err := tx.NewInsert().Model(booking).Exec(ctx); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return fmt.Errorf("insert booking items: %w", err)
		}
		return nil
	})
}

func (s *Store) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := s.Bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *Store) GetBookingWithItems(ctx context.Context, bookingID string) (*models.BookingWithItems, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var items []models.BookingItem
	err = s.Bun.NewSelect().
		Model(&items).
		Where("booking_id = ?", bookingID).
		Order("ticket_reference").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &models.BookingWithItems{Booking: *booking, Items: items}, nil
}

func (s *Store) GetBookingsByUser(ctx context.Context, userID string) ([]models.BookingWithItems, error) {
	var bookings []models.Booking
	err := s.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return []models.BookingWithItems{}, nil
	}

	bookingIDs := make([]string, len(bookings))
	for i, b := range bookings {
		bookingIDs[i] = b.BookingID
	}

	var items []models.BookingItem
	err = s.Bun.NewSelect().
		Model(&items).
		Where("booking_id IN (?)", bun.In(bookingIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	itemsByBooking := make(map[string][]models.BookingItem)
	for _, item := range items {
		itemsByBooking[item.BookingID] = append(itemsByBooking[item.BookingID], item)
	}

	result := make([]models.BookingWithItems, len(bookings))
	for i, b := range bookings {
		result[i] = models.BookingWithItems{Booking: b, Items: itemsByBooking[b.BookingID]}
		if result[i].Items == nil {
			result[i].Items = []models.BookingItem{}
		}
	}
	return result, nil
}

func (s *Store) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (s *Store) CountUserRedemptions(ctx context.Context, code, userID string) (int, error) {
	return s.Bun.NewSelect().
		Model((*models.PromoRedemption)(nil)).
		Where("code = ?", code).
		Where("user_id = ?", userID).
		Count(ctx)
}

// transitionTx flips booking status from→to inside the given transaction.
// Returns whether this caller won the transition, and the status after it.
func transitionTx(ctx context.Context, tx bun.Tx, bookingID string, from, to models.BookingStatus) (models.BookingStatus, bool, error) {
	res, err := tx.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("booking_id = ?", bookingID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return "", false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if rows == 0 {
		var current models.Booking
		err := tx.NewSelect().
			Model(&current).
			Column("status").
			Where("booking_id = ?", bookingID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, ErrBookingNotFound
		}
		if err != nil {
			return "", false, err
		}
		return current.Status, false, nil
	}
	return to, true, nil
}

// releaseBookingCapacityTx voids the booking's live items and hands their
// seats back to the tier counters.
func releaseBookingCapacityTx(ctx context.Context, tx bun.Tx, bookingID string) error {
	var items []models.BookingItem
	err := tx.NewSelect().
		Model(&items).
		Where("booking_id = ?", bookingID).
		Where("status = ?", models.ItemActive).
		Scan(ctx)
	if err != nil {
		return err
	}

	perTier := make(map[string]int)
	for _, item := range items {
		perTier[item.TierID]++
	}
	for tierID, count := range perTier {
		if err := inventory.ReleaseCapacity(ctx, tx, tierID, count); err != nil {
			return err
		}
	}

	_, err = tx.NewUpdate().
		Model((*models.BookingItem)(nil)).
		Set("status = ?", models.ItemVoid).
		Where("booking_id = ?", bookingID).
		Where("status = ?", models.ItemActive).
		Exec(ctx)
	return err
}

// ConfirmBookingTx moves held → confirmed inside the caller's transaction,
// clearing the hold expiry and consuming promo usage alongside the status
// flip. Exposed so the payment reconciliation worker can drive the
// transition within its own webhook-processing transaction.
func ConfirmBookingTx(ctx context.Context, tx bun.Tx, bookingID string) (models.BookingStatus, bool, error) {
	status, won, err := transitionTx(ctx, tx, bookingID, models.BookingHeld, models.BookingConfirmed)
	if err != nil || !won {
		return status, won, err
	}

	if _, err := tx.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("hold_expires_at = NULL").
		Where("booking_id = ?", bookingID).
		Exec(ctx); err != nil {
		return "", false, err
	}

	var booking models.Booking
	if err := tx.NewSelect().
		Model(&booking).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx); err != nil {
		return "", false, err
	}

	if booking.PromoCode != "" {
		// Guarded increment: the counter never overshoots the limit even
		// when two confirmations race on the last redemption. Zero rows
		// means this confirmation lost that race; the discount was priced
		// into the hold and stands, so the confirmation proceeds and only
		// the counter stays at its cap.
		_, err := tx.NewUpdate().
			Model((*models.PromoCode)(nil)).
			Set("current_usage = current_usage + 1").
			Where("code = ?", booking.PromoCode).
			Where("usage_limit = 0 OR current_usage < usage_limit").
			Exec(ctx)
		if err != nil {
			return "", false, err
		}

		redemption := models.PromoRedemption{
			RedemptionID: uuid.NewString(),
			Code:         booking.PromoCode,
			UserID:       booking.UserID,
			BookingID:    bookingID,
			RedeemedAt:   time.Now(),
		}
		if _, err := tx.NewInsert().Model(&redemption).Exec(ctx); err != nil {
			return "", false, err
		}
	}
	return status, won, nil
}

// CancelConfirmedBookingTx is the refund-path transition, usable inside the
// webhook-processing transaction.
func CancelConfirmedBookingTx(ctx context.Context, tx bun.Tx, bookingID string) (models.BookingStatus, bool, error) {
	status, won, err := transitionTx(ctx, tx, bookingID, models.BookingConfirmed, models.BookingCancelled)
	if err != nil || !won {
		return status, won, err
	}
	if err := releaseBookingCapacityTx(ctx, tx, bookingID); err != nil {
		return "", false, err
	}
	return status, won, nil
}

func (s *Store) ConfirmBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error) {
	var status models.BookingStatus
	var won bool
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		status, won, err = ConfirmBookingTx(ctx, tx, bookingID)
		return err
	})
	return status, won, err
}

// ExpireBooking moves held → expired and releases the booking's capacity.
func (s *Store) ExpireBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error) {
	return s.releaseTransition(ctx, bookingID, models.BookingHeld, models.BookingExpired)
}

// CancelHeldBooking moves held → cancelled on explicit customer cancel.
func (s *Store) CancelHeldBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error) {
	return s.releaseTransition(ctx, bookingID, models.BookingHeld, models.BookingCancelled)
}

// CancelConfirmedBooking moves confirmed → cancelled on the refund path.
func (s *Store) CancelConfirmedBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error) {
	var status models.BookingStatus
	var won bool
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		status, won, err = CancelConfirmedBookingTx(ctx, tx, bookingID)
		return err
	})
	return status, won, err
}

func (s *Store) releaseTransition(ctx context.Context, bookingID string, from, to models.BookingStatus) (models.BookingStatus, bool, error) {
	var status models.BookingStatus
	var won bool
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		status, won, err = transitionTx(ctx, tx, bookingID, from, to)
		if err != nil || !won {
			return err
		}
		return releaseBookingCapacityTx(ctx, tx, bookingID)
	})
	return status, won, err
}

// CompleteBooking moves confirmed → completed once the sailing has ended.
// Terminal bookkeeping only, no capacity effect.
func (s *Store) CompleteBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error) {
	var status models.BookingStatus
	var won bool
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		status, won, err = transitionTx(ctx, tx, bookingID, models.BookingConfirmed, models.BookingCompleted)
		return err
	})
	return status, won, err
}

// ListExpiredHolds returns held bookings whose hold window has lapsed.
func (s *Store) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.Bun.NewSelect().
		Model(&bookings).
		Where("status = ?", models.BookingHeld).
		Where("hold_expires_at < ?", now).
		Order("hold_expires_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListEndedConfirmed returns confirmed bookings on schedules that have ended.
func (s *Store) ListEndedConfirmed(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.Bun.NewSelect().
		Model(&bookings).
		Join("JOIN trip_schedules AS ts ON ts.schedule_id = booking.schedule_id").
		Where("booking.status = ?", models.BookingConfirmed).
		Where("ts.end_time < ?", now).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Store) UpdateItemQR(ctx context.Context, itemID string, qr []byte) error {
	_, err := s.Bun.NewUpdate().
		Model((*models.BookingItem)(nil)).
		Set("qr_code = ?", qr).
		Where("item_id = ?", itemID).
		Exec(ctx)
	return err
}
