package reservation_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-booking/internal/inventory"
	"ms-booking/internal/models"
	"ms-booking/internal/reservation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*reservation.Store, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	tables := []interface{}{
		(*models.TripSchedule)(nil),
		(*models.PriceTier)(nil),
		(*models.TripSeat)(nil),
		(*models.Booking)(nil),
		(*models.BookingItem)(nil),
		(*models.PromoCode)(nil),
		(*models.PromoRedemption)(nil),
	}
	for _, table := range tables {
		if _, err := bunDB.NewCreateTable().Model(table).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", table, err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return &reservation.Store{Bun: bunDB}, bunDB
}

func seedSchedule(t *testing.T, bunDB *bun.DB, scheduleID, tierID string, capacity int) {
	ctx := context.Background()
	schedule := models.TripSchedule{
		ScheduleID: scheduleID,
		TripID:     "trip-1",
		StartTime:  time.Now().Add(24 * time.Hour),
		EndTime:    time.Now().Add(26 * time.Hour),
		Capacity:   capacity,
		Currency:   "NGN",
		Status:     models.ScheduleActive,
	}
	_, err := bunDB.NewInsert().Model(&schedule).Exec(ctx)
	require.NoError(t, err)

	tier := models.PriceTier{
		TierID:     tierID,
		ScheduleID: scheduleID,
		Name:       "Economy",
		PriceKobo:  1000000,
		Capacity:   capacity,
	}
	_, err = bunDB.NewInsert().Model(&tier).Exec(ctx)
	require.NoError(t, err)
}

func heldBooking(scheduleID string, passengers int, tierID string) (*models.Booking, []models.BookingItem) {
	bookingID := uuid.NewString()
	booking := &models.Booking{
		BookingID:       bookingID,
		UserID:          "user-1",
		ScheduleID:      scheduleID,
		Status:          models.BookingHeld,
		TotalAmountKobo: int64(passengers) * 1000000,
		Currency:        "NGN",
		HoldExpiresAt:   time.Now().Add(15 * time.Minute),
		CreatedAt:       time.Now(),
	}
	items := make([]models.BookingItem, 0, passengers)
	for i := 0; i < passengers; i++ {
		items = append(items, models.BookingItem{
			ItemID:          uuid.NewString(),
			BookingID:       bookingID,
			ScheduleID:      scheduleID,
			TierID:          tierID,
			PassengerName:   "Passenger",
			TicketReference: "BT-" + uuid.NewString()[:6],
			PriceKobo:       1000000,
			Status:          models.ItemActive,
		})
	}
	return booking, items
}

func tierReserved(t *testing.T, bunDB *bun.DB, tierID string) int {
	var tier models.PriceTier
	err := bunDB.NewSelect().
		Model(&tier).
		Where("tier_id = ?", tierID).
		Scan(context.Background())
	require.NoError(t, err)
	return tier.Reserved
}

func TestCreateHeldBooking_CapacityGuard(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 3)
	ctx := context.Background()

	succeeded := 0
	for i := 0; i < 5; i++ {
		booking, items := heldBooking("sched-1", 1, "tier-1")
		err := store.CreateHeldBooking(ctx, booking, items)
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, inventory.ErrCapacityExceeded)
		}
	}

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 3, tierReserved(t, bunDB, "tier-1"))

	// Only the successful bookings were persisted.
	count, err := bunDB.NewSelect().Model((*models.Booking)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCreateHeldBooking_MultiPassengerAtomicity(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 2)
	ctx := context.Background()

	// A family of three cannot squeeze into two remaining seats. Nothing
	// from the order should be committed.
	booking, items := heldBooking("sched-1", 3, "tier-1")
	err := store.CreateHeldBooking(ctx, booking, items)
	assert.ErrorIs(t, err, inventory.ErrCapacityExceeded)
	assert.Equal(t, 0, tierReserved(t, bunDB, "tier-1"))

	count, err := bunDB.NewSelect().Model((*models.BookingItem)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCreateHeldBooking_SeatTakenRollsBack(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 10)
	ctx := context.Background()

	seat := models.TripSeat{
		SeatID:     "seat-A1",
		ScheduleID: "sched-1",
		TierID:     "tier-1",
		Label:      "A1",
		Active:     true,
	}
	_, err := bunDB.NewInsert().Model(&seat).Exec(ctx)
	require.NoError(t, err)

	first, firstItems := heldBooking("sched-1", 1, "tier-1")
	firstItems[0].SeatID = "seat-A1"
	require.NoError(t, store.CreateHeldBooking(ctx, first, firstItems))

	second, secondItems := heldBooking("sched-1", 2, "tier-1")
	secondItems[1].SeatID = "seat-A1"
	err = store.CreateHeldBooking(ctx, second, secondItems)
	assert.ErrorIs(t, err, inventory.ErrSeatUnavailable)

	// The losing order left no trace: capacity still reflects only the
	// first booking.
	assert.Equal(t, 1, tierReserved(t, bunDB, "tier-1"))
}

func TestConfirmBooking_Idempotent(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 5)
	ctx := context.Background()

	booking, items := heldBooking("sched-1", 2, "tier-1")
	require.NoError(t, store.CreateHeldBooking(ctx, booking, items))

	status, won, err := store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.BookingConfirmed, status)

	status, won, err = store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, models.BookingConfirmed, status)

	stored, err := store.GetBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.True(t, stored.HoldExpiresAt.IsZero(), "hold expiry should be cleared on confirm")

	// Capacity stays consumed.
	assert.Equal(t, 2, tierReserved(t, bunDB, "tier-1"))
}

func TestConfirmBooking_ConsumesPromo(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 5)
	ctx := context.Background()

	code := models.PromoCode{
		Code:       "GROUPDEAL",
		Type:       models.PromoPercentage,
		Value:      15,
		UsageLimit: 100,
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(time.Hour),
		IsActive:   true,
	}
	_, err := bunDB.NewInsert().Model(&code).Exec(ctx)
	require.NoError(t, err)

	booking, items := heldBooking("sched-1", 1, "tier-1")
	booking.PromoCode = "GROUPDEAL"
	require.NoError(t, store.CreateHeldBooking(ctx, booking, items))

	_, won, err := store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	require.True(t, won)

	promo, err := store.GetPromoCode(ctx, "GROUPDEAL")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.CurrentUsage)

	redemptions, err := store.CountUserRedemptions(ctx, "GROUPDEAL", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, redemptions)

	// Replaying the confirmation must not consume a second redemption.
	_, won, err = store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.False(t, won)

	promo, err = store.GetPromoCode(ctx, "GROUPDEAL")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.CurrentUsage)
}

// When the usage counter is already at its cap, the confirmation still goes
// through with the price the hold locked in; only the increment is skipped.
func TestConfirmBooking_ExhaustedPromoCounterStillConfirms(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 5)
	ctx := context.Background()

	code := models.PromoCode{
		Code:         "LASTSEAT",
		Type:         models.PromoPercentage,
		Value:        10,
		UsageLimit:   1,
		CurrentUsage: 1,
		ValidFrom:    time.Now().Add(-time.Hour),
		ValidUntil:   time.Now().Add(time.Hour),
		IsActive:     true,
	}
	_, err := bunDB.NewInsert().Model(&code).Exec(ctx)
	require.NoError(t, err)

	booking, items := heldBooking("sched-1", 1, "tier-1")
	booking.PromoCode = "LASTSEAT"
	require.NoError(t, store.CreateHeldBooking(ctx, booking, items))

	status, won, err := store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	require.True(t, won)
	assert.Equal(t, models.BookingConfirmed, status)

	promo, err := store.GetPromoCode(ctx, "LASTSEAT")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.CurrentUsage, "counter must not pass its cap")
}

func TestExpireBooking_ReleasesCapacity(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 2)
	ctx := context.Background()

	booking, items := heldBooking("sched-1", 2, "tier-1")
	require.NoError(t, store.CreateHeldBooking(ctx, booking, items))
	require.Equal(t, 2, tierReserved(t, bunDB, "tier-1"))

	status, won, err := store.ExpireBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.BookingExpired, status)
	assert.Equal(t, 0, tierReserved(t, bunDB, "tier-1"))

	var voided []models.BookingItem
	err = bunDB.NewSelect().
		Model(&voided).
		Where("booking_id = ?", booking.BookingID).
		Scan(ctx)
	require.NoError(t, err)
	for _, item := range voided {
		assert.Equal(t, models.ItemVoid, item.Status)
	}

	// A late payment webhook arriving after expiry is a no-op.
	status, won, err = store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, models.BookingExpired, status)
}

func TestExpireBooking_LosesToConfirm(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 2)
	ctx := context.Background()

	booking, items := heldBooking("sched-1", 1, "tier-1")
	require.NoError(t, store.CreateHeldBooking(ctx, booking, items))

	_, won, err := store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	require.True(t, won)

	// The sweeper lost the race: capacity must stay consumed.
	status, won, err := store.ExpireBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, models.BookingConfirmed, status)
	assert.Equal(t, 1, tierReserved(t, bunDB, "tier-1"))
}

func TestCancelConfirmedBooking_RefundPath(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 2)
	ctx := context.Background()

	booking, items := heldBooking("sched-1", 2, "tier-1")
	require.NoError(t, store.CreateHeldBooking(ctx, booking, items))

	_, won, err := store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	require.True(t, won)

	status, won, err := store.CancelConfirmedBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.BookingCancelled, status)
	assert.Equal(t, 0, tierReserved(t, bunDB, "tier-1"))
}

func TestSeatFreedAfterCancel(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 10)
	ctx := context.Background()

	seat := models.TripSeat{
		SeatID:     "seat-A1",
		ScheduleID: "sched-1",
		TierID:     "tier-1",
		Label:      "A1",
		Active:     true,
	}
	_, err := bunDB.NewInsert().Model(&seat).Exec(ctx)
	require.NoError(t, err)

	first, firstItems := heldBooking("sched-1", 1, "tier-1")
	firstItems[0].SeatID = "seat-A1"
	require.NoError(t, store.CreateHeldBooking(ctx, first, firstItems))

	_, won, err := store.CancelHeldBooking(ctx, first.BookingID)
	require.NoError(t, err)
	require.True(t, won)

	// The voided item no longer blocks the seat.
	second, secondItems := heldBooking("sched-1", 1, "tier-1")
	secondItems[0].SeatID = "seat-A1"
	assert.NoError(t, store.CreateHeldBooking(ctx, second, secondItems))
}

func TestCompleteBooking(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 5)
	ctx := context.Background()

	booking, items := heldBooking("sched-1", 1, "tier-1")
	require.NoError(t, store.CreateHeldBooking(ctx, booking, items))

	// Held bookings do not complete.
	status, won, err := store.CompleteBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, models.BookingHeld, status)

	_, _, err = store.ConfirmBooking(ctx, booking.BookingID)
	require.NoError(t, err)

	status, won, err = store.CompleteBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.BookingCompleted, status)

	// Completion keeps capacity consumed for reporting.
	assert.Equal(t, 1, tierReserved(t, bunDB, "tier-1"))
}

func TestListExpiredHolds(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 10)
	ctx := context.Background()

	lapsed, lapsedItems := heldBooking("sched-1", 1, "tier-1")
	lapsed.HoldExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.CreateHeldBooking(ctx, lapsed, lapsedItems))

	fresh, freshItems := heldBooking("sched-1", 1, "tier-1")
	require.NoError(t, store.CreateHeldBooking(ctx, fresh, freshItems))

	expired, err := store.ListExpiredHolds(ctx, time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, lapsed.BookingID, expired[0].BookingID)
}

func TestListEndedConfirmed(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	ended := models.TripSchedule{
		ScheduleID: "sched-past",
		TripID:     "trip-1",
		StartTime:  time.Now().Add(-3 * time.Hour),
		EndTime:    time.Now().Add(-time.Hour),
		Capacity:   10,
		Currency:   "NGN",
		Status:     models.ScheduleActive,
	}
	_, err := bunDB.NewInsert().Model(&ended).Exec(ctx)
	require.NoError(t, err)
	tier := models.PriceTier{TierID: "tier-past", ScheduleID: "sched-past", Name: "Economy", PriceKobo: 1000000, Capacity: 10}
	_, err = bunDB.NewInsert().Model(&tier).Exec(ctx)
	require.NoError(t, err)

	seedSchedule(t, bunDB, "sched-future", "tier-future", 10)

	past, pastItems := heldBooking("sched-past", 1, "tier-past")
	require.NoError(t, store.CreateHeldBooking(ctx, past, pastItems))
	_, _, err = store.ConfirmBooking(ctx, past.BookingID)
	require.NoError(t, err)

	future, futureItems := heldBooking("sched-future", 1, "tier-future")
	require.NoError(t, store.CreateHeldBooking(ctx, future, futureItems))
	_, _, err = store.ConfirmBooking(ctx, future.BookingID)
	require.NoError(t, err)

	bookings, err := store.ListEndedConfirmed(ctx, time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, past.BookingID, bookings[0].BookingID)
}

func TestGetBookingsByUser(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-1", 10)
	ctx := context.Background()

	mine, mineItems := heldBooking("sched-1", 2, "tier-1")
	require.NoError(t, store.CreateHeldBooking(ctx, mine, mineItems))

	other, otherItems := heldBooking("sched-1", 1, "tier-1")
	other.UserID = "someone-else"
	require.NoError(t, store.CreateHeldBooking(ctx, other, otherItems))

	bookings, err := store.GetBookingsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, mine.BookingID, bookings[0].Booking.BookingID)
	assert.Len(t, bookings[0].Items, 2)
}

// Two customers hold the last two Economy seats, a third is refused. One
// pays and confirms; the other abandons and the sweep frees their seat.
func TestEconomyCapacityLifecycle(t *testing.T) {
	store, bunDB := setupTestDB(t)
	seedSchedule(t, bunDB, "sched-1", "tier-econ", 2)
	ctx := context.Background()

	bookingA, itemsA := heldBooking("sched-1", 1, "tier-econ")
	require.NoError(t, store.CreateHeldBooking(ctx, bookingA, itemsA))

	bookingB, itemsB := heldBooking("sched-1", 1, "tier-econ")
	require.NoError(t, store.CreateHeldBooking(ctx, bookingB, itemsB))

	bookingC, itemsC := heldBooking("sched-1", 1, "tier-econ")
	err := store.CreateHeldBooking(ctx, bookingC, itemsC)
	assert.ErrorIs(t, err, inventory.ErrCapacityExceeded)

	// A pays.
	_, won, err := store.ConfirmBooking(ctx, bookingA.BookingID)
	require.NoError(t, err)
	require.True(t, won)

	// B never pays; the sweep sixteen minutes later releases their seat.
	_, err = bunDB.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("hold_expires_at = ?", time.Now().Add(-time.Minute)).
		Where("booking_id = ?", bookingB.BookingID).
		Exec(ctx)
	require.NoError(t, err)

	lapsed, err := store.ListExpiredHolds(ctx, time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, lapsed, 1)
	require.Equal(t, bookingB.BookingID, lapsed[0].BookingID)

	_, won, err = store.ExpireBooking(ctx, bookingB.BookingID)
	require.NoError(t, err)
	require.True(t, won)

	// Exactly one seat is available again.
	assert.Equal(t, 1, tierReserved(t, bunDB, "tier-econ"))
	bookingD, itemsD := heldBooking("sched-1", 1, "tier-econ")
	assert.NoError(t, store.CreateHeldBooking(ctx, bookingD, itemsD))
}

func TestGetBooking_NotFound(t *testing.T) {
	store, _ := setupTestDB(t)

	_, err := store.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, reservation.ErrBookingNotFound)
}
