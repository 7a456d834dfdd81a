package booking_api

import (
	"errors"
	"net/http"

	"ms-booking/internal/checkin"
	"ms-booking/internal/inventory"
	"ms-booking/internal/payments"
	"ms-booking/internal/promo"
	"ms-booking/internal/reservation"
	"ms-booking/internal/seatlock"
)

// apiError maps a domain error onto the wire: a machine code the UI can act
// on plus the HTTP status.
type apiError struct {
	Code   string
	Status int
}

var errorTable = []struct {
	err error
	out apiError
}{
	{inventory.ErrCapacityExceeded, apiError{"CAPACITY_EXCEEDED", http.StatusConflict}},
	{inventory.ErrSeatUnavailable, apiError{"SEAT_UNAVAILABLE", http.StatusConflict}},
	{inventory.ErrScheduleNotBookable, apiError{"SCHEDULE_NOT_BOOKABLE", http.StatusUnprocessableEntity}},
	{inventory.ErrNotFound, apiError{"NOT_FOUND", http.StatusNotFound}},
	{seatlock.ErrLockUnavailable, apiError{"LOCK_UNAVAILABLE", http.StatusConflict}},
	{promo.ErrPromoExpired, apiError{"PROMO_EXPIRED", http.StatusUnprocessableEntity}},
	{promo.ErrPromoExhausted, apiError{"PROMO_EXHAUSTED", http.StatusUnprocessableEntity}},
	{promo.ErrPromoUserLimitReached, apiError{"PROMO_USER_LIMIT_REACHED", http.StatusUnprocessableEntity}},
	{promo.ErrPromoMinimumNotMet, apiError{"PROMO_MINIMUM_NOT_MET", http.StatusUnprocessableEntity}},
	{reservation.ErrPromoNotFound, apiError{"PROMO_NOT_FOUND", http.StatusUnprocessableEntity}},
	{reservation.ErrBookingNotFound, apiError{"NOT_FOUND", http.StatusNotFound}},
	{payments.ErrPaymentNotFound, apiError{"NOT_FOUND", http.StatusNotFound}},
	{checkin.ErrNotFound, apiError{"NOT_FOUND", http.StatusNotFound}},
	{checkin.ErrNotConfirmed, apiError{"NOT_CONFIRMED", http.StatusUnprocessableEntity}},
}

func classify(err error) apiError {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.out
		}
	}
	return apiError{"INTERNAL", http.StatusInternalServerError}
}
