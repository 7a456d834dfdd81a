package booking_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/reservation"
	"ms-booking/internal/seatlock"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Reservations *reservation.Service
	Inventory    *inventory.DB
	Locks        *seatlock.Manager
	Logger       *logger.Logger
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	mapped := classify(err)
	writeJSON(w, mapped.Status, utils.CodedErrorResponse(mapped.Code, message, err.Error()))
}

func isStaff(ctx context.Context) bool {
	switch auth.Role(ctx) {
	case "staff", "operator", "admin":
		return true
	}
	return false
}

// CreateBooking commits a customer's selection into a held booking.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: failed to decode request body: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CreateBooking: schedule=%s items=%d user=%s", req.ScheduleID, len(req.Items), userID))

	response, err := h.Reservations.CreateBooking(r.Context(), userID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: %v", err))
		h.writeError(w, "Could not create booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Booking held", response))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("API", fmt.Sprintf("GetBooking: bookingId=%s", bookingID))

	booking, err := h.Reservations.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBooking: %v", err))
		h.writeError(w, "Booking not found", err)
		return
	}
	if booking.Booking.UserID != auth.UserID(r.Context()) && !isStaff(r.Context()) {
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "booking belongs to another user"))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking", booking))
}

func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	bookings, err := h.Reservations.GetBookingsByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyBookings: %v", err))
		h.writeError(w, "Could not list bookings", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Bookings", bookings))
}

// CancelBooking releases a held or confirmed booking. Cancelling a booking
// the state machine has already moved past reports the current state.
// Customers can only drop their own holds; the confirmed-cancel refund
// path is reserved for staff.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("API", fmt.Sprintf("CancelBooking: bookingId=%s", bookingID))

	booking, err := h.Reservations.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelBooking: %v", err))
		h.writeError(w, "Booking not found", err)
		return
	}
	if !isStaff(r.Context()) {
		if booking.Booking.UserID != auth.UserID(r.Context()) {
			writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "booking belongs to another user"))
			return
		}
		if booking.Booking.Status == models.BookingConfirmed {
			writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "cancelling a confirmed booking requires staff"))
			return
		}
	}

	status, err := h.Reservations.Cancel(r.Context(), bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelBooking: %v", err))
		h.writeError(w, "Could not cancel booking", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking state", map[string]interface{}{
		"booking_id": bookingID,
		"status":     status,
	}))
}

type tierAvailability struct {
	TierID    string `json:"tier_id"`
	Name      string `json:"name"`
	PriceKobo int64  `json:"price_kobo"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
}

type scheduleAvailability struct {
	ScheduleID string             `json:"schedule_id"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    time.Time          `json:"end_time"`
	Currency   string             `json:"currency"`
	Status     string             `json:"status"`
	Tiers      []tierAvailability `json:"tiers"`
}

// GetScheduleAvailability reports remaining capacity per tier so the UI can
// render the booking page. The numbers are a snapshot; the booking
// transaction is what actually enforces them.
func (h *Handler) GetScheduleAvailability(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "scheduleId")

	schedule, err := h.Inventory.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		h.writeError(w, "Schedule not found", err)
		return
	}

	tiers, err := h.Inventory.GetTiersBySchedule(r.Context(), scheduleID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetScheduleAvailability: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load availability", err.Error()))
		return
	}

	out := scheduleAvailability{
		ScheduleID: schedule.ScheduleID,
		StartTime:  schedule.StartTime,
		EndTime:    schedule.EndTime,
		Currency:   schedule.Currency,
		Status:     string(schedule.Status),
		Tiers:      make([]tierAvailability, 0, len(tiers)),
	}
	for _, tier := range tiers {
		out.Tiers = append(out.Tiers, tierAvailability{
			TierID:    tier.TierID,
			Name:      tier.Name,
			PriceKobo: tier.PriceKobo,
			Capacity:  tier.Capacity,
			Remaining: tier.Capacity - tier.Reserved,
		})
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Availability", out))
}

type seatLockRequest struct {
	ScheduleID string   `json:"schedule_id"`
	Keys       []string `json:"keys"`
}

// AcquireSeatLocks claims seats for the caller's checkout session. The
// holder is the authenticated user id; locks expire on their own TTL.
func (h *Handler) AcquireSeatLocks(w http.ResponseWriter, r *http.Request) {
	var req seatLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	holder := auth.UserID(r.Context())
	ok, err := h.Locks.AcquireAll(req.ScheduleID, req.Keys, holder)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AcquireSeatLocks: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Lock store error", err.Error()))
		return
	}
	if !ok {
		h.writeError(w, "One or more seats are locked by another session", seatlock.ErrLockUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Seats locked", req.Keys))
}

func (h *Handler) RenewSeatLock(w http.ResponseWriter, r *http.Request) {
	var req seatLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	holder := auth.UserID(r.Context())
	for _, key := range req.Keys {
		if err := h.Locks.Renew(req.ScheduleID, key, holder); err != nil {
			h.writeError(w, "Could not renew seat lock", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Locks renewed", req.Keys))
}

func (h *Handler) ReleaseSeatLocks(w http.ResponseWriter, r *http.Request) {
	var req seatLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	holder := auth.UserID(r.Context())
	if err := h.Locks.ReleaseAll(req.ScheduleID, req.Keys, holder); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ReleaseSeatLocks: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Lock store error", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Locks released", req.Keys))
}
