package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payments"
	"ms-booking/internal/reservation"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type PaymentHandler struct {
	Payments     *payments.Store
	Reservations *reservation.Service
	Logger       *logger.Logger
}

type registerPaymentRequest struct {
	Provider          string `json:"provider"`
	ProviderPaymentID string `json:"provider_payment_id"`
}

// RegisterPayment records a payment attempt against a held booking so the
// provider's webhook can later be matched back to it. The actual charge
// happens on the provider's side; we only keep the reference.
func (h *PaymentHandler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	var req registerPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Provider == "" || req.ProviderPaymentID == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Missing fields", "provider and provider_payment_id are required"))
		return
	}

	booking, err := h.Reservations.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, "Booking not found", err)
		return
	}
	if booking.Booking.Status != models.BookingHeld {
		writeJSON(w, http.StatusUnprocessableEntity,
			utils.CodedErrorResponse("NOT_PAYABLE", "Booking is not awaiting payment",
				fmt.Sprintf("booking is %s", booking.Booking.Status)))
		return
	}

	payment := &models.Payment{
		PaymentID:         utils.GeneratePaymentID(),
		BookingID:         bookingID,
		Provider:          req.Provider,
		ProviderPaymentID: req.ProviderPaymentID,
		Status:            models.PaymentPending,
		AmountKobo:        booking.Booking.TotalAmountKobo,
		CreatedAt:         time.Now(),
	}

	if err := h.Payments.SavePayment(r.Context(), payment); err != nil {
		h.Logger.Error("API", fmt.Sprintf("RegisterPayment: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not record payment", err.Error()))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("RegisterPayment: booking=%s provider=%s ref=%s", bookingID, req.Provider, req.ProviderPaymentID))
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Payment registered", payment))
}

// GetPaymentStatus returns the latest payment attempt for a booking. The UI
// polls this after redirecting to the provider.
func (h *PaymentHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	payment, err := h.Payments.GetPaymentByBookingID(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, "No payment found for booking", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Payment", payment))
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, message string, err error) {
	mapped := classify(err)
	writeJSON(w, mapped.Status, utils.CodedErrorResponse(mapped.Code, message, err.Error()))
}
