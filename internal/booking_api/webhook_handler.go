package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payments"
	"ms-booking/internal/utils"
)

type WebhookHandler struct {
	Worker *payments.Worker
	Logger *logger.Logger
}

// HandlePaymentWebhook accepts a normalized payment event. 2xx tells the
// provider to stop retrying, including for idempotent replays and for
// events with unknown references; non-2xx only on infrastructure failure so
// the provider redelivers.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var event models.NormalizedPaymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("failed to decode payload: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", err.Error()))
		return
	}

	if err := h.Worker.Handle(r.Context(), event); err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Webhook processing failed", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Event processed", map[string]string{
		"provider_event_id": event.ProviderEventID,
	}))
}
