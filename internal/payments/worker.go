package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/reservation"

	"github.com/uptrace/bun"
)

// ErrPaymentMismatch marks a webhook that references a payment this system
// does not know. Logged and acknowledged, never retried: the provider may
// hold stale references.
var ErrPaymentMismatch = errors.New("webhook references unknown payment")

type BookingEngine interface {
	PostConfirm(ctx context.Context, bookingID string)
	PostCancel(ctx context.Context, bookingID string)
}

// Worker reconciles normalized payment events with booking state. Dedupe,
// payment status recording, the booking transition and the processed marker
// all commit in one transaction, so a failure anywhere lets the provider
// redeliver and the whole event replays cleanly.
type Worker struct {
	Store  *Store
	Engine BookingEngine
	Logger *logger.Logger
}

func NewWorker(store *Store, engine BookingEngine, log *logger.Logger) *Worker {
	return &Worker{Store: store, Engine: engine, Logger: log}
}

type handleResult struct {
	duplicate      bool
	mismatched     bool
	unknownOutcome bool
	bookingID      string
	confirmed      bool
	cancelled      bool
}

// Handle processes one normalized provider event exactly once. Replays of an
// already-processed provider event id return success with no side effects.
func (w *Worker) Handle(ctx context.Context, event models.NormalizedPaymentEvent) error {
	if event.ProviderEventID == "" || event.ProviderPaymentID == "" {
		return fmt.Errorf("malformed payment event: missing provider ids")
	}

	payload, _ := json.Marshal(event)

	var result handleResult
	err := w.Store.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		seen, err := eventSeenTx(ctx, tx, event, payload)
		if err != nil {
			return err
		}
		if seen {
			result.duplicate = true
			return nil
		}

		payment, err := getPaymentByProviderIDTx(ctx, tx, event.ProviderPaymentID)
		if errors.Is(err, ErrPaymentNotFound) {
			// Terminal for this event: acknowledge so the provider stops
			// retrying a reference we will never resolve.
			result.mismatched = true
			return markEventProcessedTx(ctx, tx, event.ProviderEventID)
		}
		if err != nil {
			return err
		}
		result.bookingID = payment.BookingID

		switch event.Outcome {
		case models.OutcomeSucceeded:
			if err := updatePaymentStatusTx(ctx, tx, payment.PaymentID, models.PaymentSucceeded); err != nil {
				return err
			}
			_, won, err := reservation.ConfirmBookingTx(ctx, tx, payment.BookingID)
			if err != nil {
				return err
			}
			result.confirmed = won

		case models.OutcomeFailed:
			// The booking stays held so the customer can retry within the
			// hold window.
			if err := updatePaymentStatusTx(ctx, tx, payment.PaymentID, models.PaymentFailed); err != nil {
				return err
			}

		case models.OutcomeRefunded:
			if err := updatePaymentStatusTx(ctx, tx, payment.PaymentID, models.PaymentRefunded); err != nil {
				return err
			}
			_, won, err := reservation.CancelConfirmedBookingTx(ctx, tx, payment.BookingID)
			if err != nil {
				return err
			}
			result.cancelled = won

		default:
			// Terminal like an unknown reference: an outcome we do not
			// recognize will not parse better on redelivery, so leave the
			// payment untouched, acknowledge, and move on.
			result.unknownOutcome = true
		}

		return markEventProcessedTx(ctx, tx, event.ProviderEventID)
	})
	if err != nil {
		w.Logger.Error("WEBHOOK", fmt.Sprintf("[%s] processing failed, provider will redeliver: %v", event.ProviderEventID, err))
		return err
	}

	switch {
	case result.duplicate:
		w.Logger.LogWebhook(event.ProviderEventID, "duplicate delivery, skipped")
	case result.mismatched:
		w.Logger.Warn("WEBHOOK", fmt.Sprintf("[%s] %v: provider payment %s", event.ProviderEventID, ErrPaymentMismatch, event.ProviderPaymentID))
	case result.unknownOutcome:
		w.Logger.Warn("WEBHOOK", fmt.Sprintf("[%s] unknown outcome %q, acknowledged without action", event.ProviderEventID, event.Outcome))
	case result.confirmed:
		w.Logger.LogWebhook(event.ProviderEventID, fmt.Sprintf("payment succeeded, booking %s confirmed", result.bookingID))
		w.Engine.PostConfirm(ctx, result.bookingID)
	case result.cancelled:
		w.Logger.LogWebhook(event.ProviderEventID, fmt.Sprintf("refund processed, booking %s cancelled", result.bookingID))
		w.Engine.PostCancel(ctx, result.bookingID)
	default:
		w.Logger.LogWebhook(event.ProviderEventID, fmt.Sprintf("outcome %s recorded for booking %s", event.Outcome, result.bookingID))
	}
	return nil
}
