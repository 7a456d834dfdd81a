package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Store struct {
	Bun *bun.DB
}

func (s *Store) SavePayment(ctx context.Context, payment *models.Payment) error {
	_, err := s.Bun.NewInsert().Model(payment).Exec(ctx)
	return err
}

func (s *Store) GetPaymentByBookingID(ctx context.Context, bookingID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.Bun.NewSelect().
		Model(&payment).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func getPaymentByProviderIDTx(ctx context.Context, tx bun.Tx, providerPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := tx.NewSelect().
		Model(&payment).
		Where("provider_payment_id = ?", providerPaymentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// eventSeenTx reports whether the provider event id was already processed,
// inserting the dedupe row when it is new.
func eventSeenTx(ctx context.Context, tx bun.Tx, event models.NormalizedPaymentEvent, payload []byte) (bool, error) {
	var existing models.WebhookEvent
	err := tx.NewSelect().
		Model(&existing).
		Where("provider_event_id = ?", event.ProviderEventID).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return existing.Processed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	record := models.WebhookEvent{
		ProviderEventID: event.ProviderEventID,
		Provider:        event.Provider,
		Payload:         payload,
		Processed:       false,
		ReceivedAt:      time.Now(),
	}
	if _, err := tx.NewInsert().Model(&record).Exec(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func markEventProcessedTx(ctx context.Context, tx bun.Tx, providerEventID string) error {
	_, err := tx.NewUpdate().
		Model((*models.WebhookEvent)(nil)).
		Set("processed = ?", true).
		Set("processed_at = ?", time.Now()).
		Where("provider_event_id = ?", providerEventID).
		Exec(ctx)
	return err
}

func updatePaymentStatusTx(ctx context.Context, tx bun.Tx, paymentID string, status models.PaymentStatus) error {
	_, err := tx.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("payment_id = ?", paymentID).
		Exec(ctx)
	return err
}
