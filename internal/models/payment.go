package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID         string        `bun:"payment_id,pk" json:"payment_id"`
	BookingID         string        `bun:"booking_id,notnull" json:"booking_id"`
	Provider          string        `bun:"provider,notnull" json:"provider"`
	ProviderPaymentID string        `bun:"provider_payment_id,notnull,unique" json:"provider_payment_id"`
	Status            PaymentStatus `bun:"status,notnull" json:"status"`
	AmountKobo        int64         `bun:"amount_kobo,notnull" json:"amount_kobo"`
	CreatedAt         time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// WebhookEvent is the dedupe record for inbound provider notifications,
// keyed by the provider-supplied idempotency id.
type WebhookEvent struct {
	bun.BaseModel `bun:"table:webhook_events"`

	ProviderEventID string    `bun:"provider_event_id,pk" json:"provider_event_id"`
	Provider        string    `bun:"provider,notnull" json:"provider"`
	Payload         []byte    `bun:"payload" json:"payload,omitempty"`
	Processed       bool      `bun:"processed,notnull,default:false" json:"processed"`
	ReceivedAt      time.Time `bun:"received_at,notnull" json:"received_at"`
	ProcessedAt     time.Time `bun:"processed_at,nullzero" json:"processed_at,omitempty"`
}

type PaymentOutcome string

const (
	OutcomeSucceeded PaymentOutcome = "succeeded"
	OutcomeFailed    PaymentOutcome = "failed"
	OutcomeRefunded  PaymentOutcome = "refunded"
)

// NormalizedPaymentEvent is the provider-agnostic shape the reconciliation
// worker consumes. Provider-specific payloads are normalized at the edge.
type NormalizedPaymentEvent struct {
	ProviderEventID   string         `json:"provider_event_id"`
	Provider          string         `json:"provider"`
	ProviderPaymentID string         `json:"provider_payment_id"`
	Outcome           PaymentOutcome `json:"outcome"`
	AmountKobo        int64          `json:"amount_kobo"`
}
