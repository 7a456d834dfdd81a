package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingHeld      BookingStatus = "held"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
	BookingCompleted BookingStatus = "completed"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID       string        `bun:"booking_id,pk" json:"booking_id"`
	UserID          string        `bun:"user_id,notnull" json:"user_id"`
	ScheduleID      string        `bun:"schedule_id,notnull" json:"schedule_id"`
	Status          BookingStatus `bun:"status,notnull" json:"status"`
	TotalAmountKobo int64         `bun:"total_amount_kobo,notnull" json:"total_amount_kobo"`
	Currency        string        `bun:"currency,notnull" json:"currency"`
	PromoCode       string        `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	DiscountKobo    int64         `bun:"discount_kobo,notnull,default:0" json:"discount_kobo"`
	HoldExpiresAt   time.Time     `bun:"hold_expires_at,nullzero" json:"hold_expires_at,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type BookingItemStatus string

const (
	ItemActive BookingItemStatus = "active"
	ItemVoid   BookingItemStatus = "void"
)

type BookingItem struct {
	bun.BaseModel `bun:"table:booking_items"`

	ItemID          string            `bun:"item_id,pk" json:"item_id"`
	BookingID       string            `bun:"booking_id,notnull" json:"booking_id"`
	ScheduleID      string            `bun:"schedule_id,notnull" json:"schedule_id"`
	TierID          string            `bun:"tier_id,notnull" json:"tier_id"`
	SeatID          string            `bun:"seat_id,nullzero" json:"seat_id,omitempty"`
	PassengerName   string            `bun:"passenger_name,notnull" json:"passenger_name"`
	TicketReference string            `bun:"ticket_reference,notnull,unique" json:"ticket_reference"`
	PriceKobo       int64             `bun:"price_kobo,notnull" json:"price_kobo"`
	Status          BookingItemStatus `bun:"status,notnull" json:"status"`
	QRCode          []byte            `bun:"qr_code" json:"qr_code,omitempty"`
}

type BookingWithItems struct {
	Booking Booking       `json:"booking"`
	Items   []BookingItem `json:"items"`
}

// ---------------- API DTOs ----------------

type BookingItemRequest struct {
	TierID        string `json:"tier_id"`
	SeatID        string `json:"seat_id,omitempty"`
	PassengerName string `json:"passenger_name"`
}

type BookingRequest struct {
	ScheduleID string               `json:"schedule_id"`
	Items      []BookingItemRequest `json:"items"`
	PromoCode  string               `json:"promo_code,omitempty"`
}

type BookingResponse struct {
	BookingID       string        `json:"booking_id"`
	ScheduleID      string        `json:"schedule_id"`
	Status          BookingStatus `json:"status"`
	TotalAmountKobo int64         `json:"total_amount_kobo"`
	DiscountKobo    int64         `json:"discount_kobo"`
	Currency        string        `json:"currency"`
	HoldExpiresAt   time.Time     `json:"hold_expires_at"`
	Items           []BookingItem `json:"items"`
}
