package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PromoType string

const (
	PromoPercentage  PromoType = "percentage"
	PromoFixedAmount PromoType = "fixed_amount"
)

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	Code             string    `bun:"code,pk" json:"code"`
	Type             PromoType `bun:"type,notnull" json:"type"`
	Value            int64     `bun:"value,notnull" json:"value"`
	MinPurchaseKobo  int64     `bun:"min_purchase_kobo,notnull,default:0" json:"min_purchase_kobo"`
	MaxDiscountKobo  int64     `bun:"max_discount_kobo,notnull,default:0" json:"max_discount_kobo"`
	UsageLimit       int       `bun:"usage_limit,notnull,default:0" json:"usage_limit"`
	PerUserLimit     int       `bun:"per_user_limit,notnull,default:0" json:"per_user_limit"`
	CurrentUsage     int       `bun:"current_usage,notnull,default:0" json:"current_usage"`
	ValidFrom        time.Time `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil       time.Time `bun:"valid_until,notnull" json:"valid_until"`
	IsActive         bool      `bun:"is_active,notnull" json:"is_active"`
}

// PromoRedemption records one confirmed use of a code by a user, backing the
// per-user limit check.
type PromoRedemption struct {
	bun.BaseModel `bun:"table:promo_redemptions"`

	RedemptionID string    `bun:"redemption_id,pk" json:"redemption_id"`
	Code         string    `bun:"code,notnull" json:"code"`
	UserID       string    `bun:"user_id,notnull" json:"user_id"`
	BookingID    string    `bun:"booking_id,notnull" json:"booking_id"`
	RedeemedAt   time.Time `bun:"redeemed_at,notnull" json:"redeemed_at"`
}
