package promo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"ms-booking/internal/models"
)

var (
	ErrPromoExpired          = errors.New("promo code is inactive or outside its validity window")
	ErrPromoExhausted        = errors.New("promo code usage limit reached")
	ErrPromoUserLimitReached = errors.New("promo code per-user limit reached")
	ErrPromoMinimumNotMet    = errors.New("order subtotal below promo minimum purchase")
)

// Evaluate validates a promo code against an order and returns the discount
// in kobo. It is a pure function of its inputs: the code snapshot, the order
// subtotal, the caller-supplied count of the user's prior confirmed
// redemptions, and the evaluation time. Usage counters are incremented
// elsewhere, at confirm time only.
func Evaluate(code *models.PromoCode, subtotalKobo int64, priorUserRedemptions int, now time.Time) (int64, error) {
	if code == nil {
		return 0, nil
	}

	if !code.IsActive || now.Before(code.ValidFrom) || now.After(code.ValidUntil) {
		return 0, ErrPromoExpired
	}

	if code.UsageLimit > 0 && code.CurrentUsage >= code.UsageLimit {
		return 0, ErrPromoExhausted
	}

	if code.PerUserLimit > 0 && priorUserRedemptions >= code.PerUserLimit {
		return 0, ErrPromoUserLimitReached
	}

	if code.MinPurchaseKobo > 0 && subtotalKobo < code.MinPurchaseKobo {
		return 0, ErrPromoMinimumNotMet
	}

	var discount int64
	switch code.Type {
	case models.PromoPercentage:
		discount = int64(math.Round(float64(subtotalKobo) * float64(code.Value) / 100))
	case models.PromoFixedAmount:
		discount = code.Value
	default:
		return 0, fmt.Errorf("unsupported promo type: %s", code.Type)
	}

	if code.MaxDiscountKobo > 0 && discount > code.MaxDiscountKobo {
		discount = code.MaxDiscountKobo
	}

	// The discount can never push the total negative.
	if discount > subtotalKobo {
		discount = subtotalKobo
	}

	return discount, nil
}
