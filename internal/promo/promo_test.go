package promo_test

import (
	"testing"
	"time"

	"ms-booking/internal/models"
	"ms-booking/internal/promo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCode() *models.PromoCode {
	return &models.PromoCode{
		Code:            "GROUPDEAL",
		Type:            models.PromoPercentage,
		Value:           15,
		MinPurchaseKobo: 2000000,
		MaxDiscountKobo: 500000,
		UsageLimit:      100,
		PerUserLimit:    1,
		CurrentUsage:    0,
		ValidFrom:       time.Now().Add(-24 * time.Hour),
		ValidUntil:      time.Now().Add(24 * time.Hour),
		IsActive:        true,
	}
}

func TestEvaluate_PercentageClampedToMaxDiscount(t *testing.T) {
	// 15% of ₦40,000 is ₦6,000, clamped to the ₦5,000 cap.
	code := validCode()

	discount, err := promo.Evaluate(code, 4000000, 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(500000), discount)
}

func TestEvaluate_PercentageUnderCap(t *testing.T) {
	code := validCode()

	// 15% of ₦20,000 = ₦3,000, under the cap.
	discount, err := promo.Evaluate(code, 2000000, 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(300000), discount)
}

func TestEvaluate_FixedAmountClampedToSubtotal(t *testing.T) {
	code := validCode()
	code.Type = models.PromoFixedAmount
	code.Value = 1000000
	code.MinPurchaseKobo = 0
	code.MaxDiscountKobo = 0

	discount, err := promo.Evaluate(code, 600000, 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(600000), discount, "discount must never exceed subtotal")
}

func TestEvaluate_Inactive(t *testing.T) {
	code := validCode()
	code.IsActive = false

	_, err := promo.Evaluate(code, 4000000, 0, time.Now())
	assert.ErrorIs(t, err, promo.ErrPromoExpired)
}

func TestEvaluate_OutsideValidityWindow(t *testing.T) {
	code := validCode()

	_, err := promo.Evaluate(code, 4000000, 0, code.ValidUntil.Add(time.Hour))
	assert.ErrorIs(t, err, promo.ErrPromoExpired)

	_, err = promo.Evaluate(code, 4000000, 0, code.ValidFrom.Add(-time.Hour))
	assert.ErrorIs(t, err, promo.ErrPromoExpired)
}

func TestEvaluate_Exhausted(t *testing.T) {
	code := validCode()
	code.CurrentUsage = code.UsageLimit

	_, err := promo.Evaluate(code, 4000000, 0, time.Now())
	assert.ErrorIs(t, err, promo.ErrPromoExhausted)
}

func TestEvaluate_PerUserLimit(t *testing.T) {
	code := validCode()

	_, err := promo.Evaluate(code, 4000000, 1, time.Now())
	assert.ErrorIs(t, err, promo.ErrPromoUserLimitReached)
}

func TestEvaluate_MinimumNotMet(t *testing.T) {
	code := validCode()

	_, err := promo.Evaluate(code, 1999999, 0, time.Now())
	assert.ErrorIs(t, err, promo.ErrPromoMinimumNotMet)
}

func TestEvaluate_NilCodeMeansNoDiscount(t *testing.T) {
	discount, err := promo.Evaluate(nil, 4000000, 0, time.Now())
	require.NoError(t, err)
	assert.Zero(t, discount)
}

func TestEvaluate_Deterministic(t *testing.T) {
	code := validCode()
	at := time.Now()

	first, err1 := promo.Evaluate(code, 4000000, 0, at)
	second, err2 := promo.Evaluate(code, 4000000, 0, at)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}
