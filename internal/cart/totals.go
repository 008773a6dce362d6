package cart

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/money"
	"github.com/noah-isme/backend-pos/internal/policy"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Totals aggregates the cart-level figures derived from the lines.
//
// OverallAdjustment is the gap between the sum of computed line
// subtotals and the sum of final line subtotals: negative when manual
// overrides granted an implicit additional discount, positive when they
// collected an implicit advance. Total is the number actually charged.
type Totals struct {
	OriginalSubtotal           decimal.Decimal `json:"originalSubtotal"`
	ItemDiscountTotal          decimal.Decimal `json:"itemDiscountTotal"`
	SubtotalAfterItemDiscounts decimal.Decimal `json:"subtotalAfterItemDiscounts"`
	DeliveryTotal              decimal.Decimal `json:"deliveryTotal"`
	ComputedSubtotal           decimal.Decimal `json:"computedSubtotal"`
	OverallAdjustment          decimal.Decimal `json:"overallAdjustment"`
	AdditionalDiscount         decimal.Decimal `json:"additionalDiscount"`
	AdvanceAmount              decimal.Decimal `json:"advanceAmount"`
	OverallDiscount            decimal.Decimal `json:"overallDiscount"`
	Total                      decimal.Decimal `json:"total"`
}

// ComputeTotals derives the cart aggregates. Pure; recomputed on every
// mutation since carts hold tens of lines at most.
func ComputeTotals(lines []pricing.Line, saleType policy.SaleType) Totals {
	t := Totals{
		OriginalSubtotal:           decimal.Zero,
		ItemDiscountTotal:          decimal.Zero,
		SubtotalAfterItemDiscounts: decimal.Zero,
		DeliveryTotal:              decimal.Zero,
		ComputedSubtotal:           decimal.Zero,
	}
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		t.OriginalSubtotal = t.OriginalSubtotal.Add(l.OriginalPrice.Mul(qty))
		t.ItemDiscountTotal = t.ItemDiscountTotal.Add(l.OriginalPrice.Sub(l.DiscountedPrice).Mul(qty))
		if saleType == policy.SaleTypeDelivery {
			t.DeliveryTotal = t.DeliveryTotal.Add(l.DeliveryCharge)
		}
		t.SubtotalAfterItemDiscounts = t.SubtotalAfterItemDiscounts.Add(l.ComputedSubtotal(saleType))
		t.ComputedSubtotal = t.ComputedSubtotal.Add(l.Subtotal(saleType))
	}
	t.OriginalSubtotal = t.OriginalSubtotal.Add(t.DeliveryTotal)

	t.OverallAdjustment = t.ComputedSubtotal.Sub(t.SubtotalAfterItemDiscounts)
	t.AdditionalDiscount = money.NonNegative(t.OverallAdjustment.Neg())
	t.AdvanceAmount = money.NonNegative(t.OverallAdjustment)
	t.OverallDiscount = t.ItemDiscountTotal.Add(t.AdditionalDiscount)
	t.Total = t.ComputedSubtotal
	return t
}
