// Package pricing owns the per-line price arithmetic of an in-progress
// sale: the three-way invariant between unit price, discount amount and
// discount percentage, and the line totalizer.
//
// Lines are value types. Callers never assign the derived fields
// directly; each With* method applies one tagged edit and re-derives all
// dependents in a single step. Discount amount is the source of truth:
// the percentage is always re-derived from the amount and the current
// unit price, never the reverse, except through WithDiscountPercent
// which converts percentage to amount before storing.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/money"
	"github.com/noah-isme/backend-pos/internal/policy"
)

// Line is one stocked item in the cart together with the stock context
// needed for quantity bounds and below-cost advisories.
type Line struct {
	ID       string `json:"id"`
	StockRef string `json:"stockRef"`
	Name     string `json:"name"`

	// Stock context captured at selection time.
	QuantityOnHand    int             `json:"quantityOnHand"`
	LastPurchasePrice decimal.Decimal `json:"lastPurchasePrice"`

	// OriginalPrice is the catalog price at the moment the line was
	// added. Immutable; the guest price floor checks against it.
	OriginalPrice decimal.Decimal `json:"originalPrice"`

	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`

	Quantity       int              `json:"quantity"`
	DeliveryCharge decimal.Decimal  `json:"deliveryCharge"`
	ManualSubtotal *decimal.Decimal `json:"manualSubtotal,omitempty"`
}

// NewLine builds a fresh line for a selected stock item: quantity 1,
// unit price equal to the catalog price, no discount.
func NewLine(id, stockRef, name string, sellingPrice, lastPurchasePrice decimal.Decimal, quantityOnHand int) Line {
	price := money.Round2(money.NonNegative(sellingPrice))
	l := Line{
		ID:                id,
		StockRef:          stockRef,
		Name:              name,
		QuantityOnHand:    quantityOnHand,
		LastPurchasePrice: money.Round2(money.NonNegative(lastPurchasePrice)),
		OriginalPrice:     price,
		UnitPrice:         price,
		Quantity:          1,
	}
	l.rederive()
	return l
}

// maxDiscount returns the largest discount that keeps the discounted
// price strictly positive.
func (l Line) maxDiscount() decimal.Decimal {
	if !l.UnitPrice.IsPositive() {
		return decimal.Zero
	}
	return l.UnitPrice.Sub(money.Cent)
}

// rederive recomputes the percentage and discounted price from the
// stored amount and unit price.
func (l *Line) rederive() {
	l.DiscountPercent = money.PercentOf(l.DiscountAmount, l.UnitPrice)
	l.DiscountedPrice = money.NonNegative(l.UnitPrice.Sub(l.DiscountAmount))
}

// WithUnitPrice applies an operator price edit. The new price is floored
// at zero; guest carts reject prices under the catalog price. The stored
// discount amount is preserved, clamped only if the lowered price no
// longer leaves room for it.
func (l Line) WithUnitPrice(price decimal.Decimal, mode policy.Mode) (Line, *Advisory) {
	price = money.Round2(money.NonNegative(price))
	if !mode.AllowPriceBelowOriginal() && price.LessThan(l.OriginalPrice) {
		return l, advise(CodeGuestPriceFloor, l.ID,
			"guest sales cannot price %s below the catalog price %s", l.Name, l.OriginalPrice.StringFixed(2))
	}
	l.UnitPrice = price
	var adv *Advisory
	if l.DiscountAmount.GreaterThanOrEqual(l.UnitPrice) && l.DiscountAmount.IsPositive() {
		l.DiscountAmount = l.maxDiscount()
		adv = advise(CodeDiscountExceedsPrice, l.ID,
			"discount clamped to %s to keep the price positive", l.DiscountAmount.StringFixed(2))
	}
	if !l.UnitPrice.IsPositive() {
		l.DiscountAmount = decimal.Zero
	}
	l.rederive()
	return l, adv
}

// WithDiscountAmount applies an absolute discount edit. Amounts at or
// above the unit price clamp to unit price minus one cent; guest carts
// reject any discount that would undercut the catalog price and force
// the discount back to zero.
func (l Line) WithDiscountAmount(amount decimal.Decimal, mode policy.Mode) (Line, *Advisory) {
	amount = money.Round2(money.NonNegative(amount))
	var adv *Advisory
	if amount.GreaterThanOrEqual(l.UnitPrice) {
		amount = l.maxDiscount()
		adv = advise(CodeDiscountExceedsPrice, l.ID,
			"discount cannot reach the unit price; clamped to %s", amount.StringFixed(2))
	}
	if !mode.AllowPriceBelowOriginal() {
		if l.UnitPrice.Sub(amount).LessThan(l.OriginalPrice) {
			l.DiscountAmount = decimal.Zero
			l.rederive()
			return l, advise(CodeGuestPriceFloor, l.ID,
				"guest sales cannot discount %s below the catalog price %s", l.Name, l.OriginalPrice.StringFixed(2))
		}
	}
	l.DiscountAmount = amount
	l.rederive()
	return l, adv
}

// WithDiscountPercent applies a percentage edit by converting it to an
// amount first. Percentages are clamped to [0, 100], with 100 and above
// treated as 99.99 so the discounted price stays strictly positive.
func (l Line) WithDiscountPercent(pct decimal.Decimal, mode policy.Mode) (Line, *Advisory) {
	pct = money.Clamp(money.Round2(pct), decimal.Zero, money.Hundred)
	var clamped *Advisory
	if pct.GreaterThanOrEqual(money.Hundred) {
		pct = decimal.NewFromFloat(99.99)
		clamped = advise(CodeDiscountExceedsPrice, l.ID,
			"discount percentage clamped to 99.99%%")
	}
	next, adv := l.WithDiscountAmount(money.FromPercent(l.UnitPrice, pct), mode)
	if adv == nil {
		adv = clamped
	}
	return next, adv
}

// WithQuantityDelta adjusts the quantity by delta, never below one and
// never above the stock record's absolute quantity on hand.
func (l Line) WithQuantityDelta(delta int) (Line, *Advisory) {
	q := l.Quantity + delta
	if q < 1 {
		q = 1
	}
	var adv *Advisory
	if l.QuantityOnHand > 0 && q > l.QuantityOnHand {
		q = l.QuantityOnHand
		adv = advise(CodeQuantityAtCeiling, l.ID,
			"only %d of %s on hand", l.QuantityOnHand, l.Name)
	}
	l.Quantity = q
	return l, adv
}

// WithDeliveryCharge stores a per-line delivery charge and clears any
// manual subtotal override, which the charge makes stale.
func (l Line) WithDeliveryCharge(charge decimal.Decimal) (Line, *Advisory) {
	l.DeliveryCharge = money.Round2(money.NonNegative(charge))
	l.ManualSubtotal = nil
	return l, nil
}

// WithManualSubtotal stores or clears the operator-supplied subtotal
// override verbatim. Forbidden on guest carts.
func (l Line) WithManualSubtotal(subtotal *decimal.Decimal, mode policy.Mode) (Line, *Advisory) {
	if subtotal == nil {
		l.ManualSubtotal = nil
		return l, nil
	}
	if !mode.AllowManualSubtotal() {
		return l, advise(CodeGuestOverrideForbidden, l.ID,
			"guest sales cannot override line subtotals")
	}
	v := money.Round2(*subtotal)
	l.ManualSubtotal = &v
	return l, nil
}

// Subtotal is the line's contribution to the cart total: the manual
// override when present, otherwise discounted price times quantity plus
// the delivery charge on delivery sales.
func (l Line) Subtotal(saleType policy.SaleType) decimal.Decimal {
	if l.ManualSubtotal != nil {
		return *l.ManualSubtotal
	}
	subtotal := l.DiscountedPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	if saleType == policy.SaleTypeDelivery {
		subtotal = subtotal.Add(l.DeliveryCharge)
	}
	return subtotal
}

// ComputedSubtotal ignores any manual override; the cart aggregator uses
// it to derive the implicit adjustment the override introduced.
func (l Line) ComputedSubtotal(saleType policy.SaleType) decimal.Decimal {
	override := l.ManualSubtotal
	l.ManualSubtotal = nil
	subtotal := l.Subtotal(saleType)
	l.ManualSubtotal = override
	return subtotal
}

// BelowCost reports whether the line sells under its last purchase
// price. Advisory only.
func (l Line) BelowCost() bool {
	return l.LastPurchasePrice.IsPositive() && l.DiscountedPrice.LessThan(l.LastPurchasePrice)
}

// CheckInvariant re-validates the discount-versus-price invariant. The
// tagged updates make a violation unreachable; checkout keeps this as a
// hard gate regardless.
func (l Line) CheckInvariant() error {
	if l.DiscountAmount.IsNegative() {
		return fmt.Errorf("line %s: negative discount %s", l.ID, l.DiscountAmount)
	}
	if l.UnitPrice.IsPositive() && l.DiscountAmount.GreaterThanOrEqual(l.UnitPrice) {
		return fmt.Errorf("line %s: discount %s reaches unit price %s", l.ID, l.DiscountAmount, l.UnitPrice)
	}
	if !l.UnitPrice.IsPositive() && l.DiscountAmount.IsPositive() {
		return fmt.Errorf("line %s: discount %s on zero-priced line", l.ID, l.DiscountAmount)
	}
	if l.Quantity < 1 {
		return fmt.Errorf("line %s: quantity %d below one", l.ID, l.Quantity)
	}
	return nil
}
