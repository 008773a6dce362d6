package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/policy"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLine(selling, cost string, onHand int) pricing.Line {
	return pricing.NewLine("l1", "s1", "Brake Pad", dec(selling), dec(cost), onHand)
}

var registered = policy.Mode{SaleType: policy.SaleTypeWalkIn}
var guest = policy.Mode{Guest: true, SaleType: policy.SaleTypeWalkIn}

func TestDiscountAmountDerivesPercent(t *testing.T) {
	l := newLine("1200", "900", 10)
	l, adv := l.WithDiscountAmount(dec("150"), registered)
	if adv != nil {
		t.Fatalf("unexpected advisory: %+v", adv)
	}
	if !l.DiscountedPrice.Equal(dec("1050")) {
		t.Fatalf("discounted price = %s, want 1050", l.DiscountedPrice)
	}
	if !l.DiscountPercent.Equal(dec("12.5")) {
		t.Fatalf("discount percent = %s, want 12.5", l.DiscountPercent)
	}
}

func TestDiscountEqualToPriceClamps(t *testing.T) {
	l := newLine("1200", "900", 10)
	l, adv := l.WithDiscountAmount(dec("1200"), registered)
	if adv == nil || adv.Code != pricing.CodeDiscountExceedsPrice {
		t.Fatalf("expected clamp advisory, got %+v", adv)
	}
	if !l.DiscountAmount.Equal(dec("1199.99")) {
		t.Fatalf("discount amount = %s, want 1199.99", l.DiscountAmount)
	}
	if !l.DiscountedPrice.Equal(dec("0.01")) {
		t.Fatalf("discounted price = %s, want 0.01", l.DiscountedPrice)
	}
}

func TestGuestPriceFloor(t *testing.T) {
	l := newLine("500", "400", 10)
	next, adv := l.WithUnitPrice(dec("400"), guest)
	if adv == nil || adv.Code != pricing.CodeGuestPriceFloor {
		t.Fatalf("expected guest floor advisory, got %+v", adv)
	}
	if !next.UnitPrice.Equal(dec("500")) {
		t.Fatalf("unit price = %s, want unchanged 500", next.UnitPrice)
	}

	// Raising the price above the catalog price is allowed for guests.
	next, adv = l.WithUnitPrice(dec("550"), guest)
	if adv != nil {
		t.Fatalf("unexpected advisory: %+v", adv)
	}
	if !next.UnitPrice.Equal(dec("550")) {
		t.Fatalf("unit price = %s, want 550", next.UnitPrice)
	}
}

func TestGuestDiscountForcedToZero(t *testing.T) {
	l := newLine("500", "400", 10)
	l, adv := l.WithDiscountAmount(dec("50"), guest)
	if adv == nil || adv.Code != pricing.CodeGuestPriceFloor {
		t.Fatalf("expected guest floor advisory, got %+v", adv)
	}
	if !l.DiscountAmount.IsZero() {
		t.Fatalf("discount amount = %s, want 0", l.DiscountAmount)
	}
	if !l.DiscountedPrice.Equal(dec("500")) {
		t.Fatalf("discounted price = %s, want 500", l.DiscountedPrice)
	}
}

func TestPercentConvertsToAmount(t *testing.T) {
	l := newLine("1200", "900", 10)
	l, _ = l.WithDiscountPercent(dec("12.5"), registered)
	if !l.DiscountAmount.Equal(dec("150")) {
		t.Fatalf("discount amount = %s, want 150", l.DiscountAmount)
	}
	// Amount stays the source of truth: lowering the price re-derives
	// the percentage from the preserved amount.
	l, _ = l.WithUnitPrice(dec("1000"), registered)
	if !l.DiscountAmount.Equal(dec("150")) {
		t.Fatalf("discount amount = %s, want preserved 150", l.DiscountAmount)
	}
	if !l.DiscountPercent.Equal(dec("15")) {
		t.Fatalf("discount percent = %s, want re-derived 15", l.DiscountPercent)
	}
}

func TestHundredPercentClampsToNinetyNinePointNineNine(t *testing.T) {
	l := newLine("1000", "900", 10)
	l, adv := l.WithDiscountPercent(dec("150"), registered)
	if adv == nil || adv.Code != pricing.CodeDiscountExceedsPrice {
		t.Fatalf("expected clamp advisory, got %+v", adv)
	}
	if !l.DiscountPercent.Equal(dec("99.99")) {
		t.Fatalf("discount percent = %s, want 99.99", l.DiscountPercent)
	}
	if !l.DiscountedPrice.IsPositive() {
		t.Fatalf("discounted price must stay positive, got %s", l.DiscountedPrice)
	}
}

func TestLoweredPriceClampsExistingDiscount(t *testing.T) {
	l := newLine("1200", "900", 10)
	l, _ = l.WithDiscountAmount(dec("150"), registered)
	l, adv := l.WithUnitPrice(dec("100"), registered)
	if adv == nil || adv.Code != pricing.CodeDiscountExceedsPrice {
		t.Fatalf("expected clamp advisory, got %+v", adv)
	}
	if !l.DiscountAmount.Equal(dec("99.99")) {
		t.Fatalf("discount amount = %s, want 99.99", l.DiscountAmount)
	}
	if err := l.CheckInvariant(); err != nil {
		t.Fatalf("invariant violated after clamp: %v", err)
	}
}

func TestZeroPriceClearsDiscount(t *testing.T) {
	l := newLine("1200", "900", 10)
	l, _ = l.WithDiscountAmount(dec("150"), registered)
	l, _ = l.WithUnitPrice(decimal.Zero, registered)
	if !l.DiscountAmount.IsZero() || !l.DiscountPercent.IsZero() {
		t.Fatalf("zero-priced line must carry no discount, got amount=%s pct=%s", l.DiscountAmount, l.DiscountPercent)
	}
}

func TestQuantityBounds(t *testing.T) {
	l := newLine("100", "80", 3)
	l, _ = l.WithQuantityDelta(-5)
	if l.Quantity != 1 {
		t.Fatalf("quantity = %d, want floor of 1", l.Quantity)
	}
	l, adv := l.WithQuantityDelta(10)
	if adv == nil || adv.Code != pricing.CodeQuantityAtCeiling {
		t.Fatalf("expected ceiling advisory, got %+v", adv)
	}
	if l.Quantity != 3 {
		t.Fatalf("quantity = %d, want on-hand ceiling 3", l.Quantity)
	}
}

func TestDeliveryChargeClearsManualSubtotal(t *testing.T) {
	l := newLine("100", "80", 10)
	override := dec("250")
	l, adv := l.WithManualSubtotal(&override, registered)
	if adv != nil {
		t.Fatalf("unexpected advisory: %+v", adv)
	}
	if l.ManualSubtotal == nil {
		t.Fatalf("expected manual subtotal to be stored")
	}
	l, _ = l.WithDeliveryCharge(dec("40"))
	if l.ManualSubtotal != nil {
		t.Fatalf("delivery charge change must clear the manual subtotal")
	}
}

func TestGuestManualSubtotalForbidden(t *testing.T) {
	l := newLine("100", "80", 10)
	override := dec("250")
	next, adv := l.WithManualSubtotal(&override, guest)
	if adv == nil || adv.Code != pricing.CodeGuestOverrideForbidden {
		t.Fatalf("expected guest override advisory, got %+v", adv)
	}
	if next.ManualSubtotal != nil {
		t.Fatalf("guest cart must not store a manual subtotal")
	}
}

func TestSubtotal(t *testing.T) {
	l := newLine("100", "80", 10)
	l, _ = l.WithDiscountAmount(dec("10"), registered)
	l, _ = l.WithQuantityDelta(2)
	l, _ = l.WithDeliveryCharge(dec("25"))

	if got := l.Subtotal(policy.SaleTypeWalkIn); !got.Equal(dec("270")) {
		t.Fatalf("walk-in subtotal = %s, want 270", got)
	}
	if got := l.Subtotal(policy.SaleTypeDelivery); !got.Equal(dec("295")) {
		t.Fatalf("delivery subtotal = %s, want 295", got)
	}

	override := dec("200")
	l, _ = l.WithManualSubtotal(&override, registered)
	if got := l.Subtotal(policy.SaleTypeDelivery); !got.Equal(dec("200")) {
		t.Fatalf("overridden subtotal = %s, want 200", got)
	}
	if got := l.ComputedSubtotal(policy.SaleTypeDelivery); !got.Equal(dec("295")) {
		t.Fatalf("computed subtotal = %s, want 295 despite override", got)
	}
}

func TestBelowCost(t *testing.T) {
	l := newLine("100", "90", 10)
	if l.BelowCost() {
		t.Fatalf("undiscounted line should not be below cost")
	}
	l, _ = l.WithDiscountAmount(dec("20"), registered)
	if !l.BelowCost() {
		t.Fatalf("expected below-cost after discounting under %s", l.LastPurchasePrice)
	}
}

func TestEditsAreIdempotent(t *testing.T) {
	l := newLine("1200", "900", 10)
	once, _ := l.WithDiscountAmount(dec("150"), registered)
	twice, _ := once.WithDiscountAmount(dec("150"), registered)
	if !once.DiscountedPrice.Equal(twice.DiscountedPrice) || !once.DiscountPercent.Equal(twice.DiscountPercent) {
		t.Fatalf("repeated edit changed the line: %+v vs %+v", once, twice)
	}
}
