package cart_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/policy"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var registered = policy.Mode{SaleType: policy.SaleTypeWalkIn}

func TestOverrideBelowComputedIsAdditionalDiscount(t *testing.T) {
	l := pricing.NewLine("l1", "s1", "Oil Filter", dec("1000"), dec("700"), 10)
	override := dec("800")
	l, _ = l.WithManualSubtotal(&override, registered)

	totals := cart.ComputeTotals([]pricing.Line{l}, policy.SaleTypeWalkIn)
	if !totals.AdditionalDiscount.Equal(dec("200")) {
		t.Fatalf("additional discount = %s, want 200", totals.AdditionalDiscount)
	}
	if !totals.AdvanceAmount.IsZero() {
		t.Fatalf("advance = %s, want 0", totals.AdvanceAmount)
	}
	if !totals.Total.Equal(dec("800")) {
		t.Fatalf("total = %s, want 800", totals.Total)
	}
}

func TestOverrideAboveComputedIsAdvance(t *testing.T) {
	l := pricing.NewLine("l1", "s1", "Oil Filter", dec("1000"), dec("700"), 10)
	override := dec("1150")
	l, _ = l.WithManualSubtotal(&override, registered)

	totals := cart.ComputeTotals([]pricing.Line{l}, policy.SaleTypeWalkIn)
	if !totals.AdvanceAmount.Equal(dec("150")) {
		t.Fatalf("advance = %s, want 150", totals.AdvanceAmount)
	}
	if !totals.AdditionalDiscount.IsZero() {
		t.Fatalf("additional discount = %s, want 0", totals.AdditionalDiscount)
	}
	if !totals.Total.Equal(dec("1150")) {
		t.Fatalf("total = %s, want 1150", totals.Total)
	}
}

func TestAggregatesAcrossLines(t *testing.T) {
	a := pricing.NewLine("a", "s1", "Pad", dec("1200"), dec("900"), 10)
	a, _ = a.WithDiscountAmount(dec("150"), registered)
	a, _ = a.WithQuantityDelta(1) // qty 2

	b := pricing.NewLine("b", "s2", "Disc", dec("500"), dec("400"), 10)

	totals := cart.ComputeTotals([]pricing.Line{a, b}, policy.SaleTypeWalkIn)
	if !totals.OriginalSubtotal.Equal(dec("2900")) {
		t.Fatalf("original subtotal = %s, want 2900", totals.OriginalSubtotal)
	}
	if !totals.ItemDiscountTotal.Equal(dec("300")) {
		t.Fatalf("item discount total = %s, want 300", totals.ItemDiscountTotal)
	}
	if !totals.SubtotalAfterItemDiscounts.Equal(dec("2600")) {
		t.Fatalf("subtotal after item discounts = %s, want 2600", totals.SubtotalAfterItemDiscounts)
	}
	if !totals.OverallAdjustment.IsZero() {
		t.Fatalf("overall adjustment = %s, want 0 without overrides", totals.OverallAdjustment)
	}
	if !totals.OverallDiscount.Equal(dec("300")) {
		t.Fatalf("overall discount = %s, want 300", totals.OverallDiscount)
	}
	if !totals.Total.Equal(dec("2600")) {
		t.Fatalf("total = %s, want 2600", totals.Total)
	}
}

func TestDeliveryChargesCountOnlyOnDeliverySales(t *testing.T) {
	l := pricing.NewLine("l1", "s1", "Battery", dec("300"), dec("250"), 5)
	l, _ = l.WithDeliveryCharge(dec("50"))

	walkIn := cart.ComputeTotals([]pricing.Line{l}, policy.SaleTypeWalkIn)
	if !walkIn.DeliveryTotal.IsZero() {
		t.Fatalf("walk-in delivery total = %s, want 0", walkIn.DeliveryTotal)
	}
	if !walkIn.Total.Equal(dec("300")) {
		t.Fatalf("walk-in total = %s, want 300", walkIn.Total)
	}

	delivery := cart.ComputeTotals([]pricing.Line{l}, policy.SaleTypeDelivery)
	if !delivery.DeliveryTotal.Equal(dec("50")) {
		t.Fatalf("delivery total = %s, want 50", delivery.DeliveryTotal)
	}
	if !delivery.Total.Equal(dec("350")) {
		t.Fatalf("delivery total = %s, want 350", delivery.Total)
	}
	if !delivery.OriginalSubtotal.Equal(dec("350")) {
		t.Fatalf("original subtotal = %s, want 350 including delivery", delivery.OriginalSubtotal)
	}
}
