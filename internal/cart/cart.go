// Package cart owns the in-progress sale: the ordered line collection,
// the session-level flags, the aggregator that derives cart totals, and
// the in-memory session registry that scopes one cart to one checkout
// session.
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/payment"
	"github.com/noah-isme/backend-pos/internal/policy"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

var (
	// ErrLineNotFound indicates the referenced cart line does not exist.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrOutOfStock rejects adding an item with no available quantity.
	ErrOutOfStock = errors.New("no available stock for item")
	// ErrGuestDelivery rejects switching a guest cart to delivery.
	ErrGuestDelivery = errors.New("guest sales cannot be delivery sales")
	// ErrGuestUseAdvance rejects funding a guest sale from an advance.
	ErrGuestUseAdvance = errors.New("guest sales cannot use customer advances")
	// ErrInvalidSaleType rejects unknown sale type values.
	ErrInvalidSaleType = errors.New("invalid sale type")
)

// StockSnapshot is the point-in-time stock context captured when an item
// is selected. Quantity checks later in the session reuse this snapshot;
// the backend re-validates at sale creation.
type StockSnapshot struct {
	Ref               string
	Name              string
	QuantityOnHand    int
	SellingPrice      decimal.Decimal
	LastPurchasePrice decimal.Decimal
}

// Cart is the ephemeral state of one checkout session.
type Cart struct {
	ID          string           `json:"id"`
	SaleType    policy.SaleType  `json:"saleType"`
	Guest       bool             `json:"guest"`
	CustomerRef string           `json:"customerRef,omitempty"`
	VehicleRef  string           `json:"vehicleRef,omitempty"`
	UseAdvance  bool             `json:"useAdvance"`
	Lines       []pricing.Line   `json:"lines"`
	Payment     payment.Plan     `json:"payment"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// New returns an empty walk-in cart.
func New(now time.Time) *Cart {
	return &Cart{
		ID:        uuid.NewString(),
		SaleType:  policy.SaleTypeWalkIn,
		CreatedAt: now,
	}
}

// Mode returns the policy mode the cart currently operates under.
func (c *Cart) Mode() policy.Mode {
	return policy.Mode{Guest: c.Guest, SaleType: c.SaleType}
}

// reserved sums the quantity of the item already held by other lines.
func (c *Cart) reserved(stockRef, excludeLine string) int {
	total := 0
	for _, l := range c.Lines {
		if l.StockRef == stockRef && l.ID != excludeLine {
			total += l.Quantity
		}
	}
	return total
}

// AddLine appends a new line for the selected stock item with quantity
// one. Availability at selection time is quantity on hand minus what
// other lines of this cart already reserve.
func (c *Cart) AddLine(item StockSnapshot) (pricing.Line, error) {
	available := item.QuantityOnHand - c.reserved(item.Ref, "")
	if available <= 0 {
		return pricing.Line{}, fmt.Errorf("%s: %w", item.Name, ErrOutOfStock)
	}
	line := pricing.NewLine(uuid.NewString(), item.Ref, item.Name, item.SellingPrice, item.LastPurchasePrice, item.QuantityOnHand)
	c.Lines = append(c.Lines, line)
	return line, nil
}

// Line returns the line with the given id.
func (c *Cart) Line(id string) (pricing.Line, bool) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return pricing.Line{}, false
}

// ApplyLine runs one tagged pricing edit against a line and stores the
// result, returning the advisory the edit raised, if any.
func (c *Cart) ApplyLine(id string, edit func(pricing.Line, policy.Mode) (pricing.Line, *pricing.Advisory)) (*pricing.Advisory, error) {
	for i, l := range c.Lines {
		if l.ID != id {
			continue
		}
		next, adv := edit(l, c.Mode())
		c.Lines[i] = next
		return adv, nil
	}
	return nil, ErrLineNotFound
}

// RemoveLine deletes a line from the cart.
func (c *Cart) RemoveLine(id string) error {
	for i, l := range c.Lines {
		if l.ID == id {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// SetSaleType switches between walk-in and delivery. Guest carts may
// not become delivery sales.
func (c *Cart) SetSaleType(t policy.SaleType) error {
	if !t.Valid() {
		return fmt.Errorf("%q: %w", t, ErrInvalidSaleType)
	}
	if c.Guest && t == policy.SaleTypeDelivery {
		return ErrGuestDelivery
	}
	c.SaleType = t
	return nil
}

// SetGuest toggles guest mode. Enabling it forces the cart back to
// walk-in, drops useAdvance and any split plan, and re-bases lines so
// the guest invariants hold from this point on: manual overrides are
// cleared, unit prices below the catalog price snap back to it, and
// discounts that undercut the catalog price are cleared.
func (c *Cart) SetGuest(on bool) []pricing.Advisory {
	c.Guest = on
	if !on {
		return nil
	}
	var advisories []pricing.Advisory
	c.SaleType = policy.SaleTypeWalkIn
	c.UseAdvance = false
	c.CustomerRef = ""
	if c.Payment.Mode == payment.PlanSplit {
		c.Payment = payment.Plan{Mode: payment.PlanSingle, Method: c.Payment.Method, AccountRef: c.Payment.AccountRef}
	}
	for i, l := range c.Lines {
		rebased := false
		if l.ManualSubtotal != nil {
			l.ManualSubtotal = nil
			rebased = true
		}
		if l.UnitPrice.LessThan(l.OriginalPrice) {
			next, _ := l.WithUnitPrice(l.OriginalPrice, policy.Mode{})
			l = next
			rebased = true
		}
		if l.DiscountedPrice.LessThan(l.OriginalPrice) && l.DiscountAmount.IsPositive() {
			next, _ := l.WithDiscountAmount(decimal.Zero, policy.Mode{})
			l = next
			rebased = true
		}
		if rebased {
			c.Lines[i] = l
			advisories = append(advisories, pricing.Advisory{
				Code:    pricing.CodeGuestPriceFloor,
				LineID:  l.ID,
				Message: fmt.Sprintf("%s re-based to the catalog price for a guest sale", l.Name),
			})
		}
	}
	return advisories
}

// SetUseAdvance toggles funding the sale from a stored customer advance.
func (c *Cart) SetUseAdvance(on bool) error {
	if on && !c.Mode().AllowUseAdvance() {
		c.UseAdvance = false
		return ErrGuestUseAdvance
	}
	c.UseAdvance = on
	return nil
}

// Totals recomputes the cart aggregates for the current state.
func (c *Cart) Totals() Totals {
	return ComputeTotals(c.Lines, c.SaleType)
}

// Reset clears every line and resets session flags, keeping the cart id
// so the operator's session survives a settled checkout.
func (c *Cart) Reset(now time.Time) {
	*c = Cart{ID: c.ID, SaleType: policy.SaleTypeWalkIn, CreatedAt: now}
}
