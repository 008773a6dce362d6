// Package policy encodes the sale-mode rule table. Every cart mutation
// and the payment reconciler consult a Mode before acting; the table is
// the single place where guest restrictions live.
package policy

// SaleType distinguishes walk-in counter sales from delivery sales.
type SaleType string

const (
	SaleTypeWalkIn   SaleType = "walk_in"
	SaleTypeDelivery SaleType = "delivery"
)

// Valid reports whether the sale type is one of the known values.
func (t SaleType) Valid() bool {
	return t == SaleTypeWalkIn || t == SaleTypeDelivery
}

// Mode captures the pair of flags that gate cart operations.
type Mode struct {
	Guest    bool
	SaleType SaleType
}

// AllowPriceBelowOriginal reports whether the unit price may drop under
// the catalog price the line was added with.
func (m Mode) AllowPriceBelowOriginal() bool { return !m.Guest }

// AllowManualSubtotal reports whether a line subtotal may be overridden.
func (m Mode) AllowManualSubtotal() bool { return !m.Guest }

// AllowDelivery reports whether the cart may be a delivery sale.
func (m Mode) AllowDelivery() bool { return !m.Guest }

// AllowUseAdvance reports whether a stored customer advance may fund the
// sale.
func (m Mode) AllowUseAdvance() bool { return !m.Guest }

// RequireExactPayment reports whether the tendered amount must match the
// cart total to the cent.
func (m Mode) RequireExactPayment() bool { return m.Guest }

// AllowSplitPayment reports whether the sale may be funded by multiple
// payment entries.
func (m Mode) AllowSplitPayment() bool {
	return !m.Guest && m.SaleType == SaleTypeWalkIn
}
