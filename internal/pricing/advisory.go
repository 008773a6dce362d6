package pricing

import "fmt"

// AdvisoryCode identifies a non-fatal business-rule signal raised while
// editing a line. Advisories accompany a clamped or rejected edit; they
// are expected outcomes, never errors.
type AdvisoryCode string

const (
	// CodeGuestPriceFloor signals an edit that would take a guest line
	// below its catalog price; the edit is not applied.
	CodeGuestPriceFloor AdvisoryCode = "GUEST_PRICE_FLOOR_VIOLATION"
	// CodeDiscountExceedsPrice signals a discount clamped to keep the
	// discounted price strictly positive.
	CodeDiscountExceedsPrice AdvisoryCode = "DISCOUNT_EXCEEDS_PRICE"
	// CodeQuantityAtCeiling signals a quantity increment clamped at the
	// stock record's quantity on hand.
	CodeQuantityAtCeiling AdvisoryCode = "QUANTITY_AT_STOCK_CEILING"
	// CodeBelowCostPrice flags a line selling under its last purchase
	// price; collected at checkout, never blocking.
	CodeBelowCostPrice AdvisoryCode = "BELOW_COST_PRICE"
	// CodeGuestOverrideForbidden signals a manual subtotal override
	// attempted on a guest cart; the override is not stored.
	CodeGuestOverrideForbidden AdvisoryCode = "GUEST_OVERRIDE_FORBIDDEN"
)

// Advisory is a human-readable signal attached to a line edit or a
// checkout validation pass.
type Advisory struct {
	Code    AdvisoryCode `json:"code"`
	Message string       `json:"message"`
	LineID  string       `json:"lineId,omitempty"`
}

func advise(code AdvisoryCode, lineID, format string, args ...any) *Advisory {
	return &Advisory{Code: code, LineID: lineID, Message: fmt.Sprintf(format, args...)}
}
