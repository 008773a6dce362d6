// Package payment holds the payment plan types and the reconciler that
// validates a tender against the computed cart total before checkout.
package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/money"
	"github.com/noah-isme/backend-pos/internal/policy"
)

var (
	// ErrNoPaymentAccount blocks single-mode checkout without an account.
	ErrNoPaymentAccount = errors.New("payment account is required")
	// ErrEmptySplit blocks split-mode checkout with no entries.
	ErrEmptySplit = errors.New("at least one split payment entry is required")
	// ErrSplitNotAllowed rejects split payments outside non-guest walk-in sales.
	ErrSplitNotAllowed = errors.New("split payment is only available for registered walk-in sales")
	// ErrInvalidSplitEntry rejects a split entry with a missing account,
	// unknown method or non-positive amount.
	ErrInvalidSplitEntry = errors.New("invalid split payment entry")
	// ErrGuestExcessPayment rejects a guest tender above the total; guest
	// sales cannot create change or advances.
	ErrGuestExcessPayment = errors.New("guest payment exceeds the sale total")
	// ErrGuestDue rejects a guest tender below the total; guest sales
	// cannot leave a receivable.
	ErrGuestDue = errors.New("guest payment is short of the sale total")
)

// Method enumerates the accepted tender methods.
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheque       Method = "cheque"
	MethodCard         Method = "card"
	MethodOther        Method = "other"
)

// Valid reports whether the method is a known value.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheque, MethodCard, MethodOther:
		return true
	}
	return false
}

// PlanMode selects between a single tender and a split tender.
type PlanMode string

const (
	PlanSingle PlanMode = "single"
	PlanSplit  PlanMode = "split"
)

// SplitEntry is one method+account+amount tuple of a split tender.
// Entries are additive and independent; only the aggregate sum is
// checked at reconciliation.
type SplitEntry struct {
	Method     Method          `json:"method"`
	AccountRef string          `json:"accountRef"`
	Amount     decimal.Decimal `json:"amount"`
}

// Plan is the operator-selected funding for the sale.
type Plan struct {
	Mode       PlanMode        `json:"mode"`
	Method     Method          `json:"method,omitempty"`
	AccountRef string          `json:"accountRef,omitempty"`
	Tendered   decimal.Decimal `json:"tendered,omitempty"`
	Splits     []SplitEntry    `json:"splits,omitempty"`
}

// Reconciliation is the validated outcome: the amount actually charged
// plus the due and advance it implies.
type Reconciliation struct {
	AmountPaid decimal.Decimal `json:"amountPaid"`
	Due        decimal.Decimal `json:"due"`
	Advance    decimal.Decimal `json:"advance"`
	Entries    []SplitEntry    `json:"entries,omitempty"`
}

// Reconcile validates the plan against the cart total. advance is the
// implicit advance derived by the cart aggregator from manual overrides;
// for a registered single tender it is folded into the amount paid.
func Reconcile(plan Plan, total, advance decimal.Decimal, mode policy.Mode) (Reconciliation, error) {
	total = money.Round2(total)
	advance = money.Round2(money.NonNegative(advance))
	switch plan.Mode {
	case PlanSplit:
		return reconcileSplit(plan, total, mode)
	case PlanSingle, "":
		return reconcileSingle(plan, total, advance, mode)
	default:
		return Reconciliation{}, fmt.Errorf("unknown payment mode %q", plan.Mode)
	}
}

func reconcileSingle(plan Plan, total, advance decimal.Decimal, mode policy.Mode) (Reconciliation, error) {
	if plan.AccountRef == "" {
		return Reconciliation{}, ErrNoPaymentAccount
	}
	if mode.RequireExactPayment() {
		tendered := money.Round2(plan.Tendered)
		if tendered.GreaterThan(total) && !money.EqualCents(tendered, total) {
			return Reconciliation{}, fmt.Errorf("tendered %s against total %s: %w",
				tendered.StringFixed(2), total.StringFixed(2), ErrGuestExcessPayment)
		}
		if tendered.LessThan(total) && !money.EqualCents(tendered, total) {
			return Reconciliation{}, fmt.Errorf("tendered %s against total %s: %w",
				tendered.StringFixed(2), total.StringFixed(2), ErrGuestDue)
		}
		return Reconciliation{AmountPaid: total}, nil
	}
	return Reconciliation{AmountPaid: total.Add(advance), Advance: advance}, nil
}

func reconcileSplit(plan Plan, total decimal.Decimal, mode policy.Mode) (Reconciliation, error) {
	if !mode.AllowSplitPayment() {
		return Reconciliation{}, ErrSplitNotAllowed
	}
	if len(plan.Splits) == 0 {
		return Reconciliation{}, ErrEmptySplit
	}
	paid := decimal.Zero
	for i, entry := range plan.Splits {
		if entry.AccountRef == "" || !entry.Method.Valid() || !entry.Amount.IsPositive() {
			return Reconciliation{}, fmt.Errorf("entry %d: %w", i+1, ErrInvalidSplitEntry)
		}
		paid = paid.Add(money.Round2(entry.Amount))
	}
	return Reconciliation{
		AmountPaid: paid,
		Due:        money.NonNegative(total.Sub(paid)),
		Advance:    money.NonNegative(paid.Sub(total)),
		Entries:    plan.Splits,
	}, nil
}
