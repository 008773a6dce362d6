// Package checkout sequences a validated cart through the remote sales
// backend: Validating → Creating → Processing → Settled, with Failed
// reachable from each working state. The two remote calls are strictly
// sequential; processing never starts before creation returns a sale id.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/journal"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/payment"
	"github.com/noah-isme/backend-pos/internal/policy"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/salesapi"
)

// State is a checkout orchestration state.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateCreating   State = "creating"
	StateProcessing State = "processing"
	StateSettled    State = "settled"
	StateFailed     State = "failed"
)

// FailureKind classifies a checkout failure for the operator UI.
type FailureKind string

const (
	FailureValidation   FailureKind = "validation"
	FailureNotFound     FailureKind = "not_found"
	FailureForbidden    FailureKind = "forbidden"
	FailureUnauthorized FailureKind = "unauthorized"
	FailureUnavailable  FailureKind = "unavailable"
)

// Failure reports which stage a checkout died in and why. When the
// stage is processing, DraftSaleID identifies the sale the backend
// already created; it is left in draft state server-side and requires
// operator intervention, not an automatic rollback.
type Failure struct {
	Stage       State             `json:"stage"`
	Kind        FailureKind       `json:"kind"`
	Message     string            `json:"message"`
	Fields      map[string]string `json:"fields,omitempty"`
	DraftSaleID string            `json:"draftSaleId,omitempty"`
	Err         error             `json:"-"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("checkout failed while %s: %s", f.Stage, f.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (f *Failure) Unwrap() error { return f.Err }

// Gateway is the slice of the sales backend the orchestrator drives.
type Gateway interface {
	CreateSale(ctx context.Context, in salesapi.CreateSaleInput) (salesapi.CreateSaleResult, error)
	ProcessSale(ctx context.Context, saleID string, in salesapi.ProcessSaleInput) (salesapi.ProcessSaleResult, error)
}

// Invalidator refreshes the stock listing after settlement.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Result is the outcome of a settled checkout.
type Result struct {
	State          State                  `json:"state"`
	SaleID         string                 `json:"saleId"`
	SaleNumber     string                 `json:"saleNumber"`
	Totals         cart.Totals            `json:"totals"`
	Reconciliation payment.Reconciliation `json:"reconciliation"`
	Advisories     []pricing.Advisory     `json:"advisories,omitempty"`
}

// Orchestrator wires the checkout sequence. Journal and Stock accept
// nil; failures there are logged, never propagated.
type Orchestrator struct {
	Sales            Gateway
	Stock            Invalidator
	Journal          *journal.Store
	Logger           zerolog.Logger
	GuestCustomerRef string
}

// Validate runs the pre-flight checks in order: the hard discount
// invariant gate, below-cost advisories, the mode policy table, payment
// reconciliation and customer presence. Nothing is sent remotely when
// it fails.
func (o *Orchestrator) Validate(c *cart.Cart) (payment.Reconciliation, []pricing.Advisory, *Failure) {
	if len(c.Lines) == 0 {
		return payment.Reconciliation{}, nil, &Failure{
			Stage: StateValidating, Kind: FailureValidation, Message: "cart is empty",
		}
	}
	for _, l := range c.Lines {
		if err := l.CheckInvariant(); err != nil {
			return payment.Reconciliation{}, nil, &Failure{
				Stage: StateValidating, Kind: FailureValidation,
				Message: err.Error(), Err: err,
			}
		}
	}

	var advisories []pricing.Advisory
	for _, l := range c.Lines {
		if l.BelowCost() {
			advisories = append(advisories, pricing.Advisory{
				Code:   pricing.CodeBelowCostPrice,
				LineID: l.ID,
				Message: fmt.Sprintf("%s sells at %s, below its last purchase price %s",
					l.Name, l.DiscountedPrice.StringFixed(2), l.LastPurchasePrice.StringFixed(2)),
			})
		}
	}

	mode := c.Mode()
	if fail := o.checkPolicy(c, mode); fail != nil {
		return payment.Reconciliation{}, advisories, fail
	}

	totals := c.Totals()
	recon, err := payment.Reconcile(c.Payment, totals.Total, totals.AdvanceAmount, mode)
	if err != nil {
		return payment.Reconciliation{}, advisories, &Failure{
			Stage: StateValidating, Kind: FailureValidation,
			Message: guestPhrase(mode.Guest, err.Error()), Err: err,
		}
	}

	if !c.Guest && c.CustomerRef == "" {
		return payment.Reconciliation{}, advisories, &Failure{
			Stage: StateValidating, Kind: FailureValidation,
			Message: "a customer must be selected for registered sales",
		}
	}
	return recon, advisories, nil
}

func (o *Orchestrator) checkPolicy(c *cart.Cart, mode policy.Mode) *Failure {
	reject := func(msg string) *Failure {
		return &Failure{Stage: StateValidating, Kind: FailureValidation, Message: msg}
	}
	if !mode.AllowDelivery() && c.SaleType == policy.SaleTypeDelivery {
		return reject("guest sales cannot be delivery sales")
	}
	if !mode.AllowUseAdvance() && c.UseAdvance {
		return reject("guest sales cannot use customer advances")
	}
	for _, l := range c.Lines {
		if !mode.AllowManualSubtotal() && l.ManualSubtotal != nil {
			return reject(fmt.Sprintf("%s carries a manual subtotal override, not allowed on guest sales", l.Name))
		}
		if !mode.AllowPriceBelowOriginal() && l.DiscountedPrice.LessThan(l.OriginalPrice) {
			return reject(fmt.Sprintf("%s is priced below the catalog price, not allowed on guest sales", l.Name))
		}
	}
	return nil
}

// Checkout runs the full sequence. The cart is left untouched on any
// failure so the operator can correct and retry; the caller resets the
// session only on a settled result.
func (o *Orchestrator) Checkout(ctx context.Context, c *cart.Cart) (Result, *Failure) {
	start := time.Now()
	recon, advisories, fail := o.Validate(c)
	totals := c.Totals()
	if fail != nil {
		o.finish(ctx, c, totals, recon, journal.OutcomeValidateFailed, fail, start)
		return Result{}, fail
	}

	created, err := o.Sales.CreateSale(ctx, o.buildCreateInput(c, totals))
	if err != nil {
		fail = classify(err, StateCreating, c.Guest)
		o.observeCall("create", false)
		o.finish(ctx, c, totals, recon, journal.OutcomeCreateFailed, fail, start)
		return Result{}, fail
	}
	o.observeCall("create", true)

	if _, err := o.Sales.ProcessSale(ctx, created.SaleID, o.buildProcessInput(c, recon)); err != nil {
		fail = classify(err, StateProcessing, c.Guest)
		fail.DraftSaleID = created.SaleID
		fail.Message = fmt.Sprintf("%s (draft sale %s left unprocessed)", fail.Message, created.SaleNumber)
		o.observeCall("process", false)
		o.record(ctx, journal.Entry{
			SessionID:  c.ID,
			SaleID:     created.SaleID,
			SaleNumber: created.SaleNumber,
			Total:      totals.Total,
			AmountPaid: recon.AmountPaid,
			Outcome:    journal.OutcomeProcessFailed,
			Detail:     fail.Message,
		})
		o.observeCheckout("failed", start)
		return Result{}, fail
	}
	o.observeCall("process", true)

	o.record(ctx, journal.Entry{
		SessionID:  c.ID,
		SaleID:     created.SaleID,
		SaleNumber: created.SaleNumber,
		Total:      totals.Total,
		AmountPaid: recon.AmountPaid,
		Outcome:    journal.OutcomeSettled,
	})
	if o.Stock != nil {
		if err := o.Stock.Invalidate(ctx); err != nil {
			o.Logger.Warn().Err(err).Msg("stock cache invalidation failed after settlement")
		}
	}
	o.observeAdvisories(advisories)
	o.observeCheckout("settled", start)
	o.Logger.Info().
		Str("session_id", c.ID).
		Str("sale_id", created.SaleID).
		Str("sale_number", created.SaleNumber).
		Str("total", totals.Total.StringFixed(2)).
		Bool("guest", c.Guest).
		Msg("checkout settled")

	return Result{
		State:          StateSettled,
		SaleID:         created.SaleID,
		SaleNumber:     created.SaleNumber,
		Totals:         totals,
		Reconciliation: recon,
		Advisories:     advisories,
	}, nil
}

func (o *Orchestrator) buildCreateInput(c *cart.Cart, totals cart.Totals) salesapi.CreateSaleInput {
	items := make([]salesapi.SaleItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		item := salesapi.SaleItem{
			ItemID:         l.StockRef,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			DeliveryCharge: l.DeliveryCharge,
		}
		if l.DiscountPercent.IsPositive() {
			pct := l.DiscountPercent
			item.DiscountPercentage = &pct
		}
		items = append(items, item)
	}
	in := salesapi.CreateSaleInput{
		SaleType:   string(c.SaleType),
		CustomerID: c.CustomerRef,
		IsGuest:    c.Guest,
		Items:      items,
	}
	if c.Guest {
		in.CustomerID = o.GuestCustomerRef
	}
	if c.VehicleRef != "" {
		vehicle := c.VehicleRef
		in.VehicleID = &vehicle
	}
	if totals.AdditionalDiscount.IsPositive() {
		extra := totals.AdditionalDiscount
		in.OverallDiscount = &extra
	}
	if c.Notes != "" {
		notes := c.Notes
		in.Notes = &notes
	}
	return in
}

func (o *Orchestrator) buildProcessInput(c *cart.Cart, recon payment.Reconciliation) salesapi.ProcessSaleInput {
	in := salesapi.ProcessSaleInput{
		AmountPaid: recon.AmountPaid,
		UseAdvance: c.UseAdvance,
		IsGuest:    c.Guest,
	}
	if len(recon.Entries) > 0 {
		in.Payments = make([]salesapi.PaymentEntry, 0, len(recon.Entries))
		for _, e := range recon.Entries {
			in.Payments = append(in.Payments, salesapi.PaymentEntry{
				Method:    string(e.Method),
				AccountID: e.AccountRef,
				Amount:    e.Amount,
			})
		}
		return in
	}
	in.PaymentMethod = string(c.Payment.Method)
	in.PaymentAccountID = c.Payment.AccountRef
	return in
}

func (o *Orchestrator) finish(ctx context.Context, c *cart.Cart, totals cart.Totals, recon payment.Reconciliation, outcome string, fail *Failure, start time.Time) {
	o.record(ctx, journal.Entry{
		SessionID:  c.ID,
		Total:      totals.Total,
		AmountPaid: recon.AmountPaid,
		Outcome:    outcome,
		Detail:     fail.Message,
	})
	o.observeCheckout("failed", start)
}

func (o *Orchestrator) record(ctx context.Context, e journal.Entry) {
	if err := o.Journal.Record(ctx, e); err != nil {
		o.Logger.Error().Err(err).Str("session_id", e.SessionID).Msg("journal write failed")
	}
}

func (o *Orchestrator) observeCall(call string, success bool) {
	if obs.SaleCallTotal == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	obs.SaleCallTotal.WithLabelValues(call, result).Inc()
}

func (o *Orchestrator) observeCheckout(result string, start time.Time) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
	if obs.CheckoutDuration != nil {
		obs.CheckoutDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
}

func (o *Orchestrator) observeAdvisories(advisories []pricing.Advisory) {
	if obs.AdvisoryTotal == nil {
		return
	}
	for _, a := range advisories {
		obs.AdvisoryTotal.WithLabelValues(string(a.Code)).Inc()
	}
}

// classify maps a remote error onto the failure taxonomy. Guest carts
// get guest-specific phrasing for validation rejections.
func classify(err error, stage State, guest bool) *Failure {
	var apiErr *salesapi.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnprocessableEntity, http.StatusBadRequest:
			return &Failure{
				Stage: stage, Kind: FailureValidation,
				Message: guestPhrase(guest, apiErr.Message),
				Fields:  apiErr.Fields, Err: err,
			}
		case http.StatusNotFound:
			return &Failure{Stage: stage, Kind: FailureNotFound,
				Message: "sales endpoint not found; check the backend configuration", Err: err}
		case http.StatusForbidden:
			return &Failure{Stage: stage, Kind: FailureForbidden,
				Message: "not authorized to record sales", Err: err}
		case http.StatusUnauthorized:
			return &Failure{Stage: stage, Kind: FailureUnauthorized,
				Message: "session expired; sign in again", Err: err}
		}
	}
	return &Failure{Stage: stage, Kind: FailureUnavailable,
		Message: "sales backend unavailable", Err: err}
}

func guestPhrase(guest bool, msg string) string {
	if msg == "" {
		msg = "the sale was rejected"
	}
	if guest {
		return "guest sale rejected: " + msg
	}
	return msg
}
