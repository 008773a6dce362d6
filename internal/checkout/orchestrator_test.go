package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/payment"
	"github.com/noah-isme/backend-pos/internal/policy"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/salesapi"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubGateway struct {
	createCalls  int
	processCalls int
	createErr    error
	processErr   error
	lastCreate   salesapi.CreateSaleInput
	lastProcess  salesapi.ProcessSaleInput
}

func (s *stubGateway) CreateSale(_ context.Context, in salesapi.CreateSaleInput) (salesapi.CreateSaleResult, error) {
	s.createCalls++
	s.lastCreate = in
	if s.createErr != nil {
		return salesapi.CreateSaleResult{}, s.createErr
	}
	return salesapi.CreateSaleResult{SaleID: "sale-1", SaleNumber: "S-0001"}, nil
}

func (s *stubGateway) ProcessSale(_ context.Context, saleID string, in salesapi.ProcessSaleInput) (salesapi.ProcessSaleResult, error) {
	s.processCalls++
	s.lastProcess = in
	if s.processErr != nil {
		return salesapi.ProcessSaleResult{}, s.processErr
	}
	return salesapi.ProcessSaleResult{SaleID: saleID, Status: "completed", AmountPaid: in.AmountPaid}, nil
}

type stubInvalidator struct{ calls int }

func (s *stubInvalidator) Invalidate(context.Context) error {
	s.calls++
	return nil
}

func testCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New(time.Now())
	c.CustomerRef = "cust-1"
	_, err := c.AddLine(cart.StockSnapshot{
		Ref:               "s1",
		Name:              "Air Filter",
		QuantityOnHand:    10,
		SellingPrice:      dec("250"),
		LastPurchasePrice: dec("180"),
	})
	require.NoError(t, err)
	c.Payment = payment.Plan{Mode: payment.PlanSingle, Method: payment.MethodCash, AccountRef: "acc-1"}
	return c
}

func newOrchestrator(gw *stubGateway, inv *stubInvalidator) *checkout.Orchestrator {
	return &checkout.Orchestrator{
		Sales:  gw,
		Stock:  inv,
		Logger: zerolog.Nop(),
	}
}

func TestCheckoutSettles(t *testing.T) {
	gw := &stubGateway{}
	inv := &stubInvalidator{}
	o := newOrchestrator(gw, inv)
	c := testCart(t)

	result, fail := o.Checkout(context.Background(), c)
	require.Nil(t, fail)
	require.Equal(t, checkout.StateSettled, result.State)
	require.Equal(t, "sale-1", result.SaleID)
	require.Equal(t, "S-0001", result.SaleNumber)
	require.Equal(t, 1, gw.createCalls)
	require.Equal(t, 1, gw.processCalls)
	require.Equal(t, 1, inv.calls)
	require.True(t, result.Totals.Total.Equal(dec("250")))
	require.True(t, result.Reconciliation.AmountPaid.Equal(dec("250")))
	require.Equal(t, "cash", gw.lastProcess.PaymentMethod)
	require.Equal(t, "walk_in", gw.lastCreate.SaleType)
}

func TestCreateFailureSkipsProcess(t *testing.T) {
	gw := &stubGateway{createErr: &salesapi.APIError{Status: http.StatusUnprocessableEntity, Message: "insufficient stock"}}
	inv := &stubInvalidator{}
	o := newOrchestrator(gw, inv)

	_, fail := o.Checkout(context.Background(), testCart(t))
	require.NotNil(t, fail)
	require.Equal(t, checkout.StateCreating, fail.Stage)
	require.Equal(t, checkout.FailureValidation, fail.Kind)
	require.Equal(t, 1, gw.createCalls)
	require.Zero(t, gw.processCalls, "process must not run after a failed create")
	require.Zero(t, inv.calls, "stock cache must not be invalidated on failure")
}

func TestProcessFailureReportsDraftSale(t *testing.T) {
	gw := &stubGateway{processErr: errors.New("connection reset")}
	o := newOrchestrator(gw, &stubInvalidator{})

	_, fail := o.Checkout(context.Background(), testCart(t))
	require.NotNil(t, fail)
	require.Equal(t, checkout.StateProcessing, fail.Stage)
	require.Equal(t, checkout.FailureUnavailable, fail.Kind)
	require.Equal(t, "sale-1", fail.DraftSaleID)
	require.Contains(t, fail.Message, "S-0001")
	require.Equal(t, 1, gw.processCalls, "process is never retried")
}

func TestFailureClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   checkout.FailureKind
	}{
		{http.StatusUnauthorized, checkout.FailureUnauthorized},
		{http.StatusForbidden, checkout.FailureForbidden},
		{http.StatusNotFound, checkout.FailureNotFound},
		{http.StatusBadGateway, checkout.FailureUnavailable},
	}
	for _, tc := range cases {
		gw := &stubGateway{createErr: &salesapi.APIError{Status: tc.status}}
		o := newOrchestrator(gw, &stubInvalidator{})
		_, fail := o.Checkout(context.Background(), testCart(t))
		require.NotNil(t, fail)
		require.Equal(t, tc.kind, fail.Kind, "status %d", tc.status)
	}
}

func TestValidateEmptyCart(t *testing.T) {
	o := newOrchestrator(&stubGateway{}, nil)
	c := cart.New(time.Now())
	_, _, fail := o.Validate(c)
	require.NotNil(t, fail)
	require.Equal(t, checkout.StateValidating, fail.Stage)
}

func TestValidateRequiresCustomer(t *testing.T) {
	o := newOrchestrator(&stubGateway{}, nil)
	c := testCart(t)
	c.CustomerRef = ""
	_, _, fail := o.Validate(c)
	require.NotNil(t, fail)
	require.Equal(t, checkout.FailureValidation, fail.Kind)
	require.Contains(t, fail.Message, "customer")
}

func TestValidateGuestExactTender(t *testing.T) {
	gw := &stubGateway{}
	o := newOrchestrator(gw, nil)
	o.GuestCustomerRef = "guest-0"
	c := testCart(t)
	c.SetGuest(true)
	c.Payment = payment.Plan{Mode: payment.PlanSingle, Method: payment.MethodCash, AccountRef: "acc-1", Tendered: dec("249.99")}

	_, _, fail := o.Validate(c)
	require.NotNil(t, fail)
	require.Equal(t, checkout.FailureValidation, fail.Kind)
	require.ErrorIs(t, fail.Err, payment.ErrGuestDue)
	require.Contains(t, fail.Message, "guest sale rejected")

	c.Payment.Tendered = dec("250.00")
	recon, _, fail := o.Validate(c)
	require.Nil(t, fail)
	require.True(t, recon.AmountPaid.Equal(dec("250")))
}

func TestValidateGuestPolicyBreaches(t *testing.T) {
	o := newOrchestrator(&stubGateway{}, nil)
	c := testCart(t)
	c.SetGuest(true)
	// Force a state the cart API would not produce; validation is the
	// hard gate and must still catch it.
	c.SaleType = policy.SaleTypeDelivery
	_, _, fail := o.Validate(c)
	require.NotNil(t, fail)
	require.Equal(t, checkout.FailureValidation, fail.Kind)
	require.Contains(t, fail.Message, "delivery")
}

func TestCheckoutSendsAdditionalDiscount(t *testing.T) {
	gw := &stubGateway{}
	o := newOrchestrator(gw, &stubInvalidator{})
	c := testCart(t)
	line := c.Lines[0]
	override := dec("200")
	_, err := c.ApplyLine(line.ID, func(l pricing.Line, mode policy.Mode) (pricing.Line, *pricing.Advisory) {
		return l.WithManualSubtotal(&override, mode)
	})
	require.NoError(t, err)

	result, fail := o.Checkout(context.Background(), c)
	require.Nil(t, fail)
	require.NotNil(t, gw.lastCreate.OverallDiscount)
	require.True(t, gw.lastCreate.OverallDiscount.Equal(dec("50")), "overall discount %s", gw.lastCreate.OverallDiscount)
	require.True(t, result.Totals.Total.Equal(dec("200")))
}
