// Package salesapi is the HTTP client for the remote sales backend: the
// stock listing that feeds line selection, and the two-step create/
// process sale interface the checkout orchestrator drives. The backend
// owns stock arbitration, tax and the accounting side; this client only
// shapes requests and classifies failures.
package salesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

// StockItem is one selectable stock record as the backend reports it.
type StockItem struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	SKU               string          `json:"sku"`
	QuantityOnHand    int             `json:"quantity_on_hand"`
	ReorderLevel      int             `json:"reorder_level"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	LastPurchasePrice decimal.Decimal `json:"last_purchase_price"`
}

// StockQuery narrows the stock listing.
type StockQuery struct {
	Search string
	Page   int
	Limit  int
}

// Signature returns a stable cache key component for the query.
func (q StockQuery) Signature() string {
	return fmt.Sprintf("q=%s&page=%d&limit=%d", strings.TrimSpace(q.Search), q.Page, q.Limit)
}

// SaleItem is one cart line in the create-sale payload.
type SaleItem struct {
	ItemID             string           `json:"item_id"`
	Quantity           int              `json:"quantity"`
	UnitPrice          decimal.Decimal  `json:"unit_price"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DeliveryCharge     decimal.Decimal  `json:"delivery_charge"`
}

// CreateSaleInput is the cart snapshot sent to the create-sale endpoint.
type CreateSaleInput struct {
	SaleType        string           `json:"sale_type"`
	CustomerID      string           `json:"customer_id"`
	IsGuest         bool             `json:"is_guest"`
	VehicleID       *string          `json:"vehicle_id,omitempty"`
	Items           []SaleItem       `json:"items"`
	OverallDiscount *decimal.Decimal `json:"overall_discount,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// CreateSaleResult identifies the draft sale the backend created.
type CreateSaleResult struct {
	SaleID     string `json:"sale_id"`
	SaleNumber string `json:"sale_number"`
}

// PaymentEntry mirrors one split tender in the process-sale payload.
type PaymentEntry struct {
	Method    string          `json:"method"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ProcessSaleInput carries the payment plan for a created sale.
type ProcessSaleInput struct {
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentAccountID string          `json:"payment_account_id,omitempty"`
	Payments         []PaymentEntry  `json:"payments,omitempty"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	UseAdvance       bool            `json:"use_advance"`
	IsGuest          bool            `json:"is_guest"`
}

// ProcessSaleResult confirms settlement of a sale.
type ProcessSaleResult struct {
	SaleID     string          `json:"sale_id"`
	SaleNumber string          `json:"sale_number"`
	Status     string          `json:"status"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// Config bundles the knobs the client needs at construction.
type Config struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	RetryMax     int
	RetryBackoff time.Duration
	Breaker      *resilience.Breaker
}

// Client talks to the sales backend. Reads retry through the breaker;
// create/process are single-attempt because the backend does not
// de-duplicate them.
type Client struct {
	baseURL string
	token   string
	read    resilience.HTTPClient
	write   resilience.HTTPClient
}

// New constructs a client with an otel-instrumented transport.
func New(cfg Config) *Client {
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 3
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		read: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     cfg.Breaker,
			MaxAttempts: retryMax,
			BaseBackoff: cfg.RetryBackoff,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		write: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     cfg.Breaker,
			MaxAttempts: 1,
			Timeout:     timeout,
		},
	}
}

// ListStock fetches the selectable stock records.
func (c *Client) ListStock(ctx context.Context, query StockQuery) ([]StockItem, error) {
	values := url.Values{}
	if s := strings.TrimSpace(query.Search); s != "" {
		values.Set("q", s)
	}
	if query.Page > 0 {
		values.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	path := "/stock"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out struct {
		Data []StockItem `json:"data"`
	}
	if err := c.do(ctx, c.read, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return out.Data, nil
}

// CreateSale submits the cart snapshot and returns the draft sale
// identifiers. Never retried.
func (c *Client) CreateSale(ctx context.Context, in CreateSaleInput) (CreateSaleResult, error) {
	var out struct {
		Data CreateSaleResult `json:"data"`
	}
	if err := c.do(ctx, c.write, http.MethodPost, "/sales", in, &out); err != nil {
		return CreateSaleResult{}, fmt.Errorf("create sale: %w", err)
	}
	return out.Data, nil
}

// ProcessSale settles a created sale with its payment plan. Never
// retried.
func (c *Client) ProcessSale(ctx context.Context, saleID string, in ProcessSaleInput) (ProcessSaleResult, error) {
	var out struct {
		Data ProcessSaleResult `json:"data"`
	}
	path := "/sales/" + url.PathEscape(saleID) + "/process"
	if err := c.do(ctx, c.write, http.MethodPost, path, in, &out); err != nil {
		return ProcessSaleResult{}, fmt.Errorf("process sale %s: %w", saleID, err)
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, transport resilience.HTTPClient, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := transport.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
