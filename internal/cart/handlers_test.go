package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/salesapi"
	"github.com/noah-isme/backend-pos/internal/stock"
)

type fixedLister struct{ items []salesapi.StockItem }

func (f fixedLister) ListStock(context.Context, salesapi.StockQuery) ([]salesapi.StockItem, error) {
	return f.items, nil
}

func newRouter(t *testing.T) (*chi.Mux, *cart.Registry) {
	t.Helper()
	registry := cart.NewRegistry(time.Hour)
	handler := &cart.Handler{
		Registry: registry,
		Stock: &stock.Service{
			Client: fixedLister{items: []salesapi.StockItem{{
				ID:                "item-1",
				Name:              "Wiper Blade",
				QuantityOnHand:    5,
				SellingPrice:      decimal.NewFromInt(200),
				LastPurchasePrice: decimal.NewFromInt(150),
			}}},
		},
		Validate: validator.New(),
	}
	r := chi.NewRouter()
	r.Route("/api/v1/sessions", func(s chi.Router) {
		s.Post("/", handler.Open)
		s.Route("/{sessionId}", func(session chi.Router) {
			session.Get("/", handler.Get)
			session.Patch("/", handler.Update)
			session.Delete("/", handler.Delete)
			session.Post("/lines", handler.AddLine)
			session.Patch("/lines/{lineId}", handler.EditLine)
			session.Delete("/lines/{lineId}", handler.RemoveLine)
			session.Put("/payment", handler.SetPayment)
		})
	})
	return r, registry
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(data)
	} else {
		payload = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	data, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "missing data envelope in %s", rr.Body.String())
	return data
}

func TestSessionLifecycle(t *testing.T) {
	r, _ := newRouter(t)

	rr := do(t, r, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	data := decodeData(t, rr)
	c := data["cart"].(map[string]any)
	sessionID := c["id"].(string)
	require.NotEmpty(t, sessionID)
	require.Equal(t, "walk_in", c["saleType"])

	base := "/api/v1/sessions/" + sessionID

	rr = do(t, r, http.MethodPost, base+"/lines", map[string]any{"stockId": "item-1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var lineEnvelope struct {
		LineID string `json:"lineId"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &lineEnvelope))
	require.NotEmpty(t, lineEnvelope.LineID)

	rr = do(t, r, http.MethodPatch, fmt.Sprintf("%s/lines/%s", base, lineEnvelope.LineID), map[string]any{
		"field": "discount_amount",
		"value": "25",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	data = decodeData(t, rr)
	totals := data["totals"].(map[string]any)
	require.Equal(t, "175", totals["total"])

	rr = do(t, r, http.MethodPut, base+"/payment", map[string]any{
		"mode":      "single",
		"method":    "cash",
		"accountId": "acc-1",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEditRequiresKnownField(t *testing.T) {
	r, registry := newRouter(t)
	session := registry.Open()

	rr := do(t, r, http.MethodPatch,
		fmt.Sprintf("/api/v1/sessions/%s/lines/none", session.Cart.ID),
		map[string]any{"field": "markup", "value": "10"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestGuestToggleViaPatch(t *testing.T) {
	r, registry := newRouter(t)
	session := registry.Open()
	base := "/api/v1/sessions/" + session.Cart.ID

	rr := do(t, r, http.MethodPatch, base, map[string]any{"isGuest": true})
	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeData(t, rr)
	c := data["cart"].(map[string]any)
	require.Equal(t, true, c["guest"])

	rr = do(t, r, http.MethodPatch, base, map[string]any{"saleType": "delivery"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestUnknownSessionIs404(t *testing.T) {
	r, _ := newRouter(t)
	rr := do(t, r, http.MethodGet, "/api/v1/sessions/nope", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
