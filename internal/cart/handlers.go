package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/payment"
	"github.com/noah-isme/backend-pos/internal/policy"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/stock"
)

// Handler exposes the cart session endpoints.
type Handler struct {
	Registry *Registry
	Stock    *stock.Service
	Validate *validator.Validate
}

// Snapshot is the canonical session response body: the full cart plus
// recomputed totals, and any advisories raised by the last edit.
type Snapshot struct {
	Cart       *Cart              `json:"cart"`
	Totals     Totals             `json:"totals"`
	Advisories []pricing.Advisory `json:"advisories,omitempty"`
}

func (h *Handler) snapshot(c *Cart, advisories ...pricing.Advisory) Snapshot {
	compact := advisories[:0]
	for _, a := range advisories {
		if a.Code != "" {
			compact = append(compact, a)
		}
	}
	return Snapshot{Cart: c, Totals: c.Totals(), Advisories: compact}
}

type openSessionRequest struct {
	SaleType   string `json:"saleType" validate:"omitempty,oneof=walk_in delivery"`
	CustomerID string `json:"customerId"`
	VehicleID  string `json:"vehicleId"`
	IsGuest    bool   `json:"isGuest"`
	Notes      string `json:"notes"`
}

// Open handles POST /api/v1/sessions.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session registry not configured", nil)
		return
	}
	var req openSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
			return
		}
	}
	if err := h.validateStruct(req); err != nil {
		h.writeValidation(w, err)
		return
	}
	session := h.Registry.Open()
	session.Lock()
	defer session.Unlock()
	c := session.Cart
	if req.SaleType != "" {
		if err := c.SetSaleType(policy.SaleType(req.SaleType)); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
			return
		}
	}
	var advisories []pricing.Advisory
	if req.IsGuest {
		advisories = c.SetGuest(true)
	}
	c.CustomerRef = req.CustomerID
	c.VehicleRef = req.VehicleID
	c.Notes = req.Notes
	if c.Guest {
		c.CustomerRef = ""
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.snapshot(c, advisories...)})
}

// Get handles GET /api/v1/sessions/{sessionId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	common.JSON(w, http.StatusOK, map[string]any{"data": h.snapshot(session.Cart)})
}

// Delete handles DELETE /api/v1/sessions/{sessionId}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session registry not configured", nil)
		return
	}
	h.Registry.Delete(chi.URLParam(r, "sessionId"))
	w.WriteHeader(http.StatusNoContent)
}

type updateSessionRequest struct {
	SaleType   *string `json:"saleType" validate:"omitempty,oneof=walk_in delivery"`
	IsGuest    *bool   `json:"isGuest"`
	CustomerID *string `json:"customerId"`
	VehicleID  *string `json:"vehicleId"`
	UseAdvance *bool   `json:"useAdvance"`
	Notes      *string `json:"notes"`
}

// Update handles PATCH /api/v1/sessions/{sessionId}: sale mode, guest
// flag, customer and advance toggles.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	if err := h.validateStruct(req); err != nil {
		h.writeValidation(w, err)
		return
	}
	session.Lock()
	defer session.Unlock()
	c := session.Cart

	var advisories []pricing.Advisory
	if req.IsGuest != nil {
		advisories = append(advisories, c.SetGuest(*req.IsGuest)...)
	}
	if req.SaleType != nil {
		if err := c.SetSaleType(policy.SaleType(*req.SaleType)); err != nil {
			h.writeCartError(w, err)
			return
		}
	}
	if req.CustomerID != nil && !c.Guest {
		c.CustomerRef = *req.CustomerID
	}
	if req.VehicleID != nil {
		c.VehicleRef = *req.VehicleID
	}
	if req.UseAdvance != nil {
		if err := c.SetUseAdvance(*req.UseAdvance); err != nil {
			h.writeCartError(w, err)
			return
		}
	}
	if req.Notes != nil {
		c.Notes = *req.Notes
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.snapshot(c, advisories...)})
}

type addLineRequest struct {
	StockID string `json:"stockId" validate:"required"`
}

// AddLine handles POST /api/v1/sessions/{sessionId}/lines. The line is
// seeded from the live stock listing; quantity starts at one.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Stock == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "stock service not configured", nil)
		return
	}
	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	if err := h.validateStruct(req); err != nil {
		h.writeValidation(w, err)
		return
	}
	item, err := h.Stock.Get(r.Context(), req.StockID)
	if err != nil {
		if errors.Is(err, stock.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "stock item not found", nil)
			return
		}
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "stock listing unavailable", nil)
		return
	}
	session.Lock()
	defer session.Unlock()
	line, err := session.Cart.AddLine(StockSnapshot{
		Ref:               item.ID,
		Name:              item.Name,
		QuantityOnHand:    item.QuantityOnHand,
		SellingPrice:      item.SellingPrice,
		LastPurchasePrice: item.LastPurchasePrice,
	})
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data":   h.snapshot(session.Cart),
		"lineId": line.ID,
	})
}

// editLineRequest carries exactly one tagged edit. Field names the
// pricing engine: it decides which recompute path runs.
type editLineRequest struct {
	Field string           `json:"field" validate:"required,oneof=unit_price discount_amount discount_percent quantity_delta delivery_charge manual_subtotal"`
	Value *decimal.Decimal `json:"value"`
}

// EditLine handles PATCH /api/v1/sessions/{sessionId}/lines/{lineId}.
// One field per request; each edit runs the full recompute so the
// discount invariant holds after every response.
func (h *Handler) EditLine(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req editLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	if err := h.validateStruct(req); err != nil {
		h.writeValidation(w, err)
		return
	}
	if req.Value == nil && req.Field != "manual_subtotal" {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "value is required", nil)
		return
	}

	session.Lock()
	defer session.Unlock()
	lineID := chi.URLParam(r, "lineId")
	advisory, err := session.Cart.ApplyLine(lineID, func(l pricing.Line, mode policy.Mode) (pricing.Line, *pricing.Advisory) {
		switch req.Field {
		case "unit_price":
			return l.WithUnitPrice(*req.Value, mode)
		case "discount_amount":
			return l.WithDiscountAmount(*req.Value, mode)
		case "discount_percent":
			return l.WithDiscountPercent(*req.Value, mode)
		case "quantity_delta":
			return l.WithQuantityDelta(int(req.Value.IntPart()))
		case "delivery_charge":
			return l.WithDeliveryCharge(*req.Value)
		default:
			return l.WithManualSubtotal(req.Value, mode)
		}
	})
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	var advisories []pricing.Advisory
	if advisory != nil {
		advisories = append(advisories, *advisory)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.snapshot(session.Cart, advisories...)})
}

// RemoveLine handles DELETE /api/v1/sessions/{sessionId}/lines/{lineId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	if err := session.Cart.RemoveLine(chi.URLParam(r, "lineId")); err != nil {
		h.writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.snapshot(session.Cart)})
}

type paymentRequest struct {
	Mode      string          `json:"mode" validate:"required,oneof=single split"`
	Method    string          `json:"method" validate:"omitempty,oneof=cash bank_transfer cheque card other"`
	AccountID string          `json:"accountId"`
	Tendered  decimal.Decimal `json:"tendered"`
	Splits    []splitEntry    `json:"splits" validate:"omitempty,dive"`
}

type splitEntry struct {
	Method    string          `json:"method" validate:"required,oneof=cash bank_transfer cheque card other"`
	AccountID string          `json:"accountId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// SetPayment handles PUT /api/v1/sessions/{sessionId}/payment. The plan
// is stored as-is; reconciliation runs at validate and checkout time.
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	if err := h.validateStruct(req); err != nil {
		h.writeValidation(w, err)
		return
	}
	plan := payment.Plan{
		Mode:       payment.PlanMode(req.Mode),
		Method:     payment.Method(req.Method),
		AccountRef: req.AccountID,
		Tendered:   req.Tendered,
	}
	for _, s := range req.Splits {
		plan.Splits = append(plan.Splits, payment.SplitEntry{
			Method:     payment.Method(s.Method),
			AccountRef: s.AccountID,
			Amount:     s.Amount,
		})
	}
	session.Lock()
	defer session.Unlock()
	session.Cart.Payment = plan
	common.JSON(w, http.StatusOK, map[string]any{"data": h.snapshot(session.Cart)})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session registry not configured", nil)
		return nil, false
	}
	session, ok := h.Registry.Get(chi.URLParam(r, "sessionId"))
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found or expired", nil)
		return nil, false
	}
	return session, true
}

func (h *Handler) validateStruct(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid request", fields)
		return
	}
	common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
}

func (h *Handler) writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart line not found", nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "no remaining stock for this item", nil)
	case errors.Is(err, ErrGuestDelivery), errors.Is(err, ErrGuestUseAdvance):
		common.JSONError(w, http.StatusUnprocessableEntity, "GUEST_POLICY", err.Error(), nil)
	case errors.Is(err, ErrInvalidSaleType):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
