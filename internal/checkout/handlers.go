package checkout

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/payment"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Handler exposes the validate and checkout endpoints for a session.
// Locker is optional; when set, checkouts for the same session are
// serialised across instances, not just within this process.
type Handler struct {
	Registry     *cart.Registry
	Orchestrator *Orchestrator
	Locker       *lock.Locker
	Now          func() time.Time
}

type validateResponse struct {
	Valid          bool                   `json:"valid"`
	Totals         cart.Totals            `json:"totals"`
	Reconciliation payment.Reconciliation `json:"reconciliation"`
	Advisories     []pricing.Advisory     `json:"advisories,omitempty"`
	Failure        *Failure               `json:"failure,omitempty"`
}

// ValidateSession handles POST /api/v1/sessions/{sessionId}/validate.
// A failed validation is a 200 with valid=false: the operator asked a
// question and got an answer, nothing went wrong at the HTTP level.
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()

	resp := validateResponse{Totals: session.Cart.Totals()}
	recon, advisories, fail := h.Orchestrator.Validate(session.Cart)
	resp.Advisories = advisories
	if fail != nil {
		resp.Failure = fail
		common.JSON(w, http.StatusOK, map[string]any{"data": resp})
		return
	}
	resp.Valid = true
	resp.Reconciliation = recon
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

// CheckoutSession handles POST /api/v1/sessions/{sessionId}/checkout.
// The session lock is held across both remote calls so no concurrent
// edit can slip between create and process. On settlement the cart is
// reset in place; the session id stays valid for the next sale.
func (h *Handler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()

	var (
		result Result
		fail   *Failure
	)
	run := func(ctx context.Context) error {
		result, fail = h.Orchestrator.Checkout(ctx, session.Cart)
		return nil
	}
	if h.Locker != nil {
		if err := h.Locker.WithLock(r.Context(), "pos:checkout:"+session.Cart.ID, 30*time.Second, run); err != nil {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "could not acquire the checkout lock for this session", nil)
			return
		}
	} else {
		_ = run(r.Context())
	}
	if fail != nil {
		common.JSONError(w, failureStatus(fail), failureCode(fail), fail.Message, fail)
		return
	}
	session.Cart.Reset(h.now())
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*cart.Session, bool) {
	if h.Registry == nil || h.Orchestrator == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return nil, false
	}
	session, ok := h.Registry.Get(chi.URLParam(r, "sessionId"))
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found or expired", nil)
		return nil, false
	}
	return session, true
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func failureStatus(f *Failure) int {
	switch f.Kind {
	case FailureValidation:
		return http.StatusUnprocessableEntity
	case FailureNotFound:
		return http.StatusBadGateway
	case FailureForbidden:
		return http.StatusForbidden
	case FailureUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func failureCode(f *Failure) string {
	switch f.Kind {
	case FailureValidation:
		return "VALIDATION"
	case FailureForbidden:
		return "FORBIDDEN"
	case FailureUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "UPSTREAM"
	}
}
