package stock

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/salesapi"
)

// Handler exposes the stock listing endpoint.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/stock with search and pagination.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "stock service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	if perPage > 200 {
		perPage = 200
	}
	query := salesapi.StockQuery{
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Page:   page,
		Limit:  perPage,
	}
	items, err := h.Service.List(r.Context(), query)
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "stock listing unavailable", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(items)},
	})
}
