package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// ProductDetail handles GET /api/v1/products/{id}. The query string selects
// the color and axis values to price.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	detail, err := h.service.Resolve(r.Context(), id, SelectionFromQuery(r.URL.Query()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, detail)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		appErr.Render(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "product service unavailable", nil)
}
