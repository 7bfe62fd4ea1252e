package order

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// ErrNotFound indicates the tracking code is unknown to the Commerce API.
var ErrNotFound = errors.New("order not found")

// Tracker looks up an order's tracking view by its public code.
type Tracker interface {
	TrackOrder(ctx context.Context, code string) (Tracking, error)
}

// Handler exposes the confirmation summary and order tracking.
type Handler struct {
	Store   *Store
	Tracker Tracker
}

// Summary returns the session's last order summary with its grand total
// re-derived from the persisted components.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	sid, ok := session.ID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session required", nil)
		return
	}
	sum, found, err := h.Store.Load(r.Context(), sid)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order summary", nil)
		return
	}
	if !found {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no order summary", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"summary":    sum,
		"grandTotal": sum.Totals.Recompute(),
		"consistent": sum.Totals.Consistent(),
	})
}

// Track proxies GET /orders/track/{code} to the Commerce API.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	if h.Tracker == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order tracker not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	tracking, err := h.Tracker.TrackOrder(r.Context(), code)
	if err != nil {
		var appErr *common.AppError
		switch {
		case errors.As(err, &appErr):
			appErr.Render(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE")
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		default:
			common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "order tracking unavailable", nil)
		}
		return
	}
	common.Data(w, http.StatusOK, tracking)
}
