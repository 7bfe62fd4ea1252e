package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/variant"
)

// Products resolves the product a line item is priced from.
type Products interface {
	Product(ctx context.Context, id int64) (variant.Product, error)
}

// Handler wires the cart store to HTTP.
type Handler struct {
	Store    *Store
	Products Products
}

// Get returns cart contents and aggregate totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	sid, ok := session.ID(r.Context())
	if !ok {
		h.writeError(w, session.ErrNoSession)
		return
	}
	snap, err := h.Store.Snapshot(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// AddItem prices the selected variant server-side and adds it to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	sid, ok := session.ID(r.Context())
	if !ok {
		h.writeError(w, session.ErrNoSession)
		return
	}
	var payload struct {
		ProductID int64             `json:"productId"`
		Color     string            `json:"color"`
		Options   map[string]string `json:"options"`
		Qty       int               `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.ProductID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	p, err := h.Products.Product(r.Context(), payload.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	item, err := ItemFor(p, variant.Selection{Color: payload.Color, Options: payload.Options}, payload.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.Store.Add(r.Context(), sid, item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// Increment handles POST /cart/items/{slot}/increment.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	h.slotMutation(w, r, h.Store.Increment)
}

// Decrement handles POST /cart/items/{slot}/decrement.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.slotMutation(w, r, h.Store.Decrement)
}

// RemoveItem handles DELETE /cart/items/{slot}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.slotMutation(w, r, h.Store.Remove)
}

// Clear empties the session cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	sid, ok := session.ID(r.Context())
	if !ok {
		h.writeError(w, session.ErrNoSession)
		return
	}
	if err := h.Store.Clear(r.Context(), sid); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) slotMutation(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, Slot) (Snapshot, error)) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	sid, ok := session.ID(r.Context())
	if !ok {
		h.writeError(w, session.ErrNoSession)
		return
	}
	snap, err := fn(r.Context(), sid, Slot(chi.URLParam(r, "slot")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		appErr.Render(w, http.StatusBadRequest, "BAD_REQUEST")
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, session.ErrNoSession):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
