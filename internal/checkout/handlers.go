package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/commerce"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

// Handler exposes quoting, coupons and order submission over HTTP.
type Handler struct {
	Svc *Service
}

// Quote prices the cart for the method and district query parameters.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	quote, err := h.Svc.Quote(r.Context(), sid, q.Get("method"), q.Get("district"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, quote)
}

// ApplyCoupon validates a coupon code and applies it to the session.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Svc.Coupons == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupons not configured", nil)
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	coupon, err := h.Svc.Coupons.Apply(r.Context(), sid, payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	quote, err := h.Svc.Quote(r.Context(), sid, r.URL.Query().Get("method"), r.URL.Query().Get("district"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"coupon": coupon, "quote": quote})
}

// ClearCoupon removes the applied coupon.
func (h *Handler) ClearCoupon(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Svc.Coupons == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupons not configured", nil)
		return
	}
	if err := h.Svc.Coupons.Clear(r.Context(), sid); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status reports the session's submission phase and any remembered draft.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.Status(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st)
}

// Submit places the order.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var form Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	res, err := h.Svc.Submit(r.Context(), sid, form)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, res)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return "", false
	}
	sid, ok := session.ID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session required", nil)
		return "", false
	}
	return sid, true
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
	var couponRej *voucher.Rejection
	var orderRej *commerce.Rejection
	switch {
	case errors.Is(err, voucher.ErrCodeRequired):
		common.JSONError(w, http.StatusBadRequest, "COUPON_REQUIRED", "please enter a coupon code", nil)
	case errors.As(err, &couponRej):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_REJECTED", couponRej.Error(), map[string]string{"code": couponRej.Code})
	case errors.Is(err, voucher.ErrSuperseded):
		common.JSONError(w, http.StatusConflict, "COUPON_SUPERSEDED", "a newer coupon request replaced this one", nil)
	case errors.As(err, &orderRej):
		common.JSONError(w, http.StatusUnprocessableEntity, "ORDER_REJECTED", orderRej.Error(), nil)
	case errors.Is(err, commerce.ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "the store is temporarily unavailable, please try again", map[string]bool{"retryable": true})
	case errors.Is(err, commerce.ErrMalformedResponse):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_MALFORMED", "unexpected response from the store", nil)
	case errors.Is(err, session.ErrNoSession):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session required", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
