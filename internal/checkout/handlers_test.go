package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/commerce"
	"github.com/noah-isme/toko-storefront/internal/session"
)

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newRouter(f fixture) http.Handler {
	h := &checkout.Handler{Svc: f.svc}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.WithID(req.Context(), "s1")))
		})
	})
	r.Get("/checkout/quote", h.Quote)
	r.Post("/checkout/coupon", h.ApplyCoupon)
	r.Delete("/checkout/coupon", h.ClearCoupon)
	r.Get("/checkout/status", h.Status)
	r.Post("/checkout/orders", h.Submit)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCouponEndpoints(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "s1")
	h := newRouter(f)

	rec := do(t, h, http.MethodPost, "/checkout/coupon", `{"code":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "COUPON_REQUIRED", decodeError(t, rec).Error.Code)

	rec = do(t, h, http.MethodPost, "/checkout/coupon", `{"code":"nope"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "COUPON_REJECTED", body.Error.Code)
	require.Equal(t, "Invalid coupon!", body.Error.Message)

	rec = do(t, h, http.MethodPost, "/checkout/coupon?district=Dhaka", `{"code":"flat50"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var applied struct {
		Data struct {
			Quote checkout.Quote `json:"quote"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	require.Equal(t, int64(50), applied.Data.Quote.CouponDiscount)
	require.Equal(t, int64(910), applied.Data.Quote.GrandTotal)

	rec = do(t, h, http.MethodDelete, "/checkout/coupon", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/checkout/quote?district=Dhaka", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var quoted struct {
		Data checkout.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quoted))
	require.Equal(t, int64(960), quoted.Data.GrandTotal)
	require.Nil(t, quoted.Data.Coupon)
}

func TestSubmitEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "s1")
	h := newRouter(f)

	rec := do(t, h, http.MethodPost, "/checkout/orders", `{"name":"Rahim","phone":"0171","address":"x","district":"Dhaka","paymentMethod":"cod"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Equal(t, "must be a valid mobile number", body.Error.Details["phone"])

	f.sub.err = &commerce.Rejection{Operation: "order_store", Status: 200, Message: "Product out of stock"}
	valid := `{"name":"Rahim","phone":"01712345678","address":"House 1","district":"Dhaka","paymentMethod":"cod"}`
	rec = do(t, h, http.MethodPost, "/checkout/orders", valid)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "ORDER_REJECTED", decodeError(t, rec).Error.Code)

	f.sub.err = commerce.ErrUnavailable
	rec = do(t, h, http.MethodPost, "/checkout/orders", valid)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, true, decodeError(t, rec).Error.Details["retryable"])

	rec = do(t, h, http.MethodGet, "/checkout/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"phase":"failed"`)

	f.sub.err = nil
	rec = do(t, h, http.MethodPost, "/checkout/orders", valid)
	require.Equal(t, http.StatusCreated, rec.Code)
	var placed struct {
		Data checkout.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	require.Equal(t, "20261015-0001", placed.Data.Summary.Code)
	require.Equal(t, int64(960), placed.Data.Summary.Totals.GrandTotal)
}

func TestHandlersRequireSession(t *testing.T) {
	f := newFixture(t)
	h := &checkout.Handler{Svc: f.svc}
	req := httptest.NewRequest(http.MethodGet, "/checkout/quote", nil).WithContext(context.Background())
	rec := httptest.NewRecorder()
	h.Quote(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
