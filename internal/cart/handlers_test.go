package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/variant"
)

type productsStub map[int64]variant.Product

func (p productsStub) Product(_ context.Context, id int64) (variant.Product, error) {
	return p[id], nil
}

type snapshotResponse struct {
	Data cart.Snapshot `json:"data"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	store, _ := newStore(t)
	h := &cart.Handler{Store: store, Products: productsStub{
		42: {
			ID:             42,
			Name:           "Phone",
			Thumbnail:      "thumb.jpg",
			ReferencePrice: 1000,
			SalePrice:      700,
			Discount:       "30%",
			Colors:         []string{"#000000"},
			ChoiceOptions:  variant.Axes{{Title: "Storage", Options: []string{"128GB"}}},
			Variants:       []variant.Variant{{Variant: "Midnight-128GB", SKU: "P-1", Price: 1100, Qty: 3, Image: "mid.jpg"}},
			Stock:          5,
		},
		43: {ID: 43, Name: "Case", ReferencePrice: 100, SalePrice: 100, Stock: 0},
	}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.WithID(req.Context(), "s1")))
		})
	})
	r.Get("/cart", h.Get)
	r.Delete("/cart", h.Clear)
	r.Post("/cart/items", h.AddItem)
	r.Post("/cart/items/{slot}/increment", h.Increment)
	r.Post("/cart/items/{slot}/decrement", h.Decrement)
	r.Delete("/cart/items/{slot}", h.RemoveItem)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, snapshotResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var resp snapshotResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCartHandlersFlow(t *testing.T) {
	h := newRouter(t)

	rec, resp := do(t, h, http.MethodPost, "/cart/items", `{"productId":42,"color":"#000000","options":{"Storage":"128GB"},"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Data.Items, 1)
	item := resp.Data.Items[0]
	require.Equal(t, int64(770), item.UnitPrice)
	require.Equal(t, int64(1100), item.ReferencePrice)
	require.Equal(t, "mid.jpg", item.VariantImage)
	require.Equal(t, "Midnight-128GB", item.VariantKey())
	require.Equal(t, int64(1540), resp.Data.Totals.MerchandiseTotal)

	rec, resp = do(t, h, http.MethodPost, "/cart/items/"+string(item.Slot)+"/increment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, resp.Data.Items[0].Qty)

	rec, _ = do(t, h, http.MethodPost, "/cart/items/"+string(item.Slot)+"/increment", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "OUT_OF_STOCK")

	rec, _ = do(t, h, http.MethodDelete, "/cart/items/"+string(item.Slot), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/cart/items/"+string(item.Slot)+"/decrement", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAddOutOfStockAndInvalidPayload(t *testing.T) {
	h := newRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/cart/items", `{"productId":43}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "OUT_OF_STOCK")

	rec, _ = do(t, h, http.MethodPost, "/cart/items", `{"productId":42,"qty":4611686018427387904}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/cart/items", `{"qty":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/cart/items", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
