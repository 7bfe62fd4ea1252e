package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/variant"
)

type fakeSource struct {
	products map[int64]variant.Product
	calls    int
}

func (f *fakeSource) Product(_ context.Context, id int64) (variant.Product, error) {
	f.calls++
	p, ok := f.products[id]
	if !ok {
		return variant.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type detailResponse struct {
	Data struct {
		Selection variant.Selection `json:"selection"`
		Quote     variant.Quote     `json:"quote"`
	} `json:"data"`
}

func newHandler(t *testing.T, src *fakeSource) http.Handler {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := catalog.NewService(catalog.ServiceConfig{Source: src, Cache: cache.New(client, "catalog:", time.Minute)})
	require.NoError(t, err)
	h := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	r := chi.NewRouter()
	r.Get("/api/v1/products/{id}", h.ProductDetail)
	return r
}

func TestProductDetailResolvesSelection(t *testing.T) {
	src := &fakeSource{products: map[int64]variant.Product{
		7: {
			ID:             7,
			Name:           "Phone",
			ReferencePrice: 1000,
			SalePrice:      900,
			Discount:       "10%",
			Colors:         []string{"#000000"},
			ChoiceOptions:  variant.Axes{{Title: "Storage", Options: []string{"128GB", "256GB"}}},
			Variants: []variant.Variant{
				{Variant: "Midnight-256GB", SKU: "P-256", Price: 1200, Qty: 2},
				{Variant: "Midnight-128GB", SKU: "", Price: 1},
			},
			Stock: 5,
		},
	}}
	handler := newHandler(t, src)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/7?Storage=256GB", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Midnight-256GB", resp.Data.Quote.Key)
	require.Equal(t, int64(1200), resp.Data.Quote.ReferencePrice)
	require.Equal(t, int64(1080), resp.Data.Quote.SalePrice)
	require.Equal(t, 2, resp.Data.Quote.Stock)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = detailResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "128GB", resp.Data.Selection.Options["Storage"])
	require.Empty(t, resp.Data.Quote.Key)
	require.Equal(t, int64(900), resp.Data.Quote.SalePrice)
	require.Equal(t, 5, resp.Data.Quote.Stock)

	require.Equal(t, 1, src.calls, "second lookup should be served from cache")
}

func TestProductDetailNotFound(t *testing.T) {
	handler := newHandler(t, &fakeSource{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
