package variant_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/variant"
)

func TestKeyConstruction(t *testing.T) {
	sel := map[string]string{"Storage": "128GB", "Region": "International"}

	key := variant.Key("#000000", sel, []string{"Storage", "Region"})
	require.Equal(t, "Midnight-128GB-International", key)

	reordered := variant.Key("#000000", sel, []string{"Region", "Storage"})
	require.Equal(t, "Midnight-International-128GB", reordered)
}

func TestKeyUnknownColorAndMissingAxes(t *testing.T) {
	key := variant.Key("#12ab9f", map[string]string{"Storage": "256GB"}, []string{"Storage", "Region"})
	require.Equal(t, "#12AB9F-256GB", key)

	require.Equal(t, "", variant.Key("", nil, []string{"Storage"}))
	require.Equal(t, "256GB", variant.Key("", map[string]string{"Storage": "256GB"}, []string{"Storage"}))
}

func TestResolve(t *testing.T) {
	variants := []variant.Variant{
		{Variant: "Midnight-128GB", SKU: "", Price: 1},
		{Variant: "", SKU: "ghost", Price: 2},
		{Variant: "Midnight-128GB", SKU: "IP-MID-128", Price: 1200, Qty: 4},
		{Variant: "Midnight-256GB", SKU: "IP-MID-256", Price: 1400, Qty: 0},
	}
	order := []string{"Storage"}

	got := variant.Resolve("#000000", map[string]string{"Storage": "128GB"}, order, variants)
	require.NotNil(t, got)
	require.Equal(t, "IP-MID-128", got.SKU)
	require.Equal(t, int64(1200), got.Price)

	require.Nil(t, variant.Resolve("#000000", map[string]string{"Storage": "512GB"}, order, variants))
	require.Nil(t, variant.Resolve("", nil, order, variants))
	require.Nil(t, variant.Resolve("#000000", map[string]string{"Storage": "128gb"}, order, variants))
}

func TestFilterDropsMalformed(t *testing.T) {
	out := variant.Filter([]variant.Variant{
		{Variant: "A", SKU: "1"},
		{Variant: " ", SKU: "2"},
		{Variant: "B", SKU: ""},
	})
	require.Len(t, out, 1)
	require.Equal(t, "A", out[0].Variant)
}
