package variant_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/variant"
)

func phone() variant.Product {
	return variant.Product{
		ID:             42,
		Name:           "Phone 15",
		Thumbnail:      "thumb.jpg",
		ReferencePrice: 1000,
		SalePrice:      700,
		Discount:       "-30%",
		Colors:         []string{"#000000", "#FFFFFF"},
		ChoiceOptions: variant.Axes{
			{Title: "Storage", Options: []string{"128GB", "256GB"}},
			{Title: "Warranty", Options: nil},
			{Title: "Region", Options: []string{"International", "Local"}},
		},
		Variants: []variant.Variant{
			{Variant: "Midnight-128GB-International", SKU: "P-1", Price: 1100, Qty: 3, Image: "mid.jpg"},
			{Variant: "White-256GB-Local", SKU: "P-2", Price: 1300, Qty: 1},
		},
		Stock: 9,
	}
}

func TestAxesOrderSkipsEmptyAxes(t *testing.T) {
	require.Equal(t, []string{"Storage", "Region"}, phone().ChoiceOptions.Order())
}

func TestDefaultSelectionResolvesVariant(t *testing.T) {
	p := phone()
	sel := p.DefaultSelection()
	require.Equal(t, "#000000", sel.Color)
	require.Equal(t, map[string]string{"Storage": "128GB", "Region": "International"}, sel.Options)

	q := p.Resolve(sel)
	require.True(t, q.Matched())
	require.Equal(t, "Midnight-128GB-International", q.Key)
	require.Equal(t, int64(1100), q.ReferencePrice)
	require.Equal(t, int64(770), q.SalePrice)
	require.Equal(t, 3, q.Stock)
	require.Equal(t, "mid.jpg", q.Image)
}

func TestVariantWithoutImageUsesThumbnail(t *testing.T) {
	p := phone()
	q := p.Resolve(variant.Selection{Color: "#ffffff", Options: map[string]string{"Storage": "256GB", "Region": "Local"}})
	require.True(t, q.Matched())
	require.Equal(t, int64(910), q.SalePrice)
	require.Equal(t, "thumb.jpg", q.Image)
}

func TestUnmatchedSelectionFallsBackToBase(t *testing.T) {
	p := phone()
	q := p.Resolve(variant.Selection{Color: "#000000", Options: map[string]string{"Storage": "256GB", "Region": "Local"}})
	require.False(t, q.Matched())
	require.Equal(t, int64(1000), q.ReferencePrice)
	require.Equal(t, int64(700), q.SalePrice)
	require.Equal(t, 9, q.Stock)
}

func TestFallbackDerivesSalePriceWhenMainPriceMissing(t *testing.T) {
	p := phone()
	p.Variants = nil
	p.SalePrice = 0
	q := p.Resolve(p.DefaultSelection())
	require.Equal(t, int64(700), q.SalePrice)
}

func TestNormalizeDropsUnknownValues(t *testing.T) {
	p := phone()
	sel := p.Normalize(variant.Selection{
		Color:   "#FF0000",
		Options: map[string]string{"Storage": "256GB", "Region": "Mars", "Color": "Red"},
	})
	require.Equal(t, "#000000", sel.Color)
	require.Equal(t, map[string]string{"Storage": "256GB", "Region": "International"}, sel.Options)
}
