package cart_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/variant"
)

func TestItemForRejectsQuantityAboveStock(t *testing.T) {
	p := variant.Product{ID: 9, ReferencePrice: 1000, SalePrice: 700, Stock: 2}

	_, err := cart.ItemFor(p, variant.Selection{}, 1<<62)
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	_, err = cart.ItemFor(p, variant.Selection{}, 3)
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	it, err := cart.ItemFor(p, variant.Selection{}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, it.Qty)
	require.Equal(t, 2, it.Stock)
}

func TestItemForCapsLineQuantity(t *testing.T) {
	p := variant.Product{ID: 9, ReferencePrice: 10, SalePrice: 10, Stock: 1 << 20}

	_, err := cart.ItemFor(p, variant.Selection{}, cart.MaxLineQty+1)
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	it, err := cart.ItemFor(p, variant.Selection{}, cart.MaxLineQty)
	require.NoError(t, err)
	require.Equal(t, cart.MaxLineQty, it.Qty)
}
