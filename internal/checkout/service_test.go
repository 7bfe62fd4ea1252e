package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/commerce"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/shipping"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

type fakeSubmitter struct {
	placement order.Placement
	err       error
	got       []order.Summary
	keys      []string
	during    func()
}

func (f *fakeSubmitter) SubmitOrder(_ context.Context, sum order.Summary, key string) (order.Placement, error) {
	f.got = append(f.got, sum)
	f.keys = append(f.keys, key)
	if f.during != nil {
		f.during()
	}
	return f.placement, f.err
}

type fakeValidator struct{}

func (fakeValidator) ValidateCoupon(_ context.Context, code string) (voucher.Coupon, error) {
	if code == "FLAT50" {
		return voucher.Coupon{Code: code, Kind: voucher.Fixed, Value: decimal.NewFromInt(50)}, nil
	}
	return voucher.Coupon{}, &voucher.Rejection{Code: code, Reason: "Invalid coupon!"}
}

type fixture struct {
	svc      *checkout.Service
	sub      *fakeSubmitter
	sessions *session.Store
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client, RetryBackoff: 2 * time.Millisecond}
	sessions := session.NewStore(client, "sess:", time.Hour)
	due := int64(910)
	sub := &fakeSubmitter{placement: order.Placement{
		OrderID:       "5512",
		Code:          "20261015-0001",
		PaymentURL:    "https://pay.example/abc",
		Due:           &due,
		PaymentStatus: "unpaid",
	}}
	svc := &checkout.Service{
		Cart:        &cart.Store{R: client, Locker: locker, TTL: time.Hour},
		Coupons:     &voucher.Applier{Validator: fakeValidator{}, Store: sessions},
		Shipping:    &shipping.Source{Fallback: shipping.Config{InsideCharge: 60, OutsideCharge: 120, FreeShippingMinAmount: 5000}},
		ZoneKeyword: "Dhaka",
		Orders:      &order.Store{Sessions: sessions},
		Submitter:   sub,
		Sessions:    sessions,
		Locker:      locker,
		Now:         func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) },
	}
	return fixture{svc: svc, sub: sub, sessions: sessions, mr: mr}
}

func (f fixture) seedCart(t *testing.T, sid string) {
	t.Helper()
	_, err := f.svc.Cart.Add(context.Background(), sid, cart.Item{
		ID: 7, Slug: "phone", Name: "Phone", UnitPrice: 450, ReferencePrice: 500, Qty: 2,
		Variant: &cart.VariantRef{Key: "Midnight-128GB"},
	})
	require.NoError(t, err)
}

func validForm() checkout.Form {
	return checkout.Form{
		Name:            "Rahim",
		Phone:           "01712345678",
		Address:         "House 1, Road 2",
		District:        "Dhaka North",
		PaymentMethod:   "cod",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

func TestQuoteComposesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "s1")
	_, err := f.svc.Coupons.Apply(ctx, "s1", "flat50")
	require.NoError(t, err)

	q, err := f.svc.Quote(ctx, "s1", "", "Dhaka")
	require.NoError(t, err)
	require.Equal(t, shipping.Inside, q.ShippingMethod)
	require.Equal(t, "Inside Dhaka", q.ShippingLabel)
	require.Equal(t, int64(1000), q.Totals.Subtotal)
	require.Equal(t, int64(100), q.Totals.Discount)
	require.Equal(t, int64(60), q.DeliveryCharge)
	require.Equal(t, int64(50), q.CouponDiscount)
	require.Equal(t, int64(910), q.GrandTotal)

	pickup, err := f.svc.Quote(ctx, "s1", "shop_pickup", "Dhaka")
	require.NoError(t, err)
	require.Equal(t, int64(0), pickup.DeliveryCharge)
	require.Equal(t, int64(850), pickup.GrandTotal)

	outside, err := f.svc.Quote(ctx, "s1", "bogus", "Sylhet")
	require.NoError(t, err)
	require.Equal(t, shipping.Outside, outside.ShippingMethod)
	require.Equal(t, int64(120), outside.DeliveryCharge)
}

func TestSubmitPersistsExactQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "s1")
	_, err := f.svc.Coupons.Apply(ctx, "s1", "FLAT50")
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, "s1", validForm())
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/abc", res.PaymentURL)
	require.Equal(t, "20261015-0001", res.Summary.Code)
	require.Equal(t, int64(910), res.Summary.Totals.GrandTotal)
	require.Equal(t, "FLAT50", res.Summary.Totals.CouponCode)
	require.True(t, res.Summary.Totals.Consistent())

	require.Len(t, f.sub.got, 1)
	sent := f.sub.got[0]
	require.NotEmpty(t, f.sub.keys[0])
	require.Equal(t, sent.ComputeChecksum(), sent.Checksum)
	require.Equal(t, "Midnight-128GB", sent.Items[0].Variant)

	stored, ok, err := f.svc.Orders.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(910), stored.Totals.Recompute())
	require.Equal(t, "5512", stored.OrderID)
	require.NotNil(t, stored.Totals.Due)
	require.Equal(t, int64(910), *stored.Totals.Due)
	require.Nil(t, stored.Totals.Paid)
	require.Equal(t, "unpaid", stored.Totals.PaymentStatus)
	require.Equal(t, sent.Checksum, stored.ComputeChecksum())

	snap, err := f.svc.Cart.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, snap.Items)

	coupon, err := f.svc.Coupons.Current(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, coupon)

	st, err := f.svc.Status(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, checkout.PhaseSucceeded, st.Phase)
	require.Equal(t, "20261015-0001", st.OrderCode)
}

func TestSubmitFailureKeepsCartAndDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "s1")
	f.sub.err = commerce.ErrUnavailable

	_, err := f.svc.Submit(ctx, "s1", validForm())
	require.ErrorIs(t, err, commerce.ErrUnavailable)

	snap, err := f.svc.Cart.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	st, err := f.svc.Status(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, checkout.PhaseFailed, st.Phase)
	require.NotNil(t, st.Draft)
	require.Equal(t, "Rahim", st.Draft.Name)
	require.Empty(t, st.Draft.Password)
	require.Empty(t, st.Draft.ConfirmPassword)

	_, ok, err := f.svc.Orders.Load(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubmitRefusesReentry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCart(t, "s1")

	var inner error
	f.sub.during = func() {
		st, err := f.svc.Status(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, checkout.PhaseSubmitting, st.Phase)
		_, inner = f.svc.Submit(ctx, "s1", validForm())
	}
	_, err := f.svc.Submit(ctx, "s1", validForm())
	require.NoError(t, err)

	require.ErrorIs(t, inner, checkout.ErrSubmissionInProgress)
	var appErr *common.AppError
	require.True(t, errors.As(inner, &appErr))
	require.Equal(t, 409, appErr.HTTPStatus)
	require.Len(t, f.sub.got, 1)
}

func TestSubmitRejectsEmptyCartAndInvalidForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "s1", validForm())
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	bad := validForm()
	bad.Phone = "12345"
	_, err = f.svc.Submit(ctx, "s1", bad)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION_FAILED", appErr.Code)
	require.Empty(t, f.sub.got)
}

func TestStatusDefaultsToIdle(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.Status(context.Background(), "fresh")
	require.NoError(t, err)
	require.Equal(t, checkout.PhaseIdle, st.Phase)
}
