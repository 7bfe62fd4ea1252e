package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/shipping"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

var (
	// ErrSubmissionInProgress is returned when the session already has a
	// submission in flight.
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	// ErrEmptyCart is returned when checking out a cart without items.
	ErrEmptyCart = errors.New("cart is empty")
)

const stateKey = "checkout:state"

// Phase is the submission state of a session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// State is what the session remembers about its last submission.
type State struct {
	Phase     Phase     `json:"phase"`
	OrderCode string    `json:"orderCode,omitempty"`
	Error     string    `json:"error,omitempty"`
	Draft     *Form     `json:"draft,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Submitter places orders with the Commerce API.
type Submitter interface {
	SubmitOrder(ctx context.Context, sum order.Summary, idempotencyKey string) (order.Placement, error)
}

// Quote is the priced view of a session's cart for a delivery choice.
type Quote struct {
	Items          []cart.Item     `json:"items"`
	Count          int             `json:"count"`
	Totals         pricing.Totals  `json:"totals"`
	ShippingMethod shipping.Method `json:"shippingMethod"`
	ShippingLabel  string          `json:"shippingLabel"`
	DeliveryCharge pricing.Money   `json:"deliveryCharge"`
	Coupon         *voucher.Coupon `json:"coupon,omitempty"`
	CouponDiscount pricing.Money   `json:"couponDiscount"`
	GrandTotal     pricing.Money   `json:"grandTotal"`
	CurrencySymbol string          `json:"currencySymbol,omitempty"`
}

// Result is returned after a successful submission.
type Result struct {
	Summary    order.Summary `json:"summary"`
	PaymentURL string        `json:"paymentUrl,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// Service composes the cart, shipping policy and coupon engine into quotes
// and drives order submission.
type Service struct {
	Cart        *cart.Store
	Coupons     *voucher.Applier
	Shipping    *shipping.Source
	ZoneKeyword string
	Orders      *order.Store
	Submitter   Submitter
	Sessions    *session.Store
	Locker      lock.Locker
	LockTTL     time.Duration
	Now         func() time.Time
	Logger      zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Quote prices the session's cart for the given method and district. An
// invalid or empty method falls back to the district-derived default.
func (s *Service) Quote(ctx context.Context, sid, method, district string) (Quote, error) {
	if s == nil || s.Cart == nil || s.Shipping == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "Service.Quote")
	defer span.End()

	snap, err := s.Cart.Snapshot(ctx, sid)
	if err != nil {
		return Quote{}, err
	}
	var coupon *voucher.Coupon
	if s.Coupons != nil {
		coupon, err = s.Coupons.Current(ctx, sid)
		if err != nil {
			return Quote{}, fmt.Errorf("load coupon: %w", err)
		}
	}
	q := s.price(ctx, snap, coupon, shipping.SelectMethod(method, district, s.ZoneKeyword))
	span.SetAttributes(
		attribute.Int("cart.count", q.Count),
		attribute.String("shipping.method", string(q.ShippingMethod)),
		attribute.Int64("checkout.grand_total", q.GrandTotal),
	)
	return q, nil
}

func (s *Service) price(ctx context.Context, snap cart.Snapshot, coupon *voucher.Coupon, method shipping.Method) Quote {
	cfg := s.Shipping.Config(ctx)
	delivery := shipping.DeliveryCharge(method, snap.Totals.MerchandiseTotal, cfg)
	promo := voucher.Compute(coupon, snap.Totals.MerchandiseTotal)
	return Quote{
		Items:          snap.Items,
		Count:          snap.Count,
		Totals:         snap.Totals,
		ShippingMethod: method,
		ShippingLabel:  shipping.Label(method, s.ZoneKeyword),
		DeliveryCharge: delivery,
		Coupon:         coupon,
		CouponDiscount: promo,
		GrandTotal:     pricing.GrandTotal(snap.Totals.Subtotal, snap.Totals.Discount, delivery, promo),
		CurrencySymbol: cfg.CurrencySymbol,
	}
}

// Status returns the session's submission state.
func (s *Service) Status(ctx context.Context, sid string) (State, error) {
	if s == nil || s.Sessions == nil {
		return State{}, errors.New("checkout service not configured")
	}
	var st State
	ok, err := s.Sessions.Get(ctx, sid, stateKey, &st)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{Phase: PhaseIdle}, nil
	}
	return st, nil
}

// Submit validates the form and places the order. Only one submission per
// session runs at a time. The applied coupon is cleared as soon as the
// submission starts and its code travels with the order. On success the
// summary is persisted and the cart cleared; on failure the cart is kept and
// the form is remembered as a draft.
func (s *Service) Submit(ctx context.Context, sid string, form Form) (Result, error) {
	if s == nil || s.Cart == nil || s.Shipping == nil || s.Orders == nil || s.Submitter == nil || s.Sessions == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	if err := form.Validate(); err != nil {
		return Result{}, err
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "Service.Submit")
	defer span.End()

	var res Result
	err := s.Locker.TryLock(ctx, "checkout:"+sid, s.lockTTL(), func(ctx context.Context) error {
		var err error
		res, err = s.submit(ctx, sid, form)
		return err
	})
	if errors.Is(err, lock.ErrHeld) {
		countSubmission("in_progress")
		return Result{}, &common.AppError{
			Code:       "SUBMISSION_IN_PROGRESS",
			Message:    "an order is already being placed",
			HTTPStatus: http.StatusConflict,
			Err:        ErrSubmissionInProgress,
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("order.code", res.Summary.Code))
	return res, nil
}

func (s *Service) submit(ctx context.Context, sid string, form Form) (Result, error) {
	snap, err := s.Cart.Snapshot(ctx, sid)
	if err != nil {
		return Result{}, err
	}
	if len(snap.Items) == 0 {
		countSubmission("empty_cart")
		return Result{}, &common.AppError{Code: "EMPTY_CART", Message: "cart is empty", HTTPStatus: http.StatusBadRequest, Err: ErrEmptyCart}
	}
	if err := s.setState(ctx, sid, State{Phase: PhaseSubmitting}); err != nil {
		return Result{}, err
	}

	var coupon *voucher.Coupon
	if s.Coupons != nil {
		if coupon, err = s.Coupons.Current(ctx, sid); err != nil {
			return Result{}, s.fail(ctx, sid, form, fmt.Errorf("load coupon: %w", err))
		}
		if err := s.Coupons.Clear(ctx, sid); err != nil {
			return Result{}, s.fail(ctx, sid, form, fmt.Errorf("clear coupon: %w", err))
		}
	}

	q := s.price(ctx, snap, coupon, shipping.SelectMethod(form.ShippingMethod, form.District, s.ZoneKeyword))
	sum := summaryFrom(q, form, s.now())
	sum.Checksum = sum.ComputeChecksum()

	placement, err := s.Submitter.SubmitOrder(ctx, sum, uuid.NewString())
	if err != nil {
		return Result{}, s.fail(ctx, sid, form, err)
	}
	sum.Settle(placement)

	if err := s.Orders.Save(ctx, sid, sum); err != nil {
		s.Logger.Error().Err(err).Str("order_code", sum.Code).Msg("persist order summary failed")
	}
	if err := s.Cart.Clear(ctx, sid); err != nil {
		s.Logger.Error().Err(err).Str("order_code", sum.Code).Msg("clear cart after order failed")
	}
	if err := s.setState(ctx, sid, State{Phase: PhaseSucceeded, OrderCode: sum.Code}); err != nil {
		s.Logger.Warn().Err(err).Msg("record submission state failed")
	}
	countSubmission("succeeded")
	s.Logger.Info().Str("order_code", sum.Code).Int64("grand_total", sum.Totals.GrandTotal).Msg("order placed")
	return Result{Summary: sum, PaymentURL: placement.PaymentURL, Message: placement.Message}, nil
}

func (s *Service) fail(ctx context.Context, sid string, form Form, cause error) error {
	draft := form.Draft()
	if err := s.setState(ctx, sid, State{Phase: PhaseFailed, Error: cause.Error(), Draft: &draft}); err != nil {
		s.Logger.Warn().Err(err).Msg("record submission state failed")
	}
	countSubmission("failed")
	s.Logger.Warn().Err(cause).Msg("order submission failed")
	return cause
}

func (s *Service) setState(ctx context.Context, sid string, st State) error {
	st.UpdatedAt = s.now()
	return s.Sessions.Set(ctx, sid, stateKey, st)
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return time.Minute
}

func summaryFrom(q Quote, form Form, placedAt time.Time) order.Summary {
	lines := make([]order.Line, 0, len(q.Items))
	for _, it := range q.Items {
		lines = append(lines, order.Line{
			ProductID:      it.ID,
			Name:           it.Name,
			Variant:        it.VariantKey(),
			Qty:            it.Qty,
			UnitPrice:      it.UnitPrice,
			ReferencePrice: it.ReferencePrice,
			Image:          firstImage(it.VariantImage, it.Image),
		})
	}
	totals := order.Totals{
		Subtotal:       q.Totals.Subtotal,
		Discount:       q.Totals.Discount,
		DeliveryCharge: q.DeliveryCharge,
		CouponDiscount: q.CouponDiscount,
		GrandTotal:     q.GrandTotal,
	}
	if q.Coupon != nil {
		totals.CouponCode = q.Coupon.Code
	}
	return order.Summary{
		PlacedAt:       placedAt,
		Customer:       form.Customer(),
		PaymentMethod:  form.PaymentMethod,
		ShippingMethod: q.ShippingMethod,
		ShippingLabel:  q.ShippingLabel,
		Items:          lines,
		Totals:         totals,
	}
}

func firstImage(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func countSubmission(result string) {
	if obs.OrderSubmissionsTotal != nil {
		obs.OrderSubmissionsTotal.WithLabelValues(result).Inc()
	}
}
