package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/session"
)

const (
	couponKey     = "coupon"
	generationKey = "coupon:gen"
)

// Validator checks a code against the Commerce API. A refused code is
// reported as a *Rejection.
type Validator interface {
	ValidateCoupon(ctx context.Context, code string) (Coupon, error)
}

// Applier manages the single coupon applied to a session.
type Applier struct {
	Validator Validator
	Store     *session.Store
	Logger    zerolog.Logger
}

// Apply validates code and makes it the session's coupon. Any previously
// applied coupon is cleared first so coupons never stack. When another Apply
// or Clear starts while validation is in flight, the result is discarded and
// ErrSuperseded is returned.
func (a *Applier) Apply(ctx context.Context, sid, code string) (Coupon, error) {
	if a == nil || a.Validator == nil || a.Store == nil {
		return Coupon{}, errors.New("coupon applier not configured")
	}
	normalized, err := Normalize(code)
	if err != nil {
		return Coupon{}, err
	}
	gen, err := a.Store.Next(ctx, sid, generationKey)
	if err != nil {
		return Coupon{}, fmt.Errorf("start coupon generation: %w", err)
	}
	if err := a.Store.Delete(ctx, sid, couponKey); err != nil {
		return Coupon{}, fmt.Errorf("clear coupon: %w", err)
	}

	coupon, err := a.Validator.ValidateCoupon(ctx, normalized)
	if err != nil {
		if stale, serr := a.superseded(ctx, sid, gen); serr == nil && stale {
			countValidation("superseded")
			return Coupon{}, ErrSuperseded
		}
		var rej *Rejection
		if errors.As(err, &rej) {
			countValidation("rejected")
			a.Logger.Info().Str("code", normalized).Str("reason", rej.Reason).Msg("coupon rejected")
			return Coupon{}, err
		}
		countValidation("error")
		return Coupon{}, err
	}
	if coupon.Code == "" {
		coupon.Code = normalized
	}
	if err := a.Store.SetIfCurrent(ctx, sid, generationKey, gen, couponKey, coupon); err != nil {
		if errors.Is(err, session.ErrStale) {
			countValidation("superseded")
			return Coupon{}, ErrSuperseded
		}
		return Coupon{}, fmt.Errorf("persist coupon: %w", err)
	}
	countValidation("accepted")
	return coupon, nil
}

// Clear removes the applied coupon and invalidates any in-flight validation.
func (a *Applier) Clear(ctx context.Context, sid string) error {
	if a == nil || a.Store == nil {
		return errors.New("coupon applier not configured")
	}
	if _, err := a.Store.Next(ctx, sid, generationKey); err != nil {
		return err
	}
	return a.Store.Delete(ctx, sid, couponKey)
}

// Current returns the applied coupon, or nil when none is applied.
func (a *Applier) Current(ctx context.Context, sid string) (*Coupon, error) {
	if a == nil || a.Store == nil {
		return nil, errors.New("coupon applier not configured")
	}
	var c Coupon
	ok, err := a.Store.Get(ctx, sid, couponKey, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (a *Applier) superseded(ctx context.Context, sid string, gen int64) (bool, error) {
	current, err := a.Store.Current(ctx, sid, generationKey)
	if err != nil {
		return false, err
	}
	return current != gen, nil
}

func countValidation(result string) {
	if obs.CouponValidationsTotal != nil {
		obs.CouponValidationsTotal.WithLabelValues(result).Inc()
	}
}
