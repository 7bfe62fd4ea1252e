package order

import (
	"context"
	"errors"

	"github.com/noah-isme/toko-storefront/internal/session"
)

// SummaryKey is the well-known session key of the last order summary.
const SummaryKey = "order:last"

// Store persists the last order summary of a session.
type Store struct {
	Sessions *session.Store
}

// Save replaces the session's last order summary.
func (s *Store) Save(ctx context.Context, sid string, sum Summary) error {
	if s == nil || s.Sessions == nil {
		return errors.New("order store not configured")
	}
	return s.Sessions.Set(ctx, sid, SummaryKey, sum)
}

// Load returns the last order summary and whether one exists.
func (s *Store) Load(ctx context.Context, sid string) (Summary, bool, error) {
	if s == nil || s.Sessions == nil {
		return Summary{}, false, errors.New("order store not configured")
	}
	var sum Summary
	ok, err := s.Sessions.Get(ctx, sid, SummaryKey, &sum)
	return sum, ok, err
}
