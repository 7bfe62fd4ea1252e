package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ServiceToken issues and verifies the short-lived HS256 bearer tokens the
// storefront presents to the Commerce API.
type ServiceToken struct {
	Secret    []byte
	Issuer    string
	Audience  string
	Subject   string
	TTL       time.Duration
	ClockSkew time.Duration
	Now       func() time.Time
}

func (s ServiceToken) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s ServiceToken) ttl() time.Duration {
	if s.TTL <= 0 {
		return 5 * time.Minute
	}
	return s.TTL
}

// Enabled reports whether a signing secret is configured.
func (s ServiceToken) Enabled() bool {
	return len(s.Secret) > 0
}

// Sign returns a compact signed token valid for the configured TTL.
func (s ServiceToken) Sign() (string, error) {
	if !s.Enabled() {
		return "", errors.New("auth: service token secret not configured")
	}
	now := s.now()
	builder := jwt.NewBuilder().
		Issuer(s.Issuer).
		Subject(s.Subject).
		IssuedAt(now).
		NotBefore(now.Add(-s.ClockSkew)).
		Expiration(now.Add(s.ttl()))
	if s.Audience != "" {
		builder = builder.Audience([]string{s.Audience})
	}
	token, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify parses raw, checks its HS256 signature and validates issuer,
// audience and expiry against the configured values.
func (s ServiceToken) Verify(raw string) (jwt.Token, error) {
	if !s.Enabled() {
		return nil, errors.New("auth: service token secret not configured")
	}
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if trimmed == "" {
		return nil, errors.New("auth: token missing")
	}
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	}
	if s.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(s.ClockSkew))
	}
	if s.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.Issuer))
	}
	if s.Audience != "" {
		options = append(options, jwt.WithAudience(s.Audience))
	}
	tok, err := jwt.ParseString(trimmed, options...)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid service token: %w", err)
	}
	return tok, nil
}
