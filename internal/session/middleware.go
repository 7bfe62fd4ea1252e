package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoSession is returned when an operation requires a session identifier.
var ErrNoSession = errors.New("session: missing session id")

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "toko_sid"

type contextKey struct{}

// WithID stores the session identifier inside the context.
func WithID(ctx context.Context, sid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, sid)
}

// ID extracts the session identifier from the context if present.
func ID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	sid, ok := ctx.Value(contextKey{}).(string)
	if !ok || strings.TrimSpace(sid) == "" {
		return "", false
	}
	return sid, true
}

// Middleware issues and resolves the storefront session cookie.
type Middleware struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Handler injects the session id into the request context, minting a new
// cookie when the request carries none or an invalid one.
func (m Middleware) Handler(next http.Handler) http.Handler {
	name := m.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(name); err == nil {
			if parsed, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
				sid = parsed.String()
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(m.TTL / time.Second),
				HttpOnly: true,
				Secure:   m.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("session_id", sid)
		})
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), sid)))
	})
}
