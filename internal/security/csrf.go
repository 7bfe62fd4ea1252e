package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// DefaultCSRFName names both the CSRF cookie and the header echoing it.
const DefaultCSRFName = "X-CSRF-Token"

// CSRF protects the cookie-based session using the double-submit technique.
// Safe requests receive a script-readable token cookie when they lack one;
// unsafe requests must echo that cookie in the header of the same name.
type CSRF struct {
	Name   string
	Secure bool
}

// Middleware enforces the double-submit check.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = DefaultCSRFName
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(name)
		hasCookie := err == nil && strings.TrimSpace(cookie.Value) != ""

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			if !hasCookie {
				http.SetCookie(w, &http.Cookie{
					Name:     name,
					Value:    uuid.NewString(),
					Path:     "/",
					Secure:   c.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(name))
		if token == "" || !hasCookie {
			common.JSONError(w, http.StatusForbidden, "CSRF_REJECTED", "missing csrf token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_REJECTED", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
