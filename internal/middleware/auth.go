// Package middleware contains HTTP middleware for the Fixlens API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler. They are designed to be composed using a middleware stack
// approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fixlens/fixlens/internal/auth"
	"github.com/fixlens/fixlens/internal/handler"
	"github.com/fixlens/fixlens/internal/service"
	"github.com/fixlens/fixlens/internal/session"
)

// AuthMiddleware provides authentication middleware functionality.
type AuthMiddleware struct {
	userService service.UserService
	logger      *slog.Logger
	adminEmails map[string]bool
	isSecure    bool // Whether to set Secure flag on cookies (true in production)
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
// adminEmails lists the accounts allowed through RequireAdmin; comparison
// is case-insensitive.
func NewAuthMiddleware(userService service.UserService, adminEmails []string, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = true
		}
	}
	return &AuthMiddleware{
		userService: userService,
		logger:      logger,
		adminEmails: admins,
		isSecure:    isSecure,
	}
}

// WithUser attempts to load the user from the session cookie.
//
// The request continues regardless of authentication status; handlers that
// need a user check the context. An invalid or expired session clears the
// cookie so the client stops sending it.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.GetBySessionToken(r.Context(), cookie.Value)
		if err != nil {
			clearSessionCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		r = r.WithContext(auth.SetUser(r.Context(), user))
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects unauthenticated requests with a 401.
// Must run after WithUser in the middleware chain.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from non-admin users with a 403.
// Must run after WithUser in the middleware chain.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		if !m.adminEmails[strings.ToLower(user.Email)] {
			m.logger.Warn("admin route denied", "user_id", user.ID, "path", r.URL.Path)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clearSessionCookie removes the session cookie from the client.
func clearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     session.CookiePath,
		MaxAge:   -1, // Delete immediately
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided: the first middleware in the
// slice is the outermost (runs first on request, last on response).
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// isAPIRequest determines if the request expects a JSON response.
//
// This is used to decide whether to redirect (HTML) or return JSON errors (API).
//
// Checks:
// 1. Accept header contains application/json
// 2. Content-Type is application/json
// 3. URL path starts with /api/
// 4. HX-Request header is NOT present (htmx wants HTML)
func isAPIRequest(r *http.Request) bool {
	// htmx requests want HTML fragments
	if r.Header.Get("HX-Request") == "true" {
		return false
	}

	// Check Accept header
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}

	// Check Content-Type
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		return true
	}

	// Check URL path (API routes)
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}

	return false
}
