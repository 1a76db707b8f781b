// Package handler contains HTTP handlers for the Fixlens API.
//
// This file implements authentication handlers for user registration, login,
// and logout.
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fixlens/fixlens/internal/auth"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/service"
	"github.com/fixlens/fixlens/internal/session"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
// - POST /api/auth/register -> Register
// - POST /api/auth/login    -> Login
// - POST /api/auth/logout   -> Logout
// - GET  /api/auth/me       -> Me
type AuthHandler struct {
	userService service.UserService
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler.
// isSecure should be true in production (enables the Secure cookie flag).
func NewAuthHandler(userService service.UserService, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// =============================================================================
// Response Types
// =============================================================================

// UserResponse is the public representation of a user.
// The password hash and internal payment references never leave the server.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Tier      string    `json:"tier"`
	Status    string    `json:"status"`
	PeriodEnd time.Time `json:"period_end"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Tier:      string(u.Tier),
		Status:    string(u.Status),
		PeriodEnd: u.PeriodEnd,
		CreatedAt: u.CreatedAt,
	}
}

// =============================================================================
// POST /api/auth/register
// =============================================================================

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register creates a new account on the free tier and opens a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Log the user in immediately so the client gets a session with the
	// registration response.
	loginResult, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Account exists but the session failed; the client can log in.
		h.logger.Error("auto-login after registration failed", "error", err, "user_id", user.ID)
		respondJSON(w, http.StatusCreated, map[string]interface{}{"user": userResponse(user)})
		return
	}

	setSessionCookie(w, loginResult.Token, h.isSecure)

	h.logger.Info("user registered",
		"user_id", user.ID,
		"email", user.Email,
	)

	respondJSON(w, http.StatusCreated, map[string]interface{}{"user": userResponse(loginResult.User)})
}

// =============================================================================
// POST /api/auth/login
// =============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and opens a session.
// Invalid credentials always produce the same generic message; the response
// never reveals whether the email exists.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("AuthHandler.Login", "Email and password are required"))
		return
	}

	loginResult, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			ErrorResponse(w, r, h.logger, domain.Unauthorized("AuthHandler.Login", "Invalid email or password"))
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	setSessionCookie(w, loginResult.Token, h.isSecure)

	h.logger.Info("user logged in",
		"user_id", loginResult.User.ID,
		"email", loginResult.User.Email,
	)

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": userResponse(loginResult.User)})
}

// =============================================================================
// POST /api/auth/logout
// =============================================================================

// Logout invalidates the session and clears the cookie.
// Idempotent: calling without a session succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err == nil && cookie.Value != "" {
		if err := h.userService.Logout(r.Context(), cookie.Value); err != nil {
			// Cookie is cleared regardless.
			h.logger.Warn("failed to invalidate session", "error", err)
		}
	}

	clearSessionCookie(w, h.isSecure)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// =============================================================================
// GET /api/auth/me
// =============================================================================

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": userResponse(user)})
}

// =============================================================================
// Session Cookie Helpers
// =============================================================================

// setSessionCookie sets the session cookie on the response.
//
// HttpOnly blocks script access; SameSite=Lax covers CSRF for state-changing
// requests while still allowing normal navigation.
func setSessionCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     session.CookiePath,
		MaxAge:   session.CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
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

// RegisterRoutes registers all auth routes on the provided ServeMux.
// The limiters wrap the credential endpoints. Me is registered by the
// caller behind the auth middleware.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, limitLogin, limitRegister func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/register", limitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", limitLogin(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
}
