package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/poetry-studio/internal/auth"
	"github.com/sakif/poetry-studio/internal/service"
)

// AuthHandler exchanges the author's password for a session token.
//
//	POST /auth/login  {"password": "..."} → {"token": "...", "expiresAt": "..."}
//	POST /auth/logout                      → 204, cookie cleared
//
// The token is returned in the body for the CLI and set as an HttpOnly cookie
// for browsers.
type AuthHandler struct {
	auth   *service.AuthService
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure marks the cookie Secure and
// should be true whenever the server sits behind TLS.
func NewAuthHandler(authService *service.AuthService, ttl time.Duration, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, ttl: ttl, secure: secure, logger: logger}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.Login(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setCookie(w, token)
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.ttl).UTC(),
	})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
