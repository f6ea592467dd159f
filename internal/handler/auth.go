package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/magami/pmai/internal/auth"
	"github.com/magami/pmai/internal/middleware"
	"github.com/magami/pmai/internal/service"
)

// AuthHandler manages registration, login, and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account, issue the session cookie
//   - HandleLogin    → verify credentials, issue the session cookie
//   - HandleLogout   → clear the session cookie
//   - HandleMe       → return the logged-in account's profile
//   - HandleDelete   → delete the caller's own account
//
// The session is a JWT in an HttpOnly cookie: JavaScript cannot read it, so
// an XSS bug cannot exfiltrate the token.
type AuthHandler struct {
	auth     *service.AuthService
	limiters *middleware.LimiterStore
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. limiters throttles credential
// attempts per email/IP; tokenTTL sets the session cookie lifetime.
func NewAuthHandler(
	authService *service.AuthService,
	limiters *middleware.LimiterStore,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		limiters: limiters,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"name":"...","email":"...","password":"...","confirm":"..."}
//
// On success the session cookie is set and the account profile is returned
// with 201 Created — registering logs you in.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	if !h.allowAttempt(w, r, req.Email) {
		return
	}

	result, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password, req.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, result.Account)
}

// HandleLogin authenticates an email/password pair.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email":"...","password":"..."}
//
// Bad credentials always produce the same 401 regardless of whether the
// email exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	if !h.allowAttempt(w, r, req.Email) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, result.Account)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
//
// The JWT itself stays valid until expiry (we keep no server-side session
// state); logout just removes it from the browser.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the authenticated account's profile.
//
// HTTP: GET /api/me  (requires auth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	account, err := h.auth.GetAccountByID(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// HandleDelete removes the caller's account and its exchange history.
//
// HTTP: DELETE /api/me  (requires auth)
func (h *AuthHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	if err := h.auth.DeleteAccount(r.Context(), accountID, accountID); err != nil {
		writeError(w, err)
		return
	}

	// The session token references a deleted account now; clear it too.
	h.HandleLogout(w, r)
}

// allowAttempt applies the per-email/per-IP rate limit to a credential
// attempt. Returns false after writing the 429 response.
func (h *AuthHandler) allowAttempt(w http.ResponseWriter, r *http.Request, email string) bool {
	if h.limiters == nil {
		return true
	}
	key := middleware.AuthKey(r, email)
	if h.limiters.Allow(key) {
		return true
	}
	h.logger.Warn("auth attempt rate limited", slog.String("key", key))
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:   "rate_limited",
		Message: "too many attempts, try again shortly",
	})
	return false
}

// setSessionCookie stores the JWT in the HttpOnly session cookie.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
