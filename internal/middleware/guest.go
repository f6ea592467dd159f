package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// GuestCookie is the name of the cookie that identifies an anonymous
// visitor. It exists so the free-message quota can be counted per visitor
// rather than per request.
const GuestCookie = "guest_id"

type contextKey string

const guestIDKey contextKey = "guestID"

// Guest ensures every request carries a guest identifier: it reads the
// guest cookie, minting and setting a fresh UUID when absent, and stores
// the ID in the request context.
//
// Authenticated requests keep their guest cookie too — identity is decided
// by the session token, and the guest ID is simply unused for them.
func Guest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var guestID string
		if cookie, err := r.Cookie(GuestCookie); err == nil && cookie.Value != "" {
			guestID = cookie.Value
		} else {
			guestID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     GuestCookie,
				Value:    guestID,
				Path:     "/",
				MaxAge:   60 * 60 * 24 * 30, // 30 days
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), guestIDKey, guestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GuestIDFromContext retrieves the guest identifier set by Guest.
func GuestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(guestIDKey).(string)
	return id, ok && id != ""
}
