package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/server/authctx"
	"shopmunim-backend/internal/service"
)

// UserLoader resolves the account behind a token on every request.
type UserLoader interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// SessionToucher is optionally implemented by a UserLoader to track
// last-seen times per session.
type SessionToucher interface {
	TouchSession(ctx context.Context, sessionID string)
}

// AuthMiddleware validates the JWT, loads the user and sets it in context.
// Deleted accounts fail with 401 so clients drop their session.
func AuthMiddleware(secret string, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeErrorEnvelope(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := service.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeErrorEnvelope(w, http.StatusUnauthorized, "invalid token")
				return
			}
			user, err := users.Me(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, service.ErrUserNotFound) {
					writeErrorEnvelope(w, http.StatusUnauthorized, "account not found")
					return
				}
				writeErrorEnvelope(w, http.StatusInternalServerError, "could not load account")
				return
			}
			if t, ok := users.(SessionToucher); ok {
				t.TouchSession(r.Context(), claims.SessionID)
			}
			ctx := authctx.WithCurrentUser(r.Context(), authctx.CurrentUser{
				ID:        user.ID,
				SessionID: claims.SessionID,
				Name:      user.Name,
				Phone:     user.Phone,
				Role:      user.ActiveRole,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole ensures the user's active role is one of roles.
func RequireRole(roles ...domain.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := authctx.FromContext(r.Context())
			if u == nil {
				writeErrorEnvelope(w, http.StatusForbidden, "forbidden")
				return
			}
			if !u.HasRole(roles...) {
				writeErrorEnvelope(w, http.StatusForbidden, "switch to a shop owner account to continue")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeErrorEnvelope(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"message": message,
		"detail":  message,
		"data":    nil,
		"error": map[string]any{
			"code":   status,
			"status": http.StatusText(status),
		},
	})
}
