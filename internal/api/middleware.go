package api

import (
	"context"
	"net/http"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/token"
)

type contextKey string

const userKey contextKey = "user"

type AuthMiddleware struct {
	codec *token.Codec
}

func NewAuthMiddleware(codec *token.Codec) *AuthMiddleware {
	return &AuthMiddleware{codec: codec}
}

// RequireAuth admits requests whose Authorization header carries a token
// signed by this server, with or without the "Bearer " prefix. The decoded
// user is attached to the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		if raw == "" {
			forbidden(w)
			return
		}

		var user models.User
		if err := m.codec.Verify(raw, &user); err != nil || user.ID == "" {
			forbidden(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func withUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the session user attached by RequireAuth.
func GetUser(r *http.Request) (models.User, bool) {
	user, ok := r.Context().Value(userKey).(models.User)
	return user, ok
}
