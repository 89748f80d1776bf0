package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/service"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
)

// TokenParser validates a bearer token.
type TokenParser interface {
	ParseToken(token string) (*service.Identity, error)
}

func Auth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "Missing or invalid token")
				return
			}

			identity, err := tokens.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			l := logging.Ctx(ctx).With().Str(logging.FieldUserID, identity.UserID.String()).Logger()
			ctx = logging.WithLogger(ctx, l)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, identity *service.Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, identity.UserID)
	return context.WithValue(ctx, UsernameKey, identity.Username)
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func GetUsername(ctx context.Context) string {
	name, _ := ctx.Value(UsernameKey).(string)
	return name
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}
