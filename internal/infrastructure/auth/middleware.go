package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithPrincipal attaches the authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(models.Principal)
	return p, ok
}

func AuthMiddleware(redisClient redis.RedisClient, jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "authorization header missing")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid authorization header")
				return
			}

			tokenStr := parts[1]
			claims, err := jwtService.ValidateJWT(tokenStr)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			// Logout or a newer login replaces the stored token.
			storedToken, err := redisClient.Get(r.Context(), redis.TokenKey(claims.UserID.String()))
			if err != nil || storedToken != tokenStr {
				zap.S().Warnw("invalid or revoked token", "user_id", claims.UserID, "error", err)
				unauthorized(w, "invalid or revoked token")
				return
			}

			ctx := WithPrincipal(r.Context(), models.Principal{UserID: claims.UserID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
