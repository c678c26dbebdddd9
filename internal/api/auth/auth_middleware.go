package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/viberoll/viberoll/app/tracer"
	"github.com/viberoll/viberoll/config"
	"github.com/viberoll/viberoll/internal/api"
	"github.com/viberoll/viberoll/internal/types"
)

// Typed context key for the authenticated claims.
type contextKey string

const claimsKey contextKey = "authClaims"

// GetClaimsFromContext returns the claims attached by Authenticate.
func GetClaimsFromContext(ctx context.Context) (*types.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*types.Claims)
	return claims, ok
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

// Authenticate validates the bearer token on every request: signature,
// expiry, issuer, and finally the shared revocation denylist. Requests with a
// revoked jti are rejected even though the token itself is still valid.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig, tokens *TokenIssuer, revoker RevocationStore) func(next http.Handler) http.Handler {
	if jwtCfg.SecretKey == "" {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			tokenString, ok := bearerToken(r)
			if !ok {
				l.WarnContext(ctx, "Missing or malformed Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := tokens.VerifyAccess(tokenString)
			if err != nil {
				l.WarnContext(ctx, "Token parsing/validation failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, tokenErrorMessage(err))
				return
			}

			if jwtCfg.Issuer != "" && claims.Issuer != jwtCfg.Issuer {
				l.WarnContext(ctx, "Token issuer mismatch", slog.String("expected", jwtCfg.Issuer), slog.String("actual", claims.Issuer))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token issuer")
				return
			}

			revoked, err := revoker.IsRevoked(ctx, claims.ID)
			if err != nil {
				l.ErrorContext(ctx, "Revocation check failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			if revoked {
				tracer.Get().RevokedTokenUsageTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("surface", "gate")))
				l.WarnContext(ctx, "Rejected revoked token", slog.String("jti", claims.ID), slog.Int64("userID", claims.UserID))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Token has been revoked")
				return
			}

			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate attaches claims when a valid non-revoked bearer token
// is present and otherwise lets the request through anonymously. Used on
// read endpoints whose results widen for known viewers.
func OptionalAuthenticate(logger *slog.Logger, tokens *TokenIssuer, revoker RevocationStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.VerifyAccess(tokenString)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			revoked, err := revoker.IsRevoked(ctx, claims.ID)
			if err != nil || revoked {
				if revoked {
					logger.WarnContext(ctx, "Ignoring revoked token on optional-auth route", slog.String("jti", claims.ID))
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must be composed after Authenticate.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			claims, ok := GetClaimsFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "RequireAdmin used without Authenticate")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !claims.IsAdmin {
				logger.WarnContext(ctx, "Non-admin attempted admin route",
					slog.Int64("userID", claims.UserID), slog.String("path", r.URL.Path))
				api.ErrorResponse(w, r, http.StatusForbidden, "Admin privileges required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
		return "", false
	}
	return headerParts[1], true
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Malformed token"
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return "Invalid token signature"
	default:
		return "Invalid or expired token"
	}
}
