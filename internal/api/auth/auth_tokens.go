package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/viberoll/viberoll/config"
	"github.com/viberoll/viberoll/internal/types"
)

// TokenIssuer mints and verifies the HS256 access/refresh token pair. The
// two tokens are signed with distinct secrets and share a jti minted once at
// login; Refresh re-signs an access token under the same jti, so a single
// denylist entry invalidates everything descended from that login.
type TokenIssuer struct {
	cfg config.JWTConfig
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg}
}

// IssuePair mints a fresh jti and signs both tokens of a login session.
func (t *TokenIssuer) IssuePair(user *types.User) (string, string, error) {
	jti := uuid.NewString()

	access, err := t.IssueAccessToken(user, jti)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	refreshClaims := &types.RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.RefreshTokenTTL)),
		},
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(t.cfg.RefreshSecretKey))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return access, refresh, nil
}

// IssueAccessToken signs an access token under an existing jti.
func (t *TokenIssuer) IssueAccessToken(user *types.User, jti string) (string, error) {
	now := time.Now()
	claims := &types.Claims{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.AccessTokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(t.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccess parses and validates an access token string.
func (t *TokenIssuer) VerifyAccess(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, t.keyfunc(t.cfg.SecretKey))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token string.
func (t *TokenIssuer) VerifyRefresh(tokenString string) (*types.RefreshClaims, error) {
	claims := &types.RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, t.keyfunc(t.cfg.RefreshSecretKey))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

func (t *TokenIssuer) keyfunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}
