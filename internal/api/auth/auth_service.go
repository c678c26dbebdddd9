package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"

	"github.com/viberoll/viberoll/app/tracer"
	"github.com/viberoll/viberoll/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the business logic contract for authentication.
type AuthService interface {
	Register(ctx context.Context, email, username, password string) (*types.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, claims *types.Claims) error
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger     *slog.Logger
	repo       AuthRepo
	tokens     *TokenIssuer
	revoker    RevocationStore
	bcryptCost int
}

func NewAuthService(repo AuthRepo, tokens *TokenIssuer, revoker RevocationStore, bcryptCost int, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:     logger,
		repo:       repo,
		tokens:     tokens,
		revoker:    revoker,
		bcryptCost: bcryptCost,
	}
}

// Register creates a new non-admin account.
func (s *AuthServiceImpl) Register(ctx context.Context, email, username, password string) (*types.User, error) {
	l := s.logger.With(slog.String("method", "Register"), slog.String("email", email))
	l.DebugContext(ctx, "Registering new user")

	tracer.Get().RegisterRequestsTotal.Add(ctx, 1)

	if err := validateRegistration(email, username, password); err != nil {
		l.WarnContext(ctx, "Registration rejected", slog.Any("error", err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, username, string(hash), false)
	if err != nil {
		if !errors.Is(err, types.ErrConflict) {
			l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		}
		return nil, err
	}

	l.InfoContext(ctx, "User registered", slog.Int64("userID", user.ID))
	return user, nil
}

// Login verifies credentials and mints a token pair. A missing account and a
// wrong password are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, string, error) {
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", email))
	l.DebugContext(ctx, "Login attempt")

	start := time.Now()
	status := "failure"
	defer func() {
		m := tracer.Get()
		m.LoginRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		m.LoginDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}()

	if email == "" || password == "" {
		return "", "", types.ErrBadRequest
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "Login for unknown email")
			return "", "", types.ErrUnauthenticated
		}
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		return "", "", fmt.Errorf("error fetching user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		l.WarnContext(ctx, "Password mismatch", slog.Int64("userID", user.ID))
		return "", "", types.ErrUnauthenticated
	}

	access, refresh, err := s.tokens.IssuePair(user)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue token pair", slog.Any("error", err))
		return "", "", fmt.Errorf("error issuing tokens: %w", err)
	}

	status = "success"
	l.InfoContext(ctx, "Login successful", slog.Int64("userID", user.ID))
	return access, refresh, nil
}

// Refresh exchanges a valid refresh token for a new access token carrying
// the same jti. The denylist is consulted first: a logged-out session cannot
// be resurrected through its refresh token.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (string, error) {
	l := s.logger.With(slog.String("method", "Refresh"))
	l.DebugContext(ctx, "Refreshing access token")

	if refreshToken == "" {
		return "", types.ErrBadRequest
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		l.WarnContext(ctx, "Refresh token rejected", slog.Any("error", err))
		return "", types.ErrUnauthenticated
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to check revocation state", slog.Any("error", err))
		return "", fmt.Errorf("error checking revocation: %w", err)
	}
	if revoked {
		tracer.Get().RevokedTokenUsageTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("surface", "refresh")))
		l.WarnContext(ctx, "Refresh with revoked session", slog.String("jti", claims.ID))
		return "", types.ErrUnauthenticated
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "Refresh for missing or deleted user", slog.Int64("userID", claims.UserID))
			return "", types.ErrUnauthenticated
		}
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		return "", fmt.Errorf("error fetching user: %w", err)
	}

	access, err := s.tokens.IssueAccessToken(user, claims.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue access token", slog.Any("error", err))
		return "", fmt.Errorf("error issuing access token: %w", err)
	}

	l.InfoContext(ctx, "Access token refreshed", slog.Int64("userID", user.ID))
	return access, nil
}

// Logout denylists the session's jti until the token pair has expired on its
// own. Logging out twice, or with a nearly expired token, still succeeds.
func (s *AuthServiceImpl) Logout(ctx context.Context, claims *types.Claims) error {
	l := s.logger.With(slog.String("method", "Logout"), slog.Int64("userID", claims.UserID))
	l.DebugContext(ctx, "Logging out")

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}

	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		l.ErrorContext(ctx, "Failed to revoke session", slog.Any("error", err))
		return fmt.Errorf("error revoking session: %w", err)
	}

	tracer.Get().TokensRevokedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Session revoked", slog.String("jti", claims.ID))
	return nil
}

func validateRegistration(email, username, password string) error {
	if email == "" || username == "" || password == "" {
		return types.ErrBadRequest
	}
	if !strings.Contains(email, "@") {
		return types.ErrBadRequest
	}
	if len(password) < 8 {
		return types.ErrBadRequest
	}
	return nil
}
