package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/viberoll/viberoll/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the business logic contract for self-service account
// operations. The acting user is always the token holder.
type UserService interface {
	Update(ctx context.Context, userID int64, req UpdateUserRequest) (*types.User, error)
	Delete(ctx context.Context, userID int64) error
}

// UpdateUserRequest carries the optional account changes; nil means keep.
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type UserServiceImpl struct {
	logger     *slog.Logger
	repo       UserRepo
	bcryptCost int
}

func NewUserService(repo UserRepo, bcryptCost int, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger:     logger,
		repo:       repo,
		bcryptCost: bcryptCost,
	}
}

// Update applies the requested changes and returns the updated account.
func (s *UserServiceImpl) Update(ctx context.Context, userID int64, req UpdateUserRequest) (*types.User, error) {
	l := s.logger.With(slog.String("method", "Update"), slog.Int64("userID", userID))
	l.DebugContext(ctx, "Updating account")

	if req.Email == nil && req.Username == nil && req.Password == nil {
		return nil, types.ErrBadRequest
	}
	if req.Email != nil && (*req.Email == "" || !strings.Contains(*req.Email, "@")) {
		return nil, types.ErrBadRequest
	}
	if req.Username != nil && *req.Username == "" {
		return nil, types.ErrBadRequest
	}

	params := UpdateUserParams{
		Email:    req.Email,
		Username: req.Username,
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return nil, types.ErrBadRequest
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
			return nil, fmt.Errorf("error hashing password: %w", err)
		}
		hashed := string(hash)
		params.PasswordHash = &hashed
	}

	user, err := s.repo.UpdateUser(ctx, userID, params)
	if err != nil {
		l.WarnContext(ctx, "Account update failed", slog.Any("error", err))
		return nil, err
	}

	l.InfoContext(ctx, "Account updated")
	return user, nil
}

// Delete soft-deletes the caller's own account. Existing tokens stay valid
// until they expire or are revoked; Refresh stops working immediately since
// the live-row lookup no longer finds the user.
func (s *UserServiceImpl) Delete(ctx context.Context, userID int64) error {
	l := s.logger.With(slog.String("method", "Delete"), slog.Int64("userID", userID))
	l.DebugContext(ctx, "Deleting account")

	if err := s.repo.SoftDeleteUser(ctx, userID); err != nil {
		l.WarnContext(ctx, "Account deletion failed", slog.Any("error", err))
		return err
	}

	l.InfoContext(ctx, "Account soft-deleted")
	return nil
}
