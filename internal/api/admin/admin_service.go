package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/viberoll/viberoll/internal/api/auth"
	"github.com/viberoll/viberoll/internal/types"
)

const (
	defaultUserPageSize  = 10
	defaultAuditPageSize = 50
	maxPageSize          = 100
)

var _ AdminService = (*AdminServiceImpl)(nil)

// AdminService defines the business logic contract for the moderation
// surface. Every mutation records who did it and why.
type AdminService interface {
	CreateAdmin(ctx context.Context, email, username, password string) (*types.User, error)
	SoftDeleteUser(ctx context.Context, actor *types.Claims, targetID int64, reason, clientIP string) error
	RestoreUser(ctx context.Context, actor *types.Claims, targetID int64, reason, clientIP string) error
	ListUsers(ctx context.Context, filter ListUsersFilter) ([]types.User, error)
	ListAuditLogs(ctx context.Context, limit, offset int) ([]types.AuditLog, error)
}

type AdminServiceImpl struct {
	logger     *slog.Logger
	repo       AdminRepo
	authRepo   auth.AuthRepo
	bcryptCost int
}

func NewAdminService(repo AdminRepo, authRepo auth.AuthRepo, bcryptCost int, logger *slog.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{
		logger:     logger,
		repo:       repo,
		authRepo:   authRepo,
		bcryptCost: bcryptCost,
	}
}

// CreateAdmin provisions a new account with the admin flag set. Only
// reachable through the admin gate.
func (s *AdminServiceImpl) CreateAdmin(ctx context.Context, email, username, password string) (*types.User, error) {
	l := s.logger.With(slog.String("method", "CreateAdmin"), slog.String("email", email))
	l.DebugContext(ctx, "Creating admin account")

	if email == "" || username == "" || password == "" || !strings.Contains(email, "@") || len(password) < 8 {
		return nil, types.ErrBadRequest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.authRepo.CreateUser(ctx, email, username, string(hash), true)
	if err != nil {
		if !errors.Is(err, types.ErrConflict) {
			l.ErrorContext(ctx, "Failed to create admin", slog.Any("error", err))
		}
		return nil, err
	}

	l.InfoContext(ctx, "Admin account created", slog.Int64("userID", user.ID))
	return user, nil
}

// SoftDeleteUser removes a user from the live set and appends an audit row.
func (s *AdminServiceImpl) SoftDeleteUser(ctx context.Context, actor *types.Claims, targetID int64, reason, clientIP string) error {
	l := s.logger.With(slog.String("method", "SoftDeleteUser"),
		slog.Int64("adminID", actor.UserID), slog.Int64("targetID", targetID))
	l.DebugContext(ctx, "Soft-deleting user")

	target, err := s.repo.SoftDeleteUser(ctx, targetID)
	if err != nil {
		l.WarnContext(ctx, "Soft delete failed", slog.Any("error", err))
		return err
	}

	s.appendAudit(ctx, l, types.AuditLog{
		AdminID:      actor.UserID,
		Action:       types.AuditActionSoftDelete,
		TargetUserID: target.ID,
		TargetEmail:  target.Email,
		Details:      auditDetails(actor, reason, clientIP),
	})

	l.InfoContext(ctx, "User soft-deleted")
	return nil
}

// RestoreUser returns a soft-deleted user to the live set and appends an
// audit row.
func (s *AdminServiceImpl) RestoreUser(ctx context.Context, actor *types.Claims, targetID int64, reason, clientIP string) error {
	l := s.logger.With(slog.String("method", "RestoreUser"),
		slog.Int64("adminID", actor.UserID), slog.Int64("targetID", targetID))
	l.DebugContext(ctx, "Restoring user")

	target, err := s.repo.RestoreUser(ctx, targetID)
	if err != nil {
		l.WarnContext(ctx, "Restore failed", slog.Any("error", err))
		return err
	}

	s.appendAudit(ctx, l, types.AuditLog{
		AdminID:      actor.UserID,
		Action:       types.AuditActionRestore,
		TargetUserID: target.ID,
		TargetEmail:  target.Email,
		Details:      auditDetails(actor, reason, clientIP),
	})

	l.InfoContext(ctx, "User restored")
	return nil
}

func (s *AdminServiceImpl) ListUsers(ctx context.Context, filter ListUsersFilter) ([]types.User, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultUserPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListUsers(ctx, filter)
}

func (s *AdminServiceImpl) ListAuditLogs(ctx context.Context, limit, offset int) ([]types.AuditLog, error) {
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListAuditLogs(ctx, limit, offset)
}

// appendAudit records the action after the mutation has committed. The
// mutation is not rolled back on audit failure; the failure is logged loudly
// instead.
func (s *AdminServiceImpl) appendAudit(ctx context.Context, l *slog.Logger, entry types.AuditLog) {
	if err := s.repo.InsertAuditLog(ctx, entry); err != nil {
		l.ErrorContext(ctx, "Failed to append audit log", slog.Any("error", err),
			slog.String("action", entry.Action))
	}
}

func auditDetails(actor *types.Claims, reason, clientIP string) map[string]any {
	details := map[string]any{
		"actor_email": actor.Email,
		"client_ip":   clientIP,
	}
	if reason != "" {
		details["reason"] = reason
	}
	return details
}
