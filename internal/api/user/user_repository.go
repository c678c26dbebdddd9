package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/viberoll/viberoll/app/tracer"
	"github.com/viberoll/viberoll/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for self-service account persistence.
type UserRepo interface {
	// UpdateUser applies the non-nil fields of params to a live row.
	// Returns types.ErrNotFound if the row is gone or soft-deleted, and
	// types.ErrConflict if the new email collides with another live row.
	UpdateUser(ctx context.Context, userID int64, params UpdateUserParams) (*types.User, error)

	// SoftDeleteUser stamps deleted_at on a live row.
	// Returns types.ErrNotFound if no live row matched.
	SoftDeleteUser(ctx context.Context, userID int64) error
}

// UpdateUserParams carries the mutable account fields; nil means unchanged.
// PasswordHash must already be hashed by the service layer.
type UpdateUserParams struct {
	Email        *string
	Username     *string
	PasswordHash *string
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresUserRepo(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

func (r *PostgresUserRepo) UpdateUser(ctx context.Context, userID int64, params UpdateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.Int64("db.user.id", userID),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateUser"), slog.Int64("userID", userID))

	start := time.Now()
	defer func() {
		tracer.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "update_user")))
	}()

	var setClauses []string
	var args []interface{}
	argID := 1

	if params.Email != nil {
		var taken bool
		err := r.pgpool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL AND id <> $2)",
			*params.Email, userID).Scan(&taken)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to check email collision: %w", err)
		}
		if taken {
			l.WarnContext(ctx, "Email already taken", slog.String("email", *params.Email))
			return nil, types.ErrConflict
		}
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argID))
		args = append(args, *params.Email)
		argID++
	}
	if params.Username != nil {
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", argID))
		args = append(args, *params.Username)
		argID++
	}
	if params.PasswordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", argID))
		args = append(args, *params.PasswordHash)
		argID++
	}

	if len(setClauses) == 0 {
		return nil, types.ErrBadRequest
	}

	query := fmt.Sprintf(`
		UPDATE users SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING id, email, username, password_hash, is_admin, created_at, deleted_at`,
		strings.Join(setClauses, ", "), argID)
	args = append(args, userID)

	var u types.User
	err := r.pgpool.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.Username, &u.Password, &u.IsAdmin, &u.CreatedAt, &u.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	l.InfoContext(ctx, "User updated")
	return &u, nil
}

func (r *PostgresUserRepo) SoftDeleteUser(ctx context.Context, userID int64) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "SoftDeleteUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.Int64("db.user.id", userID),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SoftDeleteUser"), slog.Int64("userID", userID))

	start := time.Now()
	defer func() {
		tracer.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "soft_delete_user")))
	}()

	tag, err := r.pgpool.Exec(ctx,
		"UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL",
		userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "soft delete failed")
		return fmt.Errorf("failed to soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}

	l.InfoContext(ctx, "User soft-deleted")
	return nil
}
