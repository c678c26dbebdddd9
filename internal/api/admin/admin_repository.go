package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/viberoll/viberoll/app/tracer"
	"github.com/viberoll/viberoll/internal/types"
)

// Querier is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool in production and pgxmock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ AdminRepo = (*PostgresAdminRepo)(nil)

// AdminRepo defines the contract for the moderation surface.
type AdminRepo interface {
	// SoftDeleteUser stamps deleted_at on a live row and returns it.
	// Returns types.ErrNotFound when the row is absent or already deleted.
	SoftDeleteUser(ctx context.Context, userID int64) (*types.User, error)

	// RestoreUser clears deleted_at on a soft-deleted row and returns it.
	// Returns types.ErrNotFound when the row is absent or live, and
	// types.ErrConflict when a live row already holds the email.
	RestoreUser(ctx context.Context, userID int64) (*types.User, error)

	ListUsers(ctx context.Context, filter ListUsersFilter) ([]types.User, error)

	InsertAuditLog(ctx context.Context, entry types.AuditLog) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]types.AuditLog, error)
}

// ListUsersFilter mirrors the admin listing query parameters.
type ListUsersFilter struct {
	Query          string
	IsAdmin        *bool
	CreatedBefore  *time.Time
	CreatedAfter   *time.Time
	IncludeDeleted bool
	OnlyDeleted    bool
	Limit          int
	Offset         int
}

type PostgresAdminRepo struct {
	logger *slog.Logger
	db     Querier
}

func NewPostgresAdminRepo(db Querier, logger *slog.Logger) *PostgresAdminRepo {
	return &PostgresAdminRepo{
		logger: logger,
		db:     db,
	}
}

const userColumns = "id, email, username, password_hash, is_admin, created_at, deleted_at"

func scanUserRow(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Password, &u.IsAdmin, &u.CreatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresAdminRepo) SoftDeleteUser(ctx context.Context, userID int64) (*types.User, error) {
	ctx, span := otel.Tracer("AdminRepo").Start(ctx, "SoftDeleteUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.Int64("db.user.id", userID),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		tracer.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "admin_soft_delete_user")))
	}()

	row := r.db.QueryRow(ctx, `
		UPDATE users SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+userColumns,
		userID)
	user, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "soft delete failed")
		return nil, fmt.Errorf("failed to soft delete user: %w", err)
	}

	r.logger.InfoContext(ctx, "User soft-deleted by admin", slog.Int64("userID", userID))
	return user, nil
}

func (r *PostgresAdminRepo) RestoreUser(ctx context.Context, userID int64) (*types.User, error) {
	ctx, span := otel.Tracer("AdminRepo").Start(ctx, "RestoreUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.Int64("db.user.id", userID),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		tracer.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "admin_restore_user")))
	}()

	// Restoring must not break live-email uniqueness: the address may have
	// been re-registered since the deletion.
	var taken bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM users live
			WHERE live.deleted_at IS NULL
			  AND live.email = (SELECT email FROM users WHERE id = $1)
		)`, userID).Scan(&taken)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check email collision: %w", err)
	}
	if taken {
		return nil, types.ErrConflict
	}

	row := r.db.QueryRow(ctx, `
		UPDATE users SET deleted_at = NULL
		WHERE id = $1 AND deleted_at IS NOT NULL
		RETURNING `+userColumns,
		userID)
	user, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "restore failed")
		return nil, fmt.Errorf("failed to restore user: %w", err)
	}

	r.logger.InfoContext(ctx, "User restored by admin", slog.Int64("userID", userID))
	return user, nil
}

func (r *PostgresAdminRepo) ListUsers(ctx context.Context, filter ListUsersFilter) ([]types.User, error) {
	ctx, span := otel.Tracer("AdminRepo").Start(ctx, "ListUsers", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		tracer.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "admin_list_users")))
	}()

	var whereClauses []string
	var args []interface{}
	argID := 1

	switch {
	case filter.OnlyDeleted:
		whereClauses = append(whereClauses, "deleted_at IS NOT NULL")
	case !filter.IncludeDeleted:
		whereClauses = append(whereClauses, "deleted_at IS NULL")
	}
	if filter.Query != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(email ILIKE $%d OR username ILIKE $%d)", argID, argID))
		args = append(args, "%"+filter.Query+"%")
		argID++
	}
	if filter.IsAdmin != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("is_admin = $%d", argID))
		args = append(args, *filter.IsAdmin)
		argID++
	}
	if filter.CreatedBefore != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at < $%d", argID))
		args = append(args, *filter.CreatedBefore)
		argID++
	}
	if filter.CreatedAfter != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at > $%d", argID))
		args = append(args, *filter.CreatedAfter)
		argID++
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]types.User, 0, filter.Limit)
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.Password, &u.IsAdmin, &u.CreatedAt, &u.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

func (r *PostgresAdminRepo) InsertAuditLog(ctx context.Context, entry types.AuditLog) error {
	ctx, span := otel.Tracer("AdminRepo").Start(ctx, "InsertAuditLog", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "audit_logs"),
	))
	defer span.End()

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_logs (admin_id, action, target_user_id, target_email, details)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.AdminID, entry.Action, entry.TargetUserID, entry.TargetEmail, details)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (r *PostgresAdminRepo) ListAuditLogs(ctx context.Context, limit, offset int) ([]types.AuditLog, error) {
	ctx, span := otel.Tracer("AdminRepo").Start(ctx, "ListAuditLogs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "audit_logs"),
	))
	defer span.End()

	rows, err := r.db.Query(ctx, `
		SELECT id, admin_id, action, target_user_id, target_email, details, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]types.AuditLog, 0, limit)
	for rows.Next() {
		var entry types.AuditLog
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.AdminID, &entry.Action, &entry.TargetUserID, &entry.TargetEmail, &details, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}
	return logs, nil
}
