package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viberoll/viberoll/internal/types"
)

var _ CommentRepo = (*PostgresCommentRepo)(nil)

type CommentRepo interface {
	// AddComment inserts a comment and returns it with the commenter's
	// username resolved. Returns types.ErrNotFound for a missing video or
	// parent comment.
	AddComment(ctx context.Context, videoID uuid.UUID, userID int64, text string, parentID *uuid.UUID) (*types.Comment, error)

	// ListComments returns a video's comments oldest first, parent rows
	// before their replies.
	ListComments(ctx context.Context, videoID uuid.UUID) ([]types.Comment, error)
}

type PostgresCommentRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresCommentRepo(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresCommentRepo {
	return &PostgresCommentRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

func (r *PostgresCommentRepo) AddComment(ctx context.Context, videoID uuid.UUID, userID int64, text string, parentID *uuid.UUID) (*types.Comment, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)", videoID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check video: %w", err)
	}
	if !exists {
		return nil, types.ErrNotFound
	}

	if parentID != nil {
		err := r.pgpool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM video_comments WHERE id = $1 AND video_id = $2)",
			*parentID, videoID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check parent comment: %w", err)
		}
		if !exists {
			return nil, types.ErrNotFound
		}
	}

	var c types.Comment
	err = r.pgpool.QueryRow(ctx, `
		INSERT INTO video_comments (id, video_id, user_id, parent_id, comment_text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, video_id, user_id, parent_id, comment_text, created_at`,
		uuid.New(), videoID, userID, parentID, text).
		Scan(&c.ID, &c.VideoID, &c.UserID, &c.ParentID, &c.Text, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	err = r.pgpool.QueryRow(ctx,
		"SELECT username FROM users WHERE id = $1", userID).Scan(&c.Username)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve commenter: %w", err)
	}

	r.logger.InfoContext(ctx, "Comment added",
		slog.String("videoID", videoID.String()), slog.Int64("userID", userID))
	return &c, nil
}

func (r *PostgresCommentRepo) ListComments(ctx context.Context, videoID uuid.UUID) ([]types.Comment, error) {
	rows, err := r.pgpool.Query(ctx, `
		SELECT c.id, c.video_id, c.user_id, c.parent_id, c.comment_text, c.created_at, u.username
		FROM video_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.video_id = $1
		ORDER BY c.parent_id NULLS FIRST, c.created_at ASC`,
		videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.VideoID, &c.UserID, &c.ParentID, &c.Text, &c.CreatedAt, &c.Username); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comment rows: %w", err)
	}
	return comments, nil
}
