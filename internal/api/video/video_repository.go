package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
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

var _ VideoRepo = (*PostgresVideoRepo)(nil)

// VideoRepo defines the contract for video persistence.
type VideoRepo interface {
	// CreateVideo inserts a row and returns it with the generated id.
	CreateVideo(ctx context.Context, params CreateVideoParams) (*types.Video, error)

	// ListVideos returns public videos newest first; when viewerID is
	// non-nil the viewer's private videos are included.
	ListVideos(ctx context.Context, viewerID *int64) ([]types.Video, error)

	// GetVideoByID returns types.ErrNotFound when absent.
	GetVideoByID(ctx context.Context, id uuid.UUID) (*types.Video, error)

	// SetVideoTags overwrites the tag list. Used by the async tagger.
	SetVideoTags(ctx context.Context, id uuid.UUID, tags []string) error
}

type CreateVideoParams struct {
	Creator     int64
	Title       string
	Description string
	Key         string
	Visibility  string
}

type PostgresVideoRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresVideoRepo(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresVideoRepo {
	return &PostgresVideoRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

const videoColumns = "id, creator, title, description, object_key, visibility, tags, created_at"

func (r *PostgresVideoRepo) CreateVideo(ctx context.Context, params CreateVideoParams) (*types.Video, error) {
	ctx, span := otel.Tracer("VideoRepo").Start(ctx, "CreateVideo", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "videos"),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		tracer.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "create_video")))
	}()

	var v types.Video
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO videos (id, creator, title, description, object_key, visibility)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+videoColumns,
		uuid.New(), params.Creator, params.Title, params.Description, params.Key, params.Visibility).
		Scan(&v.ID, &v.Creator, &v.Title, &v.Description, &v.Key, &v.Visibility, &v.Tags, &v.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, fmt.Errorf("failed to insert video: %w", err)
	}

	r.logger.InfoContext(ctx, "Video created",
		slog.String("videoID", v.ID.String()), slog.Int64("creator", v.Creator))
	return &v, nil
}

func (r *PostgresVideoRepo) ListVideos(ctx context.Context, viewerID *int64) ([]types.Video, error) {
	ctx, span := otel.Tracer("VideoRepo").Start(ctx, "ListVideos", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "videos"),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		tracer.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("query", "list_videos")))
	}()

	var rows pgx.Rows
	var err error
	if viewerID != nil {
		rows, err = r.pgpool.Query(ctx, `
			SELECT `+videoColumns+` FROM videos
			WHERE visibility = $1 OR creator = $2
			ORDER BY created_at DESC`,
			types.VisibilityPublic, *viewerID)
	} else {
		rows, err = r.pgpool.Query(ctx, `
			SELECT `+videoColumns+` FROM videos
			WHERE visibility = $1
			ORDER BY created_at DESC`,
			types.VisibilityPublic)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []types.Video
	for rows.Next() {
		var v types.Video
		if err := rows.Scan(&v.ID, &v.Creator, &v.Title, &v.Description, &v.Key, &v.Visibility, &v.Tags, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate video rows: %w", err)
	}
	return videos, nil
}

func (r *PostgresVideoRepo) GetVideoByID(ctx context.Context, id uuid.UUID) (*types.Video, error) {
	var v types.Video
	err := r.pgpool.QueryRow(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id = $1",
		id).Scan(&v.ID, &v.Creator, &v.Title, &v.Description, &v.Key, &v.Visibility, &v.Tags, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video: %w", err)
	}
	return &v, nil
}

func (r *PostgresVideoRepo) SetVideoTags(ctx context.Context, id uuid.UUID, tags []string) error {
	tag, err := r.pgpool.Exec(ctx,
		"UPDATE videos SET tags = $1 WHERE id = $2",
		tags, id)
	if err != nil {
		return fmt.Errorf("failed to set video tags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
