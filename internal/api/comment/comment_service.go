package comment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/viberoll/viberoll/internal/types"
)

const maxCommentLength = 2000

var _ CommentService = (*CommentServiceImpl)(nil)

type CommentService interface {
	List(ctx context.Context, videoID uuid.UUID) ([]types.Comment, error)
	Add(ctx context.Context, videoID uuid.UUID, userID int64, text string, parentID *uuid.UUID) (*types.Comment, error)
}

type CommentServiceImpl struct {
	logger *slog.Logger
	repo   CommentRepo
}

func NewCommentService(repo CommentRepo, logger *slog.Logger) *CommentServiceImpl {
	return &CommentServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *CommentServiceImpl) List(ctx context.Context, videoID uuid.UUID) ([]types.Comment, error) {
	return s.repo.ListComments(ctx, videoID)
}

func (s *CommentServiceImpl) Add(ctx context.Context, videoID uuid.UUID, userID int64, text string, parentID *uuid.UUID) (*types.Comment, error) {
	l := s.logger.With(slog.String("method", "Add"),
		slog.String("videoID", videoID.String()), slog.Int64("userID", userID))

	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxCommentLength {
		return nil, types.ErrBadRequest
	}

	c, err := s.repo.AddComment(ctx, videoID, userID, text, parentID)
	if err != nil {
		l.WarnContext(ctx, "Failed to add comment", slog.Any("error", err))
		return nil, err
	}
	return c, nil
}
