package video

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/viberoll/viberoll/internal/api/ai"
	"github.com/viberoll/viberoll/internal/types"
)

const tagTimeout = 30 * time.Second

var _ VideoService = (*VideoServiceImpl)(nil)

// VideoService defines the business logic contract for video operations.
type VideoService interface {
	List(ctx context.Context, viewerID *int64) ([]types.Video, error)
	Get(ctx context.Context, viewerID *int64, id uuid.UUID) (*types.Video, error)
	NewUploadURL(ctx context.Context) (*UploadURLResponse, error)
	Create(ctx context.Context, creatorID int64, req CreateVideoRequest) (*types.Video, error)
}

// UploadStore issues the presigned URLs creators PUT their files to.
type UploadStore interface {
	PresignPut(ctx context.Context) (url string, key string, err error)
	PresignGet(ctx context.Context, key string) (string, error)
}

type CreateVideoRequest struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

type UploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
}

type VideoServiceImpl struct {
	logger  *slog.Logger
	repo    VideoRepo
	cache   *ListingCache
	uploads UploadStore
	tagger  ai.Tagger
}

func NewVideoService(repo VideoRepo, cache *ListingCache, uploads UploadStore, tagger ai.Tagger, logger *slog.Logger) *VideoServiceImpl {
	return &VideoServiceImpl{
		logger:  logger,
		repo:    repo,
		cache:   cache,
		uploads: uploads,
		tagger:  tagger,
	}
}

// List returns the feed for a viewer, served from cache when possible.
// Download URLs are re-signed on every read; rows and cache entries hold the
// object key only, so a listing never carries an expired link.
func (s *VideoServiceImpl) List(ctx context.Context, viewerID *int64) ([]types.Video, error) {
	l := s.logger.With(slog.String("method", "List"))

	if videos, ok := s.cache.Get(ctx, viewerID); ok {
		l.DebugContext(ctx, "Listing served from cache")
		if err := s.presignListing(ctx, videos); err != nil {
			return nil, err
		}
		return videos, nil
	}

	videos, err := s.repo.ListVideos(ctx, viewerID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list videos", slog.Any("error", err))
		return nil, err
	}
	if videos == nil {
		videos = []types.Video{}
	}

	s.cache.Set(ctx, viewerID, videos)
	if err := s.presignListing(ctx, videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// Get returns a single video. Private videos are visible to their creator
// only; everyone else gets a not-found, never a forbidden.
func (s *VideoServiceImpl) Get(ctx context.Context, viewerID *int64, id uuid.UUID) (*types.Video, error) {
	l := s.logger.With(slog.String("method", "Get"), slog.String("videoID", id.String()))

	video, err := s.repo.GetVideoByID(ctx, id)
	if err != nil {
		l.DebugContext(ctx, "Video lookup failed", slog.Any("error", err))
		return nil, err
	}

	if video.Visibility == types.VisibilityPrivate && (viewerID == nil || *viewerID != video.Creator) {
		return nil, types.ErrNotFound
	}

	url, err := s.uploads.PresignGet(ctx, video.Key)
	if err != nil {
		l.ErrorContext(ctx, "Failed to presign video download", slog.Any("error", err))
		return nil, types.ErrInternal
	}
	video.URL = url
	return video, nil
}

func (s *VideoServiceImpl) presignListing(ctx context.Context, videos []types.Video) error {
	for i := range videos {
		url, err := s.uploads.PresignGet(ctx, videos[i].Key)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to presign video download",
				slog.String("key", videos[i].Key), slog.Any("error", err))
			return types.ErrInternal
		}
		videos[i].URL = url
	}
	return nil
}

// NewUploadURL hands the client a presigned PUT target for the raw file.
func (s *VideoServiceImpl) NewUploadURL(ctx context.Context) (*UploadURLResponse, error) {
	l := s.logger.With(slog.String("method", "NewUploadURL"))

	url, key, err := s.uploads.PresignPut(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to presign upload", slog.Any("error", err))
		return nil, err
	}

	return &UploadURLResponse{UploadURL: url, Key: key}, nil
}

// Create registers an uploaded object as a video, invalidates the affected
// listings, and kicks off tag suggestion in the background.
func (s *VideoServiceImpl) Create(ctx context.Context, creatorID int64, req CreateVideoRequest) (*types.Video, error) {
	l := s.logger.With(slog.String("method", "Create"), slog.Int64("creator", creatorID))

	if req.Key == "" || req.Title == "" {
		return nil, types.ErrBadRequest
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = types.VisibilityPublic
	}
	if visibility != types.VisibilityPublic && visibility != types.VisibilityPrivate {
		return nil, types.ErrBadRequest
	}

	video, err := s.repo.CreateVideo(ctx, CreateVideoParams{
		Creator:     creatorID,
		Title:       req.Title,
		Description: req.Description,
		Key:         req.Key,
		Visibility:  visibility,
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to create video", slog.Any("error", err))
		return nil, err
	}

	s.cache.Invalidate(ctx, creatorID)

	// The row is committed at this point, so a presign hiccup only costs the
	// response its download link.
	if url, err := s.uploads.PresignGet(ctx, video.Key); err != nil {
		l.WarnContext(ctx, "Failed to presign video download", slog.Any("error", err))
	} else {
		video.URL = url
	}

	if s.tagger.Enabled() {
		go s.tagAsync(video.ID, creatorID, video.Title, video.Description)
	}

	l.InfoContext(ctx, "Video registered", slog.String("videoID", video.ID.String()))
	return video, nil
}

// tagAsync runs detached from the request, with its own deadline. Failures
// are logged and the video simply stays untagged.
func (s *VideoServiceImpl) tagAsync(videoID uuid.UUID, creatorID int64, title, description string) {
	ctx, cancel := context.WithTimeout(context.Background(), tagTimeout)
	defer cancel()

	l := s.logger.With(slog.String("method", "tagAsync"), slog.String("videoID", videoID.String()))

	tags, err := s.tagger.SuggestTags(ctx, title, description)
	if err != nil {
		l.WarnContext(ctx, "Tag suggestion failed", slog.Any("error", err))
		return
	}
	if len(tags) == 0 {
		return
	}

	if err := s.repo.SetVideoTags(ctx, videoID, tags); err != nil {
		l.WarnContext(ctx, "Failed to store suggested tags", slog.Any("error", err))
		return
	}

	s.cache.Invalidate(ctx, creatorID)
	l.InfoContext(ctx, "Video tagged", slog.Any("tags", tags))
}
