package video

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viberoll/viberoll/internal/api"
	"github.com/viberoll/viberoll/internal/api/auth"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListVideos(w http.ResponseWriter, r *http.Request)
	GetVideo(w http.ResponseWriter, r *http.Request)
	NewUploadURL(w http.ResponseWriter, r *http.Request)
	CreateVideo(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	videoService VideoService
	logger       *slog.Logger
}

func NewHandlerImpl(videoService VideoService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		videoService: videoService,
		logger:       logger,
	}
}

// ListVideos serves the feed. Anonymous viewers get public videos only;
// authenticated viewers also see their own private uploads.
func (h *HandlerImpl) ListVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var viewerID *int64
	if id, ok := auth.GetUserIDFromContext(ctx); ok {
		viewerID = &id
	}

	videos, err := h.videoService.List(ctx, viewerID)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"count":  len(videos),
	})
}

// GetVideo serves a single video with a freshly signed download URL.
func (h *HandlerImpl) GetVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := uuid.Parse(chi.URLParam(r, "videoID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	var viewerID *int64
	if id, ok := auth.GetUserIDFromContext(ctx); ok {
		viewerID = &id
	}

	video, err := h.videoService.Get(ctx, viewerID, videoID)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, video)
}

// NewUploadURL returns a presigned PUT target for the raw video file.
func (h *HandlerImpl) NewUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.videoService.NewUploadURL(ctx)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// CreateVideo registers an uploaded object as a video owned by the caller.
func (h *HandlerImpl) CreateVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateVideo"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateVideoRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	video, err := h.videoService.Create(ctx, userID, req)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, video)
}
