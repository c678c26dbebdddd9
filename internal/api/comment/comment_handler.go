package comment

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
	ListComments(w http.ResponseWriter, r *http.Request)
	AddComment(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	commentService CommentService
	logger         *slog.Logger
}

func NewHandlerImpl(commentService CommentService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		commentService: commentService,
		logger:         logger,
	}
}

type AddCommentRequest struct {
	Text     string     `json:"comment_text"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// ListComments returns a video's comment thread.
func (h *HandlerImpl) ListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := uuid.Parse(chi.URLParam(r, "videoID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	comments, err := h.commentService.List(ctx, videoID)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"comments": comments,
		"count":    len(comments),
	})
}

// AddComment posts a comment, optionally as a reply.
func (h *HandlerImpl) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "AddComment"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	videoID, err := uuid.Parse(chi.URLParam(r, "videoID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	var req AddCommentRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Add(ctx, videoID, userID, req.Text, req.ParentID)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, comment)
}
