package admin

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/viberoll/viberoll/internal/api"
	"github.com/viberoll/viberoll/internal/api/auth"
	"github.com/viberoll/viberoll/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	CreateAdmin(w http.ResponseWriter, r *http.Request)
	SoftDeleteUser(w http.ResponseWriter, r *http.Request)
	RestoreUser(w http.ResponseWriter, r *http.Request)
	ListUsers(w http.ResponseWriter, r *http.Request)
	ListAuditLogs(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	adminService AdminService
	logger       *slog.Logger
}

func NewHandlerImpl(adminService AdminService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		adminService: adminService,
		logger:       logger,
	}
}

type CreateAdminRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ModerationRequest struct {
	Reason string `json:"reason"`
}

// CreateAdmin provisions a new admin account.
func (h *HandlerImpl) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateAdmin"))

	var req CreateAdminRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.adminService.CreateAdmin(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

// SoftDeleteUser removes a user from the live set.
func (h *HandlerImpl) SoftDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "SoftDeleteUser", h.adminService.SoftDeleteUser)
}

// RestoreUser returns a soft-deleted user to the live set.
func (h *HandlerImpl) RestoreUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "RestoreUser", h.adminService.RestoreUser)
}

type moderationOp func(ctx context.Context, actor *types.Claims, targetID int64, reason, clientIP string) error

// moderate is the shared plumbing for delete and restore: resolve the actor,
// parse the target id, read the optional reason, run the operation.
func (h *HandlerImpl) moderate(w http.ResponseWriter, r *http.Request, name string, op moderationOp) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", name))

	actor, ok := auth.GetClaimsFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Claims not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	targetID, err := targetIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	// The reason body is optional on moderation calls.
	var req ModerationRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := op(ctx, actor, targetID, req.Reason, clientIP(r)); err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "OK"})
}

// ListUsers returns a filtered page of accounts.
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	filter := ListUsersFilter{
		Query:          q.Get("q"),
		IncludeDeleted: q.Get("include_deleted") == "true",
		OnlyDeleted:    q.Get("only_deleted") == "true",
		Limit:          intQueryParam(q.Get("limit"), 0),
		Offset:         intQueryParam(q.Get("offset"), 0),
	}
	if v := q.Get("is_admin"); v != "" {
		isAdmin := v == "true"
		filter.IsAdmin = &isAdmin
	}
	if t, ok := timeQueryParam(q.Get("created_before")); ok {
		filter.CreatedBefore = &t
	}
	if t, ok := timeQueryParam(q.Get("created_after")); ok {
		filter.CreatedAfter = &t
	}

	users, err := h.adminService.ListUsers(ctx, filter)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// ListAuditLogs returns a page of moderation history, newest first.
func (h *HandlerImpl) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	logs, err := h.adminService.ListAuditLogs(ctx, intQueryParam(q.Get("limit"), 0), intQueryParam(q.Get("offset"), 0))
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"audit_logs": logs,
		"count":      len(logs),
	})
}

func targetIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

func intQueryParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func timeQueryParam(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
