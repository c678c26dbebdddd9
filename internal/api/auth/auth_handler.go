package auth

import (
	"log/slog"
	"net/http"

	"github.com/viberoll/viberoll/internal/api"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewHandlerImpl(authService AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Register creates a new account and returns its public fields.
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.Register(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		User:    user,
	})
}

// Login exchanges credentials for an access/refresh token pair.
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, refresh, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (h *HandlerImpl) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Refresh"))

	var req RefreshRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, err := h.authService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, AccessTokenResponse{AccessToken: access})
}

// Logout revokes the presented session. Runs behind Authenticate, so the
// claims are already validated and attached to the context.
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Logout"))

	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Claims not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.authService.Logout(ctx, claims); err != nil {
		api.ServiceError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
