package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/viberoll/viberoll/internal/api/auth"
	"github.com/viberoll/viberoll/internal/container"
)

// SetupRouter wires the HTTP surface. Server-wide middleware (request id,
// logger, recoverer) is applied in main before mounting this router.
func SetupRouter(c *container.Container) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	authenticate := auth.Authenticate(c.Logger, c.Config.JWT, c.TokenIssuer, c.Revoker)
	optionalAuth := auth.OptionalAuthenticate(c.Logger, c.TokenIssuer, c.Revoker)
	requireAdmin := auth.RequireAdmin(c.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", c.AuthHandler.Register)
			r.Post("/auth/login", c.AuthHandler.Login)
			r.Post("/auth/refresh", c.AuthHandler.Refresh)

			r.Get("/videos/{videoID}/comments", c.CommentHandler.ListComments)
		})

		// The feed widens for authenticated viewers but never requires a
		// token.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/videos", c.VideoHandler.ListVideos)
			r.Get("/videos/{videoID}", c.VideoHandler.GetVideo)
		})

		// Bearer-gated routes.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/auth/logout", c.AuthHandler.Logout)

			r.Put("/user/update", c.UserHandler.UpdateUser)
			r.Delete("/user/delete", c.UserHandler.DeleteUser)

			r.Post("/videos", c.VideoHandler.CreateVideo)
			r.Post("/videos/upload-url", c.VideoHandler.NewUploadURL)
			r.Post("/videos/{videoID}/comments", c.CommentHandler.AddComment)
		})

		// Admin routes.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(requireAdmin)

			r.Post("/admin/create", c.AdminHandler.CreateAdmin)
			r.Delete("/admin/user/{userID}", c.AdminHandler.SoftDeleteUser)
			r.Patch("/admin/user/restore/{userID}", c.AdminHandler.RestoreUser)
			r.Get("/admin/users", c.AdminHandler.ListUsers)
			r.Get("/admin/audit-logs", c.AdminHandler.ListAuditLogs)
		})
	})

	return r
}
