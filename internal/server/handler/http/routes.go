package http

import (
	"net/http"

	"github.com/akozyreva/cloudkeep/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the dashboard's HTTP handler.
//
// Routes:
//
//	POST   /api/login                     → auth.Login
//	GET    /api/session                   → auth.Session
//	POST   /api/logout                    → auth.Logout         (protected)
//	GET    /api/notifications             → notifications.List  (protected)
//	POST   /api/files                     → files.Upload        (protected)
//	GET    /api/files                     → files.List          (protected)
//	POST   /api/files/refresh             → files.RefreshList   (protected)
//	GET    /api/files/open                → files.Open          (protected)
//	GET    /api/files/download            → files.Download      (protected)
//	DELETE /api/files                     → files.Delete        (protected)
//	GET    /api/credentials               → vault.List          (protected)
//	POST   /api/credentials               → vault.Create        (protected)
//	PUT    /api/credentials/{id}          → vault.Update        (protected)
//	DELETE /api/credentials/{id}          → vault.Delete        (protected)
//	POST   /api/credentials/{id}/reveal   → vault.Reveal        (protected)
//	POST   /api/credentials/{id}/copy     → vault.Copy          (protected)
//
// Protected routes run behind RequireSession: the principal is resolved by
// the session gate before any handler runs, and requests without a live
// session get 401.
func NewRouter(
	authHandler *AuthHandler,
	filesHandler *FilesHandler,
	vaultHandler *VaultHandler,
	notificationsHandler *NotificationsHandler,
	gate middleware.PrincipalSource,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.With(chiMiddleware.AllowContentType("application/json")).
			Post("/login", authHandler.Login)
		r.Get("/session", authHandler.Session)

		// Protected group: requires a live session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(gate))

			r.Post("/logout", authHandler.Logout)
			r.Get("/notifications", notificationsHandler.List)

			r.Route("/files", func(r chi.Router) {
				r.Post("/", filesHandler.Upload)
				r.Get("/", filesHandler.List)
				r.Post("/refresh", filesHandler.RefreshList)
				r.Get("/open", filesHandler.Open)
				r.Get("/download", filesHandler.Download)
				r.Delete("/", filesHandler.Delete)
			})

			r.Route("/credentials", func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Get("/", vaultHandler.List)
				r.Post("/", vaultHandler.Create)
				r.Put("/{id}", vaultHandler.Update)
				r.Delete("/{id}", vaultHandler.Delete)
				r.Post("/{id}/reveal", vaultHandler.Reveal)
				r.Post("/{id}/copy", vaultHandler.Copy)
			})
		})
	})

	return r
}
