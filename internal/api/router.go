package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/ngslab/seqportal/internal/api/middleware"
	"github.com/ngslab/seqportal/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	LoginHandler  http.HandlerFunc
	LogoutHandler http.HandlerFunc

	SamplesHandler    http.HandlerFunc
	BrowseHandler     http.HandlerFunc
	HistoryHandler    http.HandlerFunc
	ReportHandler     http.HandlerFunc
	StartAnalysis     http.HandlerFunc
	CancelAnalysis    http.HandlerFunc
	ProgressHandler   http.HandlerFunc
	JobLogHandler     http.HandlerFunc
	RunningJobHandler http.HandlerFunc
	ForceResetHandler http.HandlerFunc
	ChangePassword    http.HandlerFunc

	ListUsers      http.HandlerFunc
	CreateUser     http.HandlerFunc
	UpdateUser     http.HandlerFunc
	DeleteUser     http.HandlerFunc
	ListPortalLogs http.HandlerFunc
	PortalLog      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Post("/api/v1/auth/login", orNotImplemented(deps.LoginHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/auth/logout", orNotImplemented(deps.LogoutHandler))
		r.Post("/api/v1/users/me/password", orNotImplemented(deps.ChangePassword))

		r.Post("/api/v1/samples", orNotImplemented(deps.SamplesHandler))
		r.Get("/api/v1/browse", orNotImplemented(deps.BrowseHandler))
		r.Get("/api/v1/history", orNotImplemented(deps.HistoryHandler))
		r.Get("/api/v1/reports", orNotImplemented(deps.ReportHandler))

		r.Post("/api/v1/analysis", orNotImplemented(deps.StartAnalysis))
		r.Get("/api/v1/analysis/running", orNotImplemented(deps.RunningJobHandler))
		r.Post("/api/v1/analysis/force-reset", orNotImplemented(deps.ForceResetHandler))
		r.Post("/api/v1/analysis/{jobID}/cancel", orNotImplemented(deps.CancelAnalysis))
		r.Get("/api/v1/analysis/{jobID}/progress", orNotImplemented(deps.ProgressHandler))
		r.Get("/api/v1/analysis/{jobID}/log", orNotImplemented(deps.JobLogHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireAdmin)

			r.Get("/api/v1/admin/users", orNotImplemented(deps.ListUsers))
			r.Post("/api/v1/admin/users", orNotImplemented(deps.CreateUser))
			r.Put("/api/v1/admin/users/{userID}", orNotImplemented(deps.UpdateUser))
			r.Delete("/api/v1/admin/users/{userID}", orNotImplemented(deps.DeleteUser))

			r.Get("/api/v1/admin/logs", orNotImplemented(deps.ListPortalLogs))
			r.Get("/api/v1/admin/logs/{name}", orNotImplemented(deps.PortalLog))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
