package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/crashdesk/internal/api/middleware"
	"github.com/kiranshivaraju/crashdesk/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	IntakeHandler http.HandlerFunc
	FeedHandler   http.HandlerFunc

	LoginHandler      http.HandlerFunc
	LogoutHandler     http.HandlerFunc
	ListHandler       http.HandlerFunc
	ResolveAllHandler http.HandlerFunc
	DetailHandler     http.HandlerFunc
	ToggleHandler     http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/feed", orNotImplemented(deps.FeedHandler))
	r.Get("/login", orNotImplemented(deps.LoginHandler))
	r.Post("/login", orNotImplemented(deps.LoginHandler))

	// Client intake, guarded by the shared secret inside the handler
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		for _, path := range []string{"/report", "/report.php"} {
			r.Get(path, orNotImplemented(deps.IntakeHandler))
			r.Post(path, orNotImplemented(deps.IntakeHandler))
		}
	})

	// Maintainer console. Reads are GET, every state change is a POST.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Get("/errors", orNotImplemented(deps.ListHandler))
		r.Post("/errors", orNotImplemented(deps.ResolveAllHandler))
		r.Get("/error", orNotImplemented(deps.DetailHandler))
		r.Post("/error", orNotImplemented(deps.ToggleHandler))
		r.Post("/logout", orNotImplemented(deps.LogoutHandler))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/errors", http.StatusSeeOther)
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
