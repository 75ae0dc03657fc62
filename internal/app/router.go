package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/auth"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/gate"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/observability"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/httpx"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/roles"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/users"
	"github.com/Xanitokills/Backend-Elant-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Gate         *gate.Gate
	AuthHandler  *auth.Handler
	UsersHandler *users.Handler
	RolesHandler *roles.Handler
	MenusHandler *rbac.MenusHandler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
	AccessLog    bool
}

// NewRouter constructs the chi.Router with the API defaults. Every route under
// /api passes the gate's authentication stage; handlers add resource checks.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Use(LoginRateLimit(params.Config))
			params.AuthHandler.MountRoutes(r)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Gate.Authenticate)
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.MenusHandler != nil {
			r.Route("/menus", params.MenusHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
