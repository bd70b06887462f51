package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mxstorebi/mxstorebi/internal/attachments"
	audithttp "github.com/mxstorebi/mxstorebi/internal/audit/http"
	"github.com/mxstorebi/mxstorebi/internal/auth"
	"github.com/mxstorebi/mxstorebi/internal/dailysales"
	"github.com/mxstorebi/mxstorebi/internal/dashboard"
	"github.com/mxstorebi/mxstorebi/internal/observability"
	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/staff"
	"github.com/mxstorebi/mxstorebi/internal/stores"
	"github.com/mxstorebi/mxstorebi/internal/users"
	"github.com/mxstorebi/mxstorebi/internal/view"
	"github.com/mxstorebi/mxstorebi/jobs"
	"github.com/mxstorebi/mxstorebi/report"
	"github.com/mxstorebi/mxstorebi/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware

	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	ReportsHandler     *dailysales.Handler
	AttachmentsHandler *attachments.Handler
	UsersHandler       *users.Handler
	ProfileHandler     *users.ProfileHandler
	StaffHandler       *staff.Handler
	StoresHandler      *stores.Handler
	PermissionsHandler *rbac.PermissionsHandler
	AuditHandler       *audithttp.Handler
	ReportHandler      *report.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Logger)

	// served outside the session stack so probes and scrapes stay cheap
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
			Principal:      params.RBACMiddleware.LoadPrincipal,
		}) {
			r.Use(mw)
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if _, ok := shared.PrincipalFromContext(r.Context()); ok {
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
		})

		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		r.Route("/api/reports", params.ReportsHandler.MountAPI)
		r.Route("/attachments", params.AttachmentsHandler.MountRoutes)
		r.Route("/profile/staff", params.StaffHandler.MountRoutes)
		r.Route("/profile", params.ProfileHandler.MountRoutes)
		r.Route("/admin", func(r chi.Router) {
			r.Route("/users", params.UsersHandler.MountRoutes)
			r.Route("/stores", params.StoresHandler.MountRoutes)
			r.Route("/roles", params.PermissionsHandler.MountRoutes)
			r.Route("/audit", params.AuditHandler.MountRoutes)
		})
		r.Route("/report", params.ReportHandler.MountRoutes)
		r.Route("/jobs", params.JobHandler.MountRoutes)
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
