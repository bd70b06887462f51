package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type summaryService interface {
	Summary(ctx context.Context, actor shared.Principal) (Summary, error)
}

// Handler renders the landing dashboard.
type Handler struct {
	logger    *slog.Logger
	service   summaryService
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service summaryService, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers GET /dashboard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAuth).Get("/", h.show)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), actor)
	status := http.StatusOK
	data := map[string]any{"Summary": summary, "Chart": MonthChart(summary)}
	if err != nil {
		h.logger.Error("dashboard summary failed", slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
		status = http.StatusInternalServerError
	}
	if err := h.templates.RenderStatus(w, status, "pages/dashboard.html", view.Page(r, h.csrf, "Dashboard", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
