package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

// PermissionsHandler renders the role matrix.
type PermissionsHandler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRolesView))
		r.Get("/", h.showMatrix)
	})
}

func (h *PermissionsHandler) showMatrix(w http.ResponseWriter, r *http.Request) {
	data := view.Page(r, h.csrf, "Roles & permissions", map[string]any{"Matrix": BuildMatrix()})
	if err := h.templates.Render(w, "pages/admin/roles.html", data); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
