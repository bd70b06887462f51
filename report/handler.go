package report

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/platform/httpx"
	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes the PDF renderer health probe.
type Handler struct {
	client pinger
	logger *slog.Logger
	rbac   rbac.Middleware
}

// NewHandler creates a report handler.
func NewHandler(client pinger, logger *slog.Logger, rbac rbac.Middleware) *Handler {
	return &Handler{client: client, logger: logger, rbac: rbac}
}

// MountRoutes registers report routes under /report.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermJobsView)).Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
