package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/staff"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type staffLookup interface {
	ForUser(ctx context.Context, userID int64) (staff.StoreStaff, error)
}

// ProfileHandler serves the self-service /profile pages.
type ProfileHandler struct {
	logger    *slog.Logger
	service   userService
	staff     staffLookup
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewProfileHandler builds ProfileHandler instance.
func NewProfileHandler(logger *slog.Logger, service userService, staff staffLookup, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *ProfileHandler {
	return &ProfileHandler{logger: logger, service: service, staff: staff, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers profile routes.
func (h *ProfileHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth)
		r.Get("/", h.showProfile)
		r.Get("/edit", h.showEdit)
		r.Post("/edit", h.saveEdit)
	})
}

func (h *ProfileHandler) showProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	u, err := h.service.Get(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("load profile failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := map[string]any{"User": u, "Editable": ProfileEditable(u)}
	rec, err := h.staff.ForUser(r.Context(), u.ID)
	switch {
	case err == nil:
		data["Staff"] = rec
	case !errors.Is(err, shared.ErrNotFound):
		h.logger.Warn("load staff record", slog.Any("error", err))
	}
	h.render(w, r, "pages/profile/show.html", data, http.StatusOK)
}

func (h *ProfileHandler) showEdit(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	u, err := h.service.Get(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("load profile failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !ProfileEditable(u) {
		h.redirectWithFlash(w, r, "/profile", "warning", ErrProfileLocked.Message)
		return
	}
	form := ProfileInput{RealName: u.RealName, Email: u.Email, Phone: u.Phone}
	h.render(w, r, "pages/profile/edit.html", map[string]any{"Form": form, "Errors": formErrors{}, "OneTime": u.Role.IsStoreGroup()}, http.StatusOK)
}

func (h *ProfileHandler) saveEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	form := ProfileInput{
		RealName: r.PostFormValue("real_name"),
		Email:    r.PostFormValue("email"),
		Phone:    r.PostFormValue("phone"),
	}
	err := h.service.UpdateProfile(r.Context(), actor, form)
	if err == nil {
		h.redirectWithFlash(w, r, "/profile", "success", "Profile updated")
		return
	}
	var fields shared.ValidationErrors
	switch {
	case errors.Is(err, ErrProfileLocked):
		h.redirectWithFlash(w, r, "/profile", "warning", ErrProfileLocked.Message)
	case errors.As(err, &fields):
		h.render(w, r, "pages/profile/edit.html", map[string]any{"Form": form, "Errors": fields, "OneTime": actor.Role.IsStoreGroup()}, http.StatusBadRequest)
	default:
		h.logger.Error("update profile failed", slog.Any("error", err))
		h.render(w, r, "pages/profile/edit.html", map[string]any{"Form": form, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
	}
}

func (h *ProfileHandler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	if err := h.templates.RenderStatus(w, status, template, view.Page(r, h.csrf, "Profile", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *ProfileHandler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
