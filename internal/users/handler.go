package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type userService interface {
	List(ctx context.Context, query string, page int) (ListResult, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, actorID int64, in CreateInput) (User, error)
	Update(ctx context.Context, actor shared.Principal, id int64, in EditInput) (User, error)
	Delete(ctx context.Context, actor shared.Principal, id int64) (User, error)
	ResetPassword(ctx context.Context, actor shared.Principal, id int64) (User, string, error)
	UpdateProfile(ctx context.Context, actor shared.Principal, in ProfileInput) error
}

type storeLister interface {
	List(ctx context.Context) ([]stores.Store, error)
}

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   userService
	stores    storeLister
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service userService, stores storeLister, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, stores: stores, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers user routes under /admin/users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersEdit))
		r.Get("/new", h.showCreateUserForm)
		r.Post("/new", h.createUser)
		r.Get("/{id}/edit", h.showEditUserForm)
		r.Post("/{id}/edit", h.updateUser)
		r.Post("/{id}/delete", h.deleteUser)
		r.Post("/{id}/reset-password", h.resetPassword)
	})
}

type formErrors = shared.ValidationErrors

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.List(r.Context(), q.Get("q"), shared.PageFromQuery(q))
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{"Result": result, "QueryValues": q}, http.StatusOK)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/users/detail.html", map[string]any{"User": u}, http.StatusOK)
}

func (h *Handler) showCreateUserForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, "pages/users/form.html", map[string]any{"Form": CreateInput{Role: string(shared.RoleEmployee)}, "IsNew": true, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	in := CreateInput{
		Username:        r.PostFormValue("username"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Role:            r.PostFormValue("role"),
		StoreID:         r.PostFormValue("store_id"),
		RealName:        r.PostFormValue("real_name"),
		Email:           r.PostFormValue("email"),
		Phone:           r.PostFormValue("phone"),
	}
	u, err := h.service.Create(r.Context(), actor.UserID, in)
	if err != nil {
		in.Password, in.ConfirmPassword = "", ""
		h.formFailure(w, r, "pages/users/form.html", map[string]any{"Form": in, "IsNew": true}, err)
		return
	}
	h.redirectWithFlash(w, r, fmt.Sprintf("/admin/users/%d", u.ID), "success", "User "+u.Username+" created")
}

func (h *Handler) showEditUserForm(w http.ResponseWriter, r *http.Request) {
	u, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	in := EditInput{RealName: u.RealName, Email: u.Email, Phone: u.Phone, Role: string(u.Role), StoreID: u.StoreID, Active: u.Active()}
	h.renderForm(w, r, "pages/users/edit.html", map[string]any{"User": u, "Form": in, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	in := EditInput{
		RealName: r.PostFormValue("real_name"),
		Email:    r.PostFormValue("email"),
		Phone:    r.PostFormValue("phone"),
		Role:     r.PostFormValue("role"),
		StoreID:  r.PostFormValue("store_id"),
		Active:   r.PostFormValue("status") == "1",
	}
	u, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		h.formFailure(w, r, "pages/users/edit.html", map[string]any{"User": User{ID: id}, "Form": in}, err)
		return
	}
	h.redirectWithFlash(w, r, fmt.Sprintf("/admin/users/%d", u.ID), "success", "User "+u.Username+" updated")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	u, err := h.service.Delete(r.Context(), actor, id)
	switch {
	case errors.Is(err, ErrSelfDelete):
		h.redirectWithFlash(w, r, "/admin/users", "danger", ErrSelfDelete.Message)
	case errors.Is(err, shared.ErrNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error("delete user failed", slog.Any("error", err), slog.Int64("id", id))
		h.redirectWithFlash(w, r, "/admin/users", "danger", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/admin/users", "success", "User "+u.Username+" deleted")
	}
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	u, password, err := h.service.ResetPassword(r.Context(), actor, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error("reset password failed", slog.Any("error", err), slog.Int64("id", id))
		h.redirectWithFlash(w, r, fmt.Sprintf("/admin/users/%d", id), "danger", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, fmt.Sprintf("/admin/users/%d", id), "success", fmt.Sprintf("Password for %s was reset to %s", u.Username, password))
	}
}

func (h *Handler) formFailure(w http.ResponseWriter, r *http.Request, template string, data map[string]any, err error) {
	var fields shared.ValidationErrors
	if errors.As(err, &fields) {
		data["Errors"] = fields
		h.renderForm(w, r, template, data, http.StatusBadRequest)
		return
	}
	h.logger.Error("save user failed", slog.Any("error", err))
	data["Errors"] = formErrors{"general": shared.UserSafeMessage(err)}
	h.renderForm(w, r, template, data, http.StatusInternalServerError)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	items, err := h.stores.List(r.Context())
	if err != nil {
		h.logger.Error("list stores failed", slog.Any("error", err))
	}
	data["Stores"] = items
	data["Roles"] = shared.AllRoles()
	h.render(w, r, template, data, status)
}

func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (User, bool) {
	id, ok := h.userID(w, r)
	if !ok {
		return User{}, false
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return User{}, false
		}
		h.logger.Error("get user failed", slog.Any("error", err), slog.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return User{}, false
	}
	return u, true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "User not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	if err := h.templates.RenderStatus(w, status, template, view.Page(r, h.csrf, "Users", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
