package stores

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type storeService interface {
	List(ctx context.Context) ([]Store, error)
	Get(ctx context.Context, id string) (Store, error)
	Save(ctx context.Context, actor shared.Principal, form StoreForm, isNew bool) (Store, error)
}

// Handler serves the admin store maintenance pages.
type Handler struct {
	logger    *slog.Logger
	service   storeService
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service storeService, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers store routes under /admin/stores.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStoresEdit))
		r.Get("/", h.list)
		r.Get("/new", h.newForm)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.editForm)
		r.Post("/{id}", h.update)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list stores failed", slog.Any("error", err))
		h.render(w, r, "pages/admin/stores.html", map[string]any{"Errors": map[string]string{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin/stores.html", map[string]any{"Stores": items}, http.StatusOK)
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/admin/store_form.html", map[string]any{"Form": StoreForm{}, "IsNew": true, "Errors": shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	store, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}
	form := StoreForm{ID: store.ID, Name: store.Name, Address: store.Address, ThirdPartyPlatform: store.ThirdPartyPlatform}
	h.render(w, r, "pages/admin/store_form.html", map[string]any{"Form": form, "IsNew": false, "Errors": shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, true)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, false)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, isNew bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := StoreForm{
		ID:                 r.PostFormValue("store_id"),
		Name:               r.PostFormValue("store_name"),
		Address:            r.PostFormValue("store_address"),
		ThirdPartyPlatform: r.PostFormValue("third_party_platform") != "",
	}
	if !isNew {
		form.ID = chi.URLParam(r, "id")
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	store, err := h.service.Save(r.Context(), actor, form, isNew)
	if err != nil {
		var fields shared.ValidationErrors
		if errors.As(err, &fields) {
			h.render(w, r, "pages/admin/store_form.html", map[string]any{"Form": form, "IsNew": isNew, "Errors": fields}, http.StatusBadRequest)
			return
		}
		if errors.Is(err, shared.ErrNotFound) {
			h.notFoundOrError(w, r, err)
			return
		}
		h.logger.Error("save store failed", slog.Any("error", err))
		h.render(w, r, "pages/admin/store_form.html", map[string]any{"Form": form, "IsNew": isNew, "Errors": shared.ValidationErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	msg := "Store updated"
	if isNew {
		msg = "Store created"
	}
	h.redirectWithFlash(w, r, "/admin/stores", "success", msg+": "+strings.TrimSpace(store.Name))
}

func (h *Handler) notFoundOrError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		http.Error(w, "Store not found", http.StatusNotFound)
		return
	}
	h.logger.Error("load store failed", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	if err := h.templates.RenderStatus(w, status, template, view.Page(r, h.csrf, "Stores", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
