package staff

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type staffService interface {
	ForUser(ctx context.Context, userID int64) (StoreStaff, error)
	Create(ctx context.Context, actor shared.Principal, form Form) (StoreStaff, error)
}

type storeLister interface {
	VisibleStores(ctx context.Context, p shared.Principal) ([]stores.Store, error)
}

// Handler serves /profile/staff.
type Handler struct {
	logger    *slog.Logger
	service   staffService
	stores    storeLister
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service staffService, stores storeLister, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, stores: stores, templates: templates, csrf: csrf, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth)
		r.Get("/", h.showForm)
		r.Post("/", h.create)
	})
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	if h.alreadyFiled(w, r, actor) {
		return
	}
	form := Form{StoreID: actor.StoreID}
	h.renderForm(w, r, actor, form, shared.ValidationErrors{}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	form := Form{
		StoreID:           r.PostFormValue("store_id"),
		BankAccountName:   r.PostFormValue("bank_account_name"),
		BankAccountNumber: r.PostFormValue("bank_account_number"),
		IsPrimaryContact:  r.PostFormValue("is_primary_contact") != "",
		Phone:             r.PostFormValue("phone"),
		LineID:            r.PostFormValue("line_id"),
		Email:             r.PostFormValue("email"),
		StartDate:         r.PostFormValue("start_date"),
		EndDate:           r.PostFormValue("end_date"),
	}
	_, err := h.service.Create(r.Context(), actor, form)
	if err != nil {
		var fields shared.ValidationErrors
		switch {
		case errors.As(err, &fields):
			h.renderForm(w, r, actor, form, fields, http.StatusBadRequest)
		case errors.Is(err, ErrAlreadyExists):
			h.redirectWithFlash(w, r, "/profile", "info", ErrAlreadyExists.Message)
		default:
			h.logger.Error("create staff failed", slog.Any("error", err))
			h.renderForm(w, r, actor, form, shared.ValidationErrors{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		}
		return
	}
	h.redirectWithFlash(w, r, "/profile", "success", "Staff profile saved")
}

func (h *Handler) alreadyFiled(w http.ResponseWriter, r *http.Request, actor shared.Principal) bool {
	_, err := h.service.ForUser(r.Context(), actor.UserID)
	if err == nil {
		h.redirectWithFlash(w, r, "/profile", "info", ErrAlreadyExists.Message)
		return true
	}
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Warn("lookup staff record", slog.Any("error", err))
	}
	return false
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, actor shared.Principal, form Form, errs shared.ValidationErrors, status int) {
	visible, err := h.stores.VisibleStores(r.Context(), actor)
	if err != nil {
		h.logger.Error("visible stores", slog.Any("error", err))
	}
	data := map[string]any{"Form": form, "Errors": errs, "Stores": visible}
	if err := h.templates.RenderStatus(w, status, "pages/profile/staff_form.html", view.Page(r, h.csrf, "Staff profile", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
