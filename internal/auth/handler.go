package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
	"github.com/mxstorebi/mxstorebi/internal/users"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

// LoginAttemptsPerMinute caps POST /auth/login per client IP.
const LoginAttemptsPerMinute = 10

type registrar interface {
	Create(ctx context.Context, actorID int64, in users.CreateInput) (users.User, error)
}

type storeLister interface {
	List(ctx context.Context) ([]stores.Store, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	registrar      registrar
	stores         storeLister
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, registrar registrar, stores storeLister, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		registrar:      registrar,
		stores:         stores,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(httprate.LimitByIP(LoginAttemptsPerMinute, time.Minute)).Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Remember bool   `form:"remember_me"`
	Next     string `form:"next"`
}

type loginPageData struct {
	Form   loginForm
	Errors shared.ValidationErrors
}

type registerPageData struct {
	Form   users.CreateInput
	Errors shared.ValidationErrors
	Stores []stores.Store
	Roles  []shared.Role
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	data := loginPageData{Form: loginForm{Next: r.URL.Query().Get("next")}, Errors: shared.ValidationErrors{}}
	h.render(w, r, "pages/login.html", "Sign in", data, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Remember: r.PostFormValue("remember_me") != "",
		Next:     r.PostFormValue("next"),
	}
	errs := shared.ValidateStruct(h.validator, form)
	if len(errs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
		if err == nil {
			h.startSession(r, user.ID, form.Remember, "Welcome back, "+user.Username)
			if err := h.service.RecordLogin(r.Context(), user, form.Remember, r.RemoteAddr); err != nil {
				h.logger.Warn("record login", slog.Any("error", err))
			}
			http.Redirect(w, r, safeNext(form.Next), http.StatusSeeOther)
			return
		}
		errs.Add("general", shared.UserSafeMessage(shared.ErrInvalidCredentials))
	}
	form.Password = ""
	h.render(w, r, "pages/login.html", "Sign in", loginPageData{Form: form, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	if loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderRegister(w, r, users.CreateInput{Role: string(shared.RoleEmployee)}, shared.ValidationErrors{}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := users.CreateInput{
		Username:        r.PostFormValue("username"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Role:            r.PostFormValue("role"),
		StoreID:         r.PostFormValue("store_id"),
	}
	u, err := h.registrar.Create(r.Context(), 0, in)
	if err != nil {
		in.Password, in.ConfirmPassword = "", ""
		var fields shared.ValidationErrors
		if errors.As(err, &fields) {
			h.renderRegister(w, r, in, fields, http.StatusBadRequest)
			return
		}
		h.logger.Error("register failed", slog.Any("error", err))
		h.renderRegister(w, r, in, shared.ValidationErrors{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.startSession(r, u.ID, false, "Registration successful, welcome "+u.Username)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		// A fresh id replaces the old record so the flash survives the logout.
		h.sessionManager.Rotate(sess)
		sess.SetUser("")
		sess.SetRemember(false)
		if _, err := h.csrfManager.Rotate(r.Context(), sess); err != nil {
			h.logger.Warn("rotate csrf", slog.Any("error", err))
		}
		sess.AddFlash(shared.FlashMessage{Kind: "info", Message: "You have been logged out"})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) startSession(r *http.Request, userID int64, remember bool, greeting string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		return
	}
	h.sessionManager.Rotate(sess)
	sess.SetUser(strconv.FormatInt(userID, 10))
	sess.SetRemember(remember)
	if _, err := h.csrfManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Warn("rotate csrf", slog.Any("error", err))
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: greeting})
}

func (h *Handler) renderRegister(w http.ResponseWriter, r *http.Request, in users.CreateInput, errs shared.ValidationErrors, status int) {
	items, err := h.stores.List(r.Context())
	if err != nil {
		h.logger.Error("list stores failed", slog.Any("error", err))
	}
	data := registerPageData{Form: in, Errors: errs, Stores: items, Roles: shared.AllRoles()}
	h.render(w, r, "pages/register.html", "Register", data, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	if err := h.templates.RenderStatus(w, status, template, view.Page(r, h.csrfManager, title, data)); err != nil {
		h.logger.Error("render "+template, slog.Any("error", err))
	}
}

func loggedIn(r *http.Request) bool {
	if _, ok := shared.PrincipalFromContext(r.Context()); ok {
		return true
	}
	return false
}

// safeNext only follows local absolute paths so the login form cannot be used as an open redirect.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleRegisterForTest exposes the register POST handler for tests.
func (h *Handler) HandleRegisterForTest(w http.ResponseWriter, r *http.Request) {
	h.handleRegister(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
