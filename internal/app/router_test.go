package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
)

// newTestRouter wires every handler without backing services; the tests only
// reach middleware, redirects and static routes.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := defaultConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	mw := rbac.Middleware{Logger: logger}

	return NewRouter(RouterParams{
		Logger:             logger,
		Config:             &cfg,
		Templates:          templates,
		SessionManager:     sessions,
		CSRFManager:        csrf,
		RBACMiddleware:     mw,
		AuthHandler:        auth.NewHandler(logger, nil, nil, nil, templates, sessions, csrf),
		DashboardHandler:   dashboard.NewHandler(logger, nil, templates, csrf, mw),
		ReportsHandler:     dailysales.NewHandler(logger, nil, nil, templates, csrf, mw, cfg.UploadMaxBytes),
		AttachmentsHandler: attachments.NewHandler(logger, nil, mw),
		UsersHandler:       users.NewHandler(logger, nil, nil, templates, csrf, mw),
		ProfileHandler:     users.NewProfileHandler(logger, nil, nil, templates, csrf, mw),
		StaffHandler:       staff.NewHandler(logger, nil, nil, templates, csrf, mw),
		StoresHandler:      stores.NewHandler(logger, nil, templates, csrf, mw),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, templates, csrf, mw),
		AuditHandler:       audithttp.NewHandler(logger, nil, templates, csrf, mw),
		ReportHandler:      report.NewHandler(nil, logger, mw),
		JobHandler:         jobs.NewHandler(nil, logger, mw),
		Metrics:            observability.NewMetrics(),
	})
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterSendsAnonymousVisitorsToLogin(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?page=2", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login?next=%2Freports%3Fpage%3D2", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestRouterRejectsPostWithoutCSRFToken(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterServesStaticWithCacheHeader(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/css")
}
