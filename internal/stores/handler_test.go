package stores

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

func newTestHandler(t *testing.T, svc storeService) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, svc, templates, csrf, rbac.Middleware{}), sessions
}

func adminRequest(t *testing.T, sessions *shared.SessionManager, method, target string, form url.Values) (*http.Request, *shared.Session) {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = shared.ContextWithPrincipal(ctx, shared.Principal{UserID: 1, Username: "admin", Role: shared.RoleAdmin})
	return req.WithContext(ctx), sess
}

func TestListRendersStores(t *testing.T) {
	handler, sessions := newTestHandler(t, NewService(seededRepo(), nil))
	req, _ := adminRequest(t, sessions, http.MethodGet, "/admin/stores", nil)

	rr := httptest.NewRecorder()
	handler.list(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Central WestGate")
}

func TestCreateStoreRedirects(t *testing.T) {
	repo := seededRepo()
	handler, sessions := newTestHandler(t, NewService(repo, nil))
	form := url.Values{"store_id": {"83"}, "store_name": {"Gateway at Bang Sue"}, "third_party_platform": {"on"}}
	req, sess := adminRequest(t, sessions, http.MethodPost, "/admin/stores", form)

	rr := httptest.NewRecorder()
	handler.create(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/stores", rr.Header().Get("Location"))
	assert.True(t, repo.stores["83"].ThirdPartyPlatform)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)
}

func TestUpdateUsesURLParam(t *testing.T) {
	repo := seededRepo()
	handler, sessions := newTestHandler(t, NewService(repo, nil))
	form := url.Values{"store_id": {"ignored"}, "store_name": {"Central Rama II"}}
	req, _ := adminRequest(t, sessions, http.MethodPost, "/admin/stores/191", form)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", "191")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.update(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Central Rama II", repo.stores["191"].Name)
	assert.NotContains(t, repo.stores, "ignored")
}

func TestCreateStoreValidationRerenders(t *testing.T) {
	handler, sessions := newTestHandler(t, NewService(seededRepo(), nil))
	req, _ := adminRequest(t, sessions, http.MethodPost, "/admin/stores", url.Values{"store_id": {"x y"}})

	rr := httptest.NewRecorder()
	handler.create(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "This field is required")
}
