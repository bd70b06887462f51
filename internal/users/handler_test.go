package users

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
	"github.com/mxstorebi/mxstorebi/internal/staff"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type noStaff struct{}

func (noStaff) ForUser(ctx context.Context, userID int64) (staff.StoreStaff, error) {
	return staff.StoreStaff{}, shared.ErrNotFound
}

func newTestHandlers(t *testing.T, repo *memRepo) (*Handler, *ProfileHandler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, _ := newTestService(repo)
	return NewHandler(logger, svc, testStores, templates, csrf, rbac.Middleware{}),
		NewProfileHandler(logger, svc, noStaff{}, templates, csrf, rbac.Middleware{}),
		sessions
}

func newRequest(t *testing.T, sessions *shared.SessionManager, actor shared.Principal, method, target string, form url.Values, id string) (*http.Request, *shared.Session) {
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
	ctx = shared.ContextWithPrincipal(ctx, actor)
	if id != "" {
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx), sess
}

func TestListUsersRendersUsernames(t *testing.T) {
	repo := newMemRepo(User{ID: 1, Username: "admin", Role: shared.RoleAdmin}, User{ID: 2, Username: "store190", Role: shared.RoleEmployee})
	handler, _, sessions := newTestHandlers(t, repo)
	req, _ := newRequest(t, sessions, admin, http.MethodGet, "/admin/users?q=store", nil, "")

	rr := httptest.NewRecorder()
	handler.listUsers(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "store190")
	assert.NotContains(t, rr.Body.String(), "/admin/users/1\"")
}

func TestShowUserMissingIs404(t *testing.T) {
	handler, _, sessions := newTestHandlers(t, newMemRepo())
	req, _ := newRequest(t, sessions, admin, http.MethodGet, "/admin/users/42", nil, "42")

	rr := httptest.NewRecorder()
	handler.showUser(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateUserRedirectsToDetail(t *testing.T) {
	repo := newMemRepo(User{ID: 1, Username: "admin", Role: shared.RoleAdmin})
	handler, _, sessions := newTestHandlers(t, repo)
	form := url.Values{
		"username": {"store190"}, "password": {"secret1"}, "confirm_password": {"secret1"},
		"role": {"branch_manager"}, "store_id": {"190"}, "real_name": {"Manager"},
	}
	req, sess := newRequest(t, sessions, admin, http.MethodPost, "/admin/users/new", form, "")

	rr := httptest.NewRecorder()
	handler.createUser(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/users/2", rr.Header().Get("Location"))
	assert.Equal(t, "190", repo.users[2].StoreID)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)
}

func TestCreateUserValidationRerenders(t *testing.T) {
	handler, _, sessions := newTestHandlers(t, newMemRepo())
	form := url.Values{"username": {"clerk"}, "password": {"secret1"}, "confirm_password": {"secret1"}, "role": {"employee"}}
	req, _ := newRequest(t, sessions, admin, http.MethodPost, "/admin/users/new", form, "")

	rr := httptest.NewRecorder()
	handler.createUser(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Store staff must select a store")
}

func TestDeleteSelfFlashesDanger(t *testing.T) {
	repo := newMemRepo(User{ID: 1, Username: "admin", Role: shared.RoleAdmin})
	handler, _, sessions := newTestHandlers(t, repo)
	req, sess := newRequest(t, sessions, admin, http.MethodPost, "/admin/users/1/delete", url.Values{}, "1")

	rr := httptest.NewRecorder()
	handler.deleteUser(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, repo.users, int64(1))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "danger", flash.Kind)
	assert.Equal(t, ErrSelfDelete.Message, flash.Message)
}

func TestResetPasswordFlashesNewPassword(t *testing.T) {
	repo := newMemRepo(User{ID: 2, Username: "clerk", Role: shared.RoleEmployee})
	handler, _, sessions := newTestHandlers(t, repo)
	req, sess := newRequest(t, sessions, admin, http.MethodPost, "/admin/users/2/reset-password", url.Values{}, "2")

	rr := httptest.NewRecorder()
	handler.resetPassword(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/users/2", rr.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Contains(t, flash.Message, "123456")
}

func TestProfileEditRedirectsWhenLocked(t *testing.T) {
	repo := newMemRepo(User{ID: 5, Username: "clerk", Role: shared.RoleEmployee, ProfileCompleted: true})
	_, profile, sessions := newTestHandlers(t, repo)
	clerk := shared.Principal{UserID: 5, Username: "clerk", Role: shared.RoleEmployee}
	req, sess := newRequest(t, sessions, clerk, http.MethodGet, "/profile/edit", nil, "")

	rr := httptest.NewRecorder()
	profile.showEdit(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/profile", rr.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "warning", flash.Kind)
}

func TestProfileShowRenders(t *testing.T) {
	repo := newMemRepo(User{ID: 5, Username: "clerk", Role: shared.RoleEmployee, RealName: "Somchai"})
	_, profile, sessions := newTestHandlers(t, repo)
	clerk := shared.Principal{UserID: 5, Username: "clerk", Role: shared.RoleEmployee}
	req, _ := newRequest(t, sessions, clerk, http.MethodGet, "/profile", nil, "")

	rr := httptest.NewRecorder()
	profile.showProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Somchai")
}
