package rbac

import (
	"context"
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

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

type stubStore struct {
	calls      int
	principals map[int64]shared.Principal
}

func (s *stubStore) LoadPrincipal(ctx context.Context, userID int64) (shared.Principal, error) {
	s.calls++
	p, ok := s.principals[userID]
	if !ok {
		return shared.Principal{}, shared.ErrNotFound
	}
	return p, nil
}

func newTestService(t *testing.T, store *stubStore) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(store, client, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestBuildMatrixMatchesRoleTable(t *testing.T) {
	m := BuildMatrix()
	require.Len(t, m.Roles, 5)
	require.Len(t, m.Rows, len(shared.CoreScopes()))

	for _, row := range m.Rows {
		assert.True(t, row.Granted[0], "admin must hold %s", row.Permission)
		if row.Permission == shared.PermReportsReview {
			assert.Equal(t, []bool{true, false, true, false, false}, row.Granted)
		}
	}
}

func TestServiceCachesPrincipal(t *testing.T) {
	store := &stubStore{principals: map[int64]shared.Principal{
		7: {UserID: 7, Username: "cashier", Role: shared.RoleEmployee, StoreID: "190"},
	}}
	svc, mr := newTestService(t, store)
	ctx := context.Background()

	perms, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{shared.PermReportsSubmit, shared.PermReportsView}, perms)

	_, err = svc.Principal(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, DefaultCacheTTL, mr.TTL("rbac:principal:7"))

	require.NoError(t, svc.Invalidate(ctx, 7))
	_, err = svc.Principal(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestServiceUnknownUser(t *testing.T) {
	svc, _ := newTestService(t, &stubStore{})
	_, err := svc.Principal(context.Background(), 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAnyWithoutPrincipalRedirects(t *testing.T) {
	mw := Middleware{}
	req := httptest.NewRequest(http.MethodGet, "/reports?page=2", nil)
	rec := httptest.NewRecorder()

	mw.RequireAny(shared.PermReportsView)(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login?next=%2Freports%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestRequireAnyChecksRole(t *testing.T) {
	mw := Middleware{}
	guarded := mw.RequireAny(shared.PermReportsReview)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/reports/1/review", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleEmployee}))
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 2, Role: shared.RoleFinance}))
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	guarded := Middleware{}.RequireAll(shared.PermReportsView, shared.PermReportsReview)(okHandler())
	for role, want := range map[shared.Role]int{
		shared.RoleFinance:     http.StatusNoContent,
		shared.RoleAdmin:       http.StatusNoContent,
		shared.RoleHeadManager: http.StatusForbidden,
		shared.RoleEmployee:    http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/reports/1/archive", nil)
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 4, Role: role}))
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestRequireRoles(t *testing.T) {
	guarded := Middleware{}.RequireRoles(shared.RoleAdmin)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 3, Role: shared.RoleHeadManager}))
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoadPrincipalLogsOutDisabledAccount(t *testing.T) {
	svc, _ := newTestService(t, &stubStore{})
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("55")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	var sawPrincipal bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawPrincipal = shared.PrincipalFromContext(r.Context())
	})
	Middleware{Service: svc}.LoadPrincipal(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.False(t, sawPrincipal)
	assert.Empty(t, sess.User())
}

func TestLoadPrincipalAttachesActor(t *testing.T) {
	store := &stubStore{principals: map[int64]shared.Principal{9: {UserID: 9, Username: "boss", Role: shared.RoleAdmin}}}
	svc, _ := newTestService(t, store)
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("9")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	var got shared.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.PrincipalFromContext(r.Context())
	})
	Middleware{Service: svc}.LoadPrincipal(next).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "boss", got.Username)
}
