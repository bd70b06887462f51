package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/mxstorebi/mxstorebi/internal/auth"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
	"github.com/mxstorebi/mxstorebi/internal/users"
	"github.com/mxstorebi/mxstorebi/internal/view"
	_ "github.com/mxstorebi/mxstorebi/testing"
)

type stubRepo struct {
	user    *auth.User
	touched int64
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	s.touched = userID
	return nil
}

type stubRegistrar struct {
	createFn func(ctx context.Context, actorID int64, in users.CreateInput) (users.User, error)
}

func (s stubRegistrar) Create(ctx context.Context, actorID int64, in users.CreateInput) (users.User, error) {
	return s.createFn(ctx, actorID, in)
}

type stubStores struct{}

func (stubStores) List(ctx context.Context) ([]stores.Store, error) {
	return []stores.Store{{ID: "190", Name: "Central WestGate"}}, nil
}

type harness struct {
	handler  *auth.Handler
	sessions *shared.SessionManager
	redis    *miniredis.Miniredis
}

func newAuthHandler(t *testing.T, repo auth.Repository, reg stubRegistrar) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	handler := auth.NewHandler(nil, auth.NewService(repo, nil), reg, stubStores{}, templates, sessionManager, csrfManager)
	return harness{handler: handler, sessions: sessionManager, redis: mr}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

// serve runs fn with a session loaded from req and commits it afterwards.
func (h harness) serve(t *testing.T, req *http.Request, fn http.HandlerFunc) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := h.sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	fn(res, req)
	if err := h.sessions.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	h := newAuthHandler(t, &stubRepo{}, stubRegistrar{})

	res, _ := h.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), h.handler.ShowLoginForTest)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 1, Username: "store190", PasswordHash: hashed(t, "correctpass"), IsActive: true}}
	h := newAuthHandler(t, repo, stubRegistrar{})

	res, _ := h.serve(t, postForm("/auth/login", url.Values{"username": {"store190"}, "password": {"wrongpass"}}), h.handler.HandleLoginForTest)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid username or password, or the account is disabled") {
		t.Fatalf("expected error message in response")
	}
	if repo.touched != 0 {
		t.Fatalf("last login must not be touched on failure")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 2, Username: "former", PasswordHash: hashed(t, "secret1"), IsActive: false}}
	h := newAuthHandler(t, repo, stubRegistrar{})

	res, sess := h.serve(t, postForm("/auth/login", url.Values{"username": {"former"}, "password": {"secret1"}}), h.handler.HandleLoginForTest)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if sess.User() != "" {
		t.Fatalf("disabled account must not be logged in")
	}
}

func TestLoginSuccessRotatesSessionAndRemembers(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 7, Username: "store190", PasswordHash: hashed(t, "secret1"), IsActive: true}}
	h := newAuthHandler(t, repo, stubRegistrar{})

	// Prime an anonymous session first.
	getRes, primed := h.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), h.handler.ShowLoginForTest)
	if getRes.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRes.Code)
	}
	oldID := primed.ID

	req := postForm("/auth/login", url.Values{
		"username": {"store190"}, "password": {"secret1"}, "remember_me": {"on"}, "next": {"/reports?page=2"},
	})
	req.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: oldID})
	res, sess := h.serve(t, req, h.handler.HandleLoginForTest)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := res.Header().Get("Location"); got != "/reports?page=2" {
		t.Fatalf("unexpected redirect %s", got)
	}
	if sess.ID == oldID {
		t.Fatalf("session id must change on login")
	}
	if h.redis.Exists("session:" + oldID) {
		t.Fatalf("old session record must be removed")
	}
	if sess.User() != "7" || !sess.Remembered() {
		t.Fatalf("expected remembered session for user 7")
	}
	if ttl := h.redis.TTL("session:" + sess.ID); ttl != shared.RememberTTL {
		t.Fatalf("expected remember ttl, got %s", ttl)
	}
	if repo.touched != 7 {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestLoginIgnoresExternalNext(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 7, Username: "store190", PasswordHash: hashed(t, "secret1"), IsActive: true}}
	h := newAuthHandler(t, repo, stubRegistrar{})

	res, _ := h.serve(t, postForm("/auth/login", url.Values{
		"username": {"store190"}, "password": {"secret1"}, "next": {"//evil.example"},
	}), h.handler.HandleLoginForTest)

	if got := res.Header().Get("Location"); got != "/dashboard" {
		t.Fatalf("expected dashboard redirect, got %s", got)
	}
}

func TestRegisterFieldErrors(t *testing.T) {
	reg := stubRegistrar{createFn: func(ctx context.Context, actorID int64, in users.CreateInput) (users.User, error) {
		if actorID != 0 {
			t.Fatalf("self registration must not carry an actor")
		}
		return users.User{}, shared.ValidationErrors{"store_id": "Store staff must select a store"}
	}}
	h := newAuthHandler(t, &stubRepo{}, reg)

	res, sess := h.serve(t, postForm("/auth/register", url.Values{
		"username": {"clerk"}, "password": {"secret1"}, "confirm_password": {"secret1"}, "role": {"employee"},
	}), h.handler.HandleRegisterForTest)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Store staff must select a store") {
		t.Fatalf("expected store error in body")
	}
	if sess.User() != "" {
		t.Fatalf("failed registration must not log in")
	}
}

func TestRegisterLogsIn(t *testing.T) {
	reg := stubRegistrar{createFn: func(ctx context.Context, actorID int64, in users.CreateInput) (users.User, error) {
		return users.User{ID: 12, Username: in.Username}, nil
	}}
	h := newAuthHandler(t, &stubRepo{}, reg)

	res, sess := h.serve(t, postForm("/auth/register", url.Values{
		"username": {"clerk"}, "password": {"secret1"}, "confirm_password": {"secret1"}, "role": {"employee"}, "store_id": {"190"},
	}), h.handler.HandleRegisterForTest)

	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to dashboard, got %d %s", res.Code, res.Header().Get("Location"))
	}
	if sess.User() != "12" {
		t.Fatalf("expected user 12 in session, got %q", sess.User())
	}
	flash := sess.PopFlash()
	if flash == nil || flash.Kind != "success" {
		t.Fatalf("expected success flash")
	}
}

func TestLogoutKeepsFlash(t *testing.T) {
	h := newAuthHandler(t, &stubRepo{}, stubRegistrar{})
	req := postForm("/auth/logout", url.Values{})
	sess, err := h.sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetUser("7")
	ctx := shared.ContextWithSession(req.Context(), sess)

	res := httptest.NewRecorder()
	h.handler.HandleLogoutForTest(res, req.WithContext(ctx))

	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/auth/login" {
		t.Fatalf("expected redirect to login")
	}
	if sess.User() != "" {
		t.Fatalf("expected user cleared")
	}
	if flash := sess.PopFlash(); flash == nil || flash.Kind != "info" {
		t.Fatalf("expected logout flash")
	}
}
