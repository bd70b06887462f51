package audithttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/audit"
	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func newAuditHandler(t *testing.T, service *stubTimelineService) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), service, templates, nil, rbac.Middleware{})
	handler.now = func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) }
	return handler
}

func withPrincipal(req *http.Request, role shared.Role) *http.Request {
	return req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 7, Username: "someone", Role: role}))
}

func TestTimelineRequiresPermission(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{})
	router := chi.NewRouter()
	router.Route("/admin/audit", handler.MountRoutes)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/admin/audit/", nil), shared.RoleEmployee)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestTimelineRendersRows(t *testing.T) {
	rows := []audit.TimelineRow{{At: time.Date(2026, 10, 10, 10, 0, 0, 0, time.UTC), Actor: "finance", Action: "report.review", Entity: "daily_sales", EntityID: "42"}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	handler := newAuditHandler(t, service)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/admin/audit/?from=2026-10-01&to=2026-10-15&actor=fin", nil), shared.RoleAdmin)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "report.review") {
		t.Fatalf("expected action in body")
	}
	if service.lastFilters.Actor != "fin" || service.lastFilters.PageSize != defaultPageSize {
		t.Fatalf("unexpected filters %+v", service.lastFilters)
	}
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{}
	handler := newAuditHandler(t, service)
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/admin/audit/", nil), shared.RoleAdmin)
	handler.handleTimeline(httptest.NewRecorder(), req)
	if got := service.lastFilters.From.Format("2006-01-02"); got != "2026-10-08" {
		t.Fatalf("unexpected default from %s", got)
	}
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{})
	for _, target := range []string{
		"/admin/audit/?from=bad",
		"/admin/audit/?from=2026-10-10&to=2026-10-01",
		"/admin/audit/?from=2026-01-01&to=2026-10-01",
		"/admin/audit/?page=0",
	} {
		rr := httptest.NewRecorder()
		handler.handleTimeline(rr, withPrincipal(httptest.NewRequest(http.MethodGet, target, nil), shared.RoleAdmin))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{At: time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC), Actor: "admin", Action: "user.create", Entity: "user", EntityID: "3"}}}
	handler := newAuditHandler(t, service)
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/admin/audit/export.csv?page_size=500", nil), shared.RoleAdmin)
	rr := httptest.NewRecorder()
	handler.handleExport(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "admin,user.create,user,3") {
		t.Fatalf("unexpected csv %q", rr.Body.String())
	}
	if service.lastFilters.PageSize != maxPageSize {
		t.Fatalf("page size not clamped: %d", service.lastFilters.PageSize)
	}
}

func TestRateLimitKeyPrefersUser(t *testing.T) {
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), shared.RoleAdmin)
	key, err := rateLimitKey(req)
	if err != nil || key != "user:7" {
		t.Fatalf("unexpected key %q (%v)", key, err)
	}
	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	key, err = rateLimitKey(anon)
	if err != nil || !strings.HasPrefix(key, "ip:") {
		t.Fatalf("unexpected key %q (%v)", key, err)
	}
}
