package dailysales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mxstorebi/mxstorebi/internal/attachments"
	"github.com/mxstorebi/mxstorebi/internal/platform/cache"
	"github.com/mxstorebi/mxstorebi/internal/platform/httpx"
	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/view"
)

type reportService interface {
	Load(ctx context.Context, actor shared.Principal, storeID, date, step string) (FormState, error)
	SaveStep(ctx context.Context, actor shared.Principal, form StepForm, upload *attachments.Upload) (SaveResult, error)
	List(ctx context.Context, actor shared.Principal, q ListQuery, page int) (ListResult, error)
	ExportRows(ctx context.Context, actor shared.Principal, q ListQuery) ([]Report, error)
	Detail(ctx context.Context, actor shared.Principal, id int64) (Detail, error)
	Review(ctx context.Context, actor shared.Principal, id int64, form ReviewForm) (Report, error)
	Archive(ctx context.Context, actor shared.Principal, id int64) (Report, error)
	Tolerance() decimal.Decimal
}

// PDFRenderer turns an HTML document into a PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// Handler serves the daily report workflow.
type Handler struct {
	logger    *slog.Logger
	service   reportService
	pdf       PDFRenderer
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	maxUpload int64
}

func NewHandler(logger *slog.Logger, service reportService, pdf PDFRenderer, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = attachments.DefaultMaxBytes
	}
	return &Handler{logger: logger, service: service, pdf: pdf, templates: templates, csrf: csrf, rbac: rbac, maxUpload: maxUpload}
}

// MountRoutes registers routes under /reports.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsSubmit))
		r.Get("/daily", h.showDaily)
		r.Post("/daily", h.saveDaily)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.detail)
		r.Get("/{id}/pdf", h.detailPDF)
	})
	r.With(h.rbac.RequireAny(shared.PermReportsExport)).Get("/export.xlsx", h.exportXLSX)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermReportsView, shared.PermReportsReview))
		r.Post("/{id}/review", h.review)
		r.Post("/{id}/archive", h.archive)
	})
}

// MountAPI registers JSON routes under /api/reports.
func (h *Handler) MountAPI(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermReportsView)).Get("/{id}", h.detailJSON)
}

func dailyURL(storeID string, day time.Time, step Step) string {
	v := url.Values{}
	v.Set("store_id", storeID)
	v.Set("report_date", day.Format(DateLayout))
	if step != "" {
		v.Set("step", string(step))
	}
	return "/reports/daily?" + v.Encode()
}

func (h *Handler) showDaily(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	state, err := h.service.Load(r.Context(), actor, q.Get("store_id"), q.Get("report_date"), q.Get("step"))
	if err != nil {
		h.fail(w, r, err, "load daily report failed")
		return
	}
	if state.NoStore {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "No store is assigned to your account. Ask an administrator to assign one."})
		}
	}
	h.renderDaily(w, r, state, shared.ValidationErrors{}, http.StatusOK)
}

func (h *Handler) renderDaily(w http.ResponseWriter, r *http.Request, state FormState, errs shared.ValidationErrors, status int) {
	data := map[string]any{
		"State":     state,
		"Errors":    errs,
		"Progress":  state.Report.Progress(state.Step),
		"Statuses":  Statuses(),
		"MaxUpload": h.maxUpload,
	}
	h.render(w, r, "pages/reports/daily.html", "Daily sales report", data, status)
}

func (h *Handler) saveDaily(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.redirectWithFlash(w, r, "/reports/daily", "danger", attachments.ErrTooLarge.SafeMessage())
			return
		}
		h.logger.Warn("parse daily report form", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/reports/daily", "danger", "The form could not be read, try again")
		return
	}
	form := StepFormFromValues(r.PostForm)
	actor, _ := shared.PrincipalFromContext(r.Context())

	var upload *attachments.Upload
	if field, _ := form.Step.UploadField(); field != "" && r.MultipartForm != nil {
		if file, header, err := r.FormFile(field); err == nil {
			defer file.Close()
			upload = &attachments.Upload{Filename: header.Filename, Size: header.Size, Body: file}
		}
	}

	result, err := h.service.SaveStep(r.Context(), actor, form, upload)
	if err != nil {
		var fields shared.ValidationErrors
		switch {
		case errors.As(err, &fields):
			state, loadErr := h.service.Load(r.Context(), actor, form.StoreID, form.ReportDate, string(form.Step))
			if loadErr != nil {
				h.fail(w, r, loadErr, "reload daily report failed")
				return
			}
			for k, v := range form.Values {
				state.Values[k] = v
			}
			h.renderDaily(w, r, state, fields, http.StatusBadRequest)
		case errors.Is(err, shared.ErrAlreadyProcessed):
			h.redirectWithFlash(w, r, dailyURLRaw(form), "info", "This step was already saved")
		case errors.Is(err, ErrReportSubmitted):
			h.redirectWithFlash(w, r, dailyURLRaw(form), "warning", ErrReportSubmitted.SafeMessage())
		case errors.Is(err, ErrStepsIncomplete):
			h.redirectWithFlash(w, r, dailyURLRaw(form), "warning", ErrStepsIncomplete.SafeMessage())
		case errors.Is(err, cache.ErrLockBusy):
			h.redirectWithFlash(w, r, dailyURLRaw(form), "danger", "The report is being saved by someone else, please try again")
		case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrNotFound):
			h.fail(w, r, err, "save daily report")
		default:
			h.logger.Error("save daily report failed", slog.String("store_id", form.StoreID), slog.Any("error", err))
			h.redirectWithFlash(w, r, dailyURLRaw(form), "danger", shared.UserSafeMessage(err))
		}
		return
	}

	msg := "Daily report updated"
	switch {
	case form.Step == StepSubmit:
		msg = "Daily report submitted"
	case result.Created:
		msg = "New daily report created"
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && result.UploadErr != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "The file was not saved: " + shared.UserSafeMessage(result.UploadErr)})
	}
	h.redirectWithFlash(w, r, dailyURL(result.Report.StoreID, result.Report.ReportDate, result.Report.NextStep()), "success", msg)
}

func dailyURLRaw(form StepForm) string {
	v := url.Values{}
	v.Set("store_id", form.StoreID)
	v.Set("report_date", form.ReportDate)
	return "/reports/daily?" + v.Encode()
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	q := ListQueryFromValues(r.URL.Query())
	result, err := h.service.List(r.Context(), actor, q, shared.PageFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err, "list reports failed")
		return
	}
	h.render(w, r, "pages/reports/list.html", "Daily reports", map[string]any{
		"Result":      result,
		"QueryValues": q.Values(),
		"Statuses":    Statuses(),
		"Tolerance":   h.service.Tolerance(),
	}, http.StatusOK)
}

func reportID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	d, err := h.service.Detail(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err, "load report failed")
		return
	}
	h.render(w, r, "pages/reports/detail.html", "Daily report", map[string]any{
		"Detail":   d,
		"Statuses": Statuses(),
		"Errors":   shared.ValidationErrors{},
	}, http.StatusOK)
}

// reportJSON is the API representation of a report.
type reportJSON struct {
	ID                 int64                    `json:"id"`
	StoreID            string                   `json:"store_id"`
	StoreName          string                   `json:"store_name"`
	ReportDate         string                   `json:"report_date"`
	CreatedBy          string                   `json:"created_by"`
	Figures            map[string]string        `json:"figures"`
	POSCompleted       bool                     `json:"pos_info_completed"`
	TakeawayCompleted  bool                     `json:"takeaway_info_completed"`
	BankCompleted      bool                     `json:"bank_info_completed"`
	Submitted          bool                     `json:"is_submitted"`
	Status             Status                   `json:"financial_check_status"`
	Archived           bool                     `json:"archived"`
	Remark             string                   `json:"remark"`
	Reconciliation     map[string]string        `json:"reconciliation"`
	Balanced           bool                     `json:"balanced"`
	Attachments        []attachments.Attachment `json:"attachments"`
	SubmittedAt        *time.Time               `json:"submitted_at,omitempty"`
	ArchivedAt         *time.Time               `json:"archived_at,omitempty"`
	ThirdPartyPlatform bool                     `json:"third_party_platform"`
}

func toJSON(d Detail) reportJSON {
	rec := d.Reconciliation
	figures := d.Report.FormValues()
	if d.Report.VerifiedBankAmount.Valid {
		figures["verified_bank_amount"] = d.Report.VerifiedBankAmount.Decimal.StringFixed(2)
	}
	if d.Report.VerifiedVoucherAmount.Valid {
		figures["verified_voucher_amount"] = d.Report.VerifiedVoucherAmount.Decimal.StringFixed(2)
	}
	files := d.Attachments
	if files == nil {
		files = []attachments.Attachment{}
	}
	return reportJSON{
		ID:                 d.Report.ID,
		StoreID:            d.Report.StoreID,
		StoreName:          d.Report.StoreName,
		ReportDate:         d.Report.Day(),
		CreatedBy:          d.Report.CreatedBy,
		Figures:            figures,
		POSCompleted:       d.Report.POSCompleted,
		TakeawayCompleted:  d.Report.TakeawayCompleted,
		BankCompleted:      d.Report.BankCompleted,
		Submitted:          d.Report.Submitted,
		Status:             d.Report.Status,
		Archived:           d.Report.Archived,
		Remark:             d.Report.Remark,
		ThirdPartyPlatform: d.Report.ThirdPartyPlatform,
		SubmittedAt:        d.Report.SubmittedAt,
		ArchivedAt:         d.Report.ArchivedAt,
		Attachments:        files,
		Balanced:           rec.Balanced(),
		Reconciliation: map[string]string{
			"pos_total":           rec.POSTotal.StringFixed(2),
			"expected_cash":       rec.ExpectedCash.StringFixed(2),
			"expected_electronic": rec.ExpectedElectronic.StringFixed(2),
			"expected_bank":       rec.ExpectedBank.StringFixed(2),
			"bank_variance":       rec.BankVariance.StringFixed(2),
			"takeaway_variance":   rec.TakeawayVariance.StringFixed(2),
			"actual_sales":        rec.ActualSales.StringFixed(2),
		},
	}
}

func (h *Handler) detailJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown report")
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	d, err := h.service.Detail(r.Context(), actor, id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrForbidden) {
			h.logger.Error("report json failed", slog.Int64("report_id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJSON(d))
}

func (h *Handler) detailPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	d, err := h.service.Detail(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err, "load report failed")
		return
	}
	html, err := h.templates.Execute("pdf/daily_report.html", map[string]any{"Detail": d, "GeneratedAt": time.Now()})
	if err != nil {
		h.logger.Error("render report html", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render report pdf", slog.Int64("report_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=daily-report-%s-%s.pdf", d.Report.StoreID, d.Report.Day()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	rows, err := h.service.ExportRows(r.Context(), actor, ListQueryFromValues(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err, "export reports failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=daily-reports.xlsx")
	if err := WriteXLSX(w, rows, h.service.Tolerance()); err != nil {
		h.logger.Error("write xlsx", slog.Any("error", err))
	}
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	form := ReviewForm{
		Status:          r.PostFormValue("financial_check_status"),
		VerifiedBank:    r.PostFormValue("verified_bank_amount"),
		VerifiedVoucher: r.PostFormValue("verified_voucher_amount"),
		Remark:          r.PostFormValue("remark"),
	}
	target := fmt.Sprintf("/reports/%d", id)
	rep, err := h.service.Review(r.Context(), actor, id, form)
	if err != nil {
		var fields shared.ValidationErrors
		switch {
		case errors.As(err, &fields):
			d, loadErr := h.service.Detail(r.Context(), actor, id)
			if loadErr != nil {
				h.fail(w, r, loadErr, "reload report failed")
				return
			}
			h.render(w, r, "pages/reports/detail.html", "Daily report", map[string]any{
				"Detail":     d,
				"Statuses":   Statuses(),
				"Errors":     fields,
				"ReviewForm": form,
			}, http.StatusBadRequest)
		case errors.Is(err, ErrNotReviewable):
			h.redirectWithFlash(w, r, target, "warning", ErrNotReviewable.SafeMessage())
		default:
			h.fail(w, r, err, "review report failed")
		}
		return
	}
	msg := "Review saved: " + rep.Status.Label()
	if !rep.Submitted {
		msg = "Report sent back to the store for remediation"
	}
	h.redirectWithFlash(w, r, target, "success", msg)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	target := fmt.Sprintf("/reports/%d", id)
	if _, err := h.service.Archive(r.Context(), actor, id); err != nil {
		if errors.Is(err, ErrNotArchivable) {
			h.redirectWithFlash(w, r, target, "warning", ErrNotArchivable.SafeMessage())
			return
		}
		h.fail(w, r, err, "archive report failed")
		return
	}
	h.redirectWithFlash(w, r, target, "success", "Report archived")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		h.render(w, r, "pages/error.html", "Not found", map[string]any{"Message": "The requested report was not found"}, http.StatusNotFound)
	case errors.Is(err, shared.ErrForbidden):
		h.render(w, r, "pages/error.html", "Forbidden", map[string]any{"Message": shared.UserSafeMessage(err)}, http.StatusForbidden)
	default:
		h.logger.Error(msg, slog.Any("error", err))
		h.render(w, r, "pages/error.html", "Error", map[string]any{"Message": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	if err := h.templates.RenderStatus(w, status, template, view.Page(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
