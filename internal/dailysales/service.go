package dailysales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mxstorebi/mxstorebi/internal/attachments"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
)

// LockTTL bounds how long a find-or-create may hold the report lock.
const LockTTL = 10 * time.Second

// RepositoryPort is the persistence the workflow needs.
type RepositoryPort interface {
	Upsert(ctx context.Context, storeID string, day time.Time, userID int64, mutate func(*Report) error) (Report, bool, error)
	FindOpen(ctx context.Context, storeID string, day time.Time) (Report, error)
	Get(ctx context.Context, id int64) (Report, error)
	List(ctx context.Context, f ListFilter) ([]Report, int, error)
	UpdateReview(ctx context.Context, r Report) error
	Archive(ctx context.Context, id int64, at time.Time) error
	ArchivedDuplicates(ctx context.Context) ([]DuplicateCandidate, error)
	DeleteReports(ctx context.Context, ids []int64) (int64, error)
}

// Locker serialises find-or-create per store and date.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// StoreLister resolves which stores an actor may report for.
type StoreLister interface {
	VisibleStores(ctx context.Context, p shared.Principal) ([]stores.Store, error)
}

// AttachmentService stores receipts and lists them.
type AttachmentService interface {
	Upload(ctx context.Context, actor shared.Principal, ref attachments.ReportRef, typ attachments.Type, up attachments.Upload) (attachments.Attachment, error)
	ListForReport(ctx context.Context, reportID int64) ([]attachments.Attachment, error)
}

// CacheBuster invalidates derived summaries after submit, review or archive.
type CacheBuster interface {
	Bump(ctx context.Context) error
}

// Options tunes the service.
type Options struct {
	// Tolerance defaults to DefaultTolerance when nil. Zero means exact matching.
	Tolerance *decimal.Decimal
	PerPage   int
	Location  *time.Location
	Now       func() time.Time
	// Idempotency makes a resubmitted step form a no-op. Optional.
	Idempotency shared.IdempotencyGuard
	// Warmup rebuilds the dashboard in the background after an archive. Optional.
	Warmup Warmer
}

// Warmer schedules an out-of-band dashboard refresh.
type Warmer interface {
	EnqueueDashboardWarmup(ctx context.Context) error
}

type Service struct {
	repo        RepositoryPort
	locker      Locker
	stores      StoreLister
	attachments AttachmentService
	cache       CacheBuster
	audit       shared.AuditRecorder
	logger      *slog.Logger
	opts        Options
	tolerance   decimal.Decimal
}

func NewService(repo RepositoryPort, locker Locker, stores StoreLister, files AttachmentService, cache CacheBuster, audit shared.AuditRecorder, logger *slog.Logger, opts Options) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PerPage <= 0 {
		opts.PerPage = shared.DefaultPerPage
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tolerance := DefaultTolerance
	if opts.Tolerance != nil {
		tolerance = *opts.Tolerance
	}
	return &Service{repo: repo, locker: locker, stores: stores, attachments: files, cache: cache, audit: audit, logger: logger, opts: opts, tolerance: tolerance}
}

// Tolerance is the configured reconciliation tolerance.
func (s *Service) Tolerance() decimal.Decimal { return s.tolerance }

// FormState is everything the daily report page renders.
type FormState struct {
	Stores         []stores.Store
	Store          stores.Store
	Date           time.Time
	Step           Step
	Report         Report
	Exists         bool
	Values         map[string]string
	Attachments    []attachments.Attachment
	Reconciliation Reconciliation
	NoStore        bool
}

// Load resolves the page for a store, date and step. Empty arguments fall back to defaults.
// An actor without any visible store gets an empty state; see FormState.NoStore.
func (s *Service) Load(ctx context.Context, actor shared.Principal, storeID, date, step string) (FormState, error) {
	visible, err := s.stores.VisibleStores(ctx, actor)
	if err != nil {
		return FormState{}, fmt.Errorf("dailysales: visible stores: %w", err)
	}
	state := FormState{Stores: visible}
	if len(visible) == 0 {
		state.NoStore = true
		return state, nil
	}
	state.Store = visible[0]
	if storeID = strings.TrimSpace(storeID); storeID != "" {
		found := false
		for _, st := range visible {
			if st.ID == storeID {
				state.Store, found = st, true
				break
			}
		}
		if !found {
			return state, shared.ErrForbidden
		}
	}
	day, err := ParseDate(date, s.opts.Now(), s.opts.Location)
	if err != nil {
		day, _ = ParseDate("", s.opts.Now(), s.opts.Location)
	}
	state.Date = day

	report, err := s.repo.FindOpen(ctx, state.Store.ID, day)
	switch {
	case err == nil:
		state.Report, state.Exists = report, true
		if s.attachments != nil {
			files, err := s.attachments.ListForReport(ctx, report.ID)
			if err != nil {
				return state, fmt.Errorf("dailysales: attachments: %w", err)
			}
			state.Attachments = files
		}
	case errors.Is(err, shared.ErrNotFound):
		state.Report = Report{StoreID: state.Store.ID, StoreName: state.Store.Name, ThirdPartyPlatform: state.Store.ThirdPartyPlatform, ReportDate: day, Status: StatusPending}
	default:
		return state, fmt.Errorf("dailysales: find report: %w", err)
	}
	state.Values = state.Report.FormValues()
	state.Reconciliation = Reconcile(state.Report, s.tolerance)
	if parsed, ok := ParseStep(step); ok {
		state.Step = parsed
	} else {
		state.Step = state.Report.NextStep()
	}
	return state, nil
}

// SaveResult describes a successful step save.
type SaveResult struct {
	Report     Report
	Created    bool
	Attachment *attachments.Attachment
	// UploadErr is set when the step saved but its file was rejected.
	UploadErr error
}

// SaveStep validates and stores one step of the report for form.StoreID and form.ReportDate.
// The row is found or created under a distributed lock; submitted rows are refused.
func (s *Service) SaveStep(ctx context.Context, actor shared.Principal, form StepForm, upload *attachments.Upload) (SaveResult, error) {
	errs := shared.ValidationErrors{}
	step, ok := ParseStep(string(form.Step))
	if !ok {
		errs.Add("step", "Unknown step")
	}
	form.Step = step
	day, err := time.Parse(DateLayout, form.ReportDate)
	if err != nil {
		errs.Add("report_date", "Enter a valid date")
	}
	if form.StoreID == "" {
		errs.Add("store_id", "This field is required")
	}
	if upload != nil && upload.Filename != "" {
		field, _ := step.UploadField()
		if _, err := attachments.CheckName(upload.Filename); err != nil && field != "" {
			errs.Add(field, shared.UserSafeMessage(err))
		}
	}
	if len(errs) > 0 {
		return SaveResult{}, errs
	}
	if !actor.CanSeeStore(form.StoreID) {
		return SaveResult{}, shared.ErrForbidden
	}

	var result SaveResult
	err = shared.Guarded(ctx, s.opts.Idempotency, form.RequestKey, "dailysales.step", func() error {
		var err error
		result, err = s.saveStep(ctx, actor, form, day, upload)
		return err
	})
	return result, err
}

func (s *Service) saveStep(ctx context.Context, actor shared.Principal, form StepForm, day time.Time, upload *attachments.Upload) (SaveResult, error) {
	step := form.Step
	unlock, err := s.locker.Lock(ctx, shared.ReportLockKey(form.StoreID, day), LockTTL)
	if err != nil {
		return SaveResult{}, fmt.Errorf("dailysales: lock: %w", err)
	}
	defer unlock()

	now := s.opts.Now()
	report, created, err := s.repo.Upsert(ctx, form.StoreID, day, actor.UserID, func(r *Report) error {
		if r.Submitted {
			return ErrReportSubmitted
		}
		return ApplyStep(r, form, r.ThirdPartyPlatform, now)
	})
	if err != nil {
		return SaveResult{}, err
	}

	action := shared.AuditReportSave
	if step == StepSubmit {
		action = shared.AuditReportSubmit
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "daily_sales",
		EntityID: strconv.FormatInt(report.ID, 10),
		Meta:     map[string]any{"store_id": report.StoreID, "report_date": report.Day(), "step": string(step), "created": created},
	})

	if step == StepSubmit {
		s.bust(ctx)
	}

	result := SaveResult{Report: report, Created: created}
	if upload != nil && upload.Filename != "" && s.attachments != nil {
		if _, typ := step.UploadField(); typ != "" {
			a, err := s.attachments.Upload(ctx, actor, report.Ref(), typ, *upload)
			if err != nil {
				s.logger.Warn("step upload rejected", slog.Int64("report_id", report.ID), slog.Any("error", err))
				result.UploadErr = err
			} else {
				result.Attachment = &a
			}
		}
	}
	return result, nil
}

// Detail is a report with its derived figures and files.
type Detail struct {
	Report         Report
	Reconciliation Reconciliation
	Attachments    []attachments.Attachment
}

// Get loads a report the actor may see.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (Report, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !actor.CanSeeStore(r.StoreID) {
		return Report{}, shared.ErrForbidden
	}
	return r, nil
}

// Detail loads a report together with its reconciliation and attachments.
func (s *Service) Detail(ctx context.Context, actor shared.Principal, id int64) (Detail, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Report: r, Reconciliation: Reconcile(r, s.tolerance)}
	if s.attachments != nil {
		if d.Attachments, err = s.attachments.ListForReport(ctx, id); err != nil {
			return Detail{}, fmt.Errorf("dailysales: attachments: %w", err)
		}
	}
	return d, nil
}

// ReviewForm is the finance review input.
type ReviewForm struct {
	Status          string
	VerifiedBank    string
	VerifiedVoucher string
	Remark          string
}

// Review records the finance check. REQUIRES_REMEDIATION sends the report back to the store.
func (s *Service) Review(ctx context.Context, actor shared.Principal, id int64, form ReviewForm) (Report, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return Report{}, err
	}
	if err := ValidateReview(r); err != nil {
		return Report{}, err
	}
	errs := shared.ValidationErrors{}
	status, ok := ParseStatus(strings.TrimSpace(form.Status))
	if !ok {
		errs.Add("financial_check_status", "Choose a valid status")
	}
	bank := parseAmount(form.VerifiedBank, amountRule{field: "verified_bank_amount"}, errs)
	voucher := parseAmount(form.VerifiedVoucher, amountRule{field: "verified_voucher_amount"}, errs)
	remark := strings.TrimSpace(form.Remark)
	if len(remark) > 1000 {
		errs.Add("remark", "Must be at most 1000 characters")
	}
	if status == StatusRequiresRemediation && remark == "" {
		errs.Add("remark", "Explain what the store needs to fix")
	}
	if len(errs) > 0 {
		return Report{}, errs
	}
	r.Status, r.VerifiedBankAmount, r.VerifiedVoucherAmount, r.Remark = status, bank, voucher, remark
	if status == StatusRequiresRemediation {
		r.Submitted = false
		r.SubmittedAt = nil
	}
	if err := s.repo.UpdateReview(ctx, r); err != nil {
		return Report{}, fmt.Errorf("dailysales: review: %w", err)
	}
	s.bust(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditReportReview,
		Entity:   "daily_sales",
		EntityID: strconv.FormatInt(r.ID, 10),
		Meta:     map[string]any{"status": string(status), "reopened": !r.Submitted},
	})
	return r, nil
}

// Archive finalises a checked report and invalidates the dashboard.
func (s *Service) Archive(ctx context.Context, actor shared.Principal, id int64) (Report, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return Report{}, err
	}
	if err := ValidateArchive(r); err != nil {
		return Report{}, err
	}
	at := s.opts.Now()
	if err := s.repo.Archive(ctx, id, at); err != nil {
		return Report{}, fmt.Errorf("dailysales: archive: %w", err)
	}
	r.Archived, r.ArchivedAt = true, &at
	s.bust(ctx)
	if s.opts.Warmup != nil {
		if err := s.opts.Warmup.EnqueueDashboardWarmup(ctx); err != nil {
			s.logger.Warn("enqueue dashboard warmup", slog.Any("error", err))
		}
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditReportArchive,
		Entity:   "daily_sales",
		EntityID: strconv.FormatInt(r.ID, 10),
		Meta:     map[string]any{"store_id": r.StoreID, "report_date": r.Day()},
	})
	return r, nil
}

// bust invalidates the dashboard after a change to pending or archived counts.
func (s *Service) bust(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump dashboard cache", slog.Any("error", err))
	}
}

// ListQuery is the raw filter of the report list.
type ListQuery struct {
	StoreID  string
	From     string
	To       string
	Status   string
	Archived string
}

// ListQueryFromValues reads the filter from a query string.
func ListQueryFromValues(v url.Values) ListQuery {
	return ListQuery{
		StoreID:  strings.TrimSpace(v.Get("store_id")),
		From:     strings.TrimSpace(v.Get("from")),
		To:       strings.TrimSpace(v.Get("to")),
		Status:   strings.TrimSpace(v.Get("status")),
		Archived: strings.TrimSpace(v.Get("archived")),
	}
}

// Values encodes the filter for pagination links.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	for k, val := range map[string]string{"store_id": q.StoreID, "from": q.From, "to": q.To, "status": q.Status, "archived": q.Archived} {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// Filter scopes q to the actor. Unparseable values are ignored.
func (q ListQuery) Filter(actor shared.Principal) ListFilter {
	var f ListFilter
	if !actor.Role.IsManagement() {
		f.StoreIDs = []string{}
		if actor.StoreID != "" {
			f.StoreIDs = append(f.StoreIDs, actor.StoreID)
		}
	}
	f.StoreID = q.StoreID
	if t, err := time.Parse(DateLayout, q.From); err == nil {
		f.From = &t
	}
	if t, err := time.Parse(DateLayout, q.To); err == nil {
		f.To = &t
	}
	if st, ok := ParseStatus(q.Status); ok {
		f.Status = st
	}
	switch q.Archived {
	case "yes", "true", "1":
		v := true
		f.Archived = &v
	case "no", "false", "0":
		v := false
		f.Archived = &v
	}
	return f
}

// ListResult is one page of reports.
type ListResult struct {
	Reports    []Report
	Query      ListQuery
	Pagination shared.Pagination
	Stores     []stores.Store
}

// List returns a page of the reports visible to actor.
func (s *Service) List(ctx context.Context, actor shared.Principal, q ListQuery, page int) (ListResult, error) {
	f := q.Filter(actor)
	pg := shared.NewPagination(page, s.opts.PerPage, 0)
	f.Limit, f.Offset = pg.PerPage, pg.Offset()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return ListResult{}, err
	}
	visible, err := s.stores.VisibleStores(ctx, actor)
	if err != nil {
		return ListResult{}, fmt.Errorf("dailysales: visible stores: %w", err)
	}
	return ListResult{Reports: items, Query: q, Pagination: shared.NewPagination(page, s.opts.PerPage, total), Stores: visible}, nil
}

// ExportRows returns every report matching q, for spreadsheet export.
func (s *Service) ExportRows(ctx context.Context, actor shared.Principal, q ListQuery) ([]Report, error) {
	items, _, err := s.repo.List(ctx, q.Filter(actor))
	return items, err
}

// CleanupArchivedDuplicates keeps the newest archived row per store and date and deletes the rest.
func (s *Service) CleanupArchivedDuplicates(ctx context.Context) (int, error) {
	cands, err := s.repo.ArchivedDuplicates(ctx)
	if err != nil {
		return 0, fmt.Errorf("dailysales: find duplicates: %w", err)
	}
	ids := selectDuplicates(cands)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.DeleteReports(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("dailysales: delete duplicates: %w", err)
	}
	s.logger.Info("archived duplicates removed", slog.Int64("deleted", n))
	return int(n), nil
}

// selectDuplicates returns the ids to delete: all but the newest row of each store and date.
func selectDuplicates(cands []DuplicateCandidate) []int64 {
	type key struct {
		store string
		day   string
	}
	newest := map[key]DuplicateCandidate{}
	for _, c := range cands {
		k := key{c.StoreID, c.ReportDate.Format(DateLayout)}
		cur, ok := newest[k]
		if !ok || c.CreatedAt.After(cur.CreatedAt) || (c.CreatedAt.Equal(cur.CreatedAt) && c.ID > cur.ID) {
			newest[k] = c
		}
	}
	var ids []int64
	for _, c := range cands {
		if newest[key{c.StoreID, c.ReportDate.Format(DateLayout)}].ID != c.ID {
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
