package dailysales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mxstorebi/mxstorebi/internal/attachments"
	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Status is the finance review state of a report.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusBankReceived        Status = "BANK_RECEIVED"
	StatusTakeawayReceived    Status = "TAKEAWAY_RECEIVED"
	StatusAmountVerified      Status = "AMOUNT_VERIFIED"
	StatusRequiresRemediation Status = "REQUIRES_REMEDIATION"
	StatusChecked             Status = "CHECKED"
)

// Statuses lists review states in workflow order.
func Statuses() []Status {
	return []Status{StatusPending, StatusBankReceived, StatusTakeawayReceived, StatusAmountVerified, StatusRequiresRemediation, StatusChecked}
}

// ParseStatus accepts only known states.
func ParseStatus(raw string) (Status, bool) {
	for _, s := range Statuses() {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Label is the human readable status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusBankReceived:
		return "Bank received"
	case StatusTakeawayReceived:
		return "Takeaway received"
	case StatusAmountVerified:
		return "Amount verified"
	case StatusRequiresRemediation:
		return "Requires remediation"
	case StatusChecked:
		return "Checked"
	}
	return string(s)
}

// Badge maps the status onto a css class.
func (s Status) Badge() string {
	switch s {
	case StatusChecked:
		return "success"
	case StatusRequiresRemediation:
		return "danger"
	case StatusPending:
		return "secondary"
	}
	return "info"
}

// Step is one section of the daily form.
type Step string

const (
	StepPOS      Step = "pos"
	StepTakeaway Step = "takeaway"
	StepBank     Step = "bank"
	StepSubmit   Step = "submit"
)

// Steps lists the data entry steps in display order.
func Steps() []Step {
	return []Step{StepPOS, StepTakeaway, StepBank}
}

// ParseStep accepts the three data steps plus submit.
func ParseStep(raw string) (Step, bool) {
	switch Step(raw) {
	case StepPOS, StepTakeaway, StepBank, StepSubmit:
		return Step(raw), true
	}
	return "", false
}

// Label is the heading shown for the step.
func (s Step) Label() string {
	switch s {
	case StepPOS:
		return "POS figures"
	case StepTakeaway:
		return "Takeaway platforms"
	case StepBank:
		return "Bank deposit"
	case StepSubmit:
		return "Submit"
	}
	return string(s)
}

// Report is one row of daily_sales.
type Report struct {
	ID                 int64
	StoreID            string
	StoreName          string
	ThirdPartyPlatform bool
	UserID             int64
	CreatedBy          string
	ReportDate         time.Time

	CashSales             decimal.NullDecimal
	ElectronicSales       decimal.NullDecimal
	SystemTakeawaySales   decimal.NullDecimal
	VoucherAmount         decimal.NullDecimal
	CashDifference        decimal.NullDecimal
	ElectronicDifference  decimal.NullDecimal
	TakeawayPlatformSales decimal.NullDecimal
	BankDeposit           decimal.NullDecimal
	BankFee               decimal.NullDecimal

	VerifiedBankAmount    decimal.NullDecimal
	VerifiedVoucherAmount decimal.NullDecimal
	Remark                string

	POSCompleted      bool
	TakeawayCompleted bool
	BankCompleted     bool
	Submitted         bool
	Status            Status
	Archived          bool

	SubmittedAt *time.Time
	ArchivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Completed reports whether step has been saved.
func (r Report) Completed(step Step) bool {
	switch step {
	case StepPOS:
		return r.POSCompleted
	case StepTakeaway:
		return r.TakeawayCompleted
	case StepBank:
		return r.BankCompleted
	case StepSubmit:
		return r.Submitted
	}
	return false
}

// AllStepsCompleted is the precondition for submission.
func (r Report) AllStepsCompleted() bool {
	return r.POSCompleted && r.TakeawayCompleted && r.BankCompleted
}

// NextStep is the first incomplete step, or submit when all are done.
func (r Report) NextStep() Step {
	for _, s := range Steps() {
		if !r.Completed(s) {
			return s
		}
	}
	return StepSubmit
}

// Day formats ReportDate for forms and URLs.
func (r Report) Day() string {
	return r.ReportDate.Format(DateLayout)
}

// DateLayout is the wire format of report_date.
const DateLayout = "2006-01-02"

// StepState drives the progress indicator.
type StepState struct {
	Step      Step
	Completed bool
	Current   bool
}

// Progress returns the three data steps plus submission for the progress bar.
func (r Report) Progress(current Step) []StepState {
	out := make([]StepState, 0, 4)
	for _, s := range append(Steps(), StepSubmit) {
		out = append(out, StepState{Step: s, Completed: r.Completed(s), Current: s == current})
	}
	return out
}

// Errors returned by the workflow.
var (
	ErrReportSubmitted = shared.NewDomainError("dailysales.submitted", "This report has already been submitted and can no longer be edited")
	ErrStepsIncomplete = shared.NewDomainError("dailysales.steps_incomplete", "Complete the POS, takeaway and bank steps before submitting")
	ErrNotReviewable   = shared.NewDomainError("dailysales.not_reviewable", "Only submitted, unarchived reports can be reviewed")
	ErrNotArchivable   = shared.NewDomainError("dailysales.not_archivable", "Only checked reports can be archived")
)

// ValidateReview guards the finance review transition.
func ValidateReview(r Report) error {
	if !r.Submitted || r.Archived {
		return ErrNotReviewable
	}
	return nil
}

// ValidateArchive guards the archive transition.
func ValidateArchive(r Report) error {
	if r.Archived || !r.Submitted || r.Status != StatusChecked {
		return ErrNotArchivable
	}
	return nil
}

// ListFilter narrows the report list.
type ListFilter struct {
	StoreIDs []string
	StoreID  string
	From     *time.Time
	To       *time.Time
	Status   Status
	Archived *bool
	Limit    int
	Offset   int
}

// DuplicateCandidate is an archived row sharing its store and date with another archived row.
type DuplicateCandidate struct {
	ID         int64
	StoreID    string
	ReportDate time.Time
	CreatedAt  time.Time
}

// UploadField is the multipart field carrying the step's receipt, if the step takes one.
func (s Step) UploadField() (string, attachments.Type) {
	switch s {
	case StepPOS:
		return "sales_slip_image", attachments.TypeSalesSlip
	case StepTakeaway:
		return "takeaway_platform_receipt", attachments.TypeTakeawayScreenshot
	case StepBank:
		return "bank_receipt_image", attachments.TypeBankReceipt
	}
	return "", ""
}

// Ref is the attachment view of the report.
func (r Report) Ref() attachments.ReportRef {
	return attachments.ReportRef{ID: r.ID, StoreID: r.StoreID, Submitted: r.Submitted, Archived: r.Archived}
}
