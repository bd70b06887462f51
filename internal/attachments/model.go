package attachments

import (
	"io"
	"strings"
	"time"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Type classifies an attachment.
type Type string

const (
	TypeSalesSlip          Type = "sales_slip"
	TypeBankReceipt        Type = "bank_receipt"
	TypeTakeawayScreenshot Type = "takeaway_screenshot"
	TypeImage              Type = "image"
	TypePDF                Type = "pdf"
)

// ParseType accepts one of the known types. An empty value is left for Upload to infer.
func ParseType(v string) (Type, error) {
	switch t := Type(strings.TrimSpace(v)); t {
	case "", TypeSalesSlip, TypeBankReceipt, TypeTakeawayScreenshot, TypeImage, TypePDF:
		return t, nil
	}
	return "", ErrInvalidType
}

// Label is shown next to the file.
func (t Type) Label() string {
	switch t {
	case TypeSalesSlip:
		return "Sales slip"
	case TypeBankReceipt:
		return "Bank receipt"
	case TypeTakeawayScreenshot:
		return "Takeaway platform receipt"
	case TypePDF:
		return "PDF"
	}
	return "Image"
}

// Attachment is one row of daily_sales_attachments.
type Attachment struct {
	ID            int64     `json:"id"`
	ReportID      int64     `json:"report_id"`
	Type          Type      `json:"type"`
	FilePath      string    `json:"-"`
	OriginalName  string    `json:"original_name"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	ThumbnailPath *string   `json:"-"`
	UploadedBy    int64     `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsImage reports whether the stored content is an image.
func (a Attachment) IsImage() bool {
	return len(a.ContentType) > 6 && a.ContentType[:6] == "image/"
}

// HasThumbnail reports whether the thumbnail job has finished.
func (a Attachment) HasThumbnail() bool {
	return a.ThumbnailPath != nil && *a.ThumbnailPath != ""
}

// ReportRef is what attachment access checks need to know about the owning report.
type ReportRef struct {
	ID        int64
	StoreID   string
	Submitted bool
	Archived  bool
}

// Upload is an incoming file.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
	// RequestKey deduplicates a resubmitted upload form. Optional.
	RequestKey string
}

var (
	ErrUnsupportedType = shared.NewDomainError("attachments.unsupported_type", "Only jpg, jpeg, png, gif and pdf files are allowed")
	ErrTooLarge        = shared.NewDomainError("attachments.too_large", "The file is larger than the upload limit")
	ErrEmptyFile       = shared.NewDomainError("attachments.empty", "The uploaded file is empty")
	ErrInvalidType     = shared.NewDomainError("attachments.invalid_type", "Choose a valid attachment type")
)
