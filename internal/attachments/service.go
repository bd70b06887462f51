package attachments

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes int64 = 5 << 20

// ThumbnailWidth is the width of generated previews; height keeps the aspect ratio.
const ThumbnailWidth = 200

// RepositoryPort is the persistence the service needs.
type RepositoryPort interface {
	Create(ctx context.Context, a Attachment) (Attachment, error)
	Get(ctx context.Context, id int64) (Attachment, error)
	ListByReport(ctx context.Context, reportID int64) ([]Attachment, error)
	SetThumbnail(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
	Target(ctx context.Context, reportID int64) (ReportRef, error)
}

// ThumbnailQueue schedules thumbnail generation.
type ThumbnailQueue interface {
	EnqueueThumbnail(ctx context.Context, attachmentID int64) error
}

type Service struct {
	repo     RepositoryPort
	storage  Storage
	queue    ThumbnailQueue
	audit    shared.AuditRecorder
	idem     shared.IdempotencyGuard
	logger   *slog.Logger
	maxBytes int64
}

// NewService wires the upload pipeline. queue and idem may be nil.
func NewService(repo RepositoryPort, storage Storage, queue ThumbnailQueue, audit shared.AuditRecorder, idem shared.IdempotencyGuard, logger *slog.Logger, maxBytes int64) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{repo: repo, storage: storage, queue: queue, audit: audit, idem: idem, logger: logger, maxBytes: maxBytes}
}

// MaxBytes is the configured upload limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

var extClasses = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".gif":  "image",
	".pdf":  "pdf",
}

// CheckName validates the extension and returns its class, image or pdf.
func CheckName(filename string) (string, error) {
	class, ok := extClasses[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return class, nil
}

func classOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case contentType == "application/pdf":
		return "pdf"
	}
	return ""
}

var (
	unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dotRun     = regexp.MustCompile(`\.{2,}`)
)

// SanitizeName keeps a safe base name for use inside an object key.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = dotRun.ReplaceAllString(unsafeName.ReplaceAllString(name, "_"), ".")
	name = strings.ReplaceAll(name, "_.", ".")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

// ObjectKey builds <user>/<report>/<uuid>-<name>.
func ObjectKey(userID, reportID int64, filename string) string {
	return strconv.FormatInt(userID, 10) + "/" + strconv.FormatInt(reportID, 10) + "/" + uuid.NewString() + "-" + SanitizeName(filename)
}

// ThumbnailKey is where the preview of key is stored.
func ThumbnailKey(key string) string { return key + ".thumb.jpg" }

// ListForReport returns the files attached to a report.
func (s *Service) ListForReport(ctx context.Context, reportID int64) ([]Attachment, error) {
	return s.repo.ListByReport(ctx, reportID)
}

// Upload checks and stores a file for ref. Images get a thumbnail job.
// Archived reports take no files; submitted ones only from reviewers.
func (s *Service) Upload(ctx context.Context, actor shared.Principal, ref ReportRef, typ Type, up Upload) (Attachment, error) {
	if !actor.CanSeeStore(ref.StoreID) {
		return Attachment{}, shared.ErrForbidden
	}
	if ref.Archived || (ref.Submitted && !actor.Can(shared.PermReportsReview)) {
		return Attachment{}, shared.ErrForbidden
	}
	typ, err := ParseType(string(typ))
	if err != nil {
		return Attachment{}, err
	}
	class, err := CheckName(up.Filename)
	if err != nil {
		return Attachment{}, err
	}
	if up.Size > s.maxBytes {
		return Attachment{}, ErrTooLarge
	}
	br := bufio.NewReaderSize(up.Body, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Attachment{}, fmt.Errorf("attachments: read: %w", err)
	}
	if len(head) == 0 {
		return Attachment{}, ErrEmptyFile
	}
	contentType := http.DetectContentType(head)
	if classOf(contentType) != class {
		return Attachment{}, ErrUnsupportedType
	}
	if typ == "" {
		typ = TypeImage
		if class == "pdf" {
			typ = TypePDF
		}
	}

	var a Attachment
	err = shared.Guarded(ctx, s.idem, up.RequestKey, "attachments.upload", func() error {
		var err error
		a, err = s.store(ctx, actor.UserID, Attachment{
			ReportID:     ref.ID,
			Type:         typ,
			OriginalName: SanitizeName(up.Filename),
			ContentType:  contentType,
			UploadedBy:   actor.UserID,
		}, up.Filename, br)
		return err
	})
	if err != nil {
		return Attachment{}, err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditAttachmentAdd,
		Entity:   "attachment",
		EntityID: strconv.FormatInt(a.ID, 10),
		Meta:     map[string]any{"report_id": ref.ID, "type": string(typ), "size": a.SizeBytes},
	})
	if class == "image" && s.queue != nil {
		if err := s.queue.EnqueueThumbnail(ctx, a.ID); err != nil {
			s.logger.Warn("enqueue thumbnail", slog.Int64("attachment_id", a.ID), slog.Any("error", err))
		}
	}
	return a, nil
}

// store writes body and records a. The object is removed again when the row cannot be written.
func (s *Service) store(ctx context.Context, userID int64, a Attachment, filename string, body io.Reader) (Attachment, error) {
	key := ObjectKey(userID, a.ReportID, filename)
	counter := &countingReader{r: io.LimitReader(body, s.maxBytes+1)}
	if err := s.storage.Save(ctx, key, a.ContentType, counter); err != nil {
		return Attachment{}, fmt.Errorf("attachments: save: %w", err)
	}
	if counter.n > s.maxBytes {
		_ = s.storage.Delete(ctx, key)
		return Attachment{}, ErrTooLarge
	}
	a.FilePath, a.SizeBytes = key, counter.n
	created, err := s.repo.Create(ctx, a)
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		return Attachment{}, fmt.Errorf("attachments: record: %w", err)
	}
	return created, nil
}

// UploadTo resolves reportID before uploading.
func (s *Service) UploadTo(ctx context.Context, actor shared.Principal, reportID int64, typ Type, up Upload) (Attachment, error) {
	ref, err := s.repo.Target(ctx, reportID)
	if err != nil {
		return Attachment{}, err
	}
	return s.Upload(ctx, actor, ref, typ, up)
}

func (s *Service) authorize(ctx context.Context, actor shared.Principal, id int64) (Attachment, ReportRef, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Attachment{}, ReportRef{}, err
	}
	ref, err := s.repo.Target(ctx, a.ReportID)
	if err != nil {
		return Attachment{}, ReportRef{}, err
	}
	if !actor.CanSeeStore(ref.StoreID) {
		return Attachment{}, ReportRef{}, shared.ErrForbidden
	}
	return a, ref, nil
}

// Open streams the file, or its thumbnail when thumb is set and one exists.
func (s *Service) Open(ctx context.Context, actor shared.Principal, id int64, thumb bool) (io.ReadCloser, Attachment, error) {
	a, _, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, Attachment{}, err
	}
	key := a.FilePath
	if thumb && a.HasThumbnail() {
		key = *a.ThumbnailPath
		a.ContentType = "image/jpeg"
	}
	rc, err := s.storage.Open(ctx, key)
	if err != nil {
		return nil, Attachment{}, err
	}
	return rc, a, nil
}

// Delete removes an attachment. The uploader may do so until the report is submitted; admins always.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) (Attachment, error) {
	a, ref, err := s.authorize(ctx, actor, id)
	if err != nil {
		return Attachment{}, err
	}
	if actor.Role != shared.RoleAdmin && (a.UploadedBy != actor.UserID || ref.Submitted) {
		return Attachment{}, shared.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return Attachment{}, err
	}
	for _, key := range []string{a.FilePath, deref(a.ThumbnailPath)} {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("delete attachment object", slog.String("key", key), slog.Any("error", err))
		}
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditAttachmentDrop,
		Entity:   "attachment",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"report_id": a.ReportID},
	})
	return a, nil
}

// GenerateThumbnail renders a JPEG preview for an image attachment. Non-images are skipped.
func (s *Service) GenerateThumbnail(ctx context.Context, id int64) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !a.IsImage() || a.HasThumbnail() {
		return nil
	}
	rc, err := s.storage.Open(ctx, a.FilePath)
	if err != nil {
		return fmt.Errorf("attachments: open original: %w", err)
	}
	defer rc.Close()
	data, err := Thumbnail(rc)
	if err != nil {
		return err
	}
	key := ThumbnailKey(a.FilePath)
	if err := s.storage.Save(ctx, key, "image/jpeg", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("attachments: save thumbnail: %w", err)
	}
	return s.repo.SetThumbnail(ctx, id, key)
}

// Thumbnail decodes an image and encodes a ThumbnailWidth wide JPEG.
func Thumbnail(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("attachments: decode image: %w", err)
	}
	if img.Bounds().Dx() > ThumbnailWidth {
		img = imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("attachments: encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
