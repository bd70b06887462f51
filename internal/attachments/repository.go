package attachments

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Repository persists attachment metadata.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const attachmentColumns = `id, report_id, attachment_type, file_path, original_name, content_type, size_bytes, thumbnail_path, COALESCE(uploaded_by, 0), created_at`

func scanAttachment(row pgx.CollectableRow) (Attachment, error) {
	var (
		a   Attachment
		typ string
	)
	err := row.Scan(&a.ID, &a.ReportID, &typ, &a.FilePath, &a.OriginalName, &a.ContentType, &a.SizeBytes, &a.ThumbnailPath, &a.UploadedBy, &a.CreatedAt)
	a.Type = Type(typ)
	return a, err
}

func (r *Repository) Create(ctx context.Context, a Attachment) (Attachment, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO daily_sales_attachments (report_id, attachment_type, file_path, original_name, content_type, size_bytes, uploaded_by)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0))
RETURNING id, created_at`,
		a.ReportID, string(a.Type), a.FilePath, a.OriginalName, a.ContentType, a.SizeBytes, a.UploadedBy,
	).Scan(&a.ID, &a.CreatedAt)
	return a, shared.MapPgError(err)
}

func (r *Repository) Get(ctx context.Context, id int64) (Attachment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+attachmentColumns+` FROM daily_sales_attachments WHERE id = $1`, id)
	if err != nil {
		return Attachment{}, err
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAttachment)
	return a, shared.MapPgError(err)
}

func (r *Repository) ListByReport(ctx context.Context, reportID int64) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+attachmentColumns+` FROM daily_sales_attachments WHERE report_id = $1 ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAttachment)
}

func (r *Repository) SetThumbnail(ctx context.Context, id int64, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE daily_sales_attachments SET thumbnail_path = $2 WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM daily_sales_attachments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Target resolves the owning report of an attachment upload or lookup.
func (r *Repository) Target(ctx context.Context, reportID int64) (ReportRef, error) {
	var ref ReportRef
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, is_submitted, archived FROM daily_sales WHERE id = $1`, reportID).
		Scan(&ref.ID, &ref.StoreID, &ref.Submitted, &ref.Archived)
	return ref, shared.MapPgError(err)
}
