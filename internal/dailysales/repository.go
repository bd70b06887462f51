package dailysales

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxstorebi/mxstorebi/internal/platform/db"
	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Repository persists daily reports in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `d.id, d.store_id, s.store_name, s.third_party_platform, COALESCE(d.user_id, 0), COALESCE(u.username, ''), d.report_date,
d.cash_sales, d.electronic_sales, d.system_takeaway_sales, d.voucher_amount, d.cash_difference, d.electronic_difference,
d.takeaway_platform_sales, d.bank_deposit, d.bank_fee, d.verified_bank_amount, d.verified_voucher_amount, d.remark,
d.pos_info_completed, d.takeaway_info_completed, d.bank_info_completed, d.is_submitted, d.financial_check_status,
d.archived, d.submitted_at, d.archived_at, d.created_at, d.updated_at`

const reportFrom = ` FROM daily_sales d
JOIN stores s ON s.store_id = d.store_id
LEFT JOIN users u ON u.id = d.user_id `

func scanReport(row pgx.CollectableRow) (Report, error) {
	var (
		r      Report
		status string
	)
	err := row.Scan(&r.ID, &r.StoreID, &r.StoreName, &r.ThirdPartyPlatform, &r.UserID, &r.CreatedBy, &r.ReportDate,
		&r.CashSales, &r.ElectronicSales, &r.SystemTakeawaySales, &r.VoucherAmount, &r.CashDifference, &r.ElectronicDifference,
		&r.TakeawayPlatformSales, &r.BankDeposit, &r.BankFee, &r.VerifiedBankAmount, &r.VerifiedVoucherAmount, &r.Remark,
		&r.POSCompleted, &r.TakeawayCompleted, &r.BankCompleted, &r.Submitted, &status,
		&r.Archived, &r.SubmittedAt, &r.ArchivedAt, &r.CreatedAt, &r.UpdatedAt)
	r.Status = Status(status)
	return r, err
}

func findOpen(ctx context.Context, q db.Querier, storeID string, day time.Time, lock bool) (Report, error) {
	sql := `SELECT ` + reportColumns + reportFrom + `WHERE d.store_id = $1 AND d.report_date = $2 AND NOT d.archived`
	if lock {
		sql += ` FOR UPDATE OF d`
	}
	rows, err := q.Query(ctx, sql, storeID, day)
	if err != nil {
		return Report{}, err
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanReport)
	return r, shared.MapPgError(err)
}

// FindOpen returns the unarchived report of a store and date.
func (r *Repository) FindOpen(ctx context.Context, storeID string, day time.Time) (Report, error) {
	return findOpen(ctx, r.pool, storeID, day, false)
}

// Upsert locks the open report of storeID/day, creating it when missing, applies mutate and writes it back.
// Nothing is written when mutate fails.
func (r *Repository) Upsert(ctx context.Context, storeID string, day time.Time, userID int64, mutate func(*Report) error) (Report, bool, error) {
	var (
		out     Report
		created bool
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := findOpen(ctx, tx, storeID, day, true)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			created = true
			current = Report{StoreID: storeID, ReportDate: day, UserID: userID, Status: StatusPending}
			if err := tx.QueryRow(ctx, `SELECT store_name, third_party_platform FROM stores WHERE store_id = $1`, storeID).
				Scan(&current.StoreName, &current.ThirdPartyPlatform); err != nil {
				return shared.MapPgError(err)
			}
		case err != nil:
			return err
		}
		if err := mutate(&current); err != nil {
			return err
		}
		if created {
			err = tx.QueryRow(ctx, `
INSERT INTO daily_sales (store_id, user_id, report_date, cash_sales, electronic_sales, system_takeaway_sales, voucher_amount,
    cash_difference, electronic_difference, takeaway_platform_sales, bank_deposit, bank_fee,
    pos_info_completed, takeaway_info_completed, bank_info_completed, is_submitted, submitted_at, financial_check_status)
VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id, created_at, updated_at`,
				current.StoreID, current.UserID, current.ReportDate, current.CashSales, current.ElectronicSales,
				current.SystemTakeawaySales, current.VoucherAmount, current.CashDifference, current.ElectronicDifference,
				current.TakeawayPlatformSales, current.BankDeposit, current.BankFee,
				current.POSCompleted, current.TakeawayCompleted, current.BankCompleted, current.Submitted, current.SubmittedAt,
				string(current.Status),
			).Scan(&current.ID, &current.CreatedAt, &current.UpdatedAt)
			if err != nil {
				return shared.MapPgError(err)
			}
		} else {
			err = tx.QueryRow(ctx, `
UPDATE daily_sales SET cash_sales = $2, electronic_sales = $3, system_takeaway_sales = $4, voucher_amount = $5,
    cash_difference = $6, electronic_difference = $7, takeaway_platform_sales = $8, bank_deposit = $9, bank_fee = $10,
    pos_info_completed = $11, takeaway_info_completed = $12, bank_info_completed = $13, is_submitted = $14,
    submitted_at = $15, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
				current.ID, current.CashSales, current.ElectronicSales, current.SystemTakeawaySales, current.VoucherAmount,
				current.CashDifference, current.ElectronicDifference, current.TakeawayPlatformSales, current.BankDeposit,
				current.BankFee, current.POSCompleted, current.TakeawayCompleted, current.BankCompleted, current.Submitted,
				current.SubmittedAt,
			).Scan(&current.UpdatedAt)
			if err != nil {
				return shared.MapPgError(err)
			}
		}
		out = current
		return nil
	})
	if err != nil {
		return Report{}, false, err
	}
	return out, created, nil
}

// Get fetches a report by id.
func (r *Repository) Get(ctx context.Context, id int64) (Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+reportFrom+`WHERE d.id = $1`, id)
	if err != nil {
		return Report{}, err
	}
	rep, err := pgx.CollectExactlyOneRow(rows, scanReport)
	return rep, shared.MapPgError(err)
}

func buildWhere(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.StoreIDs != nil {
		add("d.store_id = ANY(?)", f.StoreIDs)
	}
	if f.StoreID != "" {
		add("d.store_id = ?", f.StoreID)
	}
	if f.From != nil {
		add("d.report_date >= ?", *f.From)
	}
	if f.To != nil {
		add("d.report_date <= ?", *f.To)
	}
	if f.Status != "" {
		add("d.financial_check_status = ?", string(f.Status))
	}
	if f.Archived != nil {
		add("d.archived = ?", *f.Archived)
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of reports newest first, plus the total match count.
// A Limit of zero returns every match.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Report, int, error) {
	where, args := buildWhere(f)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_sales d `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("dailysales: count: %w", err)
	}
	sql := `SELECT ` + reportColumns + reportFrom + where + ` ORDER BY d.report_date DESC, d.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("dailysales: list: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanReport)
	return items, total, err
}

// UpdateReview writes the finance review columns.
func (r *Repository) UpdateReview(ctx context.Context, rep Report) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE daily_sales SET financial_check_status = $2, verified_bank_amount = $3, verified_voucher_amount = $4, remark = $5,
    is_submitted = $6, submitted_at = $7, updated_at = NOW()
WHERE id = $1 AND NOT archived`,
		rep.ID, string(rep.Status), rep.VerifiedBankAmount, rep.VerifiedVoucherAmount, rep.Remark, rep.Submitted, rep.SubmittedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Archive marks the report archived.
func (r *Repository) Archive(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE daily_sales SET archived = TRUE, archived_at = $2, updated_at = NOW() WHERE id = $1 AND NOT archived`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ArchivedDuplicates lists archived rows whose store and date occur more than once among archived rows.
func (r *Repository) ArchivedDuplicates(ctx context.Context) ([]DuplicateCandidate, error) {
	rows, err := r.pool.Query(ctx, `
SELECT d.id, d.store_id, d.report_date, d.created_at
FROM daily_sales d
JOIN (
    SELECT store_id, report_date FROM daily_sales WHERE archived GROUP BY store_id, report_date HAVING COUNT(*) > 1
) dup ON dup.store_id = d.store_id AND dup.report_date = d.report_date
WHERE d.archived
ORDER BY d.store_id, d.report_date, d.created_at DESC, d.id DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DuplicateCandidate, error) {
		var c DuplicateCandidate
		err := row.Scan(&c.ID, &c.StoreID, &c.ReportDate, &c.CreatedAt)
		return c, err
	})
}

// DeleteReports removes the given rows; attachments cascade.
func (r *Repository) DeleteReports(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM daily_sales WHERE id = ANY($1) AND archived`, ids)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	return deleted, err
}
