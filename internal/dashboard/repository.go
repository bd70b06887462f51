package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the dashboard aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LastArchived returns the newest archived report of a store, or nil.
func (r *Repository) LastArchived(ctx context.Context, storeID string) (*DayFigure, error) {
	var f DayFigure
	err := r.pool.QueryRow(ctx, `
SELECT report_date, COALESCE(bank_deposit, 0) + COALESCE(voucher_amount, 0)
FROM daily_sales
WHERE store_id = $1 AND archived
ORDER BY report_date DESC, created_at DESC
LIMIT 1`, storeID).Scan(&f.Date, &f.ActualSales)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ArchivedTotal sums actual sales over archived reports with from <= report_date <= to.
func (r *Repository) ArchivedTotal(ctx context.Context, storeID string, from, to time.Time) (decimal.Decimal, int, error) {
	var (
		total decimal.Decimal
		count int
	)
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(COALESCE(bank_deposit, 0) + COALESCE(voucher_amount, 0)), 0), COUNT(*)
FROM daily_sales
WHERE store_id = $1 AND archived AND report_date BETWEEN $2 AND $3`, storeID, from, to).Scan(&total, &count)
	return total, count, err
}

// PendingCount counts submitted reports that are not archived yet.
func (r *Repository) PendingCount(ctx context.Context, storeID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_sales WHERE store_id = $1 AND is_submitted AND NOT archived`, storeID).Scan(&n)
	return n, err
}
