package staff

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

type Repository interface {
	GetByUser(ctx context.Context, userID int64) (StoreStaff, error)
	Create(ctx context.Context, s StoreStaff) (StoreStaff, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetByUser(ctx context.Context, userID int64) (StoreStaff, error) {
	var s StoreStaff
	err := r.db.QueryRow(ctx, `
SELECT ss.id, ss.user_id, ss.store_id, st.store_name, ss.bank_account_name, ss.bank_account_number,
       ss.is_primary_contact, ss.phone, ss.line_id, ss.email, ss.start_date, ss.end_date, ss.created_at
FROM store_staff ss
JOIN stores st ON st.store_id = ss.store_id
WHERE ss.user_id = $1`, userID).Scan(
		&s.ID, &s.UserID, &s.StoreID, &s.StoreName, &s.BankAccountName, &s.BankAccountNumber,
		&s.IsPrimaryContact, &s.Phone, &s.LineID, &s.Email, &s.StartDate, &s.EndDate, &s.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return StoreStaff{}, shared.ErrNotFound
		}
		return StoreStaff{}, err
	}
	return s, nil
}

func (r *repository) Create(ctx context.Context, s StoreStaff) (StoreStaff, error) {
	err := r.db.QueryRow(ctx, `
INSERT INTO store_staff (user_id, store_id, bank_account_name, bank_account_number, is_primary_contact, phone, line_id, email, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`,
		s.UserID, s.StoreID, s.BankAccountName, s.BankAccountNumber, s.IsPrimaryContact, s.Phone, s.LineID, s.Email, s.StartDate, s.EndDate,
	).Scan(&s.ID, &s.CreatedAt)
	if shared.IsUniqueViolation(err) {
		return StoreStaff{}, ErrAlreadyExists
	}
	return s, err
}
