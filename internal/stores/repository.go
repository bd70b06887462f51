package stores

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Store, error)
	Get(ctx context.Context, id string) (Store, error)
	Create(ctx context.Context, store Store) error
	Update(ctx context.Context, store Store) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Store, error) {
	rows, err := r.db.Query(ctx, `SELECT store_id, store_name, store_address, third_party_platform FROM stores ORDER BY store_name ASC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanStore)
}

func (r *repository) Get(ctx context.Context, id string) (Store, error) {
	rows, err := r.db.Query(ctx, `SELECT store_id, store_name, store_address, third_party_platform FROM stores WHERE store_id = $1`, id)
	if err != nil {
		return Store{}, err
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanStore)
	return s, shared.MapPgError(err)
}

func (r *repository) Create(ctx context.Context, store Store) error {
	_, err := r.db.Exec(ctx, `INSERT INTO stores (store_id, store_name, store_address, third_party_platform) VALUES ($1, $2, $3, $4)`,
		store.ID, store.Name, store.Address, store.ThirdPartyPlatform)
	return shared.MapPgError(err)
}

func (r *repository) Update(ctx context.Context, store Store) error {
	tag, err := r.db.Exec(ctx, `UPDATE stores SET store_name = $2, store_address = $3, third_party_platform = $4 WHERE store_id = $1`,
		store.ID, store.Name, store.Address, store.ThirdPartyPlatform)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanStore(row pgx.CollectableRow) (Store, error) {
	var s Store
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.ThirdPartyPlatform)
	return s, err
}
