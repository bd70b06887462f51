package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// PrincipalStore loads the actor behind a session user id.
type PrincipalStore interface {
	LoadPrincipal(ctx context.Context, userID int64) (shared.Principal, error)
}

type pgPrincipalStore struct {
	pool *pgxpool.Pool
}

// NewPrincipalStore returns a PrincipalStore backed by the users table.
func NewPrincipalStore(pool *pgxpool.Pool) PrincipalStore {
	return &pgPrincipalStore{pool: pool}
}

// LoadPrincipal returns ErrNotFound for missing and disabled accounts alike.
func (s *pgPrincipalStore) LoadPrincipal(ctx context.Context, userID int64) (shared.Principal, error) {
	var (
		p      shared.Principal
		role   string
		status int16
	)
	err := s.pool.QueryRow(ctx, `SELECT id, username, role, COALESCE(store_id, ''), status FROM users WHERE id = $1`, userID).
		Scan(&p.UserID, &p.Username, &role, &p.StoreID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.Principal{}, shared.ErrNotFound
		}
		return shared.Principal{}, err
	}
	if status != 1 {
		return shared.Principal{}, shared.ErrNotFound
	}
	p.Role = shared.Role(role)
	return p, nil
}
