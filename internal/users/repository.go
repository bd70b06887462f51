package users

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `u.id, u.username, u.password_hash, u.status, u.role, COALESCE(u.store_id, ''), COALESCE(s.store_name, ''),
u.real_name, u.email, u.phone, u.profile_completed, u.last_login_at, u.created_at, u.updated_at`

func scanUser(row pgx.CollectableRow) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Status, &role, &u.StoreID, &u.StoreName,
		&u.RealName, &u.Email, &u.Phone, &u.ProfileCompleted, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	u.Role = shared.Role(role)
	return u, err
}

// List returns one page of users ordered by id desc, plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	pattern := "%" + filter.Query + "%"
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+`
FROM users u LEFT JOIN stores s ON s.store_id = u.store_id
WHERE u.username ILIKE $1
ORDER BY u.id DESC
LIMIT $2 OFFSET $3`, pattern, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, scanUser)
	return items, total, err
}

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	return r.one(ctx, `WHERE u.id = $1`, id)
}

// GetByUsername fetches a user by login name.
func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.one(ctx, `WHERE u.username = $1`, username)
}

func (r *Repository) one(ctx context.Context, where string, arg any) (User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users u LEFT JOIN stores s ON s.store_id = u.store_id `+where, arg)
	if err != nil {
		return User{}, err
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	return u, shared.MapPgError(err)
}

// Create inserts a user and returns it with id and timestamps.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (username, password_hash, status, role, store_id, real_name, email, phone, profile_completed)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
RETURNING id, created_at, updated_at`,
		u.Username, u.PasswordHash, u.Status, string(u.Role), u.StoreID, u.RealName, u.Email, u.Phone, u.ProfileCompleted,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return User{}, ErrUsernameTaken
	}
	return u, err
}

// Update writes the admin editable columns.
func (r *Repository) Update(ctx context.Context, u User) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users SET real_name = $2, email = $3, phone = $4, role = $5, store_id = NULLIF($6, ''), status = $7, updated_at = NOW()
WHERE id = $1`, u.ID, u.RealName, u.Email, u.Phone, string(u.Role), u.StoreID, u.Status)
	return affected(tag.RowsAffected(), err)
}

// UpdateProfile writes the self-service columns.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, in ProfileInput, completed bool) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users SET real_name = $2, email = $3, phone = $4, profile_completed = profile_completed OR $5, updated_at = NOW()
WHERE id = $1`, id, in.RealName, in.Email, in.Phone, completed)
	return affected(tag.RowsAffected(), err)
}

// UpdatePassword stores a new bcrypt hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return affected(tag.RowsAffected(), err)
}

// Delete removes the user; the staff record cascades.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affected(tag.RowsAffected(), err)
}

// TouchLogin records a successful login.
func (r *Repository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

func affected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
