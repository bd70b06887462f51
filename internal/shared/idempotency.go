package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRetention is how long processed form submissions are remembered.
const IdempotencyRetention = 48 * time.Hour

// ErrAlreadyProcessed is returned when a form submission key was seen before.
var ErrAlreadyProcessed = NewDomainError("request.duplicate", "This form was already submitted")

// IdempotencyGuard claims form submission keys so a resubmitted form is processed once.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// IdempotencyStore keeps claimed keys in idempotency_keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

// Claim records key for module. A key claimed before yields ErrAlreadyProcessed.
func (s *IdempotencyStore) Claim(ctx context.Context, key, module string) error {
	if key == "" || module == "" {
		return errors.New("idempotency: key and module required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now())
	if IsUniqueViolation(err) {
		return ErrAlreadyProcessed
	}
	return err
}

// Release forgets a claim, typically after the guarded work failed.
func (s *IdempotencyStore) Release(ctx context.Context, key, module string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2`, key, module)
	return err
}

// Cleanup removes claims older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Guarded runs fn once per key. An empty key or nil guard runs fn unguarded; a failed fn releases the claim.
func Guarded(ctx context.Context, guard IdempotencyGuard, key, module string, fn func() error) error {
	if guard == nil || key == "" {
		return fn()
	}
	if err := guard.Claim(ctx, key, module); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = guard.Release(ctx, key, module)
		return err
	}
	return nil
}
