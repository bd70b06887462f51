package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type claimRecorder struct {
	claimed  map[string]bool
	released []string
}

func (c *claimRecorder) Claim(_ context.Context, key, module string) error {
	if c.claimed[module+":"+key] {
		return ErrAlreadyProcessed
	}
	c.claimed[module+":"+key] = true
	return nil
}

func (c *claimRecorder) Release(_ context.Context, key, module string) error {
	delete(c.claimed, module+":"+key)
	c.released = append(c.released, module+":"+key)
	return nil
}

func TestGuardedRunsOncePerKey(t *testing.T) {
	guard := &claimRecorder{claimed: map[string]bool{}}
	runs := 0
	work := func() error { runs++; return nil }

	require.NoError(t, Guarded(context.Background(), guard, "k", "reports", work))
	assert.ErrorIs(t, Guarded(context.Background(), guard, "k", "reports", work), ErrAlreadyProcessed)
	require.NoError(t, Guarded(context.Background(), guard, "k", "uploads", work))
	assert.Equal(t, 2, runs)
}

func TestGuardedReleasesOnFailure(t *testing.T) {
	guard := &claimRecorder{claimed: map[string]bool{}}
	boom := errors.New("boom")
	assert.ErrorIs(t, Guarded(context.Background(), guard, "k", "reports", func() error { return boom }), boom)
	assert.Equal(t, []string{"reports:k"}, guard.released)
	assert.NoError(t, Guarded(context.Background(), guard, "k", "reports", func() error { return nil }))
}

func TestGuardedWithoutKeyOrGuard(t *testing.T) {
	runs := 0
	work := func() error { runs++; return nil }
	require.NoError(t, Guarded(context.Background(), nil, "k", "reports", work))
	require.NoError(t, Guarded(context.Background(), &claimRecorder{claimed: map[string]bool{}}, "", "reports", work))
	assert.Equal(t, 2, runs)
}
