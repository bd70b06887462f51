package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// DefaultCacheTTL bounds how long a role change can take to reach live sessions.
const DefaultCacheTTL = 5 * time.Minute

// Service resolves principals and their permissions.
type Service struct {
	store  PrincipalStore
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewService constructs a Service. cache may be nil to disable caching.
func NewService(store PrincipalStore, cache *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, ttl: DefaultCacheTTL, logger: logger}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("rbac:principal:%d", userID)
}

// Principal returns the cached actor for userID, loading it from the store on a miss.
func (s *Service) Principal(ctx context.Context, userID int64) (shared.Principal, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey(userID)).Bytes()
		switch {
		case err == nil:
			var p shared.Principal
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
				return p, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("rbac cache read", slog.Any("error", err))
		}
	}
	p, err := s.store.LoadPrincipal(ctx, userID)
	if err != nil {
		return shared.Principal{}, err
	}
	if s.cache != nil {
		if payload, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, cacheKey(userID), payload, s.ttl).Err(); err != nil {
				s.logger.Warn("rbac cache write", slog.Any("error", err))
			}
		}
	}
	return p, nil
}

// EffectivePermissions returns the permission names granted to a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return shared.PermissionsFor(p.Role), nil
}

// Invalidate drops the cached principal so the next request reloads it.
func (s *Service) Invalidate(ctx context.Context, userID int64) error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, cacheKey(userID)).Err()
}
