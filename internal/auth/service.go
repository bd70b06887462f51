package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	audit shared.AuditRecorder
	now   func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, audit shared.AuditRecorder) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Authenticate validates username/password credentials. Unknown users, disabled accounts and
// wrong passwords all return shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RecordLogin stamps last_login_at and writes the audit entry.
func (s *Service) RecordLogin(ctx context.Context, user *User, remember bool, ip string) error {
	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return err
	}
	return s.audit.Record(ctx, shared.AuditLog{
		ActorID:  user.ID,
		Action:   shared.AuditLogin,
		Entity:   "user",
		EntityID: strconv.FormatInt(user.ID, 10),
		Meta:     map[string]any{"remember": remember, "ip": ip},
		At:       now,
	})
}
