package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) error
	UpdateProfile(ctx context.Context, id int64, in ProfileInput, completed bool) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
}

// StoreLookup resolves store ids.
type StoreLookup interface {
	Get(ctx context.Context, id string) (stores.Store, error)
}

// PrincipalInvalidator drops cached role data after an edit.
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Options tunes Service behaviour.
type Options struct {
	PerPage       int
	ResetPassword string
}

// Service handles user business logic.
type Service struct {
	repo        RepositoryPort
	stores      StoreLookup
	invalidator PrincipalInvalidator
	audit       shared.AuditRecorder
	validate    *validator.Validate
	opts        Options
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, stores StoreLookup, invalidator PrincipalInvalidator, audit shared.AuditRecorder, opts Options) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if opts.PerPage <= 0 {
		opts.PerPage = shared.DefaultPerPage
	}
	if opts.ResetPassword == "" {
		opts.ResetPassword = "123456"
	}
	return &Service{repo: repo, stores: stores, invalidator: invalidator, audit: audit, validate: shared.NewValidator(), opts: opts}
}

// ListResult is one page of the admin user list.
type ListResult struct {
	Users      []User
	Query      string
	Pagination shared.Pagination
}

// List searches usernames and paginates newest first.
func (s *Service) List(ctx context.Context, query string, page int) (ListResult, error) {
	query = strings.TrimSpace(query)
	pg := shared.NewPagination(page, s.opts.PerPage, 0)
	items, total, err := s.repo.List(ctx, ListFilter{Query: query, Limit: pg.PerPage, Offset: pg.Offset()})
	if err != nil {
		return ListResult{}, fmt.Errorf("users: list: %w", err)
	}
	return ListResult{Users: items, Query: query, Pagination: shared.NewPagination(page, s.opts.PerPage, total)}, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new active account. actorID is zero for self registration.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	errs := shared.ValidateStruct(s.validate, in)
	role, storeID := s.checkRoleStore(ctx, in.Role, in.StoreID, errs)
	if err := errs.Err(); err != nil {
		return User{}, err
	}
	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return User{}, shared.ValidationErrors{"username": ErrUsernameTaken.Message}
	} else if !errors.Is(err, shared.ErrNotFound) {
		return User{}, fmt.Errorf("users: lookup username: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Status:       StatusActive,
		Role:         role,
		StoreID:      storeID,
		RealName:     strings.TrimSpace(in.RealName),
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return User{}, shared.ValidationErrors{"username": ErrUsernameTaken.Message}
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	action := shared.AuditUserCreate
	if actorID == 0 {
		action = shared.AuditRegister
		actorID = u.ID
	}
	s.record(ctx, actorID, action, u.ID, map[string]any{"username": u.Username, "role": string(u.Role)})
	return u, nil
}

// Update applies the admin edit form.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, in EditInput) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	in.Email = strings.TrimSpace(in.Email)
	errs := shared.ValidateStruct(s.validate, in)
	role, storeID := s.checkRoleStore(ctx, in.Role, in.StoreID, errs)
	if actor.UserID == id && !in.Active {
		errs.Add("status", "You cannot disable your own account")
	}
	if err := errs.Err(); err != nil {
		return User{}, err
	}
	u.RealName = strings.TrimSpace(in.RealName)
	u.Email = in.Email
	u.Phone = strings.TrimSpace(in.Phone)
	u.Role = role
	u.StoreID = storeID
	u.Status = StatusDisabled
	if in.Active {
		u.Status = StatusActive
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, fmt.Errorf("users: update: %w", err)
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor.UserID, shared.AuditUserUpdate, id, map[string]any{"role": string(role), "store_id": storeID, "status": u.Status})
	return u, nil
}

// UpdateProfile saves the self-service profile. Store users may do it once.
func (s *Service) UpdateProfile(ctx context.Context, actor shared.Principal, in ProfileInput) error {
	u, err := s.repo.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if u.Role.IsStoreGroup() && u.ProfileCompleted {
		return ErrProfileLocked
	}
	in.RealName = strings.TrimSpace(in.RealName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := shared.ValidateStruct(s.validate, in).Err(); err != nil {
		return err
	}
	if err := s.repo.UpdateProfile(ctx, u.ID, in, u.Role.IsStoreGroup()); err != nil {
		return fmt.Errorf("users: update profile: %w", err)
	}
	s.record(ctx, actor.UserID, shared.AuditProfileUpdate, u.ID, nil)
	return nil
}

// ProfileEditable reports whether u may still open the profile form.
func ProfileEditable(u User) bool {
	return !(u.Role.IsStoreGroup() && u.ProfileCompleted)
}

// Delete removes a user. Administrators cannot remove themselves.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) (User, error) {
	if actor.UserID == id {
		return User{}, ErrSelfDelete
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return User{}, fmt.Errorf("users: delete: %w", err)
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor.UserID, shared.AuditUserDelete, id, map[string]any{"username": u.Username})
	return u, nil
}

// ResetPassword sets the configured default password and returns it.
func (s *Service) ResetPassword(ctx context.Context, actor shared.Principal, id int64) (User, string, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.opts.ResetPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", fmt.Errorf("users: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return User{}, "", fmt.Errorf("users: reset password: %w", err)
	}
	s.record(ctx, actor.UserID, shared.AuditUserReset, id, nil)
	return u, s.opts.ResetPassword, nil
}

// checkRoleStore applies the role/store rule: store roles need a store, management roles never keep one.
func (s *Service) checkRoleStore(ctx context.Context, rawRole, rawStore string, errs shared.ValidationErrors) (shared.Role, string) {
	role, ok := shared.ParseRole(rawRole)
	if !ok {
		if rawRole != "" {
			errs.Add("role", "Unknown role")
		}
		return "", ""
	}
	if role.IsManagement() {
		return role, ""
	}
	storeID := strings.TrimSpace(rawStore)
	if storeID == "" {
		errs.Add("store_id", "Store staff must select a store")
		return role, ""
	}
	if s.stores != nil {
		if _, err := s.stores.Get(ctx, storeID); err != nil {
			errs.Add("store_id", "Unknown store")
		}
	}
	return role, storeID
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Invalidate(ctx, id)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
}
