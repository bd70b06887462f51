package staff

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
)

// StoreLookup resolves store ids.
type StoreLookup interface {
	Get(ctx context.Context, id string) (stores.Store, error)
}

type Service struct {
	repo     Repository
	stores   StoreLookup
	validate *validator.Validate
	audit    shared.AuditRecorder
}

func NewService(repo Repository, stores StoreLookup, audit shared.AuditRecorder) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	return &Service{repo: repo, stores: stores, validate: shared.NewValidator(), audit: audit}
}

// ForUser returns the staff record, or shared.ErrNotFound when none was filed.
func (s *Service) ForUser(ctx context.Context, userID int64) (StoreStaff, error) {
	return s.repo.GetByUser(ctx, userID)
}

// Create files the staff record for actor. It can only happen once.
func (s *Service) Create(ctx context.Context, actor shared.Principal, form Form) (StoreStaff, error) {
	if _, err := s.repo.GetByUser(ctx, actor.UserID); err == nil {
		return StoreStaff{}, ErrAlreadyExists
	} else if !errors.Is(err, shared.ErrNotFound) {
		return StoreStaff{}, fmt.Errorf("staff: lookup: %w", err)
	}

	form.StoreID = strings.TrimSpace(form.StoreID)
	form.BankAccountName = strings.TrimSpace(form.BankAccountName)
	form.BankAccountNumber = strings.TrimSpace(form.BankAccountNumber)
	form.Email = strings.TrimSpace(form.Email)
	errs := shared.ValidateStruct(s.validate, form)

	rec := StoreStaff{
		UserID:            actor.UserID,
		StoreID:           form.StoreID,
		BankAccountName:   form.BankAccountName,
		BankAccountNumber: form.BankAccountNumber,
		IsPrimaryContact:  form.IsPrimaryContact,
		Phone:             strings.TrimSpace(form.Phone),
		LineID:            strings.TrimSpace(form.LineID),
		Email:             form.Email,
	}
	if form.StartDate != "" {
		start, err := parseDay(form.StartDate)
		if err != nil {
			errs.Add("start_date", "Use the YYYY-MM-DD format")
		}
		rec.StartDate = start
	}
	if raw := strings.TrimSpace(form.EndDate); raw != "" {
		end, err := parseDay(raw)
		switch {
		case err != nil:
			errs.Add("end_date", "Use the YYYY-MM-DD format")
		case !rec.StartDate.IsZero() && end.Before(rec.StartDate):
			errs.Add("end_date", "End date cannot be before the start date")
		default:
			rec.EndDate = &end
		}
	}
	if form.StoreID != "" {
		if actor.Role.IsStoreGroup() && actor.StoreID != "" && actor.StoreID != form.StoreID {
			errs.Add("store_id", "You can only register for your own store")
		} else if _, err := s.stores.Get(ctx, form.StoreID); err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return StoreStaff{}, fmt.Errorf("staff: store: %w", err)
			}
			errs.Add("store_id", "Unknown store")
		}
	}
	if err := errs.Err(); err != nil {
		return StoreStaff{}, err
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return StoreStaff{}, err
		}
		return StoreStaff{}, fmt.Errorf("staff: create: %w", err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditStaffCreate,
		Entity:   "store_staff",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"store_id": created.StoreID},
	})
	return created, nil
}
