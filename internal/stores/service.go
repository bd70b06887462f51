package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	audit    shared.AuditRecorder
}

func NewService(repo Repository, audit shared.AuditRecorder) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	return &Service{repo: repo, validate: shared.NewValidator(), audit: audit}
}

func (s *Service) List(ctx context.Context) ([]Store, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Store, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Store{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// VisibleStores lists every store for management roles and only the bound store otherwise.
// A store-group user without a store sees nothing.
func (s *Service) VisibleStores(ctx context.Context, p shared.Principal) ([]Store, error) {
	if p.Role.IsManagement() {
		return s.repo.List(ctx)
	}
	if p.StoreID == "" {
		return nil, nil
	}
	store, err := s.repo.Get(ctx, p.StoreID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return []Store{store}, nil
}

// Save creates or updates a store. isNew selects the insert path.
func (s *Service) Save(ctx context.Context, actor shared.Principal, form StoreForm, isNew bool) (Store, error) {
	form.ID = strings.TrimSpace(form.ID)
	form.Name = strings.TrimSpace(form.Name)
	form.Address = strings.TrimSpace(form.Address)
	if errs := shared.ValidateStruct(s.validate, form); len(errs) > 0 {
		return Store{}, errs
	}
	store := form.ToStore()
	var err error
	if isNew {
		err = s.repo.Create(ctx, store)
		if errors.Is(err, shared.ErrDuplicate) {
			return Store{}, shared.ValidationErrors{"store_id": "Store ID already exists"}
		}
	} else {
		err = s.repo.Update(ctx, store)
	}
	if err != nil {
		return Store{}, fmt.Errorf("stores: save: %w", err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditStoreSave,
		Entity:   "store",
		EntityID: store.ID,
		Meta:     map[string]any{"created": isNew, "third_party_platform": store.ThirdPartyPlatform},
	})
	return store, nil
}
