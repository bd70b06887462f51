package staff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
)

type memRepo struct {
	byUser map[int64]StoreStaff
	nextID int64
}

func (m *memRepo) GetByUser(ctx context.Context, userID int64) (StoreStaff, error) {
	s, ok := m.byUser[userID]
	if !ok {
		return StoreStaff{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) Create(ctx context.Context, s StoreStaff) (StoreStaff, error) {
	if _, ok := m.byUser[s.UserID]; ok {
		return StoreStaff{}, ErrAlreadyExists
	}
	m.nextID++
	s.ID = m.nextID
	m.byUser[s.UserID] = s
	return s, nil
}

type storeStub map[string]stores.Store

func (s storeStub) Get(ctx context.Context, id string) (stores.Store, error) {
	st, ok := s[id]
	if !ok {
		return stores.Store{}, shared.ErrNotFound
	}
	return st, nil
}

func newTestService() (*Service, *memRepo) {
	repo := &memRepo{byUser: map[int64]StoreStaff{}}
	lookup := storeStub{"190": {ID: "190", Name: "Central WestGate"}, "191": {ID: "191", Name: "Central Rama 2"}}
	return NewService(repo, lookup, nil), repo
}

func validForm() Form {
	return Form{StoreID: "190", BankAccountName: "Somchai", BankAccountNumber: "123-4-56789", StartDate: "2024-03-01"}
}

func TestCreateOnce(t *testing.T) {
	svc, repo := newTestService()
	actor := shared.Principal{UserID: 5, Role: shared.RoleEmployee, StoreID: "190"}

	created, err := svc.Create(context.Background(), actor, validForm())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), created.StartDate)
	assert.Len(t, repo.byUser, 1)

	_, err = svc.Create(context.Background(), actor, validForm())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	actor := shared.Principal{UserID: 6, Role: shared.RoleEmployee, StoreID: "191"}

	form := validForm()
	form.BankAccountNumber = ""
	form.Email = "not-an-email"
	form.EndDate = "2024-02-01"
	_, err := svc.Create(context.Background(), actor, form)

	var fields shared.ValidationErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "bank_account_number")
	assert.Contains(t, fields, "email")
	assert.Equal(t, "End date cannot be before the start date", fields["end_date"])
	assert.Equal(t, "You can only register for your own store", fields["store_id"])
}

func TestCreateUnknownStore(t *testing.T) {
	svc, _ := newTestService()
	form := validForm()
	form.StoreID = "999"
	_, err := svc.Create(context.Background(), shared.Principal{UserID: 1, Role: shared.RoleAdmin}, form)

	var fields shared.ValidationErrors
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, "Unknown store", fields["store_id"])
}
