package users

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
)

type memRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemRepo(seed ...User) *memRepo {
	m := &memRepo{users: map[int64]User{}}
	for _, u := range seed {
		m.users[u.ID] = u
		if u.ID > m.nextID {
			m.nextID = u.ID
		}
	}
	return m
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var matched []User
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(filter.Query)) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (m *memRepo) Create(ctx context.Context, u User) (User, error) {
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return u, nil
}

func (m *memRepo) Update(ctx context.Context, u User) error {
	if _, ok := m.users[u.ID]; !ok {
		return shared.ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *memRepo) UpdateProfile(ctx context.Context, id int64, in ProfileInput, completed bool) error {
	u := m.users[id]
	u.RealName, u.Email, u.Phone = in.RealName, in.Email, in.Phone
	u.ProfileCompleted = u.ProfileCompleted || completed
	m.users[id] = u
	return nil
}

func (m *memRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	u := m.users[id]
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type storeStub map[string]stores.Store

func (s storeStub) Get(ctx context.Context, id string) (stores.Store, error) {
	st, ok := s[id]
	if !ok {
		return stores.Store{}, shared.ErrNotFound
	}
	return st, nil
}

func (s storeStub) List(ctx context.Context) ([]stores.Store, error) {
	out := make([]stores.Store, 0, len(s))
	for _, st := range s {
		out = append(out, st)
	}
	return out, nil
}

type recordingInvalidator struct{ ids []int64 }

func (r *recordingInvalidator) Invalidate(ctx context.Context, userID int64) error {
	r.ids = append(r.ids, userID)
	return nil
}

var testStores = storeStub{"190": {ID: "190", Name: "Central WestGate"}}

func newTestService(repo *memRepo) (*Service, *recordingInvalidator) {
	inv := &recordingInvalidator{}
	return NewService(repo, testStores, inv, nil, Options{PerPage: 2, ResetPassword: "123456"}), inv
}

var admin = shared.Principal{UserID: 1, Username: "admin", Role: shared.RoleAdmin}

func TestCreateRoleStoreRules(t *testing.T) {
	svc, _ := newTestService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, 0, CreateInput{Username: "clerk", Password: "secret1", ConfirmPassword: "secret1", Role: "employee"})
	var fields shared.ValidationErrors
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, "Store staff must select a store", fields["store_id"])

	u, err := svc.Create(ctx, 0, CreateInput{Username: "finance1", Password: "secret1", ConfirmPassword: "secret1", Role: "finance", StoreID: "190"})
	require.NoError(t, err)
	assert.Empty(t, u.StoreID, "management roles never keep a store")
	assert.True(t, u.Active())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")))
}

func TestCreateRejectsDuplicateAndShortInput(t *testing.T) {
	repo := newMemRepo(User{ID: 3, Username: "taken", Role: shared.RoleEmployee})
	svc, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), 1, CreateInput{Username: "taken", Password: "secret1", ConfirmPassword: "secret1", Role: "employee", StoreID: "190"})
	var fields shared.ValidationErrors
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, "Username already exists", fields["username"])

	_, err = svc.Create(context.Background(), 1, CreateInput{Username: "abc", Password: "12345", ConfirmPassword: "54321", Role: "wizard"})
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "confirm_password")
	assert.Equal(t, "Unknown role", fields["role"])
}

func TestListSearchesAndPaginates(t *testing.T) {
	repo := newMemRepo(
		User{ID: 1, Username: "admin"},
		User{ID: 2, Username: "store190"},
		User{ID: 3, Username: "store191"},
		User{ID: 4, Username: "store76"},
	)
	svc, _ := newTestService(repo)

	res, err := svc.List(context.Background(), " store ", 1)
	require.NoError(t, err)
	assert.Equal(t, "store", res.Query)
	assert.Equal(t, 3, res.Pagination.Total)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	require.Len(t, res.Users, 2)
	assert.Equal(t, int64(4), res.Users[0].ID)

	res, err = svc.List(context.Background(), "store", 2)
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, int64(2), res.Users[0].ID)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	repo := newMemRepo(User{ID: 7, Username: "clerk", Role: shared.RoleEmployee, StoreID: "190", Status: StatusActive})
	svc, inv := newTestService(repo)

	u, err := svc.Update(context.Background(), admin, 7, EditInput{Role: "branch_manager", StoreID: "190", Active: false})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleBranchManager, u.Role)
	assert.Equal(t, StatusDisabled, repo.users[7].Status)
	assert.Equal(t, []int64{7}, inv.ids)
}

func TestUpdateCannotDisableSelf(t *testing.T) {
	repo := newMemRepo(User{ID: 1, Username: "admin", Role: shared.RoleAdmin, Status: StatusActive})
	svc, _ := newTestService(repo)

	_, err := svc.Update(context.Background(), admin, 1, EditInput{Role: "admin", Active: false})
	var fields shared.ValidationErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "status")
}

func TestDeleteGuardsSelf(t *testing.T) {
	repo := newMemRepo(User{ID: 1, Username: "admin"}, User{ID: 2, Username: "clerk"})
	svc, inv := newTestService(repo)

	_, err := svc.Delete(context.Background(), admin, 1)
	assert.ErrorIs(t, err, ErrSelfDelete)

	_, err = svc.Delete(context.Background(), admin, 2)
	require.NoError(t, err)
	assert.NotContains(t, repo.users, int64(2))
	assert.Equal(t, []int64{2}, inv.ids)

	_, err = svc.Delete(context.Background(), admin, 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResetPasswordUsesDefault(t *testing.T) {
	repo := newMemRepo(User{ID: 2, Username: "clerk", PasswordHash: "old"})
	svc, _ := newTestService(repo)

	_, password, err := svc.ResetPassword(context.Background(), admin, 2)
	require.NoError(t, err)
	assert.Equal(t, "123456", password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[2].PasswordHash), []byte("123456")))
}

func TestProfileEditableOnceForStoreGroup(t *testing.T) {
	repo := newMemRepo(
		User{ID: 5, Username: "clerk", Role: shared.RoleEmployee},
		User{ID: 6, Username: "boss", Role: shared.RoleHeadManager},
	)
	svc, _ := newTestService(repo)
	ctx := context.Background()
	clerk := shared.Principal{UserID: 5, Role: shared.RoleEmployee}
	boss := shared.Principal{UserID: 6, Role: shared.RoleHeadManager}
	in := ProfileInput{RealName: "Somchai", Email: "somchai@example.com"}

	require.NoError(t, svc.UpdateProfile(ctx, clerk, in))
	assert.True(t, repo.users[5].ProfileCompleted)
	assert.ErrorIs(t, svc.UpdateProfile(ctx, clerk, in), ErrProfileLocked)

	require.NoError(t, svc.UpdateProfile(ctx, boss, in))
	require.NoError(t, svc.UpdateProfile(ctx, boss, in))
	assert.False(t, repo.users[6].ProfileCompleted)

	err := svc.UpdateProfile(ctx, boss, ProfileInput{RealName: "x", Email: "bad"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
