package users

import (
	"time"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Account status values stored in users.status.
const (
	StatusDisabled int16 = 0
	StatusActive   int16 = 1
)

var (
	// ErrUsernameTaken is returned by the repository on a duplicate username.
	ErrUsernameTaken = shared.NewDomainError("users.username_taken", "Username already exists")
	// ErrSelfDelete stops an administrator from removing their own account.
	ErrSelfDelete = shared.NewDomainError("users.self_delete", "You cannot delete your own account")
	// ErrProfileLocked is returned when a store user edits an already completed profile.
	ErrProfileLocked = shared.NewDomainError("users.profile_locked", "Your profile has already been completed and cannot be changed")
)

// User represents a user account for management.
type User struct {
	ID               int64
	Username         string
	PasswordHash     string
	Status           int16
	Role             shared.Role
	StoreID          string
	StoreName        string
	RealName         string
	Email            string
	Phone            string
	ProfileCompleted bool
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether the account may log in.
func (u User) Active() bool { return u.Status == StatusActive }

// CreateInput carries registration and admin create fields.
type CreateInput struct {
	Username        string `form:"username" validate:"required,min=4,max=20"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `form:"role" validate:"required"`
	StoreID         string `form:"store_id"`
	RealName        string `form:"real_name" validate:"max=100"`
	Email           string `form:"email" validate:"omitempty,email,max=100"`
	Phone           string `form:"phone" validate:"max=32"`
}

// EditInput carries the admin edit form.
type EditInput struct {
	RealName string `form:"real_name" validate:"max=100"`
	Email    string `form:"email" validate:"omitempty,email,max=100"`
	Phone    string `form:"phone" validate:"max=32"`
	Role     string `form:"role" validate:"required"`
	StoreID  string `form:"store_id"`
	Active   bool   `form:"status"`
}

// ProfileInput carries the self-service profile form.
type ProfileInput struct {
	RealName string `form:"real_name" validate:"required,max=100"`
	Email    string `form:"email" validate:"required,email,max=100"`
	Phone    string `form:"phone" validate:"max=32"`
}

// ListFilter narrows the admin user list.
type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}
