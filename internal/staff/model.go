package staff

import (
	"errors"
	"time"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// ErrAlreadyExists is returned when the user already filed a staff record.
var ErrAlreadyExists = shared.NewDomainError("staff.exists", "Your staff profile already exists and can no longer be changed")

var errBadDate = errors.New("staff: bad date")

// StoreStaff is the one-off employee record attached to a user.
type StoreStaff struct {
	ID                int64
	UserID            int64
	StoreID           string
	StoreName         string
	BankAccountName   string
	BankAccountNumber string
	IsPrimaryContact  bool
	Phone             string
	LineID            string
	Email             string
	StartDate         time.Time
	EndDate           *time.Time
	CreatedAt         time.Time
}

// Form binds the staff profile form.
type Form struct {
	StoreID           string `form:"store_id" validate:"required,max=32"`
	BankAccountName   string `form:"bank_account_name" validate:"required,max=100"`
	BankAccountNumber string `form:"bank_account_number" validate:"required,max=100"`
	IsPrimaryContact  bool   `form:"is_primary_contact"`
	Phone             string `form:"phone" validate:"max=50"`
	LineID            string `form:"line_id" validate:"max=100"`
	Email             string `form:"email" validate:"omitempty,email,max=100"`
	StartDate         string `form:"start_date" validate:"required"`
	EndDate           string `form:"end_date"`
}

func parseDay(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return t, nil
}
