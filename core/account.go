package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConflictedAccount is returned when the username, email or phone is
	// already taken.
	ErrConflictedAccount = errors.New("account already exists")
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
)

// Account is a registered user. The username is the sole actor identifier
// throughout the system.
type Account struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=6"`
	Fullname string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"`
	Image    string `json:"image"`
}

func (a *Account) Validate() error {
	return validate.Struct(a)
}

// AccountProfile is an account without its secrets, safe to return to
// clients.
type AccountProfile struct {
	Username  string    `json:"username"`
	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Birthday  string    `json:"birthday"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileUpdate carries the mutable profile fields; zero values are left
// unchanged.
type ProfileUpdate struct {
	Fullname string `json:"fullname"`
	Birthday string `json:"birthday"`
	Image    string `json:"image"`
}

type AccountStore interface {
	// CreateAccount stores a new account with a hashed password. It returns
	// ErrConflictedAccount if the username, email or phone is taken.
	CreateAccount(ctx context.Context, account Account) error

	// GetAccountByUsername returns the account profile, or nil if no such
	// account exists.
	GetAccountByUsername(ctx context.Context, username string) (*AccountProfile, error)

	// GetAccountByEmail returns the account profile, or nil if no such
	// account exists.
	GetAccountByEmail(ctx context.Context, email string) (*AccountProfile, error)

	// ComparePassword reports whether the password matches the stored hash.
	// It returns ErrAccountNotFound if the account does not exist.
	ComparePassword(ctx context.Context, username, password string) (bool, error)

	// UpdatePassword replaces the stored password hash for the account that
	// owns the email address.
	UpdatePassword(ctx context.Context, email, newPassword string) error

	// ChangePassword replaces the stored password hash for the username.
	ChangePassword(ctx context.Context, username, newPassword string) error

	// UpdateProfile applies the non-zero fields of update to the account.
	UpdateProfile(ctx context.Context, username string, update ProfileUpdate) (*AccountProfile, error)

	// UsernameExists, EmailExists and PhoneExists support the registration
	// availability checks.
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
}

var (
	// ErrInvalidOTP is returned when no matching one-time code exists.
	ErrInvalidOTP = errors.New("invalid one-time code")
	// ErrExpiredOTP is returned when the matching code has expired.
	ErrExpiredOTP = errors.New("one-time code expired")
)

type OTPStore interface {
	// CreateOTP stores a one-time code for the email with the given
	// lifetime.
	CreateOTP(ctx context.Context, email, code string, ttl time.Duration) error

	// ConsumeOTP verifies the code for the email and deletes it on success.
	// It returns ErrInvalidOTP or ErrExpiredOTP on failure.
	ConsumeOTP(ctx context.Context, email, code string) error
}
