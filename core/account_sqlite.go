package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

type SQLiteAccountStore struct {
	db *sql.DB
}

func NewSQLiteAccountStore(db *sql.DB) *SQLiteAccountStore {
	return &SQLiteAccountStore{db: db}
}

// CreateAccount relies on the schema for uniqueness: the username primary
// key and the partial unique indexes on non-empty email and phone. The
// insert is the only check, so two concurrent registrations cannot both
// claim the same identifier.
func (s *SQLiteAccountStore) CreateAccount(ctx context.Context, account Account) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	query := `
	INSERT INTO accounts (username, password, fullname, email, phone, birthday, image, created_at)
	VALUES (@username, @password, @fullname, @email, @phone, @birthday, @image, @created_at)`
	_, err = s.db.ExecContext(ctx, query,
		sql.Named("username", account.Username),
		sql.Named("password", string(hashed)),
		sql.Named("fullname", account.Fullname),
		sql.Named("email", account.Email),
		sql.Named("phone", account.Phone),
		sql.Named("birthday", account.Birthday),
		sql.Named("image", account.Image),
		sql.Named("created_at", time.Now().UTC()),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrConflictedAccount
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *SQLiteAccountStore) getAccount(ctx context.Context, where string, arg interface{}) (*AccountProfile, error) {
	query := `
	SELECT username, fullname, email, phone, birthday, image, created_at
	FROM accounts WHERE ` + where + ` LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, arg)
	profile := new(AccountProfile)
	err := row.Scan(&profile.Username, &profile.Fullname, &profile.Email,
		&profile.Phone, &profile.Birthday, &profile.Image, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	return profile, nil
}

func (s *SQLiteAccountStore) GetAccountByUsername(ctx context.Context, username string) (*AccountProfile, error) {
	return s.getAccount(ctx, "username = ?", username)
}

func (s *SQLiteAccountStore) GetAccountByEmail(ctx context.Context, email string) (*AccountProfile, error) {
	if email == "" {
		return nil, nil
	}
	return s.getAccount(ctx, "email = ?", email)
}

func (s *SQLiteAccountStore) ComparePassword(ctx context.Context, username, password string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT password FROM accounts WHERE username = ? LIMIT 1", username)

	var stored string
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrAccountNotFound
		}
		return false, fmt.Errorf("scanning password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *SQLiteAccountStore) setPassword(ctx context.Context, where string, key, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET password = ? WHERE "+where, string(hashed), key)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *SQLiteAccountStore) UpdatePassword(ctx context.Context, email, newPassword string) error {
	return s.setPassword(ctx, "email = ?", email, newPassword)
}

func (s *SQLiteAccountStore) ChangePassword(ctx context.Context, username, newPassword string) error {
	return s.setPassword(ctx, "username = ?", username, newPassword)
}

func (s *SQLiteAccountStore) UpdateProfile(ctx context.Context, username string, update ProfileUpdate) (*AccountProfile, error) {
	assignments := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if update.Fullname != "" {
		assignments = append(assignments, "fullname = ?")
		args = append(args, update.Fullname)
	}
	if update.Birthday != "" {
		assignments = append(assignments, "birthday = ?")
		args = append(args, update.Birthday)
	}
	if update.Image != "" {
		assignments = append(assignments, "image = ?")
		args = append(args, update.Image)
	}

	if len(assignments) > 0 {
		args = append(args, username)
		res, err := s.db.ExecContext(ctx,
			"UPDATE accounts SET "+strings.Join(assignments, ", ")+" WHERE username = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("updating profile: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("RowsAffected: %w", err)
		}
		if n == 0 {
			return nil, ErrAccountNotFound
		}
	}

	profile, err := s.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrAccountNotFound
	}
	return profile, nil
}

func (s *SQLiteAccountStore) exists(ctx context.Context, where string, arg string) (bool, error) {
	if arg == "" {
		return false, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT count(*) FROM accounts WHERE "+where, arg)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteAccountStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "username = ?", username)
}

func (s *SQLiteAccountStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email = ?", email)
}

func (s *SQLiteAccountStore) PhoneExists(ctx context.Context, phone string) (bool, error) {
	return s.exists(ctx, "phone = ?", phone)
}
