package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SQLiteOTPStore struct {
	db *sql.DB
}

func NewSQLiteOTPStore(db *sql.DB) *SQLiteOTPStore {
	return &SQLiteOTPStore{db: db}
}

func (s *SQLiteOTPStore) CreateOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO otps (email, code, expires_at, created_at)
	VALUES (@email, @code, @expires_at, @created_at)`,
		sql.Named("email", email),
		sql.Named("code", code),
		sql.Named("expires_at", now.Add(ttl)),
		sql.Named("created_at", now),
	)
	if err != nil {
		return fmt.Errorf("inserting otp: %w", err)
	}
	return nil
}

func (s *SQLiteOTPStore) ConsumeOTP(ctx context.Context, email, code string) error {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, expires_at FROM otps
	WHERE email = @email AND code = @code
	ORDER BY created_at DESC LIMIT 1`,
		sql.Named("email", email), sql.Named("code", code))

	var id int64
	var expiresAt time.Time
	if err := row.Scan(&id, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("scanning otp: %w", err)
	}

	if time.Now().UTC().After(expiresAt) {
		return ErrExpiredOTP
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM otps WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting otp: %w", err)
	}
	return nil
}
