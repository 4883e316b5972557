package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SQLiteFriendStore struct {
	db *sql.DB
}

func NewSQLiteFriendStore(db *sql.DB) *SQLiteFriendStore {
	return &SQLiteFriendStore{db: db}
}

func (s *SQLiteFriendStore) SendRequest(ctx context.Context, from, to string) (*FriendRequest, error) {
	if from == to {
		return nil, ErrSelfRequest
	}

	friends, err := s.AreFriends(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("AreFriends: %w", err)
	}
	if friends {
		return nil, ErrAlreadyFriends
	}

	// A pending request in either direction blocks a new one.
	row := s.db.QueryRowContext(ctx, `
	SELECT count(*) FROM friend_requests
	WHERE (from_user = @a AND to_user = @b) OR (from_user = @b AND to_user = @a)`,
		sql.Named("a", from), sql.Named("b", to))
	var count int
	if err := row.Scan(&count); err != nil {
		return nil, fmt.Errorf("scanning count: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateRequest
	}

	request := &FriendRequest{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO friend_requests (id, from_user, to_user, status, created_at)
	VALUES (@id, @from, @to, @status, @created_at)`,
		sql.Named("id", request.ID),
		sql.Named("from", request.From),
		sql.Named("to", request.To),
		sql.Named("status", request.Status),
		sql.Named("created_at", request.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting friend request: %w", err)
	}
	return request, nil
}

func (s *SQLiteFriendStore) Withdraw(ctx context.Context, from, to string) error {
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM friend_requests
	WHERE from_user = @from AND to_user = @to AND status = 'pending'`,
		sql.Named("from", from), sql.Named("to", to))
	if err != nil {
		return fmt.Errorf("deleting friend request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *SQLiteFriendStore) Respond(ctx context.Context, requestID, action string) (*FriendRequest, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, from_user, to_user, status, created_at
	FROM friend_requests WHERE id = ?`, requestID)

	request := new(FriendRequest)
	err := row.Scan(&request.ID, &request.From, &request.To, &request.Status, &request.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("scanning friend request: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	if action == RequestAccepted {
		// Both sides of the friendship are written in the same transaction
		// so the symmetry invariant cannot be observed half-applied.
		now := time.Now().UTC()
		query := `
		INSERT INTO friends (username, friend, created_at)
		VALUES (@username, @friend, @created_at) ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, query,
			sql.Named("username", request.From), sql.Named("friend", request.To),
			sql.Named("created_at", now)); err != nil {
			return nil, fmt.Errorf("inserting friendship: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			sql.Named("username", request.To), sql.Named("friend", request.From),
			sql.Named("created_at", now)); err != nil {
			return nil, fmt.Errorf("inserting reverse friendship: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM friend_requests WHERE id = ?", requestID); err != nil {
		return nil, fmt.Errorf("deleting friend request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}

	request.Status = action
	return request, nil
}

func (s *SQLiteFriendStore) Cancel(ctx context.Context, a, b string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	query := `DELETE FROM friends WHERE username = @username AND friend = @friend`
	if _, err := tx.ExecContext(ctx, query,
		sql.Named("username", a), sql.Named("friend", b)); err != nil {
		return fmt.Errorf("deleting friendship: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query,
		sql.Named("username", b), sql.Named("friend", a)); err != nil {
		return fmt.Errorf("deleting reverse friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

func (s *SQLiteFriendStore) Friends(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT friend FROM friends WHERE username = ? ORDER BY friend", username)
	if err != nil {
		return nil, fmt.Errorf("querying friends: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, friend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return friends, nil
}

func (s *SQLiteFriendStore) PendingRequestsFor(ctx context.Context, to string) ([]FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, from_user, to_user, status, created_at
	FROM friend_requests
	WHERE to_user = ? AND status = 'pending'
	ORDER BY created_at`, to)
	if err != nil {
		return nil, fmt.Errorf("querying friend requests: %w", err)
	}
	defer rows.Close()

	var requests []FriendRequest
	for rows.Next() {
		var r FriendRequest
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return requests, nil
}

func (s *SQLiteFriendStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	// Both directions must exist for a true friendship; counting them guards
	// against asymmetric state left by a defect elsewhere.
	row := s.db.QueryRowContext(ctx, `
	SELECT count(*) FROM friends
	WHERE (username = @a AND friend = @b) OR (username = @b AND friend = @a)`,
		sql.Named("a", a), sql.Named("b", b))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count == 2, nil
}
