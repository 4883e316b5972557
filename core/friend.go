package core

import (
	"context"
	"errors"
	"time"
)

const (
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

var (
	// ErrAlreadyFriends is returned when a request targets an existing friend.
	ErrAlreadyFriends = errors.New("users are already friends")
	// ErrDuplicateRequest is returned when a pending request already exists
	// between the two users, in either direction.
	ErrDuplicateRequest = errors.New("friend request already pending")
	// ErrRequestNotFound is returned when no matching pending request exists.
	ErrRequestNotFound = errors.New("friend request not found")
	// ErrSelfRequest is returned when a user sends a request to themselves.
	ErrSelfRequest = errors.New("cannot send friend request to yourself")
)

// FriendRequest is a pending invitation from one user to another. Resolved
// requests (accepted or rejected) are deleted, not kept as history.
type FriendRequest struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendStore owns the friendship workflow: pending requests and the
// symmetric friend sets of both accounts. A friendship exists only when each
// username appears in the other's set; every mutation updates both sides in
// one transaction.
type FriendStore interface {
	// SendRequest creates a pending request from one user to another. It
	// fails with ErrAlreadyFriends if they are already friends and with
	// ErrDuplicateRequest if a pending request exists in either direction.
	SendRequest(ctx context.Context, from, to string) (*FriendRequest, error)

	// Withdraw deletes the pending request from -> to. It fails with
	// ErrRequestNotFound if none exists.
	Withdraw(ctx context.Context, from, to string) error

	// Respond resolves a pending request. On acceptance both friend sets
	// gain the other username atomically. The request record is deleted
	// regardless of the action. The resolved request is returned so callers
	// can notify both parties.
	Respond(ctx context.Context, requestID, action string) (*FriendRequest, error)

	// Cancel removes an existing friendship from both sides atomically.
	Cancel(ctx context.Context, a, b string) error

	// Friends returns the friend set of a user.
	Friends(ctx context.Context, username string) ([]string, error)

	// PendingRequestsFor returns all pending requests addressed to a user.
	PendingRequestsFor(ctx context.Context, to string) ([]FriendRequest, error)

	// AreFriends reports whether the symmetric friendship exists.
	AreFriends(ctx context.Context, a, b string) (bool, error)
}
