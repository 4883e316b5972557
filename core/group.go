package core

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	// ErrGroupNotFound is returned when no group matches the room identifier.
	ErrGroupNotFound = errors.New("group not found")
	// ErrNotAuthorized is returned when the actor's role does not permit the
	// operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrAlreadyMember is returned when the target is already in the group.
	ErrAlreadyMember = errors.New("member already in group")
	// ErrNotMember is returned when the target is not in the group.
	ErrNotMember = errors.New("member not in group")
	// ErrAlreadyDeputy is returned when the target already holds the deputy
	// rank.
	ErrAlreadyDeputy = errors.New("member is already deputy")
	// ErrNotDeputy is returned when the target does not hold the deputy rank.
	ErrNotDeputy = errors.New("member is not deputy")
	// ErrCannotRemoveOwner is returned when a removal targets the owner.
	ErrCannotRemoveOwner = errors.New("cannot remove group owner")
	// ErrOwnerCannotLeave is returned when the owner tries to leave without
	// transferring ownership or disbanding.
	ErrOwnerCannotLeave = errors.New("owner cannot leave the group")
	// ErrOwnerCannotBeDeputy is returned when the deputy rank is assigned to
	// the owner; ownership and deputy are mutually exclusive.
	ErrOwnerCannotBeDeputy = errors.New("owner cannot be deputy")
)

// Group is a persisted group chat record. The owner is always a member and
// never a deputy; deputies are always members.
type Group struct {
	RoomID    string    `json:"roomId"`
	Name      string    `json:"groupName"`
	Owner     string    `json:"owner"`
	Deputies  []string  `json:"deputies"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// IsMember reports whether username is in the group.
func (g *Group) IsMember(username string) bool {
	return slices.Contains(g.Members, username)
}

// IsDeputy reports whether username holds the deputy rank.
func (g *Group) IsDeputy(username string) bool {
	return slices.Contains(g.Deputies, username)
}

// GroupStore owns the group membership state machine. Every mutating method
// takes the acting username and enforces the role requirements of the
// operation before touching the record; a rejected operation leaves the
// group unchanged. Mutations return the updated group snapshot so callers
// can broadcast it.
type GroupStore interface {
	// CreateGroup creates a group owned by creator. The creator is always
	// included in the member set.
	CreateGroup(ctx context.Context, name, creator string, members []string) (*Group, error)

	// GetGroupByRoomID returns the group, or ErrGroupNotFound.
	GetGroupByRoomID(ctx context.Context, roomID string) (*Group, error)

	// ListGroupsByMember returns all groups the user belongs to.
	ListGroupsByMember(ctx context.Context, username string) ([]Group, error)

	// AddMember adds newMember. Any current member may add.
	AddMember(ctx context.Context, roomID, actor, newMember string) (*Group, error)

	// RemoveMember removes target and any deputy rank it held. Only the
	// owner or a deputy may remove, and the owner cannot be targeted.
	RemoveMember(ctx context.Context, roomID, actor, target string) (*Group, error)

	// TransferOwner makes newOwner the owner. Owner only; the new owner
	// must already be a member and loses any deputy rank.
	TransferOwner(ctx context.Context, roomID, actor, newOwner string) (*Group, error)

	// AssignDeputy grants the deputy rank. Owner only; the target must be a
	// member other than the owner.
	AssignDeputy(ctx context.Context, roomID, actor, member string) (*Group, error)

	// RevokeDeputy removes the deputy rank. Owner only.
	RevokeDeputy(ctx context.Context, roomID, actor, member string) (*Group, error)

	// Leave removes the actor from the group. The owner must transfer
	// ownership or disband instead.
	Leave(ctx context.Context, roomID, actor string) (*Group, error)

	// Disband deletes the group record entirely. Owner only. The final
	// snapshot is returned so callers can notify all former members.
	Disband(ctx context.Context, roomID, actor string) (*Group, error)
}
