package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type GroupFixture struct {
	*BaseFixture
	groupStore GroupStore
}

func NewGroupFixture(t *testing.T) *GroupFixture {
	base := NewBaseFixture(t)
	return &GroupFixture{
		BaseFixture: base,
		groupStore:  NewSQLiteGroupStore(base.db),
	}
}

func (f *GroupFixture) seedGroup(members ...string) *Group {
	group, err := f.groupStore.CreateGroup(f.ctx, "team", "owner", members)
	require.Nil(f.t, err)
	return group
}

func TestCreateGroup(t *testing.T) {
	t.Run("creator is always a member", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()

		group, err := f.groupStore.CreateGroup(f.ctx, "team", "owner", []string{"alice", "bob"})

		require.Nil(t, err)
		assert.Equal(t, "owner", group.Owner)
		assert.ElementsMatch(t, []string{"owner", "alice", "bob"}, group.Members)
		assert.Empty(t, group.Deputies)
		assert.True(t, IsGroupRoom(group.RoomID))
	})

	t.Run("duplicate member names collapse", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()

		group, err := f.groupStore.CreateGroup(f.ctx, "team", "owner", []string{"alice", "alice", "owner"})

		require.Nil(t, err)
		assert.ElementsMatch(t, []string{"owner", "alice"}, group.Members)
	})

	t.Run("the record round-trips", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		created := f.seedGroup("alice")

		got, err := f.groupStore.GetGroupByRoomID(f.ctx, created.RoomID)
		require.Nil(t, err)
		assert.Equal(t, created.RoomID, got.RoomID)
		assert.Equal(t, created.Name, got.Name)
		assert.Equal(t, created.Owner, got.Owner)
		assert.ElementsMatch(t, created.Members, got.Members)
	})

	t.Run("unknown room", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()

		_, err := f.groupStore.GetGroupByRoomID(f.ctx, "missing_room")
		assert.ErrorIs(t, err, ErrGroupNotFound)
	})
}

func TestAddMember(t *testing.T) {
	t.Run("any member may add", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		updated, err := f.groupStore.AddMember(f.ctx, group.RoomID, "alice", "bob")

		require.Nil(t, err)
		assert.True(t, updated.IsMember("bob"))
	})

	t.Run("a non-member may not add", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.AddMember(f.ctx, group.RoomID, "stranger", "bob")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("adding an existing member fails", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.AddMember(f.ctx, group.RoomID, "owner", "alice")
		assert.ErrorIs(t, err, ErrAlreadyMember)
	})
}

func TestRemoveMember(t *testing.T) {
	t.Run("owner removes a member", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice", "bob")

		updated, err := f.groupStore.RemoveMember(f.ctx, group.RoomID, "owner", "bob")

		require.Nil(t, err)
		assert.False(t, updated.IsMember("bob"))
	})

	t.Run("deputy removes a member", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice", "bob")
		_, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "alice")
		require.Nil(t, err)

		updated, err := f.groupStore.RemoveMember(f.ctx, group.RoomID, "alice", "bob")
		require.Nil(t, err)
		assert.False(t, updated.IsMember("bob"))
	})

	t.Run("a plain member may not remove", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice", "bob")

		_, err := f.groupStore.RemoveMember(f.ctx, group.RoomID, "alice", "bob")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("the owner cannot be removed", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")
		_, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "alice")
		require.Nil(t, err)

		_, err = f.groupStore.RemoveMember(f.ctx, group.RoomID, "alice", "owner")
		assert.ErrorIs(t, err, ErrCannotRemoveOwner)
	})

	t.Run("removing a deputy drops the rank with the membership", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice", "bob")
		_, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "bob")
		require.Nil(t, err)

		updated, err := f.groupStore.RemoveMember(f.ctx, group.RoomID, "owner", "bob")
		require.Nil(t, err)
		assert.False(t, updated.IsDeputy("bob"))
		assert.False(t, updated.IsMember("bob"))
	})
}

func TestTransferOwner(t *testing.T) {
	t.Run("only the owner may transfer", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice", "bob")

		_, err := f.groupStore.TransferOwner(f.ctx, group.RoomID, "alice", "bob")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("the new owner must be a member", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.TransferOwner(f.ctx, group.RoomID, "owner", "stranger")
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("a deputy promoted to owner loses the deputy rank", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")
		_, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "alice")
		require.Nil(t, err)

		updated, err := f.groupStore.TransferOwner(f.ctx, group.RoomID, "owner", "alice")

		require.Nil(t, err)
		assert.Equal(t, "alice", updated.Owner)
		assert.False(t, updated.IsDeputy("alice"))
		// the former owner stays a member
		assert.True(t, updated.IsMember("owner"))
	})
}

func TestDeputies(t *testing.T) {
	t.Run("owner assigns and revokes", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		updated, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "alice")
		require.Nil(t, err)
		assert.True(t, updated.IsDeputy("alice"))

		updated, err = f.groupStore.RevokeDeputy(f.ctx, group.RoomID, "owner", "alice")
		require.Nil(t, err)
		assert.False(t, updated.IsDeputy("alice"))
	})

	t.Run("only the owner assigns", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice", "bob")

		_, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "alice", "bob")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("the owner cannot be deputy", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "owner")
		assert.ErrorIs(t, err, ErrOwnerCannotBeDeputy)
	})

	t.Run("assigning twice fails", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")
		_, err := f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "alice")
		require.Nil(t, err)

		_, err = f.groupStore.AssignDeputy(f.ctx, group.RoomID, "owner", "alice")
		assert.ErrorIs(t, err, ErrAlreadyDeputy)
	})

	t.Run("revoking a non-deputy fails", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.RevokeDeputy(f.ctx, group.RoomID, "owner", "alice")
		assert.ErrorIs(t, err, ErrNotDeputy)
	})
}

func TestLeave(t *testing.T) {
	t.Run("member leaves", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		updated, err := f.groupStore.Leave(f.ctx, group.RoomID, "alice")

		require.Nil(t, err)
		assert.False(t, updated.IsMember("alice"))
	})

	t.Run("the owner may not leave", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.Leave(f.ctx, group.RoomID, "owner")
		assert.ErrorIs(t, err, ErrOwnerCannotLeave)
	})

	t.Run("a non-member may not leave", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.Leave(f.ctx, group.RoomID, "stranger")
		assert.ErrorIs(t, err, ErrNotMember)
	})
}

func TestDisband(t *testing.T) {
	t.Run("owner disbands and the record is gone", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice", "bob")

		snapshot, err := f.groupStore.Disband(f.ctx, group.RoomID, "owner")

		require.Nil(t, err)
		// the final snapshot names everyone who must be notified
		assert.ElementsMatch(t, []string{"owner", "alice", "bob"}, snapshot.Members)

		_, err = f.groupStore.GetGroupByRoomID(f.ctx, group.RoomID)
		assert.ErrorIs(t, err, ErrGroupNotFound)
	})

	t.Run("only the owner may disband", func(t *testing.T) {
		f := NewGroupFixture(t)
		defer f.tearDown()
		group := f.seedGroup("alice")

		_, err := f.groupStore.Disband(f.ctx, group.RoomID, "alice")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})
}

func TestListGroupsByMember(t *testing.T) {
	f := NewGroupFixture(t)
	defer f.tearDown()
	first := f.seedGroup("alice")
	second, err := f.groupStore.CreateGroup(f.ctx, "other", "alice", nil)
	require.Nil(t, err)

	groups, err := f.groupStore.ListGroupsByMember(f.ctx, "alice")
	require.Nil(t, err)
	require.Len(t, groups, 2)

	roomIDs := []string{groups[0].RoomID, groups[1].RoomID}
	assert.ElementsMatch(t, []string{first.RoomID, second.RoomID}, roomIDs)

	groups, err = f.groupStore.ListGroupsByMember(f.ctx, "stranger")
	require.Nil(t, err)
	assert.Empty(t, groups)
}
