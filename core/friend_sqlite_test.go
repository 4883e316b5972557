package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FriendFixture struct {
	*BaseFixture
	friendStore FriendStore
}

func NewFriendFixture(t *testing.T) *FriendFixture {
	base := NewBaseFixture(t)
	return &FriendFixture{
		BaseFixture: base,
		friendStore: NewSQLiteFriendStore(base.db),
	}
}

func TestSendRequest(t *testing.T) {
	t.Run("creates a pending request", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()

		request, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")

		require.Nil(t, err)
		require.NotNil(t, request)
		assert.NotEmpty(t, request.ID)
		assert.Equal(t, "alice", request.From)
		assert.Equal(t, "bob", request.To)
		assert.Equal(t, "pending", request.Status)

		pending, err := f.friendStore.PendingRequestsFor(f.ctx, "bob")
		require.Nil(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, request.ID, pending[0].ID)
	})

	t.Run("rejects a self request", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()

		_, err := f.friendStore.SendRequest(f.ctx, "alice", "alice")
		assert.ErrorIs(t, err, ErrSelfRequest)
	})

	t.Run("rejects a duplicate in the same direction", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		_, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")
		require.Nil(t, err)

		_, err = f.friendStore.SendRequest(f.ctx, "alice", "bob")
		assert.ErrorIs(t, err, ErrDuplicateRequest)
	})

	t.Run("rejects a duplicate in the opposite direction", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		_, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")
		require.Nil(t, err)

		_, err = f.friendStore.SendRequest(f.ctx, "bob", "alice")
		assert.ErrorIs(t, err, ErrDuplicateRequest)
	})

	t.Run("rejects a request to an existing friend", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		seedFriendship(f.ctx, f.t, f.friendStore, "alice", "bob")

		_, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")
		assert.ErrorIs(t, err, ErrAlreadyFriends)
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("removes the pending request", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		_, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")
		require.Nil(t, err)

		require.Nil(t, f.friendStore.Withdraw(f.ctx, "alice", "bob"))

		pending, err := f.friendStore.PendingRequestsFor(f.ctx, "bob")
		require.Nil(t, err)
		assert.Empty(t, pending)
	})

	t.Run("fails when nothing is pending", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()

		err := f.friendStore.Withdraw(f.ctx, "alice", "bob")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestRespond(t *testing.T) {
	t.Run("acceptance makes the friendship symmetric", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		request, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")
		require.Nil(t, err)

		resolved, err := f.friendStore.Respond(f.ctx, request.ID, RequestAccepted)

		require.Nil(t, err)
		assert.Equal(t, "alice", resolved.From)
		assert.Equal(t, "bob", resolved.To)

		friends, err := f.friendStore.AreFriends(f.ctx, "alice", "bob")
		require.Nil(t, err)
		assert.True(t, friends)

		aliceFriends, err := f.friendStore.Friends(f.ctx, "alice")
		require.Nil(t, err)
		assert.Equal(t, []string{"bob"}, aliceFriends)
		bobFriends, err := f.friendStore.Friends(f.ctx, "bob")
		require.Nil(t, err)
		assert.Equal(t, []string{"alice"}, bobFriends)
	})

	t.Run("rejection deletes the request without a friendship", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		request, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")
		require.Nil(t, err)

		_, err = f.friendStore.Respond(f.ctx, request.ID, RequestRejected)
		require.Nil(t, err)

		friends, err := f.friendStore.AreFriends(f.ctx, "alice", "bob")
		require.Nil(t, err)
		assert.False(t, friends)

		// the slot is free for a new request in either direction
		_, err = f.friendStore.SendRequest(f.ctx, "bob", "alice")
		assert.Nil(t, err)
	})

	t.Run("responding twice fails the second time", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		request, err := f.friendStore.SendRequest(f.ctx, "alice", "bob")
		require.Nil(t, err)

		_, err = f.friendStore.Respond(f.ctx, request.ID, RequestAccepted)
		require.Nil(t, err)

		_, err = f.friendStore.Respond(f.ctx, request.ID, RequestAccepted)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("unknown request", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()

		_, err := f.friendStore.Respond(f.ctx, "missing", RequestAccepted)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestCancel(t *testing.T) {
	t.Run("removes both sides", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		seedFriendship(f.ctx, f.t, f.friendStore, "alice", "bob")

		require.Nil(t, f.friendStore.Cancel(f.ctx, "alice", "bob"))

		friends, err := f.friendStore.AreFriends(f.ctx, "alice", "bob")
		require.Nil(t, err)
		assert.False(t, friends)

		bobFriends, err := f.friendStore.Friends(f.ctx, "bob")
		require.Nil(t, err)
		assert.Empty(t, bobFriends)
	})

	t.Run("cancelling a non-existent friendship is a no-op", func(t *testing.T) {
		f := NewFriendFixture(t)
		defer f.tearDown()
		assert.Nil(t, f.friendStore.Cancel(f.ctx, "alice", "bob"))
	})
}

func TestAreFriends(t *testing.T) {
	f := NewFriendFixture(t)
	defer f.tearDown()
	seedFriendship(f.ctx, f.t, f.friendStore, "alice", "bob")

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		friends, err := f.friendStore.AreFriends(f.ctx, pair[0], pair[1])
		require.Nil(t, err)
		assert.True(t, friends)
	}

	friends, err := f.friendStore.AreFriends(f.ctx, "alice", "carol")
	require.Nil(t, err)
	assert.False(t, friends)
}
