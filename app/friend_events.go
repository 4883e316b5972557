package chatapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ngophuc29/sockettuBuild/core"
)

type friendPairPayload struct {
	MyUsername     string `json:"myUsername"`
	FriendUsername string `json:"friendUsername"`
}

type newFriendRequestPayload struct {
	From string `json:"from"`
}

// AddFriendHandler creates a pending friend request and pushes it to the
// recipient if they are online.
func (app *App) AddFriendHandler(ctx context.Context, e *core.Event) error {
	var payload friendPairPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal addFriend payload: %w", err)
	}

	exists, err := app.accounts.UsernameExists(ctx, payload.FriendUsername)
	if err != nil {
		app.replyResult(e, AddFriendResult, false, "server error")
		return fmt.Errorf("check account %s: %w", payload.FriendUsername, err)
	}
	if !exists {
		app.replyResult(e, AddFriendResult, false, "user does not exist")
		return nil
	}

	_, err = app.friends.SendRequest(ctx, payload.MyUsername, payload.FriendUsername)
	switch {
	case errors.Is(err, core.ErrSelfRequest):
		app.replyResult(e, AddFriendResult, false, "cannot send a friend request to yourself")
		return nil
	case errors.Is(err, core.ErrAlreadyFriends):
		app.replyResult(e, AddFriendResult, false, "you are already friends")
		return nil
	case errors.Is(err, core.ErrDuplicateRequest):
		app.replyResult(e, AddFriendResult, false, "a friend request is already pending")
		return nil
	case err != nil:
		app.replyResult(e, AddFriendResult, false, "server error")
		return fmt.Errorf("send friend request: %w", err)
	}

	app.replyResult(e, AddFriendResult, true,
		fmt.Sprintf("friend request sent to %s", payload.FriendUsername))
	app.notify(payload.FriendUsername, NewFriendRequestEvent,
		newFriendRequestPayload{From: payload.MyUsername})
	return nil
}

// WithdrawFriendHandler deletes a pending request the sender regrets. The
// recipient, if online, gets their refreshed pending list so the withdrawn
// request disappears without a manual refresh.
func (app *App) WithdrawFriendHandler(ctx context.Context, e *core.Event) error {
	var payload friendPairPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal withdrawFriendRequest payload: %w", err)
	}

	err := app.friends.Withdraw(ctx, payload.MyUsername, payload.FriendUsername)
	switch {
	case errors.Is(err, core.ErrRequestNotFound):
		app.replyResult(e, WithdrawFriendResult, false, "no pending request to withdraw")
		return nil
	case err != nil:
		app.replyResult(e, WithdrawFriendResult, false, "server error")
		return fmt.Errorf("withdraw friend request: %w", err)
	}
	app.replyResult(e, WithdrawFriendResult, true, "friend request withdrawn")

	requests, err := app.friends.PendingRequestsFor(ctx, payload.FriendUsername)
	if err != nil {
		return fmt.Errorf("refresh friend requests of %s: %w", payload.FriendUsername, err)
	}
	app.notify(payload.FriendUsername, FriendRequestsEvent, requests)
	return nil
}

type respondFriendRequestPayload struct {
	RequestID string `json:"requestId"`
	Action    string `json:"action"`
}

type friendAcceptedPayload struct {
	Friend string `json:"friend"`
	RoomID string `json:"roomId"`
}

// RespondFriendRequestHandler resolves a pending request. On acceptance both
// parties learn the canonical room identifier of their new private chat.
func (app *App) RespondFriendRequestHandler(ctx context.Context, e *core.Event) error {
	var payload respondFriendRequestPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal respondFriendRequest payload: %w", err)
	}
	if payload.Action != core.RequestAccepted && payload.Action != core.RequestRejected {
		app.replyResult(e, RespondFriendRequestResult, false, "unknown action")
		return nil
	}

	request, err := app.friends.Respond(ctx, payload.RequestID, payload.Action)
	switch {
	case errors.Is(err, core.ErrRequestNotFound):
		app.replyResult(e, RespondFriendRequestResult, false, "friend request does not exist")
		return nil
	case err != nil:
		app.replyResult(e, RespondFriendRequestResult, false, "server error")
		return fmt.Errorf("respond to friend request: %w", err)
	}

	if payload.Action == core.RequestAccepted {
		roomID := core.PrivateRoomID(request.From, request.To)
		app.notify(request.From, FriendAcceptedEvent, friendAcceptedPayload{Friend: request.To, RoomID: roomID})
		app.notify(request.To, FriendAcceptedEvent, friendAcceptedPayload{Friend: request.From, RoomID: roomID})
	}
	app.replyResult(e, RespondFriendRequestResult, true,
		fmt.Sprintf("friend request %s", payload.Action))
	return nil
}

// CancelFriendHandler removes an existing friendship from both sides. Both
// parties get their refreshed friend list, the removed friend through their
// live connection if online.
func (app *App) CancelFriendHandler(ctx context.Context, e *core.Event) error {
	var payload friendPairPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal cancelFriend payload: %w", err)
	}

	if err := app.friends.Cancel(ctx, payload.MyUsername, payload.FriendUsername); err != nil {
		app.replyResult(e, CancelFriendResult, false, "server error")
		return fmt.Errorf("cancel friendship: %w", err)
	}
	app.replyResult(e, CancelFriendResult, true,
		fmt.Sprintf("you are no longer friends with %s", payload.FriendUsername))

	mine, err := app.friends.Friends(ctx, payload.MyUsername)
	if err != nil {
		return fmt.Errorf("refresh friends of %s: %w", payload.MyUsername, err)
	}
	app.reply(e, FriendsListEvent, mine)

	theirs, err := app.friends.Friends(ctx, payload.FriendUsername)
	if err != nil {
		return fmt.Errorf("refresh friends of %s: %w", payload.FriendUsername, err)
	}
	app.notify(payload.FriendUsername, FriendsListEvent, theirs)
	return nil
}

// GetFriendRequestsHandler returns the pending requests addressed to a user.
func (app *App) GetFriendRequestsHandler(ctx context.Context, e *core.Event) error {
	var username string
	if err := json.Unmarshal(e.Payload, &username); err != nil {
		return fmt.Errorf("unmarshal getFriendRequests payload: %w", err)
	}
	if username == "" {
		username = e.Dispatcher
	}

	requests, err := app.friends.PendingRequestsFor(ctx, username)
	if err != nil {
		app.reply(e, FriendRequestsEvent, []core.FriendRequest{})
		return fmt.Errorf("list friend requests of %s: %w", username, err)
	}
	app.reply(e, FriendRequestsEvent, requests)
	return nil
}

// GetFriendsHandler returns the friend set of a user.
func (app *App) GetFriendsHandler(ctx context.Context, e *core.Event) error {
	var username string
	if err := json.Unmarshal(e.Payload, &username); err != nil {
		return fmt.Errorf("unmarshal getFriends payload: %w", err)
	}
	if username == "" {
		username = e.Dispatcher
	}

	friends, err := app.friends.Friends(ctx, username)
	if err != nil {
		app.reply(e, FriendsListEvent, []string{})
		return fmt.Errorf("list friends of %s: %w", username, err)
	}
	app.reply(e, FriendsListEvent, friends)
	return nil
}
