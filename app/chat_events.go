package chatapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ngophuc29/sockettuBuild/core"
)

// RegisterUserHandler binds the username in the payload to the connection.
// Registering again replaces any previous connection of the same identity.
func (app *App) RegisterUserHandler(ctx context.Context, e *core.Event) error {
	var username string
	if err := json.Unmarshal(e.Payload, &username); err != nil {
		return fmt.Errorf("unmarshal registerUser payload: %w", err)
	}
	if err := core.ValidateUsername(username); err != nil {
		return fmt.Errorf("rejected username %q: %w", username, err)
	}
	app.hub.Register(username, e.Conn())
	return nil
}

// JoinHandler adds the connection to a room and replays the room's full
// message and reaction history to it.
func (app *App) JoinHandler(ctx context.Context, e *core.Event) error {
	var room string
	if err := json.Unmarshal(e.Payload, &room); err != nil {
		return fmt.Errorf("unmarshal join payload: %w", err)
	}
	app.hub.Join(e.Conn(), room)

	history, err := app.messages.ListRoomMessages(ctx, room)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("load history for %s: %w", room, err)
	}
	app.reply(e, HistoryEvent, history)

	reactions, err := app.reactions.ListRoomReactions(ctx, room)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("load reactions for %s: %w", room, err)
	}
	app.reply(e, ReactionHistoryEvent, reactions)
	return nil
}

func (app *App) LeaveHandler(ctx context.Context, e *core.Event) error {
	var room string
	if err := json.Unmarshal(e.Payload, &room); err != nil {
		return fmt.Errorf("unmarshal leave payload: %w", err)
	}
	app.hub.Leave(e.Conn(), room)
	return nil
}

type notificationPayload struct {
	Room    string        `json:"room"`
	Message *core.Message `json:"message"`
}

// MessageHandler persists a message, fans it out to the room and notifies
// room participants that are online but not currently joined to the room.
func (app *App) MessageHandler(ctx context.Context, e *core.Event) error {
	var input core.MessageCreateInput
	if err := json.Unmarshal(e.Payload, &input); err != nil {
		return fmt.Errorf("unmarshal message payload: %w", err)
	}
	if err := input.Validate(); err != nil {
		app.replyResult(e, ErrorEvent, false, "invalid message")
		return fmt.Errorf("invalid message: %w", err)
	}

	message, err := app.messages.CreateMessage(ctx, input)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("create message: %w", err)
	}
	app.lastMessages.Put(message.Room, message)

	app.broadcast(message.Room, ThreadEvent, message)

	sender := e.Dispatcher
	if sender == "" {
		sender = message.Name
	}
	for _, participant := range app.roomParticipants(ctx, message.Room) {
		if participant == sender || app.hub.UserInRoom(participant, message.Room) {
			continue
		}
		app.notify(participant, NotificationEvent, notificationPayload{
			Room:    message.Room,
			Message: message,
		})
	}
	return nil
}

// roomParticipants resolves who belongs to a room: the member list for group
// rooms, the two embedded usernames for private rooms. An unknown group or a
// malformed private room yields no participants.
func (app *App) roomParticipants(ctx context.Context, room string) []string {
	if core.IsGroupRoom(room) {
		group, err := app.groups.GetGroupByRoomID(ctx, room)
		if err != nil {
			if !errors.Is(err, core.ErrGroupNotFound) {
				app.logger.Error(fmt.Sprintf("resolve group %s: %s", room, err))
			}
			return nil
		}
		return group.Members
	}
	a, b, ok := core.PrivateRoomMembers(room)
	if !ok {
		return nil
	}
	return []string{a, b}
}

type deleteMessagePayload struct {
	MessageID string `json:"messageId"`
	Room      string `json:"room"`
}

type messageDeletedPayload struct {
	MessageID string `json:"messageId"`
	Room      string `json:"room"`
}

// DeleteMessageHandler removes a message on behalf of its author and tells
// the room to drop it.
func (app *App) DeleteMessageHandler(ctx context.Context, e *core.Event) error {
	var payload deleteMessagePayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal deleteMessage payload: %w", err)
	}

	err := app.messages.DeleteMessage(ctx, payload.MessageID, e.Dispatcher)
	switch {
	case errors.Is(err, core.ErrMessageNotFound):
		app.replyResult(e, DeleteMessageResult, false, "message does not exist")
		return nil
	case errors.Is(err, core.ErrNotMessageOwner):
		app.replyResult(e, DeleteMessageResult, false, "you can only delete your own messages")
		return nil
	case err != nil:
		app.replyResult(e, DeleteMessageResult, false, "server error")
		return fmt.Errorf("delete message %s: %w", payload.MessageID, err)
	}

	// The cached preview may be the deleted message; force a reload.
	app.lastMessages.Invalidate(payload.Room)

	app.broadcast(payload.Room, MessageDeletedEvent, messageDeletedPayload{
		MessageID: payload.MessageID,
		Room:      payload.Room,
	})
	app.replyResult(e, DeleteMessageResult, true, "message deleted")
	return nil
}

// EmotionHandler stores a reaction and fans it out to the room. A later
// reaction by the same user on the same message replaces the earlier one.
func (app *App) EmotionHandler(ctx context.Context, e *core.Event) error {
	var reaction core.Reaction
	if err := json.Unmarshal(e.Payload, &reaction); err != nil {
		return fmt.Errorf("unmarshal emotion payload: %w", err)
	}
	if reaction.User == "" {
		reaction.User = e.Dispatcher
	}
	if err := reaction.Validate(); err != nil {
		app.replyResult(e, ErrorEvent, false, "invalid reaction")
		return fmt.Errorf("invalid reaction: %w", err)
	}

	stored, err := app.reactions.UpsertReaction(ctx, reaction)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("store reaction: %w", err)
	}
	app.broadcast(stored.Room, EmotionEvent, stored)
	return nil
}

type lastMessagePayload struct {
	Room    string        `json:"room"`
	Message *core.Message `json:"message"`
}

// GetLastMessageHandler serves a single room's preview from the cache, for
// clients refreshing one conversation entry.
func (app *App) GetLastMessageHandler(ctx context.Context, e *core.Event) error {
	var room string
	if err := json.Unmarshal(e.Payload, &room); err != nil {
		return fmt.Errorf("unmarshal getLastMessage payload: %w", err)
	}

	last, err := app.lastMessages.Get(ctx, room)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("last message of %s: %w", room, err)
	}
	app.reply(e, LastMessageEvent, lastMessagePayload{Room: room, Message: last})
	return nil
}

type olderMessagesQuery struct {
	Room   string    `json:"room"`
	Before time.Time `json:"before"`
	Limit  int       `json:"limit"`
}

type olderMessagesPayload struct {
	Room     string         `json:"room"`
	Messages []core.Message `json:"messages"`
}

// GetOlderMessagesHandler pages backwards through a room's history.
func (app *App) GetOlderMessagesHandler(ctx context.Context, e *core.Event) error {
	var query olderMessagesQuery
	if err := json.Unmarshal(e.Payload, &query); err != nil {
		return fmt.Errorf("unmarshal getOlderMessages payload: %w", err)
	}

	messages, err := app.messages.ListRoomMessagesBefore(ctx, query.Room, query.Before, query.Limit)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("load older messages for %s: %w", query.Room, err)
	}
	app.reply(e, OlderMessagesEvent, olderMessagesPayload{Room: query.Room, Messages: messages})
	return nil
}

type groupConversation struct {
	RoomID      string        `json:"roomId"`
	Name        string        `json:"groupName"`
	Owner       string        `json:"owner"`
	Deputies    []string      `json:"deputies"`
	Members     []string      `json:"members"`
	LastMessage *core.Message `json:"lastMessage,omitempty"`
}

type privateConversation struct {
	RoomID      string        `json:"roomId"`
	Friend      string        `json:"friend"`
	LastMessage *core.Message `json:"lastMessage,omitempty"`
}

type conversationsPayload struct {
	GroupChats   []groupConversation   `json:"groupChats"`
	PrivateChats []privateConversation `json:"privateChats"`
}

// GetUserConversationsHandler builds the conversation list of a user: one
// entry per group membership and one per friend, each with a cached
// last-message preview instead of the full history.
func (app *App) GetUserConversationsHandler(ctx context.Context, e *core.Event) error {
	var username string
	if err := json.Unmarshal(e.Payload, &username); err != nil {
		return fmt.Errorf("unmarshal getUserConversations payload: %w", err)
	}
	if username == "" {
		username = e.Dispatcher
	}

	groups, err := app.groups.ListGroupsByMember(ctx, username)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("list groups of %s: %w", username, err)
	}
	payload := conversationsPayload{
		GroupChats:   make([]groupConversation, 0, len(groups)),
		PrivateChats: []privateConversation{},
	}
	for _, group := range groups {
		last, err := app.lastMessages.Get(ctx, group.RoomID)
		if err != nil {
			app.replyServerError(e)
			return fmt.Errorf("last message of %s: %w", group.RoomID, err)
		}
		payload.GroupChats = append(payload.GroupChats, groupConversation{
			RoomID:      group.RoomID,
			Name:        group.Name,
			Owner:       group.Owner,
			Deputies:    group.Deputies,
			Members:     group.Members,
			LastMessage: last,
		})
	}

	friends, err := app.friends.Friends(ctx, username)
	if err != nil {
		app.replyServerError(e)
		return fmt.Errorf("list friends of %s: %w", username, err)
	}
	for _, friend := range friends {
		room := core.PrivateRoomID(username, friend)
		last, err := app.lastMessages.Get(ctx, room)
		if err != nil {
			app.replyServerError(e)
			return fmt.Errorf("last message of %s: %w", room, err)
		}
		payload.PrivateChats = append(payload.PrivateChats, privateConversation{
			RoomID:      room,
			Friend:      friend,
			LastMessage: last,
		})
	}

	app.reply(e, UserConversationsEvent, payload)
	return nil
}
