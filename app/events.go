package chatapp

import (
	"log/slog"

	"github.com/ngophuc29/sockettuBuild/core"
)

// Inbound event types.
const (
	RegisterUserEvent         = "registerUser"
	JoinEvent                 = "join"
	LeaveEvent                = "leave"
	MessageEvent              = "message"
	DeleteMessageEvent        = "deleteMessage"
	EmotionEvent              = "emotion"
	GetLastMessageEvent       = "getLastMessage"
	GetOlderMessagesEvent     = "getOlderMessages"
	GetUserConversationsEvent = "getUserConversations"

	AddFriendEvent            = "addFriend"
	WithdrawFriendEvent       = "withdrawFriendRequest"
	RespondFriendRequestEvent = "respondFriendRequest"
	CancelFriendEvent         = "cancelFriend"
	GetFriendRequestsEvent    = "getFriendRequests"
	GetFriendsEvent           = "getFriends"

	CreateGroupChatEvent    = "createGroupChat"
	GetGroupDetailsEvent    = "getGroupDetails"
	AddGroupMemberEvent     = "addGroupMember"
	RemoveGroupMemberEvent  = "removeGroupMember"
	TransferGroupOwnerEvent = "transferGroupOwner"
	AssignDeputyEvent       = "assignDeputy"
	CancelDeputyEvent       = "cancelDeputy"
	LeaveGroupEvent         = "leaveGroup"
	DisbandGroupEvent       = "disbandGroup"

	CallUserEvent     = "callUser"
	AcceptCallEvent   = "acceptCall"
	RejectCallEvent   = "rejectCall"
	IceCandidateEvent = "iceCandidate"
	EndCallEvent      = "endCall"
)

// Outbound event types.
const (
	// ErrorEvent acknowledges a failed operation that has no dedicated
	// result event. The payload is a Result with Success false.
	ErrorEvent = "error"

	HistoryEvent           = "history"
	ReactionHistoryEvent   = "reactionHistory"
	LastMessageEvent       = "lastMessage"
	OlderMessagesEvent     = "olderMessages"
	ThreadEvent            = "thread"
	NotificationEvent      = "notification"
	MessageDeletedEvent    = "messageDeleted"
	DeleteMessageResult    = "deleteMessageResult"
	UserConversationsEvent = "userConversations"

	AddFriendResult            = "addFriendResult"
	WithdrawFriendResult       = "withdrawFriendRequestResult"
	RespondFriendRequestResult = "respondFriendRequestResult"
	CancelFriendResult         = "cancelFriendResult"
	NewFriendRequestEvent      = "newFriendRequest"
	FriendAcceptedEvent        = "friendAccepted"
	FriendRequestsEvent        = "friendRequests"
	FriendsListEvent           = "friendsList"

	NewGroupChatEvent     = "newGroupChat"
	GroupDetailsResult    = "groupDetailsResult"
	GroupManagementResult = "groupManagementResult"
	GroupUpdatedEvent     = "groupUpdated"
	AddedToGroupEvent     = "addedToGroup"
	KickedFromGroupEvent  = "kickedFromGroup"
	LeftGroupEvent        = "leftGroup"
	GroupDisbandedEvent   = "groupDisbanded"

	CallIncomingEvent = "callIncoming"
	CallAcceptedEvent = "callAccepted"
	CallRejectedEvent = "callRejected"
	CallEndedEvent    = "callEnded"
	CallErrorEvent    = "callError"
)

// Result is the ack payload of request/response style events.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// reply sends an event back to the connection the inbound event arrived on.
func (app *App) reply(e *core.Event, eventType string, payload interface{}) {
	conn := e.Conn()
	if conn == nil {
		return
	}
	out, err := core.NewEvent(eventType, payload)
	if err != nil {
		app.logger.Error(err.Error(), slog.String("event", eventType))
		return
	}
	conn.Send(out)
}

func (app *App) replyResult(e *core.Event, eventType string, success bool, message string) {
	app.reply(e, eventType, Result{Success: success, Message: message})
}

// replyServerError acks a failed operation that has no dedicated result
// event. The cause stays server-side; the sender only learns it failed.
func (app *App) replyServerError(e *core.Event) {
	app.replyResult(e, ErrorEvent, false, "server error")
}

// notify delivers an event to an identity's live connection. Offline
// identities are silently skipped.
func (app *App) notify(username, eventType string, payload interface{}) bool {
	out, err := core.NewEvent(eventType, payload)
	if err != nil {
		app.logger.Error(err.Error(), slog.String("event", eventType))
		return false
	}
	return app.hub.NotifyUser(username, out)
}

// broadcast delivers an event to every connection joined to a room.
func (app *App) broadcast(room, eventType string, payload interface{}) {
	out, err := core.NewEvent(eventType, payload)
	if err != nil {
		app.logger.Error(err.Error(), slog.String("event", eventType))
		return
	}
	app.hub.BroadcastToRoom(room, out)
}
