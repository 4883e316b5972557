package chatapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ngophuc29/sockettuBuild/core"
)

// groupDomainErrors are the rejections the group state machine can produce.
// They are reported to the acting client verbatim; anything else is a server
// error.
var groupDomainErrors = []error{
	core.ErrGroupNotFound,
	core.ErrNotAuthorized,
	core.ErrAlreadyMember,
	core.ErrNotMember,
	core.ErrAlreadyDeputy,
	core.ErrNotDeputy,
	core.ErrCannotRemoveOwner,
	core.ErrOwnerCannotLeave,
	core.ErrOwnerCannotBeDeputy,
}

// replyGroupError acks a failed group operation. Domain rejections carry
// their own message; unexpected errors are propagated for logging.
func (app *App) replyGroupError(e *core.Event, err error) error {
	for _, domainErr := range groupDomainErrors {
		if errors.Is(err, domainErr) {
			app.replyResult(e, GroupManagementResult, false, domainErr.Error())
			return nil
		}
	}
	app.replyResult(e, GroupManagementResult, false, "server error")
	return err
}

type groupUpdatedPayload struct {
	Action        string      `json:"action"`
	NewMember     string      `json:"newMember,omitempty"`
	RemovedMember string      `json:"removedMember,omitempty"`
	NewOwner      string      `json:"newOwner,omitempty"`
	Deputy        string      `json:"deputy,omitempty"`
	Member        string      `json:"member,omitempty"`
	LeftMember    string      `json:"leftMember,omitempty"`
	Group         *core.Group `json:"group"`
}

type createGroupChatPayload struct {
	GroupName string   `json:"groupName"`
	Members   []string `json:"members"`
}

// CreateGroupChatHandler creates a group owned by the dispatching user, joins
// their connection to the new room and pushes the group to every member that
// is online.
func (app *App) CreateGroupChatHandler(ctx context.Context, e *core.Event) error {
	var payload createGroupChatPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal createGroupChat payload: %w", err)
	}
	if e.Dispatcher == "" {
		app.replyResult(e, GroupManagementResult, false, "register a username first")
		return nil
	}
	if payload.GroupName == "" {
		app.replyResult(e, GroupManagementResult, false, "group name is required")
		return nil
	}

	group, err := app.groups.CreateGroup(ctx, payload.GroupName, e.Dispatcher, payload.Members)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("create group: %w", err))
	}

	app.hub.Join(e.Conn(), group.RoomID)
	for _, member := range group.Members {
		app.notify(member, NewGroupChatEvent, group)
	}
	return nil
}

type groupDetailsResultPayload struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Group   *core.Group `json:"group,omitempty"`
}

func (app *App) GetGroupDetailsHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal getGroupDetails payload: %w", err)
	}

	group, err := app.groups.GetGroupByRoomID(ctx, payload.RoomID)
	switch {
	case errors.Is(err, core.ErrGroupNotFound):
		app.reply(e, GroupDetailsResult, groupDetailsResultPayload{Success: false, Message: "group not found"})
		return nil
	case err != nil:
		app.reply(e, GroupDetailsResult, groupDetailsResultPayload{Success: false, Message: "server error"})
		return fmt.Errorf("get group %s: %w", payload.RoomID, err)
	}
	app.reply(e, GroupDetailsResult, groupDetailsResultPayload{Success: true, Group: group})
	return nil
}

type addedToGroupPayload struct {
	RoomID  string      `json:"roomId"`
	Group   *core.Group `json:"group"`
	Message string      `json:"message"`
}

func (app *App) AddGroupMemberHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID    string `json:"roomId"`
		NewMember string `json:"newMember"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal addGroupMember payload: %w", err)
	}

	group, err := app.groups.AddMember(ctx, payload.RoomID, e.Dispatcher, payload.NewMember)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("add member: %w", err))
	}

	app.broadcast(payload.RoomID, GroupUpdatedEvent, groupUpdatedPayload{
		Action:    "addMember",
		NewMember: payload.NewMember,
		Group:     group,
	})
	app.replyResult(e, GroupManagementResult, true, "member added")
	app.notify(payload.NewMember, AddedToGroupEvent, addedToGroupPayload{
		RoomID:  payload.RoomID,
		Group:   group,
		Message: fmt.Sprintf("you have been added to the group %q", group.Name),
	})
	return nil
}

type kickedFromGroupPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (app *App) RemoveGroupMemberHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID         string `json:"roomId"`
		MemberToRemove string `json:"memberToRemove"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal removeGroupMember payload: %w", err)
	}

	group, err := app.groups.RemoveMember(ctx, payload.RoomID, e.Dispatcher, payload.MemberToRemove)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("remove member: %w", err))
	}

	// Drop the removed member's connection from the room before announcing,
	// so they do not see the update meant for the remaining members.
	app.hub.KickUserFromRoom(payload.MemberToRemove, payload.RoomID)

	app.broadcast(payload.RoomID, GroupUpdatedEvent, groupUpdatedPayload{
		Action:        "removeMember",
		RemovedMember: payload.MemberToRemove,
		Group:         group,
	})
	app.replyResult(e, GroupManagementResult, true, "member removed")
	app.notify(payload.MemberToRemove, KickedFromGroupEvent, kickedFromGroupPayload{
		RoomID:  payload.RoomID,
		Message: fmt.Sprintf("you have been removed from the group %q", group.Name),
	})
	return nil
}

func (app *App) TransferGroupOwnerHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID   string `json:"roomId"`
		NewOwner string `json:"newOwner"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal transferGroupOwner payload: %w", err)
	}

	group, err := app.groups.TransferOwner(ctx, payload.RoomID, e.Dispatcher, payload.NewOwner)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("transfer owner: %w", err))
	}

	app.broadcast(payload.RoomID, GroupUpdatedEvent, groupUpdatedPayload{
		Action:   "transferOwner",
		NewOwner: payload.NewOwner,
		Group:    group,
	})
	app.replyResult(e, GroupManagementResult, true, "ownership transferred")
	return nil
}

func (app *App) AssignDeputyHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID string `json:"roomId"`
		Member string `json:"member"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal assignDeputy payload: %w", err)
	}

	group, err := app.groups.AssignDeputy(ctx, payload.RoomID, e.Dispatcher, payload.Member)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("assign deputy: %w", err))
	}

	app.broadcast(payload.RoomID, GroupUpdatedEvent, groupUpdatedPayload{
		Action: "assignDeputy",
		Deputy: payload.Member,
		Group:  group,
	})
	app.replyResult(e, GroupManagementResult, true, "deputy assigned")
	return nil
}

func (app *App) CancelDeputyHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID string `json:"roomId"`
		Member string `json:"member"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal cancelDeputy payload: %w", err)
	}

	group, err := app.groups.RevokeDeputy(ctx, payload.RoomID, e.Dispatcher, payload.Member)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("revoke deputy: %w", err))
	}

	app.broadcast(payload.RoomID, GroupUpdatedEvent, groupUpdatedPayload{
		Action: "cancelDeputy",
		Member: payload.Member,
		Group:  group,
	})
	app.replyResult(e, GroupManagementResult, true, "deputy role canceled")
	return nil
}

type leftGroupPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (app *App) LeaveGroupHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal leaveGroup payload: %w", err)
	}

	group, err := app.groups.Leave(ctx, payload.RoomID, e.Dispatcher)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("leave group: %w", err))
	}

	app.hub.Leave(e.Conn(), payload.RoomID)

	// Each remaining member gets the update directly: they may know the
	// group without having their connection joined to its room.
	update := groupUpdatedPayload{
		Action:     "leaveGroup",
		LeftMember: e.Dispatcher,
		Group:      group,
	}
	for _, member := range group.Members {
		app.notify(member, GroupUpdatedEvent, update)
	}
	app.reply(e, LeftGroupEvent, leftGroupPayload{
		RoomID:  payload.RoomID,
		Message: fmt.Sprintf("you left the group %q", group.Name),
	})
	return nil
}

type groupDisbandedPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (app *App) DisbandGroupHandler(ctx context.Context, e *core.Event) error {
	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal disbandGroup payload: %w", err)
	}

	group, err := app.groups.Disband(ctx, payload.RoomID, e.Dispatcher)
	if err != nil {
		return app.replyGroupError(e, fmt.Errorf("disband group: %w", err))
	}

	disbanded := groupDisbandedPayload{
		RoomID:  payload.RoomID,
		Message: fmt.Sprintf("the group %q has been disbanded", group.Name),
	}
	for _, member := range group.Members {
		app.notify(member, GroupDisbandedEvent, disbanded)
		app.hub.KickUserFromRoom(member, payload.RoomID)
	}
	app.replyResult(e, GroupManagementResult, true, "group disbanded")
	return nil
}
