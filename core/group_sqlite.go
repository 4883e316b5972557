package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SQLiteGroupStore struct {
	db *sql.DB
}

func NewSQLiteGroupStore(db *sql.DB) *SQLiteGroupStore {
	return &SQLiteGroupStore{db: db}
}

func (s *SQLiteGroupStore) CreateGroup(ctx context.Context, name, creator string, members []string) (*Group, error) {
	// Room identifiers keep the original name_suffix convention; the marker
	// is what classifies the room as a group room.
	roomID := name + GroupRoomMarker + uuid.New().String()
	createdAt := time.Now().UTC()

	unique := make([]string, 0, len(members)+1)
	seen := make(map[string]struct{}, len(members)+1)
	for _, m := range append([]string{creator}, members...) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		unique = append(unique, m)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO group_chats (room_id, name, owner, created_at)
	VALUES (@room_id, @name, @owner, @created_at)`,
		sql.Named("room_id", roomID), sql.Named("name", name),
		sql.Named("owner", creator), sql.Named("created_at", createdAt))
	if err != nil {
		return nil, fmt.Errorf("inserting group: %w", err)
	}

	for _, m := range unique {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO group_members (room_id, username, deputy)
		VALUES (@room_id, @username, 0)`,
			sql.Named("room_id", roomID), sql.Named("username", m))
		if err != nil {
			return nil, fmt.Errorf("inserting group member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}

	return &Group{
		RoomID:    roomID,
		Name:      name,
		Owner:     creator,
		Deputies:  []string{},
		Members:   unique,
		CreatedAt: createdAt,
	}, nil
}

func (s *SQLiteGroupStore) GetGroupByRoomID(ctx context.Context, roomID string) (*Group, error) {
	query := `
	SELECT g.room_id, g.name, g.owner, g.created_at, gm.username, gm.deputy
	FROM group_chats AS g
	INNER JOIN group_members AS gm ON g.room_id = gm.room_id
	WHERE g.room_id = @room_id
	ORDER BY gm.username`

	rows, err := s.db.QueryContext(ctx, query, sql.Named("room_id", roomID))
	if err != nil {
		return nil, fmt.Errorf("querying group: %w", err)
	}
	defer rows.Close()

	group := Group{Deputies: []string{}}
	for rows.Next() {
		var username string
		var deputy bool
		if err := rows.Scan(&group.RoomID, &group.Name, &group.Owner,
			&group.CreatedAt, &username, &deputy); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		group.Members = append(group.Members, username)
		if deputy {
			group.Deputies = append(group.Deputies, username)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	if group.RoomID == "" {
		return nil, ErrGroupNotFound
	}
	return &group, nil
}

func (s *SQLiteGroupStore) ListGroupsByMember(ctx context.Context, username string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT room_id FROM group_members WHERE username = ?", username)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var roomIDs []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("scanning room id: %w", err)
		}
		roomIDs = append(roomIDs, roomID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	groups := make([]Group, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		group, err := s.GetGroupByRoomID(ctx, roomID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				continue
			}
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, nil
}

func (s *SQLiteGroupStore) AddMember(ctx context.Context, roomID, actor, newMember string) (*Group, error) {
	group, err := s.GetGroupByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(actor) {
		return nil, ErrNotAuthorized
	}
	if group.IsMember(newMember) {
		return nil, ErrAlreadyMember
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO group_members (room_id, username, deputy)
	VALUES (@room_id, @username, 0) ON CONFLICT DO NOTHING`,
		sql.Named("room_id", roomID), sql.Named("username", newMember))
	if err != nil {
		return nil, fmt.Errorf("inserting group member: %w", err)
	}

	return s.GetGroupByRoomID(ctx, roomID)
}

func (s *SQLiteGroupStore) RemoveMember(ctx context.Context, roomID, actor, target string) (*Group, error) {
	group, err := s.GetGroupByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if actor != group.Owner && !group.IsDeputy(actor) {
		return nil, ErrNotAuthorized
	}
	if target == group.Owner {
		return nil, ErrCannotRemoveOwner
	}
	if !group.IsMember(target) {
		return nil, ErrNotMember
	}

	// Deleting the membership row drops the deputy rank with it.
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE room_id = @room_id AND username = @username",
		sql.Named("room_id", roomID), sql.Named("username", target))
	if err != nil {
		return nil, fmt.Errorf("deleting group member: %w", err)
	}

	return s.GetGroupByRoomID(ctx, roomID)
}

func (s *SQLiteGroupStore) TransferOwner(ctx context.Context, roomID, actor, newOwner string) (*Group, error) {
	group, err := s.GetGroupByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if actor != group.Owner {
		return nil, ErrNotAuthorized
	}
	if !group.IsMember(newOwner) {
		return nil, ErrNotMember
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE group_chats SET owner = @owner WHERE room_id = @room_id",
		sql.Named("owner", newOwner), sql.Named("room_id", roomID))
	if err != nil {
		return nil, fmt.Errorf("updating owner: %w", err)
	}
	// Ownership and deputy are mutually exclusive ranks.
	_, err = tx.ExecContext(ctx,
		"UPDATE group_members SET deputy = 0 WHERE room_id = @room_id AND username = @username",
		sql.Named("room_id", roomID), sql.Named("username", newOwner))
	if err != nil {
		return nil, fmt.Errorf("clearing deputy rank: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}

	return s.GetGroupByRoomID(ctx, roomID)
}

func (s *SQLiteGroupStore) AssignDeputy(ctx context.Context, roomID, actor, member string) (*Group, error) {
	group, err := s.GetGroupByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if actor != group.Owner {
		return nil, ErrNotAuthorized
	}
	if member == group.Owner {
		return nil, ErrOwnerCannotBeDeputy
	}
	if !group.IsMember(member) {
		return nil, ErrNotMember
	}
	if group.IsDeputy(member) {
		return nil, ErrAlreadyDeputy
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE group_members SET deputy = 1 WHERE room_id = @room_id AND username = @username",
		sql.Named("room_id", roomID), sql.Named("username", member))
	if err != nil {
		return nil, fmt.Errorf("assigning deputy: %w", err)
	}

	return s.GetGroupByRoomID(ctx, roomID)
}

func (s *SQLiteGroupStore) RevokeDeputy(ctx context.Context, roomID, actor, member string) (*Group, error) {
	group, err := s.GetGroupByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if actor != group.Owner {
		return nil, ErrNotAuthorized
	}
	if !group.IsDeputy(member) {
		return nil, ErrNotDeputy
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE group_members SET deputy = 0 WHERE room_id = @room_id AND username = @username",
		sql.Named("room_id", roomID), sql.Named("username", member))
	if err != nil {
		return nil, fmt.Errorf("revoking deputy: %w", err)
	}

	return s.GetGroupByRoomID(ctx, roomID)
}

func (s *SQLiteGroupStore) Leave(ctx context.Context, roomID, actor string) (*Group, error) {
	group, err := s.GetGroupByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if actor == group.Owner {
		return nil, ErrOwnerCannotLeave
	}
	if !group.IsMember(actor) {
		return nil, ErrNotMember
	}

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE room_id = @room_id AND username = @username",
		sql.Named("room_id", roomID), sql.Named("username", actor))
	if err != nil {
		return nil, fmt.Errorf("deleting group member: %w", err)
	}

	return s.GetGroupByRoomID(ctx, roomID)
}

func (s *SQLiteGroupStore) Disband(ctx context.Context, roomID, actor string) (*Group, error) {
	group, err := s.GetGroupByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if actor != group.Owner {
		return nil, ErrNotAuthorized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM group_members WHERE room_id = ?", roomID); err != nil {
		return nil, fmt.Errorf("deleting group members: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM group_chats WHERE room_id = ?", roomID); err != nil {
		return nil, fmt.Errorf("deleting group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}

	return group, nil
}
