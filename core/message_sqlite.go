package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

type SQLiteMessageStore struct {
	db *sql.DB
}

func NewSQLiteMessageStore(db *sql.DB) *SQLiteMessageStore {
	return &SQLiteMessageStore{db: db}
}

func (s *SQLiteMessageStore) CreateMessage(ctx context.Context, input MessageCreateInput) (*Message, error) {
	if err := input.Validate(); err != nil {
		return nil, ErrInvalidMessage
	}

	message := &Message{
		ID:        ulid.Make().String(),
		Name:      input.Name,
		Body:      input.Body,
		Room:      input.Room,
		FileURL:   input.FileURL,
		FileName:  input.FileName,
		ReplyTo:   input.ReplyTo,
		CreatedAt: time.Now().UTC(),
	}

	var replyID, replyBody, replyFileURL string
	if message.ReplyTo != nil {
		replyID = message.ReplyTo.ID
		replyBody = message.ReplyTo.Body
		replyFileURL = message.ReplyTo.FileURL
	}

	query := `
	INSERT INTO messages (id, name, body, room, file_url, file_name,
		reply_to_id, reply_to_body, reply_to_file_url, created_at)
	VALUES (@id, @name, @body, @room, @file_url, @file_name,
		@reply_to_id, @reply_to_body, @reply_to_file_url, @created_at)`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("id", message.ID),
		sql.Named("name", message.Name),
		sql.Named("body", message.Body),
		sql.Named("room", message.Room),
		sql.Named("file_url", message.FileURL),
		sql.Named("file_name", message.FileName),
		sql.Named("reply_to_id", replyID),
		sql.Named("reply_to_body", replyBody),
		sql.Named("reply_to_file_url", replyFileURL),
		sql.Named("created_at", message.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	return message, nil
}

const messageColumns = `id, name, body, room, file_url, file_name,
	reply_to_id, reply_to_body, reply_to_file_url, created_at`

func scanMessage(scan func(...interface{}) error) (*Message, error) {
	var m Message
	var replyID, replyBody, replyFileURL string
	err := scan(&m.ID, &m.Name, &m.Body, &m.Room, &m.FileURL, &m.FileName,
		&replyID, &replyBody, &replyFileURL, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if replyID != "" || replyBody != "" || replyFileURL != "" {
		m.ReplyTo = &ReplyRef{ID: replyID, Body: replyBody, FileURL: replyFileURL}
	}
	return &m, nil
}

func (s *SQLiteMessageStore) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ? LIMIT 1", id)
	message, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	return message, nil
}

func (s *SQLiteMessageStore) DeleteMessage(ctx context.Context, id, actor string) error {
	message, err := s.GetMessageByID(ctx, id)
	if err != nil {
		return err
	}
	if message == nil {
		return ErrMessageNotFound
	}
	if message.Name != actor {
		return ErrNotMessageOwner
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) listMessages(ctx context.Context, query string, args ...interface{}) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		message, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, *message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return messages, nil
}

func (s *SQLiteMessageStore) ListRoomMessages(ctx context.Context, room string) ([]Message, error) {
	// ULIDs sort lexicographically by creation time.
	return s.listMessages(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE room = ? ORDER BY id", room)
}

func (s *SQLiteMessageStore) ListRoomMessagesBefore(ctx context.Context, room string, before time.Time, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	messages, err := s.listMessages(ctx, `
	SELECT `+messageColumns+` FROM messages
	WHERE room = @room AND created_at < @before
	ORDER BY id DESC LIMIT @limit`,
		sql.Named("room", room), sql.Named("before", before.UTC()), sql.Named("limit", limit))
	if err != nil {
		return nil, err
	}
	// The query walks backwards from the boundary; callers want creation
	// order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLiteMessageStore) LastRoomMessage(ctx context.Context, room string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE room = ? ORDER BY id DESC LIMIT 1", room)
	message, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	return message, nil
}

type SQLiteReactionStore struct {
	db *sql.DB
}

func NewSQLiteReactionStore(db *sql.DB) *SQLiteReactionStore {
	return &SQLiteReactionStore{db: db}
}

func (s *SQLiteReactionStore) UpsertReaction(ctx context.Context, reaction Reaction) (*Reaction, error) {
	if err := reaction.Validate(); err != nil {
		return nil, err
	}
	reaction.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO reactions (message_id, room, user, emotion, created_at)
	VALUES (@message_id, @room, @user, @emotion, @created_at)
	ON CONFLICT (message_id, user) DO UPDATE SET
		emotion = excluded.emotion,
		created_at = excluded.created_at`,
		sql.Named("message_id", reaction.MessageID),
		sql.Named("room", reaction.Room),
		sql.Named("user", reaction.User),
		sql.Named("emotion", reaction.Emotion),
		sql.Named("created_at", reaction.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting reaction: %w", err)
	}
	return &reaction, nil
}

func (s *SQLiteReactionStore) ListRoomReactions(ctx context.Context, room string) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT message_id, room, user, emotion, created_at
	FROM reactions WHERE room = ? ORDER BY created_at`, room)
	if err != nil {
		return nil, fmt.Errorf("querying reactions: %w", err)
	}
	defer rows.Close()

	var reactions []Reaction
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.MessageID, &r.Room, &r.User, &r.Emotion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return reactions, nil
}
