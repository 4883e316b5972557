package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMessageNotFound is returned when no message matches the identifier.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMessageOwner is returned when someone other than the author
	// tries to delete a message.
	ErrNotMessageOwner = errors.New("only the author may delete a message")
	// ErrInvalidMessage is returned when the create input fails validation.
	ErrInvalidMessage = errors.New("invalid message")
)

// ReplyRef is a denormalized snapshot of the message being replied to. The
// snapshot is supplied by the client and stored as-is; it stays readable
// even after the referenced message is deleted.
type ReplyRef struct {
	ID      string `json:"id"`
	Body    string `json:"message"`
	FileURL string `json:"fileUrl,omitempty"`
}

// Message is a chat message in a room. Immutable once created except for
// deletion by its author. Identifiers are ULIDs, so sorting by ID sorts by
// creation time.
type Message struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Body      string    `json:"message"`
	Room      string    `json:"room"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	ReplyTo   *ReplyRef `json:"replyTo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageCreateInput is the payload for creating a message. The body may be
// empty when a file is attached.
type MessageCreateInput struct {
	Name     string    `json:"name" validate:"required"`
	Body     string    `json:"message"`
	Room     string    `json:"room" validate:"required"`
	FileURL  string    `json:"fileUrl"`
	FileName string    `json:"fileName"`
	ReplyTo  *ReplyRef `json:"replyTo"`
}

func (m *MessageCreateInput) Validate() error {
	if err := validate.Struct(m); err != nil {
		return err
	}
	if m.Body == "" && m.FileURL == "" {
		return ErrInvalidMessage
	}
	return nil
}

type MessageStore interface {
	// CreateMessage persists a message with a server-assigned identifier
	// and creation time. A ReplyTo referencing an unknown message is stored
	// with the caller-supplied snapshot; it is not an error.
	CreateMessage(ctx context.Context, input MessageCreateInput) (*Message, error)

	// GetMessageByID returns the message, or nil if it does not exist.
	GetMessageByID(ctx context.Context, id string) (*Message, error)

	// DeleteMessage removes a message. It fails with ErrMessageNotFound or,
	// when actor is not the author, ErrNotMessageOwner.
	DeleteMessage(ctx context.Context, id, actor string) error

	// ListRoomMessages returns the full history of a room in creation
	// order.
	ListRoomMessages(ctx context.Context, room string) ([]Message, error)

	// ListRoomMessagesBefore returns up to limit messages created strictly
	// before the given time, in creation order, for history pagination.
	ListRoomMessagesBefore(ctx context.Context, room string, before time.Time, limit int) ([]Message, error)

	// LastRoomMessage returns the most recent message of a room, or nil if
	// the room has none.
	LastRoomMessage(ctx context.Context, room string) (*Message, error)
}

// Reaction is a user's emotion attached to a message. The last reaction per
// (message, user) wins; sending a new one replaces the previous.
type Reaction struct {
	MessageID string    `json:"messageId" validate:"required"`
	Room      string    `json:"room" validate:"required"`
	User      string    `json:"user" validate:"required"`
	Emotion   int       `json:"emotion" validate:"required,min=1,max=5"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Reaction) Validate() error {
	return validate.Struct(r)
}

type ReactionStore interface {
	// UpsertReaction stores the reaction, replacing any previous reaction
	// by the same user on the same message.
	UpsertReaction(ctx context.Context, reaction Reaction) (*Reaction, error)

	// ListRoomReactions returns all current reactions in a room in
	// creation order.
	ListRoomReactions(ctx context.Context, room string) ([]Reaction, error)
}
