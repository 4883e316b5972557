package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// Event is the unit of communication on a websocket connection: a named
// event with a JSON payload. Inbound events carry the originating connection
// and the identity bound to it at the time of receipt.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	// Dispatcher is the identity registered for the originating connection.
	// Empty until the connection has registered a username.
	Dispatcher string `json:"-"`

	conn *Conn
}

// Conn returns the connection the event arrived on, nil for server-built
// events.
func (e *Event) Conn() *Conn {
	return e.conn
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Dispatcher: %s, Payload.Size: %d}", e.Type, e.Dispatcher, len(e.Payload))
}

// NewEvent builds an outbound event, marshalling payload to JSON.
func NewEvent(t string, payload interface{}) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{Type: t, Payload: b}, nil
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

type EventHandler func(context.Context, *Event) error

// EventRouter dispatches inbound events to the handler registered for their
// type. Dispatch runs the handler synchronously on the calling goroutine,
// which is the connection's read pump: events from one connection are
// handled in the order they arrived, while different connections proceed
// concurrently.
type EventRouter struct {
	handlers map[string]EventHandler
	ctx      context.Context
	logger   *slog.Logger
}

func NewEventRouter(ctx context.Context, logger *slog.Logger) *EventRouter {
	return &EventRouter{
		handlers: make(map[string]EventHandler),
		ctx:      ctx,
		logger:   logger,
	}
}

// On registers the handler for an event type. All registrations must happen
// before connections start dispatching.
func (em *EventRouter) On(eventType string, handler EventHandler) {
	em.handlers[eventType] = handler
}

func (em *EventRouter) Dispatch(e *Event) {
	handler, ok := em.handlers[e.Type]
	if !ok {
		em.logger.Debug(fmt.Sprintf("no handler for event: %s", e.Type))
		return
	}
	if err := handler(em.ctx, e); err != nil {
		em.logger.Error(fmt.Sprintf("%s handler: %s", e.Type, err))
	}
}
