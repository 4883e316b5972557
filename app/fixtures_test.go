package chatapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ngophuc29/sockettuBuild/core"
)

// wsStores are the store implementations wired into a test app. Nil fields
// fall back to empty in-memory stubs.
type wsStores struct {
	messages  core.MessageStore
	reactions core.ReactionStore
	groups    core.GroupStore
	friends   core.FriendStore
}

// wsFixture runs the event handlers behind a real websocket hub so tests
// observe exactly what each connected client receives.
type wsFixture struct {
	t      *testing.T
	app    *App
	server *httptest.Server
}

func newWSFixture(t *testing.T, stores wsStores) *wsFixture {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if stores.messages == nil {
		stores.messages = &stubMessageStore{}
	}
	if stores.reactions == nil {
		stores.reactions = &stubReactionStore{}
	}
	if stores.groups == nil {
		stores.groups = &stubGroupStore{}
	}
	if stores.friends == nil {
		stores.friends = &stubFriendStore{}
	}

	app := &App{
		context:   ctx,
		logger:    logger,
		calls:     core.NewCallTable(),
		messages:  stores.messages,
		reactions: stores.reactions,
		groups:    stores.groups,
		friends:   stores.friends,
	}
	app.lastMessages = core.NewLastMessageCache(app.messages, time.Minute)
	app.hub = core.NewHub(ctx, &app.wg, app.calls, logger)

	app.eventRouter = core.NewEventRouter(ctx, logger)
	app.eventRouter.On(RegisterUserEvent, app.RegisterUserHandler)
	app.eventRouter.On(JoinEvent, app.JoinHandler)
	app.eventRouter.On(LeaveEvent, app.LeaveHandler)
	app.eventRouter.On(MessageEvent, app.MessageHandler)
	app.eventRouter.On(EmotionEvent, app.EmotionHandler)
	app.eventRouter.On(GetLastMessageEvent, app.GetLastMessageHandler)
	app.eventRouter.On(GetOlderMessagesEvent, app.GetOlderMessagesHandler)
	app.eventRouter.On(WithdrawFriendEvent, app.WithdrawFriendHandler)
	app.eventRouter.On(CancelFriendEvent, app.CancelFriendHandler)
	app.hub.SetRouter(app.eventRouter)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.hub.ServeWS(w, r)
	}))
	t.Cleanup(server.Close)

	return &wsFixture{t: t, app: app, server: server}
}

func (f *wsFixture) dial() *wsClient {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(f.t, err)
	f.t.Cleanup(func() { ws.Close() })
	return &wsClient{t: f.t, ws: ws}
}

// register binds the username and waits until the hub sees it online, so
// later events can rely on the binding.
func (f *wsFixture) register(c *wsClient, username string) {
	c.emit(RegisterUserEvent, username)
	require.Eventually(f.t, func() bool { return f.app.hub.IsOnline(username) },
		time.Second, 10*time.Millisecond)
}

func (f *wsFixture) join(c *wsClient, username, room string) {
	c.emit(JoinEvent, room)
	require.Eventually(f.t, func() bool { return f.app.hub.UserInRoom(username, room) },
		time.Second, 10*time.Millisecond)
}

type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func (c *wsClient) emit(eventType string, payload interface{}) {
	e, err := core.NewEvent(eventType, payload)
	require.Nil(c.t, err)
	require.Nil(c.t, c.ws.WriteJSON(e))
}

// collect reads every event delivered within the window, keyed by type.
func (c *wsClient) collect(window time.Duration) map[string][]json.RawMessage {
	events := make(map[string][]json.RawMessage)
	c.ws.SetReadDeadline(time.Now().Add(window))
	for {
		var e core.Event
		if err := c.ws.ReadJSON(&e); err != nil {
			return events
		}
		events[e.Type] = append(events[e.Type], e.Payload)
	}
}

func decodeResult(t *testing.T, raw json.RawMessage) Result {
	var res Result
	require.Nil(t, json.Unmarshal(raw, &res))
	return res
}

type stubMessageStore struct {
	core.MessageStore
	mu        sync.Mutex
	messages  []core.Message
	createErr error
	listErr   error
	lastErr   error
}

func (s *stubMessageStore) CreateMessage(ctx context.Context, input core.MessageCreateInput) (*core.Message, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := core.Message{
		ID:        fmt.Sprintf("%026d", len(s.messages)+1),
		Name:      input.Name,
		Body:      input.Body,
		Room:      input.Room,
		FileURL:   input.FileURL,
		FileName:  input.FileName,
		ReplyTo:   input.ReplyTo,
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *stubMessageStore) ListRoomMessages(ctx context.Context, room string) ([]core.Message, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Message{}
	for _, m := range s.messages {
		if m.Room == room {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubMessageStore) ListRoomMessagesBefore(ctx context.Context, room string, before time.Time, limit int) ([]core.Message, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []core.Message{}, nil
}

func (s *stubMessageStore) LastRoomMessage(ctx context.Context, room string) (*core.Message, error) {
	if s.lastErr != nil {
		return nil, s.lastErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Room == room {
			m := s.messages[i]
			return &m, nil
		}
	}
	return nil, nil
}

type stubReactionStore struct {
	core.ReactionStore
	upsertErr error
}

func (s *stubReactionStore) UpsertReaction(ctx context.Context, reaction core.Reaction) (*core.Reaction, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	reaction.CreatedAt = time.Now().UTC()
	return &reaction, nil
}

func (s *stubReactionStore) ListRoomReactions(ctx context.Context, room string) ([]core.Reaction, error) {
	return []core.Reaction{}, nil
}

type stubGroupStore struct {
	core.GroupStore
	group *core.Group
	err   error
}

func (s *stubGroupStore) GetGroupByRoomID(ctx context.Context, roomID string) (*core.Group, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.group == nil || s.group.RoomID != roomID {
		return nil, core.ErrGroupNotFound
	}
	return s.group, nil
}

type stubFriendStore struct {
	core.FriendStore
	withdrawErr error
	cancelErr   error
	pending     map[string][]core.FriendRequest
	friends     map[string][]string
}

func (s *stubFriendStore) Withdraw(ctx context.Context, from, to string) error {
	return s.withdrawErr
}

func (s *stubFriendStore) Cancel(ctx context.Context, a, b string) error {
	return s.cancelErr
}

func (s *stubFriendStore) PendingRequestsFor(ctx context.Context, to string) ([]core.FriendRequest, error) {
	return s.pending[to], nil
}

func (s *stubFriendStore) Friends(ctx context.Context, username string) ([]string, error) {
	return s.friends[username], nil
}
