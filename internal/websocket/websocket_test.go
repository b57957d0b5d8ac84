package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parley/internal/auth"
	"parley/internal/commands"
	"parley/internal/directory"
	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/domain/user"
	"parley/internal/events"
	"parley/internal/middleware"
	"parley/internal/outbox"
	"parley/internal/repository/memory"
	"parley/internal/services"
	"parley/internal/storage"
	"parley/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type socketFixture struct {
	t        *testing.T
	server   *httptest.Server
	verifier *auth.TokenVerifier
	hub      *Hub
	presence *services.PresenceService
	conv     conversation.Conversation

	alice, bob, eve user.Profile
}

func newSocketFixture(t *testing.T, cfg Config) *socketFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.NewStore()
	f := &socketFixture{
		t:        t,
		verifier: auth.NewTokenVerifier("socket-secret"),
		alice:    user.Profile{ID: uuid.New(), Username: "alice"},
		bob:      user.Profile{ID: uuid.New(), Username: "bob"},
		eve:      user.Profile{ID: uuid.New(), Username: "eve"},
	}
	for _, p := range []user.Profile{f.alice, f.bob, f.eve} {
		store.PutProfile(p)
	}

	bus := events.NewBus(log)
	t.Cleanup(bus.Close)
	proc := outbox.NewProcessor(store.Outbox(), bus, log, 100, 10*time.Millisecond, 3)
	go proc.Run(ctx)

	dir := directory.NewResolver(store.Profiles(), nil, log)
	conversations := services.NewConversationService(store, dir, proc, nil, log)
	threads := services.NewThreadService(store, proc, nil)
	messages := services.NewMessageService(store, storage.NewMemoryStore("mem://", ""), threads, proc, nil, services.MessageLimits{}, log)
	reactions := services.NewReactionService(store, proc, nil)
	typing := services.NewTypingService(store, memory.NewTypingStore(), bus, dir, nil, 0, log)
	f.presence = services.NewPresenceService(memory.NewPresenceStore(), bus, dir, nil, 0, log)

	cmdBus := commands.NewBus(commands.ActorProxy())
	messages.RegisterHandlers(cmdBus)
	reactions.RegisterHandlers(cmdBus)
	typing.RegisterHandlers(cmdBus)
	f.presence.RegisterHandlers(cmdBus)

	conv, err := conversations.StartDirect(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	f.conv = conv

	f.hub = NewHub(nil, f.presence)
	handler := NewHandler(f.hub, bus, cmdBus, NewScopeAuthorizer(store), cfg, log)

	router := gin.New()
	router.GET("/ws", middleware.AuthMiddleware(f.verifier), handler.Connect)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	t.Cleanup(f.hub.CloseAll)
	return f
}

func (f *socketFixture) dial(as user.Profile) *gws.Conn {
	f.t.Helper()
	token, err := f.verifier.Issue(as.ID, time.Minute)
	require.NoError(f.t, err)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?access_token=" + token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func write(t *testing.T, conn *gws.Conn, frame map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// await reads frames until one matches or the deadline passes.
func await(t *testing.T, conn *gws.Conn, match func(OutboundFrame) bool) OutboundFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame OutboundFrame
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "no matching frame before deadline")
		require.NoError(t, json.Unmarshal(data, &frame))
		if match(frame) {
			return frame
		}
	}
}

func byID(id string) func(OutboundFrame) bool {
	return func(f OutboundFrame) bool { return f.ID == id }
}

func TestSubscribeAndReceiveMessageEvents(t *testing.T) {
	f := newSocketFixture(t, Config{})
	alice := f.dial(f.alice)
	bob := f.dial(f.bob)

	write(t, bob, map[string]interface{}{
		"id": "s1", "type": FrameSubscribe,
		"scope": map[string]string{"kind": "conversation", "id": f.conv.ID.String()},
	})
	ack := await(t, bob, byID("s1"))
	require.Equal(t, FrameAck, ack.Type)

	write(t, alice, map[string]interface{}{
		"id": "m1", "type": commands.TypeSendMessage,
		"conversation_id": f.conv.ID, "content": "hello over the socket", "client_message_id": "c-1",
	})
	sent := await(t, alice, byID("m1"))
	require.Equal(t, FrameAck, sent.Type, "%+v", sent.Error)

	ev := await(t, bob, func(fr OutboundFrame) bool {
		return fr.Type == FrameEvent && fr.Event != nil && fr.Event.Entity == events.EntityMessage
	})
	assert.Equal(t, events.KindInsert, ev.Event.Kind)
	assert.Equal(t, "conversation:"+f.conv.ID.String(), ev.Scope)

	decoded, err := ev.Event.Event()
	require.NoError(t, err)
	msg := decoded.Payload.(events.MessagePayload).Message
	assert.Equal(t, "hello over the socket", msg.Text())
	assert.Equal(t, f.alice.ID, msg.SenderID)
}

func TestSubscribeRequiresParticipation(t *testing.T) {
	f := newSocketFixture(t, Config{})
	eve := f.dial(f.eve)

	write(t, eve, map[string]interface{}{
		"id": "s1", "type": FrameSubscribe,
		"scope": map[string]string{"kind": "conversation", "id": f.conv.ID.String()},
	})
	resp := await(t, eve, byID("s1"))
	require.Equal(t, FrameError, resp.Type)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	write(t, eve, map[string]interface{}{
		"id": "s2", "type": FrameSubscribe,
		"scope": map[string]string{"kind": "message", "id": uuid.NewString()},
	})
	resp = await(t, eve, byID("s2"))
	require.Equal(t, FrameError, resp.Type)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	write(t, eve, map[string]interface{}{"id": "s3", "type": FrameSubscribe, "scope": map[string]string{"kind": "global"}})
	assert.Equal(t, FrameAck, await(t, eve, byID("s3")).Type)
}

func TestCommandsActAsConnectionUser(t *testing.T) {
	f := newSocketFixture(t, Config{})
	eve := f.dial(f.eve)

	// The frame cannot name a different sender; eve is not a participant.
	write(t, eve, map[string]interface{}{
		"id": "m1", "type": commands.TypeSendMessage, "sender_id": f.alice.ID,
		"conversation_id": f.conv.ID, "content": "spoof", "client_message_id": "x",
	})
	resp := await(t, eve, byID("m1"))
	require.Equal(t, FrameError, resp.Type)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	write(t, eve, map[string]interface{}{"id": "u1", "type": "nonsense"})
	resp = await(t, eve, byID("u1"))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestReactionAndTypingFrames(t *testing.T) {
	f := newSocketFixture(t, Config{})
	alice := f.dial(f.alice)
	bob := f.dial(f.bob)

	write(t, alice, map[string]interface{}{
		"id": "m1", "type": commands.TypeSendMessage,
		"conversation_id": f.conv.ID, "content": "react to me", "client_message_id": "c-1",
	})
	sent := await(t, alice, byID("m1"))
	require.Equal(t, FrameAck, sent.Type)
	raw, err := json.Marshal(sent.Result)
	require.NoError(t, err)
	var msg message.Message
	require.NoError(t, json.Unmarshal(raw, &msg))

	write(t, bob, map[string]interface{}{
		"id": "s1", "type": FrameSubscribe,
		"scope": map[string]string{"kind": "message", "id": msg.ID.String()},
	})
	require.Equal(t, FrameAck, await(t, bob, byID("s1")).Type)

	write(t, bob, map[string]interface{}{"id": "r1", "type": commands.TypeToggleReaction, "message_id": msg.ID, "emoji": "🎉"})
	require.Equal(t, FrameAck, await(t, bob, byID("r1")).Type)

	ev := await(t, bob, func(fr OutboundFrame) bool {
		return fr.Type == FrameEvent && fr.Event.Entity == events.EntityReaction
	})
	assert.Equal(t, events.KindInsert, ev.Event.Kind)

	write(t, alice, map[string]interface{}{"id": "t1", "type": commands.TypeSetTyping, "conversation_id": f.conv.ID, "is_typing": true})
	assert.Equal(t, FrameAck, await(t, alice, byID("t1")).Type)

	write(t, bob, map[string]interface{}{"id": "u1", "type": FrameUnsubscribe, "scope": map[string]string{"kind": "message", "id": msg.ID.String()}})
	assert.Equal(t, FrameAck, await(t, bob, byID("u1")).Type)
}

func TestFrameRateLimit(t *testing.T) {
	f := newSocketFixture(t, Config{FrameRPS: 0.001, FrameBurst: 1})
	alice := f.dial(f.alice)

	write(t, alice, map[string]interface{}{"id": "p1", "type": FramePing})
	assert.Equal(t, FramePong, await(t, alice, byID("p1")).Type)

	write(t, alice, map[string]interface{}{"id": "p2", "type": FramePing})
	resp := await(t, alice, byID("p2"))
	require.Equal(t, FrameError, resp.Type)
	assert.Equal(t, "RATE_LIMITED", resp.Error.Code)
}

func TestDisconnectMarksUserOffline(t *testing.T) {
	f := newSocketFixture(t, Config{})
	ctx := context.Background()
	alice := f.dial(f.alice)

	write(t, alice, map[string]interface{}{"id": "h1", "type": commands.TypeHeartbeat})
	require.Equal(t, FrameAck, await(t, alice, byID("h1")).Type)

	online, err := f.presence.IsOnline(ctx, f.alice.ID)
	require.NoError(t, err)
	require.True(t, online)
	require.True(t, f.hub.IsConnected(f.alice.ID))

	require.NoError(t, alice.Close())
	assert.Eventually(t, func() bool {
		online, err := f.presence.IsOnline(ctx, f.alice.ID)
		return err == nil && !online && !f.hub.IsConnected(f.alice.ID)
	}, 2*time.Second, 10*time.Millisecond)
}
