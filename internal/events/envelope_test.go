package events

import (
	"encoding/json"
	"testing"
	"time"

	"parley/internal/domain/message"
	"parley/internal/domain/presence"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireShape(t *testing.T) {
	conv := uuid.New()
	parent := uuid.New()
	msg := newMessage(conv)
	msg.ParentMessageID = uuid.NullUUID{UUID: parent, Valid: true}
	ev := NewMessageEvent(KindInsert, msg, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	data, err := Marshal(ev)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "INSERT", raw["kind"])
	assert.Equal(t, "message", raw["entity"])
	assert.Equal(t, conv.String(), raw["conversation_id"])
	assert.Equal(t, msg.ID.String(), raw["message_id"])
	assert.Equal(t, parent.String(), raw["thread_id"])
	assert.Equal(t, ev.ID.String(), raw["event_id"])
	assert.Contains(t, raw, "payload")

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, ev.Key(), decoded.Key())
	got := decoded.Payload.(MessagePayload).Message
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hello", got.Text())
	assert.True(t, got.ParentMessageID.Valid)
}

func TestEnvelopePresenceOmitsConversation(t *testing.T) {
	status := presence.OnlineStatus{UserID: uuid.New(), IsOnline: true, LastSeen: time.Now().UTC()}
	data, err := Marshal(NewPresenceEvent(status, time.Now()))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "conversation_id")

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, decoded.ConversationID)
	assert.Equal(t, status.UserID, decoded.Payload.(PresencePayload).Status.UserID)
}

func TestEnvelopeRejectsUnknownTags(t *testing.T) {
	_, err := Unmarshal([]byte(`{"event_id":"` + uuid.NewString() + `","kind":"UPSERT","entity":"message","payload":{}}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"event_id":"` + uuid.NewString() + `","kind":"INSERT","entity":"poll","payload":{}}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestReactionKeyIsNaturalKey(t *testing.T) {
	r := message.Reaction{ID: uuid.New(), MessageID: uuid.New(), UserID: uuid.New(), Emoji: "👍"}
	added := NewReactionEvent(KindInsert, r, uuid.New(), time.Now())
	r.ID = uuid.New()
	removed := NewReactionEvent(KindDelete, r, uuid.New(), time.Now())
	assert.Equal(t, added.Key(), removed.Key())
}

func TestChannelResolver(t *testing.T) {
	resolver := NewConversationChannelResolver()
	conv := uuid.New()
	assert.Equal(t, []string{ChannelPrefixConversation + conv.String()},
		resolver.ResolveChannels(NewMessageEvent(KindInsert, newMessage(conv), time.Now())))
	assert.Equal(t, []string{ChannelPresence},
		resolver.ResolveChannels(NewPresenceEvent(presence.OnlineStatus{UserID: uuid.New()}, time.Now())))
}

func TestParseScope(t *testing.T) {
	id := uuid.New()
	s, err := ParseScope("conversation", id.String())
	require.NoError(t, err)
	assert.Equal(t, ConversationScope(id), s)

	s, err = ParseScope("global", "")
	require.NoError(t, err)
	assert.Equal(t, GlobalScope(), s)

	_, err = ParseScope("message", "nope")
	assert.Error(t, err)
	_, err = ParseScope("user", id.String())
	assert.Error(t, err)
}
