package message

import (
	"testing"
	"time"

	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCheckEditable(t *testing.T) {
	sender := uuid.New()
	msg := Message{ID: uuid.New(), SenderID: sender, Content: NormalizeContent("hi")}

	assert.NoError(t, msg.CheckEditable(sender))
	assert.ErrorIs(t, msg.CheckEditable(uuid.New()), parley_errors.ErrUnauthorized)

	withFile := msg
	withFile.HasAttachment = true
	assert.ErrorIs(t, withFile.CheckEditable(sender), parley_errors.ErrConflict)

	deleted := msg
	deleted.DeletedAt = parley_errors.NowPtr()
	assert.ErrorIs(t, deleted.CheckEditable(sender), parley_errors.ErrNotFound)
}

func TestCheckDeletable(t *testing.T) {
	sender := uuid.New()
	msg := Message{ID: uuid.New(), SenderID: sender}

	assert.NoError(t, msg.CheckDeletable(sender))
	assert.ErrorIs(t, msg.CheckDeletable(uuid.New()), parley_errors.ErrUnauthorized)
}

func TestCanParent(t *testing.T) {
	conv := uuid.New()
	top := Message{ID: uuid.New(), ConversationID: conv}
	reply := Message{ID: uuid.New(), ConversationID: conv, ParentMessageID: uuid.NullUUID{UUID: top.ID, Valid: true}}

	assert.True(t, top.CanParent(conv))
	assert.False(t, top.CanParent(uuid.New()))
	assert.False(t, reply.CanParent(conv))
}

func TestNormalizeContent(t *testing.T) {
	assert.Nil(t, NormalizeContent("   "))
	assert.Nil(t, NormalizeContent(""))
	got := NormalizeContent("  hello ")
	if assert.NotNil(t, got) {
		assert.Equal(t, "hello", *got)
	}
}

func TestGroupReactions(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgID := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	rows := []Reaction{
		{MessageID: msgID, UserID: b, Emoji: "🎉", CreatedAt: base.Add(3 * time.Second)},
		{MessageID: msgID, UserID: a, Emoji: "👍", CreatedAt: base.Add(1 * time.Second)},
		{MessageID: msgID, UserID: c, Emoji: "👍", CreatedAt: base.Add(2 * time.Second)},
		{MessageID: msgID, UserID: a, Emoji: "👍", CreatedAt: base.Add(4 * time.Second)},
	}

	groups := GroupReactions(rows)
	assert.Len(t, groups, 2)
	assert.Equal(t, "👍", groups[0].Emoji)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, []uuid.UUID{a, c}, groups[0].ReactingUsers)
	assert.Equal(t, "🎉", groups[1].Emoji)
	assert.Equal(t, 1, groups[1].Count)
	assert.True(t, groups[1].HasUser(b))

	for _, g := range groups {
		assert.Equal(t, len(g.ReactingUsers), g.Count)
	}
}

func TestGroupReactionsEmpty(t *testing.T) {
	assert.Empty(t, GroupReactions(nil))
}

func TestValidEmoji(t *testing.T) {
	valid := []string{"👍", "❤️", "👨‍👩‍👧", "🇯🇵", "1️⃣", "👍🏽"}
	for _, e := range valid {
		assert.True(t, ValidEmoji(e), e)
	}
	invalid := []string{"", "a", "7", "👍👍", "ok", " 👍", "!"}
	for _, e := range invalid {
		assert.False(t, ValidEmoji(e), e)
	}
}

func TestAttachmentIsImage(t *testing.T) {
	assert.True(t, Attachment{FileType: "image/png"}.IsImage())
	assert.False(t, Attachment{FileType: "application/pdf"}.IsImage())
}
