// Package clientview keeps one client's projection of a conversation in step
// with the change event stream. Local state is a map keyed by entity id plus a
// correlation index for sends the server has not confirmed yet.
package clientview

import (
	"sort"
	"sync"
	"time"

	"parley/internal/domain/message"
	"parley/internal/domain/presence"
	"parley/internal/events"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// Entry is one message as the client sees it. Pending and failed entries
// carry a temporary id until the server confirms them.
type Entry struct {
	Message     message.Message
	Status      Status
	Correlation string
	Err         error
}

type reactionKey struct {
	userID uuid.UUID
	emoji  string
}

type Option func(*View)

func WithClock(clock func() time.Time) Option {
	return func(v *View) { v.clock = clock }
}

func WithWindows(typingTimeout, presenceWindow time.Duration) Option {
	return func(v *View) {
		if typingTimeout > 0 {
			v.typingTimeout = typingTimeout
		}
		if presenceWindow > 0 {
			v.presenceWindow = presenceWindow
		}
	}
}

type View struct {
	mu             sync.RWMutex
	conversationID uuid.UUID
	viewerID       uuid.UUID
	clock          func() time.Time
	typingTimeout  time.Duration
	presenceWindow time.Duration
	deleted        bool

	entries       map[uuid.UUID]*Entry
	byCorrelation map[string]uuid.UUID
	reactions     map[uuid.UUID]map[reactionKey]message.Reaction
	typing        map[uuid.UUID]presence.TypingIndicator
	online        map[uuid.UUID]presence.OnlineStatus
}

func NewView(conversationID, viewerID uuid.UUID, opts ...Option) *View {
	v := &View{
		conversationID: conversationID,
		viewerID:       viewerID,
		clock:          time.Now,
		typingTimeout:  presence.DefaultTypingTimeout,
		presenceWindow: presence.DefaultPresenceWindow,
		entries:        make(map[uuid.UUID]*Entry),
		byCorrelation:  make(map[string]uuid.UUID),
		reactions:      make(map[uuid.UUID]map[reactionKey]message.Reaction),
		typing:         make(map[uuid.UUID]presence.TypingIndicator),
		online:         make(map[uuid.UUID]presence.OnlineStatus),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *View) ConversationID() uuid.UUID { return v.conversationID }

func (v *View) ViewerID() uuid.UUID { return v.viewerID }

// Load seeds the view with authoritative messages and their reactions.
func (v *View) Load(msgs []message.Message, reactions []message.Reaction) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, m := range msgs {
		v.upsertConfirmed(m)
	}
	for _, r := range reactions {
		v.putReaction(r)
	}
}

// AddPending inserts an optimistic entry for a send under a temporary id.
func (v *View) AddPending(correlation, content string, parentID uuid.NullUUID) Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	if id, ok := v.byCorrelation[correlation]; ok {
		e := v.entries[id]
		if e.Status == StatusFailed {
			e.Status = StatusPending
			e.Err = nil
		}
		return *e
	}

	now := v.clock().UTC()
	e := &Entry{
		Message: message.Message{
			ID:              uuid.New(),
			ConversationID:  v.conversationID,
			SenderID:        v.viewerID,
			ClientMessageID: correlation,
			Content:         message.NormalizeContent(content),
			CreatedAt:       now,
			UpdatedAt:       now,
			ParentMessageID: parentID,
		},
		Status:      StatusPending,
		Correlation: correlation,
	}
	v.entries[e.Message.ID] = e
	v.byCorrelation[correlation] = e.Message.ID
	return *e
}

// MarkFailed keeps the optimistic entry visible with StatusFailed.
func (v *View) MarkFailed(correlation string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id, ok := v.byCorrelation[correlation]
	if !ok {
		return
	}
	if e := v.entries[id]; e.Status == StatusPending {
		e.Status = StatusFailed
		e.Err = err
	}
}

// Confirm reconciles the server's answer to a send, same as its INSERT event.
func (v *View) Confirm(m message.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upsertConfirmed(m)
}

// Pending returns the entry for a correlation id.
func (v *View) Pending(correlation string) (Entry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.byCorrelation[correlation]
	if !ok {
		return Entry{}, false
	}
	return *v.entries[id], true
}

func (v *View) upsertConfirmed(m message.Message) {
	if m.ConversationID != v.conversationID {
		return
	}
	if m.IsDeleted() {
		v.removeMessage(m.ID)
		return
	}
	if m.ClientMessageID != "" {
		if tempID, ok := v.byCorrelation[m.ClientMessageID]; ok && tempID != m.ID {
			if temp := v.entries[tempID]; temp != nil && temp.Status != StatusConfirmed {
				delete(v.entries, tempID)
			}
		}
		v.byCorrelation[m.ClientMessageID] = m.ID
	}
	if existing, ok := v.entries[m.ID]; ok {
		existing.Message = merge(existing.Message, m)
		existing.Status = StatusConfirmed
		existing.Err = nil
		return
	}
	v.entries[m.ID] = &Entry{Message: m, Status: StatusConfirmed, Correlation: m.ClientMessageID}
}

// merge applies an authoritative row over the local one. Stale rows lose.
func merge(local, incoming message.Message) message.Message {
	if incoming.UpdatedAt.Before(local.UpdatedAt) {
		return local
	}
	if len(incoming.Attachments) == 0 && len(local.Attachments) > 0 {
		incoming.Attachments = local.Attachments
	}
	return incoming
}

func (v *View) removeMessage(id uuid.UUID) {
	e, ok := v.entries[id]
	if !ok {
		return
	}
	delete(v.entries, id)
	delete(v.reactions, id)
	if e.Correlation != "" && v.byCorrelation[e.Correlation] == id {
		delete(v.byCorrelation, e.Correlation)
	}
}

// Apply folds one change event into the view. It reports whether anything
// visible changed.
func (v *View) Apply(ev events.ChangeEvent) bool {
	if ev.ConversationID != uuid.Nil && ev.ConversationID != v.conversationID {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	switch p := ev.Payload.(type) {
	case events.MessagePayload:
		return v.applyMessage(ev.Kind, p.Message)
	case events.AttachmentPayload:
		return v.applyAttachment(ev.Kind, p.Attachment)
	case events.ReactionPayload:
		return v.applyReaction(ev.Kind, p.Reaction)
	case events.TypingPayload:
		cur, ok := v.typing[p.Indicator.UserID]
		if ok && p.Indicator.LastUpdated.Before(cur.LastUpdated) {
			return false
		}
		v.typing[p.Indicator.UserID] = p.Indicator
		return true
	case events.PresencePayload:
		cur, ok := v.online[p.Status.UserID]
		if ok && p.Status.LastSeen.Before(cur.LastSeen) {
			return false
		}
		v.online[p.Status.UserID] = p.Status
		return true
	case events.ConversationPayload:
		if ev.Kind == events.KindDelete {
			v.deleted = true
			return true
		}
	}
	return false
}

func (v *View) applyMessage(kind events.Kind, m message.Message) bool {
	switch kind {
	case events.KindInsert:
		v.upsertConfirmed(m)
		return true
	case events.KindUpdate:
		existing, ok := v.entries[m.ID]
		if !ok {
			return false
		}
		if m.IsDeleted() {
			v.removeMessage(m.ID)
			return true
		}
		existing.Message = merge(existing.Message, m)
		return true
	case events.KindDelete:
		if _, ok := v.entries[m.ID]; !ok {
			return false
		}
		v.removeMessage(m.ID)
		return true
	}
	return false
}

func (v *View) applyAttachment(kind events.Kind, a message.Attachment) bool {
	e, ok := v.entries[a.MessageID]
	if !ok {
		return false
	}
	kept := make([]message.Attachment, 0, len(e.Message.Attachments)+1)
	for _, cur := range e.Message.Attachments {
		if cur.ID != a.ID {
			kept = append(kept, cur)
		}
	}
	if kind != events.KindDelete {
		kept = append(kept, a)
	}
	e.Message.Attachments = kept
	e.Message.HasAttachment = len(kept) > 0 || e.Message.HasAttachment
	return true
}

func (v *View) applyReaction(kind events.Kind, r message.Reaction) bool {
	if kind == events.KindDelete {
		rows := v.reactions[r.MessageID]
		k := reactionKey{userID: r.UserID, emoji: r.Emoji}
		if _, ok := rows[k]; !ok {
			return false
		}
		delete(rows, k)
		return true
	}
	v.putReaction(r)
	return true
}

func (v *View) putReaction(r message.Reaction) {
	rows, ok := v.reactions[r.MessageID]
	if !ok {
		rows = make(map[reactionKey]message.Reaction)
		v.reactions[r.MessageID] = rows
	}
	rows[reactionKey{userID: r.UserID, emoji: r.Emoji}] = r
}

// ToggleLocal flips the viewer's reaction optimistically and reports whether
// it is now present.
func (v *View) ToggleLocal(messageID uuid.UUID, emoji string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	k := reactionKey{userID: v.viewerID, emoji: emoji}
	if _, ok := v.reactions[messageID][k]; ok {
		delete(v.reactions[messageID], k)
		return false
	}
	v.putReaction(message.Reaction{
		ID:        uuid.New(),
		MessageID: messageID,
		UserID:    v.viewerID,
		Emoji:     emoji,
		CreatedAt: v.clock().UTC(),
	})
	return true
}

// Messages returns top-level entries ordered by (created_at, id).
func (v *View) Messages() []Entry {
	return v.sorted(func(m message.Message) bool { return !m.IsReply() })
}

// Replies returns the entries in parentID's thread ordered by (created_at, id).
func (v *View) Replies(parentID uuid.UUID) []Entry {
	return v.sorted(func(m message.Message) bool {
		return m.ParentMessageID.Valid && m.ParentMessageID.UUID == parentID
	})
}

func (v *View) sorted(keep func(message.Message) bool) []Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Entry, 0, len(v.entries))
	for _, e := range v.entries {
		if keep(e.Message) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Message, out[j].Message
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return out
}

func (v *View) Reactions(messageID uuid.UUID) []message.ReactionGroup {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rows := make([]message.Reaction, 0, len(v.reactions[messageID]))
	for _, r := range v.reactions[messageID] {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID.String() < rows[j].ID.String() })
	return message.GroupReactions(rows)
}

// UnreadCount counts confirmed messages from others not yet read.
func (v *View) UnreadCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, e := range v.entries {
		if e.Status == StatusConfirmed && e.Message.SenderID != v.viewerID && !e.Message.IsRead {
			n++
		}
	}
	return n
}

// TypingUsers returns who else is typing now, in the order they started.
func (v *View) TypingUsers() []uuid.UUID {
	v.mu.RLock()
	defer v.mu.RUnlock()
	now := v.clock()
	active := make([]presence.TypingIndicator, 0, len(v.typing))
	for _, ind := range v.typing {
		if ind.UserID != v.viewerID && ind.Active(now, v.typingTimeout) {
			active = append(active, ind)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].LastUpdated.Equal(active[j].LastUpdated) {
			return active[i].LastUpdated.Before(active[j].LastUpdated)
		}
		return active[i].UserID.String() < active[j].UserID.String()
	})
	out := make([]uuid.UUID, len(active))
	for i, ind := range active {
		out[i] = ind.UserID
	}
	return out
}

func (v *View) IsOnline(userID uuid.UUID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	st, ok := v.online[userID]
	return ok && st.Online(v.clock(), v.presenceWindow)
}

// Deleted reports whether the conversation itself was deleted.
func (v *View) Deleted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.deleted
}
