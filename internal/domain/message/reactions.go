package message

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Reaction represents message_reactions
type Reaction struct {
	ID        uuid.UUID `json:"id"`
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup is the tally for one emoji on one message.
type ReactionGroup struct {
	Emoji         string      `json:"emoji"`
	Count         int         `json:"count"`
	ReactingUsers []uuid.UUID `json:"reacting_users"`
}

func (r ReactionGroup) HasUser(userID uuid.UUID) bool {
	for _, id := range r.ReactingUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupReactions folds reaction rows into per-emoji groups. Emojis are
// ordered by their first reaction; duplicate (user, emoji) rows count once.
func GroupReactions(reactions []Reaction) []ReactionGroup {
	rows := make([]Reaction, len(reactions))
	copy(rows, reactions)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	index := make(map[string]int)
	seen := make(map[string]map[uuid.UUID]struct{})
	groups := make([]ReactionGroup, 0)
	for _, r := range rows {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			seen[r.Emoji] = make(map[uuid.UUID]struct{})
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		if _, dup := seen[r.Emoji][r.UserID]; dup {
			continue
		}
		seen[r.Emoji][r.UserID] = struct{}{}
		groups[i].ReactingUsers = append(groups[i].ReactingUsers, r.UserID)
		groups[i].Count = len(groups[i].ReactingUsers)
	}
	return groups
}

func (Reaction) TableName() string {
	return "message_reactions"
}
