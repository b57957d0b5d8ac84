package memory

import (
	"context"
	"sort"

	"parley/internal/domain/message"

	"github.com/google/uuid"
)

type reactionRepository struct {
	store *Store
}

func (r *reactionRepository) Toggle(ctx context.Context, in message.Reaction) (message.Reaction, bool, error) {
	defer r.store.lock()()
	key := reactionKey{messageID: in.MessageID, userID: in.UserID, emoji: in.Emoji}
	if existing, ok := r.store.data.reactions[key]; ok {
		delete(r.store.data.reactions, key)
		return existing, false, nil
	}
	r.store.data.reactions[key] = in
	return in, true, nil
}

func (r *reactionRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	defer r.store.lock()()
	var out []message.Reaction
	for k, v := range r.store.data.reactions {
		if k.messageID == messageID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
