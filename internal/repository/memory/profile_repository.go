package memory

import (
	"context"

	"parley/internal/domain/user"

	"github.com/google/uuid"
)

type profileRepository struct {
	store *Store
}

func (r *profileRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.Profile, error) {
	defer r.store.lock()()
	out := make([]user.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.store.data.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
