// Package directory resolves user ids to display profiles. Ids the identity
// store does not know resolve to a placeholder profile.
package directory

import (
	"context"

	"parley/internal/domain/user"
	"parley/internal/repository"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileCache is an optional read-through cache in front of the profile table.
type ProfileCache interface {
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, []uuid.UUID, error)
	SetProfiles(ctx context.Context, profiles []user.Profile) error
}

type Resolver struct {
	profiles repository.ProfileRepository
	cache    ProfileCache
	log      *logger.Logger
}

func NewResolver(profiles repository.ProfileRepository, cache ProfileCache, log *logger.Logger) *Resolver {
	return &Resolver{profiles: profiles, cache: cache, log: log.Named("directory")}
}

// ResolveProfiles returns a profile for every id in ids. Cache failures fall
// back to the profile table; a table failure is returned.
func (r *Resolver) ResolveProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, error) {
	ids = uniqueIDs(ids)
	result := make(map[uuid.UUID]user.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	misses := ids
	if r.cache != nil {
		hits, missed, err := r.cache.GetProfiles(ctx, ids)
		if err != nil {
			r.log.WithContext(ctx).Warn("profile cache read failed", zap.Error(err))
		}
		for id, p := range hits {
			result[id] = p
		}
		if err == nil {
			misses = missed
		}
	}

	if len(misses) > 0 {
		found, err := r.profiles.GetByIDs(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			result[p.ID] = p
		}
		if r.cache != nil && len(found) > 0 {
			if err := r.cache.SetProfiles(ctx, found); err != nil {
				r.log.WithContext(ctx).Warn("profile cache write failed", zap.Error(err))
			}
		}
	}

	for _, id := range ids {
		if _, ok := result[id]; !ok {
			result[id] = user.Placeholder(id)
		}
	}
	return result, nil
}

// Ordered resolves ids and returns the profiles in the order given.
func (r *Resolver) Ordered(ctx context.Context, ids []uuid.UUID) ([]user.Profile, error) {
	byID, err := r.ResolveProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]user.Profile, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		out = append(out, byID[id])
	}
	return out, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
