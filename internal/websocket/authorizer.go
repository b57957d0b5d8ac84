package websocket

import (
	"context"

	"parley/internal/events"
	"parley/internal/proxy"
	"parley/internal/repository"

	"github.com/google/uuid"
)

// ScopeAuthorizer decides whether a user may subscribe to a scope. The global
// scope carries presence only and is open to every authenticated user.
type ScopeAuthorizer struct {
	store repository.Store
}

func NewScopeAuthorizer(store repository.Store) *ScopeAuthorizer {
	return &ScopeAuthorizer{store: store}
}

func (a *ScopeAuthorizer) Authorize(ctx context.Context, userID uuid.UUID, scope events.Scope) error {
	access := proxy.For(a.store)
	switch scope.Kind {
	case events.ScopeConversation:
		return access.CanViewConversation(ctx, userID, scope.ID)
	case events.ScopeMessage:
		m, err := a.store.Messages().GetByID(ctx, scope.ID)
		if err != nil {
			return err
		}
		return access.CanViewMessage(ctx, userID, m)
	}
	return nil
}
