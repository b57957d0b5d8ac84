package commands

import (
	"context"
	"fmt"

	"parley/internal/auth"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

type Proxy interface {
	Authorize(ctx context.Context, cmd Command) error
}

type ProxyFunc func(ctx context.Context, cmd Command) error

func (f ProxyFunc) Authorize(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

type ProxyChain struct {
	proxies []Proxy
}

func NewProxyChain(proxies ...Proxy) *ProxyChain {
	items := make([]Proxy, 0, len(proxies))
	for _, proxy := range proxies {
		if proxy != nil {
			items = append(items, proxy)
		}
	}
	return &ProxyChain{proxies: items}
}

func (p *ProxyChain) Authorize(ctx context.Context, cmd Command) error {
	for _, proxy := range p.proxies {
		if err := proxy.Authorize(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Actor is implemented by commands issued on behalf of a user.
type Actor interface {
	ActorID() uuid.UUID
}

// ActorProxy rejects commands whose actor differs from the authenticated
// user in ctx. Contexts without a user pass through.
func ActorProxy() Proxy {
	return ProxyFunc(func(ctx context.Context, cmd Command) error {
		userID, ok := auth.UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		actor, ok := cmd.(Actor)
		if !ok {
			return nil
		}
		if actor.ActorID() != userID {
			return fmt.Errorf("%s on behalf of another user: %w", cmd.CommandType(), parley_errors.ErrUnauthorized)
		}
		return nil
	})
}
