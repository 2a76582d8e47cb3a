package handlers

import (
	"context"

	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/relay"
)

// TurnRunner executes chat turns. *relay.Orchestrator implements it.
type TurnRunner interface {
	HandleTurn(ctx context.Context, req *relay.TurnRequest) *relay.Response
}

// SessionStore is the part of *session.Store the session endpoints use.
type SessionStore interface {
	Create(ctx context.Context) (string, error)
	Load(id string) ([]chat.Message, error)
	List() []string
}

// ModelCatalog is the part of *backend.Registry the models endpoint uses.
type ModelCatalog interface {
	Keys() []string
	Default() string
	Resolve(key string) (*backend.Client, error)
}
