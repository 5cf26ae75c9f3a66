package context

import (
	"context"
	"maps"

	"github.com/dtroode/memberpass/internal/model"
)

type payloadKey struct{}

var _ model.ContextManager = (*Manager)(nil)

// Manager stores the verified card payload of a request in its context.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetPayloadToContext returns a context carrying a copy of payload.
func (m *Manager) SetPayloadToContext(ctx context.Context, payload model.Payload) context.Context {
	return context.WithValue(ctx, payloadKey{}, maps.Clone(payload))
}

// GetPayloadFromContext returns the payload stored by SetPayloadToContext.
// An empty payload is reported as missing.
func (m *Manager) GetPayloadFromContext(ctx context.Context) (model.Payload, bool) {
	payload, ok := ctx.Value(payloadKey{}).(model.Payload)
	if !ok || len(payload) == 0 {
		return nil, false
	}
	return payload, true
}
