package model

import (
	"context"
	"net"
)

// SecurityLayer opens the listener the operational server accepts on.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a long-running network surface with graceful shutdown.
type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// ContextManager carries a verified card payload through a request.
type ContextManager interface {
	SetPayloadToContext(ctx context.Context, payload Payload) context.Context
	GetPayloadFromContext(ctx context.Context) (Payload, bool)
}
