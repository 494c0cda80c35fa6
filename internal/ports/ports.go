package ports

import "context"

// HealthChecker probes one backing service for the /health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthFunc adapts a plain function, such as a ping closure, to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Health(ctx context.Context) error { return f(ctx) }
