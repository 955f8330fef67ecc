package ports

import "context"

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis", "solana").
	Name() string
}

// Check adapts a ping function to a HealthChecker named name.
func Check(name string, ping func(ctx context.Context) error) HealthChecker {
	return namedCheck{name: name, ping: ping}
}

type namedCheck struct {
	name string
	ping func(ctx context.Context) error
}

func (c namedCheck) Ping(ctx context.Context) error { return c.ping(ctx) }

func (c namedCheck) Name() string { return c.name }
