package health

import "context"

// StoragePinger checks artifact storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks generative model backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
