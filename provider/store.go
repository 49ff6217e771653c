package provider

import (
	"context"
	"errors"
)

// Sentinel errors for provider lookups.
var (
	// ErrNotFound is returned when a provider config cannot be found.
	ErrNotFound = errors.New("intake: provider not found")

	// ErrExists is returned when creating a provider whose name or token is taken.
	ErrExists = errors.New("intake: provider already exists")
)

// Store defines the persistence contract for provider configs.
type Store interface {
	// CreateProvider persists a new provider config. Name and token are unique.
	CreateProvider(ctx context.Context, p *Config) error

	// GetProvider returns a provider config by name.
	GetProvider(ctx context.Context, name string) (*Config, error)

	// UpdateProvider modifies an existing provider config.
	UpdateProvider(ctx context.Context, p *Config) error

	// ListProviders returns provider configs, optionally filtered.
	ListProviders(ctx context.Context, opts ListOpts) ([]*Config, error)

	// SetProviderActive toggles admission for a provider without deleting it.
	SetProviderActive(ctx context.Context, name string, active bool) error
}
