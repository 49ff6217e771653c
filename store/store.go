// Package store defines the composite Store interface for all Intake persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them all, so backends implement one surface and callers depend
// only on the slice they use.
package store

import (
	"context"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/provider"
)

// Store is the aggregate persistence interface.
type Store interface {
	provider.Store
	event.Store
	dispatch.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
