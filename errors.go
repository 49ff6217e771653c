package intake

import (
	"errors"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/provider"
	"github.com/xraph/intake/registry"
)

// Sentinel errors returned by Intake operations. Errors owned by a
// subsystem are re-exported here so callers can match them without
// importing the subsystem package.
var (
	// ErrNoStore is returned when an Intake is created without a store.
	ErrNoStore = errors.New("intake: store is required")

	// ErrProviderNotFound is returned when a provider config cannot be found.
	ErrProviderNotFound = provider.ErrNotFound

	// ErrProviderExists is returned when creating a provider whose name or token is taken.
	ErrProviderExists = provider.ErrExists

	// ErrEventNotFound is returned when an incoming event cannot be found.
	ErrEventNotFound = event.ErrNotFound

	// ErrExecutionNotFound is returned when a handler execution cannot be found.
	ErrExecutionNotFound = dispatch.ErrNotFound

	// ErrStaleVersion is returned when an optimistic-concurrency update loses the
	// race: the row's version no longer matches the one the caller read.
	ErrStaleVersion = dispatch.ErrStaleVersion

	// ErrHandlerNotFound is returned when a handler ref has no registered implementation.
	ErrHandlerNotFound = registry.ErrHandlerNotFound

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = dlq.ErrNotFound

	// ErrDLQAlreadyReplayed is returned when replaying a DLQ entry twice.
	ErrDLQAlreadyReplayed = dlq.ErrAlreadyReplayed

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("intake: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("intake: migration failed")
)
