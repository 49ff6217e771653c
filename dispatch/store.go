package dispatch

import (
	"context"
	"errors"

	"github.com/xraph/intake/id"
)

// Sentinel errors for execution persistence.
var (
	// ErrNotFound is returned when an execution cannot be found.
	ErrNotFound = errors.New("intake: execution not found")

	// ErrStaleVersion is returned when a versioned write loses the race: the
	// row's version no longer matches the one the caller read.
	ErrStaleVersion = errors.New("intake: stale version")
)

// Store persists executions.
type Store interface {
	// CreateExecutionBatch persists all executions or none of them.
	CreateExecutionBatch(ctx context.Context, execs []*Execution) error

	// DequeueExecutions returns up to limit pending executions that are due,
	// ordered by next attempt time.
	DequeueExecutions(ctx context.Context, limit int) ([]*Execution, error)

	// ClaimExecution moves an execution to processing on behalf of workerID.
	// The claim succeeds only when the stored version still equals version;
	// otherwise ErrStaleVersion is returned and the row is untouched.
	ClaimExecution(ctx context.Context, execID id.ID, version int64, workerID string) (*Execution, error)

	// UpdateExecution writes x back. The write carries x.Version and fails
	// with ErrStaleVersion when the row has moved on; on success the stored
	// version is incremented.
	UpdateExecution(ctx context.Context, x *Execution) error

	// GetExecution returns an execution by ID.
	GetExecution(ctx context.Context, execID id.ID) (*Execution, error)

	// ListExecutionsByEvent returns every execution of an event.
	ListExecutionsByEvent(ctx context.Context, eventID id.ID) ([]*Execution, error)

	// CountPendingExecutions returns the number of executions not yet finished.
	CountPendingExecutions(ctx context.Context) (int64, error)
}
