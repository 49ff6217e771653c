package intake

import "time"

// Config holds the configuration for an Intake instance.
type Config struct {
	// Concurrency is the number of execution worker goroutines.
	Concurrency int

	// PollInterval is how often the worker pool checks for due executions.
	PollInterval time.Duration

	// BatchSize is the maximum number of executions dequeued per poll cycle.
	BatchSize int

	// HandlerTimeout bounds a single handler attempt. Zero disables the bound.
	HandlerTimeout time.Duration

	// DefaultRetryDelay is the backoff used when a binding carries no retry
	// schedule of its own.
	DefaultRetryDelay time.Duration

	// WorkerID identifies this process in execution claims.
	WorkerID string

	// ShutdownTimeout is the maximum time to wait for in-flight executions on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		PollInterval:      1 * time.Second,
		BatchSize:         50,
		HandlerTimeout:    30 * time.Second,
		DefaultRetryDelay: time.Minute,
		WorkerID:          "intake-worker",
		ShutdownTimeout:   30 * time.Second,
	}
}
