package intake

import (
	"log/slog"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/gateway"
	"github.com/xraph/intake/observability"
	"github.com/xraph/intake/provider"
	"github.com/xraph/intake/ratelimit"
	"github.com/xraph/intake/registry"
	"github.com/xraph/intake/store"
)

// Intake is the root webhook ingestion engine.
type Intake struct {
	config      Config
	store       store.Store
	gateway     *gateway.Gateway
	registry    *registry.Registry
	providerSvc *provider.Service
	dlqSvc      *dlq.Service
	engine      *dispatch.Engine
	limiter     ratelimit.Limiter
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	logger      *slog.Logger
}

// Option configures an Intake instance.
type Option func(*Intake) error

// New creates a new Intake with the given options.
func New(opts ...Option) (*Intake, error) {
	in := &Intake{
		config:   DefaultConfig(),
		registry: registry.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	if in.store == nil {
		return nil, ErrNoStore
	}
	if in.limiter == nil {
		in.limiter = ratelimit.NewMemory()
	}
	in.wireServices()
	return in, nil
}

// WithStore sets the persistence backend for the Intake instance.
func WithStore(s store.Store) Option {
	return func(in *Intake) error {
		in.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Intake instance.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Intake) error {
		in.logger = logger
		return nil
	}
}

// WithLimiter sets the rate limiter backing the admission gateway. The
// default is a process-local sliding window; pass a Redis limiter when
// several replicas share provider budgets.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(in *Intake) error {
		in.limiter = l
		return nil
	}
}

// WithHandler registers a handler implementation under a reference name.
func WithHandler(ref string, h registry.Handler) Option {
	return func(in *Intake) error {
		in.registry.RegisterHandler(ref, h)
		return nil
	}
}

// WithHandlerFunc registers a handler function under a reference name.
func WithHandlerFunc(ref string, fn registry.HandlerFunc) Option {
	return func(in *Intake) error {
		in.registry.RegisterHandler(ref, fn)
		return nil
	}
}

// WithConcurrency sets the number of execution worker goroutines.
func WithConcurrency(n int) Option {
	return func(in *Intake) error {
		in.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the worker pool checks for due executions.
func WithPollInterval(d time.Duration) Option {
	return func(in *Intake) error {
		in.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of executions dequeued per poll cycle.
func WithBatchSize(n int) Option {
	return func(in *Intake) error {
		in.config.BatchSize = n
		return nil
	}
}

// WithHandlerTimeout bounds a single handler attempt.
func WithHandlerTimeout(d time.Duration) Option {
	return func(in *Intake) error {
		in.config.HandlerTimeout = d
		return nil
	}
}

// WithDefaultRetryDelay sets the backoff used when a binding carries no
// retry schedule.
func WithDefaultRetryDelay(d time.Duration) Option {
	return func(in *Intake) error {
		in.config.DefaultRetryDelay = d
		return nil
	}
}

// WithWorkerID identifies this process in execution claims.
func WithWorkerID(workerID string) Option {
	return func(in *Intake) error {
		in.config.WorkerID = workerID
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight executions
// on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(in *Intake) error {
		in.config.ShutdownTimeout = d
		return nil
	}
}

// WithMetrics creates Intake metric instruments from the supplied factory.
func WithMetrics(factory gu.MetricFactory) Option {
	return func(in *Intake) error {
		in.metrics = observability.NewMetrics(factory)
		return nil
	}
}

// WithTracing enables OpenTelemetry spans around handler executions.
func WithTracing() Option {
	return func(in *Intake) error {
		in.tracer = observability.NewTracer()
		return nil
	}
}
