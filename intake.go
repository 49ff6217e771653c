package intake

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/gateway"
	"github.com/xraph/intake/provider"
	"github.com/xraph/intake/registry"
	"github.com/xraph/intake/store"
)

// wireServices initializes the internal services after options have been applied.
func (in *Intake) wireServices() {
	in.gateway = gateway.New(in.store, in.limiter, in.logger)

	in.providerSvc = provider.NewService(in.store, in.logger)

	in.dlqSvc = dlq.NewService(in.store, in.logger)

	in.engine = dispatch.NewEngine(in.store, in.registry, in.dlqSvc, dispatch.EngineConfig{
		Concurrency:       in.config.Concurrency,
		PollInterval:      in.config.PollInterval,
		BatchSize:         in.config.BatchSize,
		HandlerTimeout:    in.config.HandlerTimeout,
		DefaultRetryDelay: in.config.DefaultRetryDelay,
		WorkerID:          in.config.WorkerID,
		Metrics:           in.metrics,
		Tracer:            in.tracer,
	}, in.logger)
}

// Start begins the execution worker pool.
func (in *Intake) Start(ctx context.Context) {
	in.engine.Start(ctx)
}

// Stop gracefully shuts down the execution worker pool, bounded by the
// configured shutdown timeout.
func (in *Intake) Stop(ctx context.Context) {
	if in.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.config.ShutdownTimeout)
		defer cancel()
	}
	in.engine.Stop(ctx)
}

// Receipt summarizes what admission did with one request.
type Receipt struct {
	// Event is the stored event the request resolved to. On a duplicate this
	// is the original row, not a new one.
	Event *event.Event `json:"event"`

	// Duplicate is true when the request collapsed onto an earlier delivery
	// and no new executions were created.
	Duplicate bool `json:"duplicate"`

	// Executions are the executions fanned out for a first delivery, in
	// priority order.
	Executions []*dispatch.Execution `json:"executions,omitempty"`
}

// Receive runs the full ingestion path for one inbound webhook request.
//
// The critical path:
//  1. Admission: the gateway checks the provider, token, rate limit, size
//     cap, signature, and timestamp before any of the payload is parsed.
//  2. Persist the event; redeliveries of the same (provider, external ID)
//     collapse onto the original row and stop here.
//  3. Fan out one execution per matching handler binding, atomically.
//  4. Run sync bindings inline, in priority order; async bindings are left
//     for the worker pool.
func (in *Intake) Receive(ctx context.Context, providerName, token string, body []byte, headers http.Header) (*Receipt, error) {
	admitted, err := in.gateway.Admit(ctx, providerName, token, body, headers)
	if err != nil {
		var admErr *gateway.AdmissionError
		if in.metrics != nil && errors.As(err, &admErr) {
			in.metrics.RecordAdmission(string(admErr.Reason))
		}
		return nil, err
	}

	ev := event.New(
		admitted.Provider.Name,
		admitted.ExternalID,
		admitted.EventType,
		admitted.Body,
		flattenHeaders(admitted.Headers),
	)

	stored, wasNew, err := in.store.FindOrCreateEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("intake: persist event: %w", err)
	}

	if !wasNew {
		if in.metrics != nil {
			in.metrics.RecordAdmission("duplicate")
			in.metrics.DuplicatesTotal.Inc()
		}
		in.logger.DebugContext(ctx, "duplicate delivery",
			"event_id", stored.ID,
			"provider", stored.Provider,
			"external_id", stored.ExternalID,
		)
		return &Receipt{Event: stored, Duplicate: true}, nil
	}

	if in.metrics != nil {
		in.metrics.RecordAdmission("admitted")
	}

	defs := in.registry.Lookup(stored.Provider, stored.Type)

	execs := make([]*dispatch.Execution, 0, len(defs))
	for _, def := range defs {
		execs = append(execs, dispatch.NewExecution(stored, def))
	}

	if len(execs) > 0 {
		if err := in.store.CreateExecutionBatch(ctx, execs); err != nil {
			return nil, fmt.Errorf("intake: enqueue executions: %w", err)
		}
		if in.metrics != nil {
			in.metrics.PendingExecutions.Add(float64(len(execs)))
		}
	}

	// Sync bindings run to completion before the receipt returns. Lookup
	// already ordered the definitions, so inline runs honor priority. The
	// receipt carries the post-run executions, not the pending rows.
	for i, x := range execs {
		if !x.Async {
			execs[i] = in.engine.ExecuteInline(ctx, x, stored)
		}
	}

	in.logger.DebugContext(ctx, "event received",
		"event_id", stored.ID,
		"provider", stored.Provider,
		"type", stored.Type,
		"executions", len(execs),
	)

	return &Receipt{Event: stored, Executions: execs}, nil
}

// SyncProviders creates or updates provider configs from declarative inputs.
// Existing providers keep their token and secret unless the input carries
// replacements.
func (in *Intake) SyncProviders(ctx context.Context, inputs []provider.Input) error {
	for _, input := range inputs {
		_, err := in.providerSvc.Get(ctx, input.Name)
		switch {
		case err == nil:
			if _, err := in.providerSvc.Update(ctx, input.Name, input); err != nil {
				return fmt.Errorf("intake: sync provider %s: %w", input.Name, err)
			}
		case errors.Is(err, ErrProviderNotFound):
			if _, err := in.providerSvc.Create(ctx, input); err != nil {
				return fmt.Errorf("intake: sync provider %s: %w", input.Name, err)
			}
		default:
			return fmt.Errorf("intake: sync provider %s: %w", input.Name, err)
		}
	}
	return nil
}

// SyncHandlers replaces the routing table with the given bindings.
func (in *Intake) SyncHandlers(defs []registry.Definition) {
	in.registry.Sync(defs)
}

// RegisterHandler binds a handler implementation to a reference name after
// construction.
func (in *Intake) RegisterHandler(ref string, h registry.Handler) {
	in.registry.RegisterHandler(ref, h)
}

// Providers returns the provider management service.
func (in *Intake) Providers() *provider.Service {
	return in.providerSvc
}

// Registry returns the handler registry.
func (in *Intake) Registry() *registry.Registry {
	return in.registry
}

// DLQ returns the dead letter queue service.
func (in *Intake) DLQ() *dlq.Service {
	return in.dlqSvc
}

// Store returns the underlying store.
func (in *Intake) Store() store.Store {
	return in.store
}

// flattenHeaders keeps the first value of each header for storage.
func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
