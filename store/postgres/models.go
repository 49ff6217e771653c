package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/provider"
)

// --- Provider models ---

type providerModel struct {
	grove.BaseModel `grove:"table:intake_providers"`

	Name               string            `grove:"name,pk"`
	Token              string            `grove:"token,unique"`
	Secret             string            `grove:"secret"`
	Scheme             string            `grove:"scheme"`
	Active             bool              `grove:"active"`
	TimestampTolerance int               `grove:"timestamp_tolerance"`
	MaxPayloadBytes    int64             `grove:"max_payload_bytes"`
	RateLimitRequests  int               `grove:"rate_limit_requests"`
	RateLimitPeriod    int               `grove:"rate_limit_period"`
	PayloadSchema      json.RawMessage   `grove:"payload_schema,type:jsonb"`
	Metadata           map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
}

func toProviderModel(p *provider.Config) *providerModel {
	return &providerModel{
		Name:               p.Name,
		Token:              p.Token,
		Secret:             p.Secret,
		Scheme:             p.Scheme,
		Active:             p.Active,
		TimestampTolerance: p.TimestampTolerance,
		MaxPayloadBytes:    p.MaxPayloadBytes,
		RateLimitRequests:  p.RateLimitRequests,
		RateLimitPeriod:    p.RateLimitPeriod,
		PayloadSchema:      p.PayloadSchema,
		Metadata:           p.Metadata,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func fromProviderModel(m *providerModel) *provider.Config {
	return &provider.Config{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Name:               m.Name,
		Token:              m.Token,
		Secret:             m.Secret,
		Scheme:             m.Scheme,
		Active:             m.Active,
		TimestampTolerance: m.TimestampTolerance,
		MaxPayloadBytes:    m.MaxPayloadBytes,
		RateLimitRequests:  m.RateLimitRequests,
		RateLimitPeriod:    m.RateLimitPeriod,
		PayloadSchema:      m.PayloadSchema,
		Metadata:           m.Metadata,
	}
}

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:intake_events"`

	ID         string            `grove:"id,pk"`
	Provider   string            `grove:"provider"`
	ExternalID string            `grove:"external_id"`
	Type       string            `grove:"type"`
	Payload    json.RawMessage   `grove:"payload,type:jsonb"`
	Headers    map[string]string `grove:"headers,type:jsonb"`
	Status     string            `grove:"status"`
	DedupState string            `grove:"dedup_state"`
	CreatedAt  time.Time         `grove:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"`
}

func toEventModel(ev *event.Event) *eventModel {
	return &eventModel{
		ID:         ev.ID.String(),
		Provider:   ev.Provider,
		ExternalID: ev.ExternalID,
		Type:       ev.Type,
		Payload:    ev.Payload,
		Headers:    ev.Headers,
		Status:     string(ev.Status),
		DedupState: string(ev.DedupState),
		CreatedAt:  ev.CreatedAt,
		UpdatedAt:  ev.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}

	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         evtID,
		Provider:   m.Provider,
		ExternalID: m.ExternalID,
		Type:       m.Type,
		Payload:    m.Payload,
		Headers:    m.Headers,
		Status:     event.Status(m.Status),
		DedupState: event.DedupState(m.DedupState),
	}, nil
}

// --- Execution models ---

type executionModel struct {
	grove.BaseModel `grove:"table:intake_executions"`

	ID            string     `grove:"id,pk"`
	EventID       string     `grove:"event_id"`
	Provider      string     `grove:"provider"`
	Handler       string     `grove:"handler"`
	Priority      int        `grove:"priority"`
	Async         bool       `grove:"async"`
	Status        string     `grove:"status"`
	AttemptCount  int        `grove:"attempt_count"`
	MaxAttempts   int        `grove:"max_attempts"`
	RetryDelays   []int      `grove:"retry_delays,array"`
	Version       int64      `grove:"version"`
	NextAttemptAt time.Time  `grove:"next_attempt_at"`
	LastAttemptAt *time.Time `grove:"last_attempt_at"`
	LastError     string     `grove:"last_error"`
	LockedBy      string     `grove:"locked_by"`
	LockedAt      *time.Time `grove:"locked_at"`
	CompletedAt   *time.Time `grove:"completed_at"`
	CreatedAt     time.Time  `grove:"created_at"`
	UpdatedAt     time.Time  `grove:"updated_at"`
}

func toExecutionModel(x *dispatch.Execution) *executionModel {
	return &executionModel{
		ID:            x.ID.String(),
		EventID:       x.EventID.String(),
		Provider:      x.Provider,
		Handler:       x.Handler,
		Priority:      x.Priority,
		Async:         x.Async,
		Status:        string(x.Status),
		AttemptCount:  x.AttemptCount,
		MaxAttempts:   x.MaxAttempts,
		RetryDelays:   x.RetryDelays,
		Version:       x.Version,
		NextAttemptAt: x.NextAttemptAt,
		LastAttemptAt: x.LastAttemptAt,
		LastError:     x.LastError,
		LockedBy:      x.LockedBy,
		LockedAt:      x.LockedAt,
		CompletedAt:   x.CompletedAt,
		CreatedAt:     x.CreatedAt,
		UpdatedAt:     x.UpdatedAt,
	}
}

func fromExecutionModel(m *executionModel) (*dispatch.Execution, error) {
	execID, err := id.ParseExecutionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse execution ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}

	return &dispatch.Execution{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            execID,
		EventID:       evtID,
		Provider:      m.Provider,
		Handler:       m.Handler,
		Priority:      m.Priority,
		Async:         m.Async,
		Status:        dispatch.Status(m.Status),
		AttemptCount:  m.AttemptCount,
		MaxAttempts:   m.MaxAttempts,
		RetryDelays:   m.RetryDelays,
		Version:       m.Version,
		NextAttemptAt: m.NextAttemptAt,
		LastAttemptAt: m.LastAttemptAt,
		LastError:     m.LastError,
		LockedBy:      m.LockedBy,
		LockedAt:      m.LockedAt,
		CompletedAt:   m.CompletedAt,
	}, nil
}

// --- DLQ models ---

type dlqEntryModel struct {
	grove.BaseModel `grove:"table:intake_dlq"`

	ID           string          `grove:"id,pk"`
	ExecutionID  string          `grove:"execution_id"`
	EventID      string          `grove:"event_id"`
	Provider     string          `grove:"provider"`
	Handler      string          `grove:"handler"`
	EventType    string          `grove:"event_type"`
	Payload      json.RawMessage `grove:"payload,type:jsonb"`
	Error        string          `grove:"error"`
	AttemptCount int             `grove:"attempt_count"`
	Priority     int             `grove:"priority"`
	Async        bool            `grove:"async"`
	MaxAttempts  int             `grove:"max_attempts"`
	RetryDelays  []int           `grove:"retry_delays,array"`
	ReplayedAt   *time.Time      `grove:"replayed_at"`
	FailedAt     time.Time       `grove:"failed_at"`
	CreatedAt    time.Time       `grove:"created_at"`
	UpdatedAt    time.Time       `grove:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:           e.ID.String(),
		ExecutionID:  e.ExecutionID.String(),
		EventID:      e.EventID.String(),
		Provider:     e.Provider,
		Handler:      e.Handler,
		EventType:    e.EventType,
		Payload:      e.Payload,
		Error:        e.Error,
		AttemptCount: e.AttemptCount,
		Priority:     e.Priority,
		Async:        e.Async,
		MaxAttempts:  e.MaxAttempts,
		RetryDelays:  e.RetryDelays,
		ReplayedAt:   e.ReplayedAt,
		FailedAt:     e.FailedAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	execID, err := id.ParseExecutionID(m.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("parse execution ID %q: %w", m.ExecutionID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}

	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           dlqID,
		ExecutionID:  execID,
		EventID:      evtID,
		Provider:     m.Provider,
		Handler:      m.Handler,
		EventType:    m.EventType,
		Payload:      m.Payload,
		Error:        m.Error,
		AttemptCount: m.AttemptCount,
		Priority:     m.Priority,
		Async:        m.Async,
		MaxAttempts:  m.MaxAttempts,
		RetryDelays:  m.RetryDelays,
		ReplayedAt:   m.ReplayedAt,
		FailedAt:     m.FailedAt,
	}, nil
}
