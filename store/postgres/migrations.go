package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Intake store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
var Migrations = migrate.NewGroup("intake")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_intake_providers",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_providers (
    name                TEXT PRIMARY KEY,
    token               TEXT NOT NULL UNIQUE,
    secret              TEXT NOT NULL DEFAULT '',
    scheme              TEXT NOT NULL DEFAULT 'none',
    active              BOOLEAN NOT NULL DEFAULT TRUE,
    timestamp_tolerance INT NOT NULL DEFAULT 0,
    max_payload_bytes   BIGINT NOT NULL DEFAULT 0,
    rate_limit_requests INT NOT NULL DEFAULT 0,
    rate_limit_period   INT NOT NULL DEFAULT 0,
    payload_schema      JSONB,
    metadata            JSONB NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_intake_providers_active ON intake_providers (active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_providers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_intake_events",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_events (
    id          TEXT PRIMARY KEY,
    provider    TEXT NOT NULL DEFAULT '',
    external_id TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL DEFAULT '',
    payload     JSONB,
    headers     JSONB NOT NULL DEFAULT '{}',
    status      TEXT NOT NULL DEFAULT 'received',
    dedup_state TEXT NOT NULL DEFAULT 'unique',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_intake_events_dedup ON intake_events (provider, external_id);
CREATE INDEX IF NOT EXISTS idx_intake_events_status ON intake_events (status);
CREATE INDEX IF NOT EXISTS idx_intake_events_type ON intake_events (type);
CREATE INDEX IF NOT EXISTS idx_intake_events_created ON intake_events (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_intake_executions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_executions (
    id              TEXT PRIMARY KEY,
    event_id        TEXT NOT NULL DEFAULT '',
    provider        TEXT NOT NULL DEFAULT '',
    handler         TEXT NOT NULL DEFAULT '',
    priority        INT NOT NULL DEFAULT 0,
    async           BOOLEAN NOT NULL DEFAULT FALSE,
    status          TEXT NOT NULL DEFAULT 'pending',
    attempt_count   INT NOT NULL DEFAULT 0,
    max_attempts    INT NOT NULL DEFAULT 0,
    retry_delays    INT[] NOT NULL DEFAULT '{}',
    version         BIGINT NOT NULL DEFAULT 1,
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_attempt_at TIMESTAMPTZ,
    last_error      TEXT NOT NULL DEFAULT '',
    locked_by       TEXT NOT NULL DEFAULT '',
    locked_at       TIMESTAMPTZ,
    completed_at    TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_intake_executions_due ON intake_executions (next_attempt_at) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_intake_executions_event ON intake_executions (event_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_executions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_intake_dlq",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_dlq (
    id            TEXT PRIMARY KEY,
    execution_id  TEXT NOT NULL DEFAULT '',
    event_id      TEXT NOT NULL DEFAULT '',
    provider      TEXT NOT NULL DEFAULT '',
    handler       TEXT NOT NULL DEFAULT '',
    event_type    TEXT NOT NULL DEFAULT '',
    payload       JSONB,
    error         TEXT NOT NULL DEFAULT '',
    attempt_count INT NOT NULL DEFAULT 0,
    priority      INT NOT NULL DEFAULT 0,
    async         BOOLEAN NOT NULL DEFAULT FALSE,
    max_attempts  INT NOT NULL DEFAULT 0,
    retry_delays  INT[] NOT NULL DEFAULT '{}',
    replayed_at   TIMESTAMPTZ,
    failed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_intake_dlq_failed ON intake_dlq (failed_at);
CREATE INDEX IF NOT EXISTS idx_intake_dlq_provider ON intake_dlq (provider);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_dlq`)
				return err
			},
		},
	)
}
