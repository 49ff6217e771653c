package extension

import (
	intake "github.com/xraph/intake"
)

// Config holds configuration for the Intake Forge extension.
// Fields can be set programmatically via ExtOption functions or loaded from
// YAML configuration files (under "extensions.intake" or "intake" keys).
type Config struct {
	// Config embeds the core intake configuration.
	intake.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all intake routes (default: "/intake").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrations disables automatic database migration on Register.
	DisableMigrations bool `json:"disable_migrations" yaml:"disable_migrations" mapstructure:"disable_migrations"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite).
	// When empty, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// GroveKV is the name of a grove kv.Store registered in the DI container.
	// When set, the extension resolves this named KV store and backs the rate
	// limiter with Redis. When empty, the in-memory limiter is used.
	GroveKV string `json:"grove_kv" mapstructure:"grove_kv" yaml:"grove_kv"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:   intake.DefaultConfig(),
		BasePath: "/intake",
	}
}

// ToIntakeOptions converts the embedded Config into intake.Option values.
func (c Config) ToIntakeOptions() []intake.Option {
	var opts []intake.Option

	if c.Concurrency > 0 {
		opts = append(opts, intake.WithConcurrency(c.Concurrency))
	}
	if c.PollInterval > 0 {
		opts = append(opts, intake.WithPollInterval(c.PollInterval))
	}
	if c.BatchSize > 0 {
		opts = append(opts, intake.WithBatchSize(c.BatchSize))
	}
	if c.HandlerTimeout > 0 {
		opts = append(opts, intake.WithHandlerTimeout(c.HandlerTimeout))
	}
	if c.DefaultRetryDelay > 0 {
		opts = append(opts, intake.WithDefaultRetryDelay(c.DefaultRetryDelay))
	}
	if c.WorkerID != "" {
		opts = append(opts, intake.WithWorkerID(c.WorkerID))
	}
	if c.ShutdownTimeout > 0 {
		opts = append(opts, intake.WithShutdownTimeout(c.ShutdownTimeout))
	}

	return opts
}
