package extension

import (
	intake "github.com/xraph/intake"
	"github.com/xraph/intake/store"
)

// ExtOption configures the Intake Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend via an intake option.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, intake.WithStore(s))
	}
}

// WithPrefix sets the URL prefix for all intake routes.
func WithPrefix(prefix string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = prefix
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithIntakeOption appends a raw intake.Option to the extension.
func WithIntakeOption(opt intake.Option) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, opt)
	}
}

// WithDisableRoutes disables automatic route registration.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrations disables automatic database migration on Register.
func WithDisableMigrations() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrations = true
	}
}
