package extension

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	intake "github.com/xraph/intake"
	"github.com/xraph/intake/api"
)

// Extension is the Forge extension for Intake.
type Extension struct {
	config Config
	opts   []intake.Option
	in     *intake.Intake
	logger *slog.Logger
}

// New creates a new Intake Forge extension.
func New(opts ...ExtOption) *Extension {
	ext := &Extension{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ext)
	}
	return ext
}

// Build constructs the Intake instance and runs migrations unless disabled.
// It must be called before Handler, RegisterRoutes, Start, or Stop.
func (ext *Extension) Build(ctx context.Context) error {
	in, err := intake.New(append(ext.config.ToIntakeOptions(), ext.opts...)...)
	if err != nil {
		return fmt.Errorf("extension: build intake: %w", err)
	}

	if !ext.config.DisableMigrations {
		if migErr := in.Store().Migrate(ctx); migErr != nil {
			return fmt.Errorf("extension: migrate: %w", migErr)
		}
	}

	ext.in = in
	return nil
}

// Intake returns the built Intake instance, or nil before Build.
func (ext *Extension) Intake() *intake.Intake { return ext.in }

// Handler creates the ingestion and admin API handler.
// This can be used standalone without Forge integration.
func (ext *Extension) Handler() http.Handler {
	return api.NewHandler(ext.in, ext.logger)
}

// RegisterRoutes mounts the admin API into the given Forge router with
// OpenAPI metadata. No-op when route registration is disabled.
func (ext *Extension) RegisterRoutes(router forge.Router, log forge.Logger) {
	if ext.config.DisableRoutes {
		return
	}
	api.NewForgeAPI(ext.in, log).RegisterRoutes(router)
}

// Start starts the dispatch engine.
func (ext *Extension) Start(ctx context.Context) {
	ext.in.Start(ctx)
}

// Stop gracefully stops the dispatch engine.
func (ext *Extension) Stop(ctx context.Context) {
	ext.in.Stop(ctx)
}

// Prefix returns the configured URL prefix.
func (ext *Extension) Prefix() string { return ext.config.BasePath }
