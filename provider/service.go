package provider

import (
	"context"
	"log/slog"

	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/signature"
)

// Service provides provider config management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new provider service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Create registers a new provider. Token and secret are generated when absent.
func (svc *Service) Create(ctx context.Context, in Input) (*Config, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}
	if in.Scheme == "" {
		return nil, &ValidationError{Field: "scheme", Message: "required"}
	}
	if _, ok := signature.LookupScheme(in.Scheme); !ok {
		return nil, &ValidationError{Field: "scheme", Message: "unknown signature scheme"}
	}
	if in.RateLimitRequests > 0 && in.RateLimitPeriod <= 0 {
		return nil, &ValidationError{Field: "rate_limit_period", Message: "required when rate limiting is enabled"}
	}

	token := in.Token
	if token == "" {
		token = signature.GenerateSecret()
	}
	secret := in.Secret
	if secret == "" {
		secret = signature.GenerateSecret()
	}

	p := &Config{
		Entity:             entity.New(),
		Name:               in.Name,
		Token:              token,
		Secret:             secret,
		Scheme:             in.Scheme,
		Active:             true,
		TimestampTolerance: in.TimestampTolerance,
		MaxPayloadBytes:    in.MaxPayloadBytes,
		RateLimitRequests:  in.RateLimitRequests,
		RateLimitPeriod:    in.RateLimitPeriod,
		PayloadSchema:      in.PayloadSchema,
		Metadata:           in.Metadata,
	}

	if err := svc.store.CreateProvider(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Get returns a provider config by name.
func (svc *Service) Get(ctx context.Context, name string) (*Config, error) {
	return svc.store.GetProvider(ctx, name)
}

// Update modifies an existing provider. Zero-valued fields are left untouched
// except for the limits, which follow the input verbatim so they can be
// disabled by setting them to zero.
func (svc *Service) Update(ctx context.Context, name string, in Input) (*Config, error) {
	p, err := svc.store.GetProvider(ctx, name)
	if err != nil {
		return nil, err
	}

	if in.Scheme != "" {
		if _, ok := signature.LookupScheme(in.Scheme); !ok {
			return nil, &ValidationError{Field: "scheme", Message: "unknown signature scheme"}
		}
		p.Scheme = in.Scheme
	}
	if in.Secret != "" {
		p.Secret = in.Secret
	}
	if in.RateLimitRequests > 0 && in.RateLimitPeriod <= 0 {
		return nil, &ValidationError{Field: "rate_limit_period", Message: "required when rate limiting is enabled"}
	}
	p.TimestampTolerance = in.TimestampTolerance
	p.MaxPayloadBytes = in.MaxPayloadBytes
	p.RateLimitRequests = in.RateLimitRequests
	p.RateLimitPeriod = in.RateLimitPeriod
	if in.PayloadSchema != nil {
		p.PayloadSchema = in.PayloadSchema
	}
	if in.Metadata != nil {
		p.Metadata = in.Metadata
	}

	if err := svc.store.UpdateProvider(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// List returns provider configs.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Config, error) {
	return svc.store.ListProviders(ctx, opts)
}

// ListActive returns only providers currently admitting requests.
func (svc *Service) ListActive(ctx context.Context) ([]*Config, error) {
	return svc.store.ListProviders(ctx, ListOpts{ActiveOnly: true})
}

// SetActive enables or disables admission for a provider.
func (svc *Service) SetActive(ctx context.Context, name string, active bool) error {
	return svc.store.SetProviderActive(ctx, name, active)
}

// RotateSecret generates a new signing secret for a provider.
func (svc *Service) RotateSecret(ctx context.Context, name string) (string, error) {
	p, err := svc.store.GetProvider(ctx, name)
	if err != nil {
		return "", err
	}

	newSecret := signature.GenerateSecret()

	p.Secret = newSecret
	if err := svc.store.UpdateProvider(ctx, p); err != nil {
		return "", err
	}

	return newSecret, nil
}

// RotateToken generates a new URL credential for a provider.
func (svc *Service) RotateToken(ctx context.Context, name string) (string, error) {
	p, err := svc.store.GetProvider(ctx, name)
	if err != nil {
		return "", err
	}

	newToken := signature.GenerateSecret()

	p.Token = newToken
	if err := svc.store.UpdateProvider(ctx, p); err != nil {
		return "", err
	}

	return newToken, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "provider validation: " + e.Field + ": " + e.Message
}
