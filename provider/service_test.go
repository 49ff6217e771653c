package provider_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xraph/intake/provider"
	"github.com/xraph/intake/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService() *provider.Service {
	return provider.NewService(memory.New(), nil)
}

func TestProviderServiceCreate(t *testing.T) {
	svc := newService()

	p, err := svc.Create(ctx(), provider.Input{
		Name:   "stripe-main",
		Scheme: "stripe",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(p.Secret, "whsec_") {
		t.Fatalf("expected auto-generated secret, got %q", p.Secret)
	}
	if p.Token == "" {
		t.Fatal("expected auto-generated token")
	}
	if !p.Active {
		t.Fatal("expected active by default")
	}
}

func TestProviderServiceCreateKeepsSuppliedCredentials(t *testing.T) {
	svc := newService()

	p, err := svc.Create(ctx(), provider.Input{
		Name:   "stripe-main",
		Scheme: "stripe",
		Token:  "tok_fixed",
		Secret: "whsec_fixed",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Token != "tok_fixed" || p.Secret != "whsec_fixed" {
		t.Fatal("supplied credentials must be kept verbatim")
	}
}

func TestProviderServiceCreateValidation(t *testing.T) {
	svc := newService()

	tests := []struct {
		name  string
		in    provider.Input
		field string
	}{
		{"missing name", provider.Input{Scheme: "stripe"}, "name"},
		{"missing scheme", provider.Input{Name: "p"}, "scheme"},
		{"unknown scheme", provider.Input{Name: "p", Scheme: "carrier-pigeon"}, "scheme"},
		{"rate limit without period", provider.Input{Name: "p", Scheme: "none", RateLimitRequests: 10}, "rate_limit_period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx(), tt.in)
			var vErr *provider.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestProviderServiceCreateDuplicate(t *testing.T) {
	svc := newService()

	if _, err := svc.Create(ctx(), provider.Input{Name: "p", Scheme: "none"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx(), provider.Input{Name: "p", Scheme: "none"})
	if !errors.Is(err, provider.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestProviderServiceUpdate(t *testing.T) {
	svc := newService()

	created, err := svc.Create(ctx(), provider.Input{
		Name:               "p",
		Scheme:             "stripe",
		TimestampTolerance: 300,
		MaxPayloadBytes:    1 << 20,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Empty credentials leave the stored ones untouched; the limits follow
	// the input verbatim, so omitting them disables the checks.
	p, err := svc.Update(ctx(), "p", provider.Input{
		Scheme: "github",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Scheme != "github" {
		t.Fatalf("expected scheme github, got %s", p.Scheme)
	}
	if p.Secret != created.Secret || p.Token != created.Token {
		t.Fatal("update without credentials must not rotate them")
	}
	if p.TimestampTolerance != 0 || p.MaxPayloadBytes != 0 {
		t.Fatal("omitted limits must reset to disabled")
	}
}

func TestProviderServiceUpdateUnknownScheme(t *testing.T) {
	svc := newService()

	if _, err := svc.Create(ctx(), provider.Input{Name: "p", Scheme: "none"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Update(ctx(), "p", provider.Input{Scheme: "carrier-pigeon"})
	var vErr *provider.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestProviderServiceUpdateNotFound(t *testing.T) {
	svc := newService()

	_, err := svc.Update(ctx(), "nope", provider.Input{Scheme: "none"})
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProviderServiceRotate(t *testing.T) {
	svc := newService()

	created, err := svc.Create(ctx(), provider.Input{Name: "p", Scheme: "stripe"})
	if err != nil {
		t.Fatal(err)
	}

	newSecret, err := svc.RotateSecret(ctx(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if newSecret == created.Secret {
		t.Fatal("expected a fresh secret")
	}

	newToken, err := svc.RotateToken(ctx(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if newToken == created.Token {
		t.Fatal("expected a fresh token")
	}

	p, err := svc.Get(ctx(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if p.Secret != newSecret || p.Token != newToken {
		t.Fatal("rotated credentials must be persisted")
	}
}

func TestProviderServiceSetActive(t *testing.T) {
	svc := newService()

	if _, err := svc.Create(ctx(), provider.Input{Name: "p", Scheme: "none"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.SetActive(ctx(), "p", false); err != nil {
		t.Fatal(err)
	}
	p, err := svc.Get(ctx(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if p.Active {
		t.Fatal("expected inactive provider")
	}

	active, err := svc.ListActive(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active providers, got %d", len(active))
	}
}
