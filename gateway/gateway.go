// Package gateway admits or refuses inbound webhook requests. Every
// request passes the full gate sequence before any of its payload is
// parsed: provider lookup, active flag, URL token, rate limit, size cap,
// signature, timestamp.
package gateway

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/intake/provider"
	"github.com/xraph/intake/ratelimit"
	"github.com/xraph/intake/signature"
)

// ProviderLookup is the slice of the provider store the gateway reads.
type ProviderLookup interface {
	GetProvider(ctx context.Context, name string) (*provider.Config, error)
}

// AdmittedRequest is a request that passed every gate, carrying the
// normalized identifiers the scheme extracted.
type AdmittedRequest struct {
	Provider   *provider.Config
	Body       []byte
	Headers    http.Header
	ExternalID string
	EventType  string
}

// Gateway performs admission control for inbound webhooks.
type Gateway struct {
	providers ProviderLookup
	limiter   ratelimit.Limiter
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a gateway. limiter may be nil to disable rate limiting
// globally regardless of provider configuration.
func New(providers ProviderLookup, limiter ratelimit.Limiter, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		providers: providers,
		limiter:   limiter,
		validator: NewValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// Admit runs the gate sequence and returns the admitted request, or an
// AdmissionError naming the first gate that refused. Any other error is an
// internal failure, not a refusal.
func (g *Gateway) Admit(ctx context.Context, providerName, token string, body []byte, headers http.Header) (*AdmittedRequest, error) {
	p, err := g.providers.GetProvider(ctx, providerName)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, refuse(ReasonProviderNotFound, "unknown provider "+providerName)
		}
		return nil, fmt.Errorf("gateway: provider lookup: %w", err)
	}

	if !p.Active {
		return nil, refuse(ReasonProviderInactive, "provider "+p.Name+" is inactive")
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(p.Token)) != 1 {
		return nil, refuse(ReasonInvalidToken, "token mismatch")
	}

	if g.limiter != nil && p.RateLimitRequests > 0 {
		period := time.Duration(p.RateLimitPeriod) * time.Second
		ok, limitErr := g.limiter.Allow(ctx, p.Name, p.RateLimitRequests, period)
		if limitErr != nil {
			return nil, fmt.Errorf("gateway: rate limit check: %w", limitErr)
		}
		if !ok {
			return nil, refuse(ReasonRateLimited, "rate limit exceeded")
		}
	}

	// Raw byte length, before any parsing.
	if p.MaxPayloadBytes > 0 && int64(len(body)) > p.MaxPayloadBytes {
		return nil, refuse(ReasonPayloadTooLarge,
			fmt.Sprintf("payload is %d bytes, limit is %d", len(body), p.MaxPayloadBytes))
	}

	scheme, ok := signature.LookupScheme(p.Scheme)
	if !ok {
		return nil, refuse(ReasonInvalidSignature, "unknown signature scheme "+p.Scheme)
	}

	if !scheme.Verify(body, headers, signature.SchemeConfig{Secret: p.Secret}) {
		return nil, refuse(ReasonInvalidSignature, "signature verification failed")
	}

	if p.TimestampTolerance > 0 {
		ts, present := scheme.ExtractTimestamp(headers)
		if !present {
			return nil, refuse(ReasonStaleTimestamp, "signed timestamp missing")
		}
		skew := g.now().Unix() - ts
		if skew < 0 {
			skew = -skew
		}
		if skew > int64(p.TimestampTolerance) {
			return nil, refuse(ReasonStaleTimestamp,
				fmt.Sprintf("timestamp is %ds outside tolerance of %ds", skew, p.TimestampTolerance))
		}
	}

	// Parse only after verification so unauthenticated input does no work
	// and parse errors leak nothing to signature probing.
	var doc any
	if jsonErr := json.Unmarshal(body, &doc); jsonErr != nil {
		return nil, refuse(ReasonMalformedPayload, "body is not valid JSON")
	}

	if schemaErr := g.validator.Validate(p.PayloadSchema, doc); schemaErr != nil {
		return nil, refuse(ReasonSchemaViolation, schemaErr.Error())
	}

	externalID := scheme.ExtractEventID(body, headers)
	if externalID == "" {
		// No sender-assigned id; hash the body so redeliveries of the same
		// bytes still collapse.
		sum := sha256.Sum256(body)
		externalID = hex.EncodeToString(sum[:])
	}

	return &AdmittedRequest{
		Provider:   p,
		Body:       body,
		Headers:    headers,
		ExternalID: externalID,
		EventType:  scheme.ExtractEventType(body, headers),
	}, nil
}
