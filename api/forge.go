package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	intake "github.com/xraph/intake"
	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/provider"
)

// ForgeAPI wires all Forge-style HTTP handlers together.
type ForgeAPI struct {
	in  *intake.Intake
	log forge.Logger
}

// NewForgeAPI creates a ForgeAPI over an Intake instance.
func NewForgeAPI(in *intake.Intake, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{
		in:  in,
		log: log,
	}
}

// RegisterRoutes registers all Intake admin API routes into the given Forge
// router with full OpenAPI metadata. The ingest endpoint is not registered
// here; raw body access matters for signature verification, so ingestion
// stays on the plain handler.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerProviderRoutes(router)
	a.registerEventRoutes(router)
	a.registerDLQRoutes(router)
	a.registerStatsRoutes(router)
}

// ---------------------------------------------------------------------------
// Provider routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerProviderRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("providers"))

	if err := g.POST("/providers", a.createProvider,
		forge.WithSummary("Create provider"),
		forge.WithDescription("Registers a new webhook provider instance. Token and secret are generated when omitted."),
		forge.WithOperationID("createProvider"),
		forge.WithRequestSchema(CreateProviderForgeRequest{}),
		forge.WithCreatedResponse(CreateProviderForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		// Log the error and continue registering other routes instead of failing completely.
		// This ensures that if one route has an issue, the rest of the API remains available.
		// The error will be caught during testing or can be monitored via logs.
		a.log.Error("Failed to register createProvider route", forge.Error(err))
	}

	if err := g.GET("/providers", a.listProviders,
		forge.WithSummary("List providers"),
		forge.WithDescription("Returns a paginated list of provider configs."),
		forge.WithOperationID("listProviders"),
		forge.WithRequestSchema(ListProvidersForgeRequest{}),
		forge.WithListResponse(provider.Config{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listProviders route", forge.Error(err))
	}

	if err := g.GET("/providers/:name", a.getProvider,
		forge.WithSummary("Get provider"),
		forge.WithDescription("Returns details of a specific provider config."),
		forge.WithOperationID("getProvider"),
		forge.WithResponseSchema(http.StatusOK, "Provider details", provider.Config{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getProvider route", forge.Error(err))
	}

	if err := g.PUT("/providers/:name", a.updateProvider,
		forge.WithSummary("Update provider"),
		forge.WithDescription("Updates mutable fields of a provider config."),
		forge.WithOperationID("updateProvider"),
		forge.WithRequestSchema(UpdateProviderForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated provider", provider.Config{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register updateProvider route", forge.Error(err))
	}

	if err := g.PATCH("/providers/:name/activate", a.activateProvider,
		forge.WithSummary("Activate provider"),
		forge.WithDescription("Re-activates a deactivated provider."),
		forge.WithOperationID("activateProvider"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register activateProvider route", forge.Error(err))
	}

	if err := g.PATCH("/providers/:name/deactivate", a.deactivateProvider,
		forge.WithSummary("Deactivate provider"),
		forge.WithDescription("Deactivates a provider. Further deliveries are refused with 404."),
		forge.WithOperationID("deactivateProvider"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deactivateProvider route", forge.Error(err))
	}

	if err := g.POST("/providers/:name/rotate-secret", a.rotateSecret,
		forge.WithSummary("Rotate secret"),
		forge.WithDescription("Generates a new signing secret for the provider."),
		forge.WithOperationID("rotateProviderSecret"),
		forge.WithResponseSchema(http.StatusOK, "New signing secret", SecretForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register rotateSecret route", forge.Error(err))
	}

	if err := g.POST("/providers/:name/rotate-token", a.rotateToken,
		forge.WithSummary("Rotate token"),
		forge.WithDescription("Generates a new URL credential for the provider."),
		forge.WithOperationID("rotateProviderToken"),
		forge.WithResponseSchema(http.StatusOK, "New URL credential", TokenForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register rotateToken route", forge.Error(err))
	}
}

func (a *ForgeAPI) createProvider(ctx forge.Context, req *CreateProviderForgeRequest) (*CreateProviderForgeResponse, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	input := provider.Input{
		Name:               req.Name,
		Token:              req.Token,
		Secret:             req.Secret,
		Scheme:             req.Scheme,
		TimestampTolerance: req.TimestampTolerance,
		MaxPayloadBytes:    req.MaxPayloadBytes,
		RateLimitRequests:  req.RateLimitRequests,
		RateLimitPeriod:    req.RateLimitPeriod,
		PayloadSchema:      req.PayloadSchema,
		Metadata:           req.Metadata,
	}

	p, err := a.in.Providers().Create(ctx.Context(), input)
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusCreated, CreateProviderForgeResponse{
		Provider: p,
		Token:    p.Token,
	})
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listProviders(ctx forge.Context, req *ListProvidersForgeRequest) ([]*provider.Config, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := provider.ListOpts{
		Offset:     req.Offset,
		Limit:      limit,
		ActiveOnly: req.Active == "true",
	}

	providers, err := a.in.Providers().List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return providers, nil
}

func (a *ForgeAPI) getProvider(ctx forge.Context, req *GetProviderForgeRequest) (*provider.Config, error) {
	p, err := a.in.Providers().Get(ctx.Context(), req.Name)
	if err != nil {
		return nil, mapError(err)
	}

	return p, nil
}

func (a *ForgeAPI) updateProvider(ctx forge.Context, req *UpdateProviderForgeRequest) (*provider.Config, error) {
	input := provider.Input{
		Secret:             req.Secret,
		Scheme:             req.Scheme,
		TimestampTolerance: req.TimestampTolerance,
		MaxPayloadBytes:    req.MaxPayloadBytes,
		RateLimitRequests:  req.RateLimitRequests,
		RateLimitPeriod:    req.RateLimitPeriod,
		PayloadSchema:      req.PayloadSchema,
		Metadata:           req.Metadata,
	}

	p, err := a.in.Providers().Update(ctx.Context(), req.Name, input)
	if err != nil {
		return nil, mapError(err)
	}

	return p, nil
}

func (a *ForgeAPI) activateProvider(ctx forge.Context, req *ProviderActionForgeRequest) (*provider.Config, error) {
	if err := a.in.Providers().SetActive(ctx.Context(), req.Name, true); err != nil {
		return nil, mapError(err)
	}

	err := ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) deactivateProvider(ctx forge.Context, req *ProviderActionForgeRequest) (*provider.Config, error) {
	if err := a.in.Providers().SetActive(ctx.Context(), req.Name, false); err != nil {
		return nil, mapError(err)
	}

	err := ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) rotateSecret(ctx forge.Context, req *ProviderActionForgeRequest) (*SecretForgeResponse, error) {
	newSecret, err := a.in.Providers().RotateSecret(ctx.Context(), req.Name)
	if err != nil {
		return nil, mapError(err)
	}

	return &SecretForgeResponse{Secret: newSecret}, nil
}

func (a *ForgeAPI) rotateToken(ctx forge.Context, req *ProviderActionForgeRequest) (*TokenForgeResponse, error) {
	newToken, err := a.in.Providers().RotateToken(ctx.Context(), req.Name)
	if err != nil {
		return nil, mapError(err)
	}

	return &TokenForgeResponse{Token: newToken}, nil
}

// ---------------------------------------------------------------------------
// Event routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEventRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("events"))

	if err := g.GET("/events", a.listEvents,
		forge.WithSummary("List events"),
		forge.WithDescription("Returns a paginated list of ingested events."),
		forge.WithOperationID("listEvents"),
		forge.WithRequestSchema(ListEventsForgeRequest{}),
		forge.WithListResponse(event.Event{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEvents route", forge.Error(err))
	}

	if err := g.GET("/events/:eventId", a.getEvent,
		forge.WithSummary("Get event"),
		forge.WithDescription("Returns details of a specific event."),
		forge.WithOperationID("getEvent"),
		forge.WithResponseSchema(http.StatusOK, "Event details", event.Event{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getEvent route", forge.Error(err))
	}

	if err := g.GET("/events/:eventId/executions", a.listExecutions,
		forge.WithSummary("List executions"),
		forge.WithDescription("Returns the handler executions fanned out for an event."),
		forge.WithOperationID("listExecutions"),
		forge.WithListResponse(dispatch.Execution{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listExecutions route", forge.Error(err))
	}
}

func (a *ForgeAPI) listEvents(ctx forge.Context, req *ListEventsForgeRequest) ([]*event.Event, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := event.ListOpts{
		Offset:   req.Offset,
		Limit:    limit,
		Provider: req.Provider,
		Status:   event.Status(req.Status),
		Type:     req.Type,
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return nil, forge.BadRequest("invalid 'since' time format (use RFC3339)")
		}
		opts.Since = t
	}

	events, err := a.in.Store().ListEvents(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return events, nil
}

func (a *ForgeAPI) getEvent(ctx forge.Context, req *GetEventForgeRequest) (*event.Event, error) {
	evtID, err := id.ParseEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid event ID")
	}

	evt, getErr := a.in.Store().GetEvent(ctx.Context(), evtID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return evt, nil
}

func (a *ForgeAPI) listExecutions(ctx forge.Context, req *ListExecutionsForgeRequest) ([]*dispatch.Execution, error) {
	evtID, err := id.ParseEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid event ID")
	}

	execs, listErr := a.in.Store().ListExecutionsByEvent(ctx.Context(), evtID)
	if listErr != nil {
		return nil, mapError(listErr)
	}

	return execs, nil
}

// ---------------------------------------------------------------------------
// DLQ routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerDLQRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("dlq"))

	if err := g.GET("/dlq", a.listDLQ,
		forge.WithSummary("List DLQ entries"),
		forge.WithDescription("Returns dead letter queue entries, optionally filtered by provider or handler."),
		forge.WithOperationID("listDLQ"),
		forge.WithRequestSchema(ListDLQForgeRequest{}),
		forge.WithListResponse(dlq.Entry{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listDLQ route", forge.Error(err))
	}

	if err := g.POST("/dlq/:dlqId/replay", a.replayDLQ,
		forge.WithSummary("Replay DLQ entry"),
		forge.WithDescription("Re-enqueues a single DLQ entry as a fresh execution."),
		forge.WithOperationID("replayDLQ"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register replayDLQ route", forge.Error(err))
	}

	if err := g.POST("/dlq/replay", a.replayBulkDLQ,
		forge.WithSummary("Bulk replay DLQ"),
		forge.WithDescription("Re-enqueues DLQ entries within a time range."),
		forge.WithOperationID("replayBulkDLQ"),
		forge.WithRequestSchema(ReplayBulkDLQForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Replay result", ReplayBulkForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register replayBulkDLQ route", forge.Error(err))
	}
}

func (a *ForgeAPI) listDLQ(ctx forge.Context, req *ListDLQForgeRequest) ([]*dlq.Entry, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := dlq.ListOpts{
		Offset:   req.Offset,
		Limit:    limit,
		Provider: req.Provider,
		Handler:  req.Handler,
	}

	entries, err := a.in.DLQ().List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return entries, nil
}

func (a *ForgeAPI) replayDLQ(ctx forge.Context, req *ReplayDLQForgeRequest) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(req.DLQID)
	if err != nil {
		return nil, forge.BadRequest("invalid DLQ ID")
	}

	if replayErr := a.in.DLQ().Replay(ctx.Context(), dlqID); replayErr != nil {
		return nil, mapError(replayErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) replayBulkDLQ(ctx forge.Context, req *ReplayBulkDLQForgeRequest) (*ReplayBulkForgeResponse, error) {
	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		return nil, forge.BadRequest("invalid 'from' time format (use RFC3339)")
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		return nil, forge.BadRequest("invalid 'to' time format (use RFC3339)")
	}

	count, replayErr := a.in.DLQ().ReplayBulk(ctx.Context(), from, to)
	if replayErr != nil {
		return nil, mapError(replayErr)
	}

	return &ReplayBulkForgeResponse{Replayed: count}, nil
}

// ---------------------------------------------------------------------------
// Stats routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerStatsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("stats"))

	if err := g.GET("/stats", a.getStats,
		forge.WithSummary("System statistics"),
		forge.WithDescription("Returns aggregate counts of pending executions and DLQ entries."),
		forge.WithOperationID("getStats"),
		forge.WithResponseSchema(http.StatusOK, "System statistics", StatsForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}
}

func (a *ForgeAPI) getStats(ctx forge.Context, _ *StatsForgeRequest) (*StatsForgeResponse, error) {
	pending, err := a.in.Store().CountPendingExecutions(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	dlqCount, err := a.in.Store().CountDLQ(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return &StatsForgeResponse{
		PendingExecutions: pending,
		DLQSize:           dlqCount,
	}, nil
}
