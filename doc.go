// Package intake provides a composable webhook ingestion engine for Go.
//
// Intake is a library, not a service. Import it into your application to
// receive webhooks from third-party providers with signature verification,
// storage-backed deduplication, and reliable fan-out to business-logic
// handlers with retry.
//
// Key features:
//   - Per-provider security gateway: token check, rate limiting, payload-size
//     guard, pluggable signature schemes, timestamp tolerance
//   - Idempotent event store: concurrent duplicate deliveries collapse to one row
//   - Priority-ordered handler registry with glob event-type patterns
//   - Asynchronous execution workers with optimistic claims and
//     per-handler retry schedules, plus a dead letter queue with replay
//   - Composable store pattern with multiple backends (Postgres, SQLite, Memory)
//   - Forge-native with standalone fallback
//
// Quick start:
//
//	in, err := intake.New(
//	    intake.WithStore(memoryStore),
//	    intake.WithHandlerFunc("orders.record", recordOrder),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	in.SyncProviders(ctx, []provider.Input{{
//	    Name:   "stripe-main",
//	    Scheme: "stripe",
//	    Secret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
//	}})
//
//	in.SyncHandlers([]registry.Definition{{
//	    Provider:  "stripe-main",
//	    EventType: "payment_intent.*",
//	    Handler:   "orders.record",
//	}})
//
//	receipt, err := in.Receive(ctx, "stripe-main", token, body, r.Header)
package intake
