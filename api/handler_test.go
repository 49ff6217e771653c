package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	intake "github.com/xraph/intake"
	"github.com/xraph/intake/api"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/registry"
	"github.com/xraph/intake/signature"
	"github.com/xraph/intake/store/memory"
)

// testServer creates a Handler backed by a memory store and returns the test
// server plus the Intake behind it.
func testServer(t *testing.T) (*httptest.Server, *intake.Intake) {
	t.Helper()

	in, err := intake.New(
		intake.WithStore(memory.New()),
		intake.WithHandlerFunc("audit.record", func(_ context.Context, _ *event.Event, _ json.RawMessage) error {
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("new intake: %v", err)
	}

	in.SyncHandlers([]registry.Definition{
		{Provider: "acme", EventType: "*", Handler: "audit.record"},
		{Provider: "stripe-main", EventType: "*", Handler: "audit.record"},
	})

	h := api.NewHandler(in, slog.Default())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, in
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func doRaw(t *testing.T, method, url string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// createTestProvider registers a provider over the API and returns its token.
func createTestProvider(t *testing.T, srv *httptest.Server, name, scheme string) string {
	t.Helper()
	resp := doJSON(t, "POST", srv.URL+"/providers", map[string]any{
		"name":   name,
		"scheme": scheme,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create provider: expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	decodeBody(t, resp, &created)
	token, ok := created["token"].(string)
	if !ok || token == "" {
		t.Fatal("expected non-empty token in creation response")
	}
	return token
}

// --- Providers ---

func TestProviders_CRUD(t *testing.T) {
	srv, _ := testServer(t)

	// Create
	resp := doJSON(t, "POST", srv.URL+"/providers", map[string]any{
		"name":   "acme",
		"scheme": "none",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	decodeBody(t, resp, &created)
	if created["token"] == "" {
		t.Fatal("expected generated token in creation response")
	}

	// Duplicate name → 409
	resp = doJSON(t, "POST", srv.URL+"/providers", map[string]any{
		"name":   "acme",
		"scheme": "none",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Get
	resp = doJSON(t, "GET", srv.URL+"/providers/acme", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var p map[string]any
	decodeBody(t, resp, &p)
	if p["name"] != "acme" {
		t.Fatalf("expected name acme, got %v", p["name"])
	}
	if _, leaked := p["token"]; leaked {
		t.Fatal("token must not be serialized on reads")
	}

	// List
	resp = doJSON(t, "GET", srv.URL+"/providers", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(list))
	}

	// Update
	resp = doJSON(t, "PUT", srv.URL+"/providers/acme", map[string]any{
		"scheme":              "none",
		"max_payload_bytes":   1024,
		"timestamp_tolerance": 300,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["max_payload_bytes"] != float64(1024) {
		t.Fatalf("expected max_payload_bytes 1024, got %v", updated["max_payload_bytes"])
	}

	// Deactivate
	resp = doJSON(t, "PATCH", srv.URL+"/providers/acme/deactivate", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Activate
	resp = doJSON(t, "PATCH", srv.URL+"/providers/acme/activate", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("activate: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Rotate secret
	resp = doJSON(t, "POST", srv.URL+"/providers/acme/rotate-secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate secret: expected 200, got %d", resp.StatusCode)
	}
	var secretResp map[string]string
	decodeBody(t, resp, &secretResp)
	if secretResp["secret"] == "" {
		t.Fatal("expected non-empty secret")
	}

	// Rotate token
	resp = doJSON(t, "POST", srv.URL+"/providers/acme/rotate-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate token: expected 200, got %d", resp.StatusCode)
	}
	var tokenResp map[string]string
	decodeBody(t, resp, &tokenResp)
	if tokenResp["token"] == "" {
		t.Fatal("expected non-empty token")
	}
}

func TestProviders_GetNotFound(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/providers/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProviders_CreateUnknownScheme(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/providers", map[string]any{
		"name":   "acme",
		"scheme": "carrier-pigeon",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Ingestion ---

func TestIngest_Accepted(t *testing.T) {
	srv, _ := testServer(t)
	token := createTestProvider(t, srv, "acme", "none")

	body := []byte(`{"id":"evt_ext_1","type":"order.created","data":{"order":"123"}}`)
	resp := doRaw(t, "POST", srv.URL+"/ingest/acme/"+token, body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest: expected 201, got %d", resp.StatusCode)
	}
	var receipt map[string]any
	decodeBody(t, resp, &receipt)
	if receipt["duplicate"] != false {
		t.Fatalf("expected duplicate=false, got %v", receipt["duplicate"])
	}
	evt, _ := receipt["event"].(map[string]any)
	if evt == nil || evt["type"] != "order.created" {
		t.Fatalf("expected event type order.created, got %v", receipt["event"])
	}
	execs, _ := receipt["executions"].([]any)
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
}

func TestIngest_Redelivery(t *testing.T) {
	srv, _ := testServer(t)
	token := createTestProvider(t, srv, "acme", "none")

	body := []byte(`{"id":"evt_ext_1","type":"order.created"}`)
	resp := doRaw(t, "POST", srv.URL+"/ingest/acme/"+token, body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first delivery: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRaw(t, "POST", srv.URL+"/ingest/acme/"+token, body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", resp.StatusCode)
	}
	var receipt map[string]any
	decodeBody(t, resp, &receipt)
	if receipt["duplicate"] != true {
		t.Fatalf("expected duplicate=true, got %v", receipt["duplicate"])
	}
}

func TestIngest_Refusals(t *testing.T) {
	srv, _ := testServer(t)
	token := createTestProvider(t, srv, "acme", "none")

	body := []byte(`{"id":"evt_ext_1","type":"order.created"}`)

	// Unknown provider → 404
	resp := doRaw(t, "POST", srv.URL+"/ingest/nope/"+token, body, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown provider: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Wrong token → 401
	resp = doRaw(t, "POST", srv.URL+"/ingest/acme/wrong-token", body, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Malformed payload → 400
	resp = doRaw(t, "POST", srv.URL+"/ingest/acme/"+token, []byte("not json"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed payload: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Deactivated provider → 403
	resp = doJSON(t, "PATCH", srv.URL+"/providers/acme/deactivate", nil)
	resp.Body.Close()
	resp = doRaw(t, "POST", srv.URL+"/ingest/acme/"+token, body, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("inactive provider: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestIngest_StripeSignature(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/providers", map[string]any{
		"name":   "stripe-main",
		"scheme": "stripe",
		"secret": "whsec_test",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create provider: expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	decodeBody(t, resp, &created)
	token := created["token"].(string)

	body := []byte(`{"id":"evt_ext_42","type":"payment_intent.succeeded"}`)
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,%s", ts, signature.Sign(body, "whsec_test", ts))

	resp = doRaw(t, "POST", srv.URL+"/ingest/stripe-main/"+token, body, map[string]string{
		"Stripe-Signature": header,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signed ingest: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Tampered body → 401
	resp = doRaw(t, "POST", srv.URL+"/ingest/stripe-main/"+token, []byte(`{"id":"evt_ext_43","type":"x"}`), map[string]string{
		"Stripe-Signature": header,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("tampered body: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Events ---

func TestEvents_ListAndGet(t *testing.T) {
	srv, _ := testServer(t)
	token := createTestProvider(t, srv, "acme", "none")

	body := []byte(`{"id":"evt_ext_1","type":"order.created"}`)
	resp := doRaw(t, "POST", srv.URL+"/ingest/acme/"+token, body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest: expected 201, got %d", resp.StatusCode)
	}
	var receipt map[string]any
	decodeBody(t, resp, &receipt)
	evt := receipt["event"].(map[string]any)
	evtID := evt["id"].(string)

	// List
	resp = doJSON(t, "GET", srv.URL+"/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var events []map[string]any
	decodeBody(t, resp, &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	// Filtered list misses
	resp = doJSON(t, "GET", srv.URL+"/events?provider=other", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered list: expected 200, got %d", resp.StatusCode)
	}
	var filtered []map[string]any
	decodeBody(t, resp, &filtered)
	if len(filtered) != 0 {
		t.Fatalf("expected 0 events for other provider, got %d", len(filtered))
	}

	// Get
	resp = doJSON(t, "GET", srv.URL+"/events/"+evtID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Executions
	resp = doJSON(t, "GET", srv.URL+"/events/"+evtID+"/executions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("executions: expected 200, got %d", resp.StatusCode)
	}
	var execs []map[string]any
	decodeBody(t, resp, &execs)
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
}

func TestEvent_InvalidID(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/events/not-a-valid-id", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- DLQ ---

func TestDLQ_ListEmpty(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/dlq", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list dlq: expected 200, got %d", resp.StatusCode)
	}
	var entries []map[string]any
	decodeBody(t, resp, &entries)
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(entries))
	}
}

func TestDLQ_ReplayNotFound(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/dlq/dlq_nonexistent/replay", nil)
	// The ID will fail parsing since it's not a valid DLQ ID format.
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		t.Fatalf("replay nonexistent: expected 400 or 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDLQ_BulkReplayBadBody(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/dlq/replay", map[string]any{
		"from": "not-a-date",
		"to":   "2025-01-01T00:00:00Z",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Stats ---

func TestStats(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]any
	decodeBody(t, resp, &stats)

	if _, ok := stats["pending_executions"]; !ok {
		t.Fatal("expected pending_executions in response")
	}
	if _, ok := stats["dlq_size"]; !ok {
		t.Fatal("expected dlq_size in response")
	}
}
