package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/xraph/intake/gateway"
)

// maxIngestBody is a transport-level read bound that protects the server
// from unbounded bodies before the provider is even looked up. It is
// distinct from the per-provider MaxPayloadBytes gate: a provider cap of
// zero disables only that gate, never this ceiling.
const maxIngestBody = 10 << 20 // 10 MiB

// ingest is the public ingestion endpoint: POST /ingest/{provider}/{token}.
//
// A new event answers 201, a redelivery answers 200 with the original
// event, and every refusal maps to the gate's status code.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	r.Body.Close() //nolint:errcheck // read side already consumed
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxIngestBody {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	receipt, err := h.in.Receive(r.Context(),
		r.PathValue("provider"),
		r.PathValue("token"),
		body,
		r.Header,
	)
	if err != nil {
		var admErr *gateway.AdmissionError
		if errors.As(err, &admErr) {
			writeError(w, admErr.HTTPStatus(), string(admErr.Reason))
			return
		}
		h.logger.Error("ingest failed",
			"provider", r.PathValue("provider"),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if receipt.Duplicate {
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}
