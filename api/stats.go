package api

import (
	"net/http"
)

type statsResponse struct {
	PendingExecutions int64 `json:"pending_executions"`
	DLQSize           int64 `json:"dlq_size"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := h.in.Store().CountPendingExecutions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dlqCount, err := h.in.Store().CountDLQ(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		PendingExecutions: pending,
		DLQSize:           dlqCount,
	})
}
